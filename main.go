package main

import "infbench/cmd"

func main() {
	cmd.Execute()
}
