package banner

import (
	"infbench/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
  _        __ _                     _
 (_)_ __  / _| |__   ___ _ __   ___| |__
 | | '_ \| |_| '_ \ / _ \ '_ \ / __| '_ \
 | | | | |  _| |_) |  __/ | | | (__| | | |
 |_|_| |_|_| |_.__/ \___|_| |_|\___|_| |_|`

func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorPrimary).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
