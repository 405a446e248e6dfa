package runner

import (
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultPrefix  = "req"

	// StatusSuccess is the only status code counted as a successful inference.
	StatusSuccess = 200
)

type Config struct {
	GatewayURL string
	Requests   int
	Workers    int
	Timeout    time.Duration

	// PayloadTemplate overrides the built-in request body when non-empty.
	PayloadTemplate string
}

// PerWorker is the number of requests each worker issues. The remainder of
// Requests / Workers is never dispatched.
func (c Config) PerWorker() int {
	if c.Workers < 1 {
		return 0
	}
	return c.Requests / c.Workers
}

// Dispatched is the number of requests a run actually issues.
func (c Config) Dispatched() int {
	return c.PerWorker() * c.Workers
}

// Outcome describes one completed request attempt.
type Outcome struct {
	LatencyMs  float64 `json:"latency_ms"`
	StatusCode int     `json:"status_code"`
	Success    bool    `json:"success"`
}

// FailureTally counts transport-level failures by category.
type FailureTally map[string]int

func (t FailureTally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

func (t FailureTally) Clone() FailureTally {
	out := make(FailureTally, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Attempt is what the issuer hands back for every request. Category is empty
// unless the request failed before a status code was obtained.
type Attempt struct {
	Outcome  Outcome
	Category string
}

func (a Attempt) TransportFailure() bool {
	return a.Category != ""
}

// Result is the snapshot of a finished run.
type Result struct {
	RunID      string
	Requested  int
	Dispatched int
	Outcomes   []Outcome
	Failures   FailureTally
	Elapsed    time.Duration
}
