package runner

import (
	"sync"
)

// Collector is the sink every worker deposits into. One lock covers both the
// outcome list and the tally so a record and its category land together.
type Collector struct {
	mu       sync.Mutex
	outcomes []Outcome
	failures FailureTally
}

func NewCollector(capacity int) *Collector {
	if capacity < 0 {
		capacity = 0
	}
	return &Collector{
		outcomes: make([]Outcome, 0, capacity),
		failures: make(FailureTally),
	}
}

// Record appends the outcome and, when category is non-empty, bumps its count.
func (c *Collector) Record(o Outcome, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes = append(c.outcomes, o)
	if category != "" {
		c.failures[category]++
	}
}

func (c *Collector) Add(a Attempt) {
	c.Record(a.Outcome, a.Category)
}

// Snapshot returns copies of the collected outcomes and tally. Callers read
// it after the run's barrier.
func (c *Collector) Snapshot() ([]Outcome, FailureTally) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out, c.failures.Clone()
}
