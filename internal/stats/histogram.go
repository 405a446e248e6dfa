package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minTrackable = time.Microsecond
	maxTrackable = 10 * time.Minute
)

// LatencyHistogram records durations at microsecond resolution and reports
// them in milliseconds. It is safe for concurrent use.
type LatencyHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		hist: hdrhistogram.New(int64(minTrackable/time.Microsecond), int64(maxTrackable/time.Microsecond), 3),
	}
}

// Record adds d, clamped to [1us, 10min].
func (h *LatencyHistogram) Record(d time.Duration) {
	d = min(max(d, minTrackable), maxTrackable)

	h.mu.Lock()
	defer h.mu.Unlock()
	// Cannot fail once clamped.
	_ = h.hist.RecordValue(d.Microseconds())
}

// QuantileMs returns the value at quantile q in [0, 100].
func (h *LatencyHistogram) QuantileMs(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return usToMs(float64(h.hist.ValueAtQuantile(q)))
}

func (h *LatencyHistogram) MeanMs() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return usToMs(h.hist.Mean())
}

func (h *LatencyHistogram) MaxMs() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return usToMs(float64(h.hist.Max()))
}

func usToMs(us float64) float64 {
	return us / 1000.0
}
