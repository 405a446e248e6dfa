package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds running counters for the progress display. They are
// approximate views of a run in flight; final numbers come from the
// collected outcomes.
type Stats struct {
	Requests        uint64
	Success         uint64
	Fail            uint64
	TransportErrors uint64

	// Latency of successful requests
	ServiceTime *LatencyHistogram
}

func NewStats() *Stats {
	return &Stats{
		ServiceTime: NewLatencyHistogram(),
	}
}

func (s *Stats) Add(success, transportErr bool, latency time.Duration) {
	atomic.AddUint64(&s.Requests, 1)
	if success {
		atomic.AddUint64(&s.Success, 1)
		s.ServiceTime.Record(latency)
	} else {
		atomic.AddUint64(&s.Fail, 1)
	}
	if transportErr {
		atomic.AddUint64(&s.TransportErrors, 1)
	}
}

func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return (float64(fails) / float64(reqs)) * 100
}

func (s *Stats) GetP50Service() float64 {
	return s.ServiceTime.QuantileMs(50)
}

func (s *Stats) GetP90Service() float64 {
	return s.ServiceTime.QuantileMs(90)
}

func (s *Stats) GetP99Service() float64 {
	return s.ServiceTime.QuantileMs(99)
}

// MeanServiceMs returns average latency of successful requests in milliseconds
func (s *Stats) MeanServiceMs() float64 {
	return s.ServiceTime.MeanMs()
}

func (s *Stats) MaxServiceMs() float64 {
	return s.ServiceTime.MaxMs()
}
