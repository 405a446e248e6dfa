// Package report turns the outcomes of a finished run into throughput and
// latency statistics.
//
// Percentiles use the nearest-rank rule on the ascending-sorted latencies of
// successful requests: the p-th percentile of n samples is L[floor(n*p/100)],
// with the index clamped to [0, n-1]. No interpolation is performed, so p90
// of [10 20 ... 100] is 100, not 91.
package report

import (
	"errors"
	"math"
	"sort"
	"time"

	"infbench/internal/runner"
)

// ErrTooFewSamples is returned when a statistic needs more samples than given.
var ErrTooFewSamples = errors.New("too few samples")

// Percentiles reported for every run, in output order.
var Percentiles = []int{50, 90, 95, 99}

type Percentile struct {
	P       int     `json:"p"`
	ValueMs float64 `json:"value_ms"`
}

type LatencySummary struct {
	Samples  int     `json:"samples"`
	MeanMs   float64 `json:"mean_ms"`
	MedianMs float64 `json:"median_ms"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`

	// StdDevMs is the sample standard deviation. It is only meaningful when
	// HasStdDev is set, which requires at least two samples.
	StdDevMs  float64 `json:"stddev_ms"`
	HasStdDev bool    `json:"has_stddev"`

	Percentiles []Percentile `json:"percentiles"`
}

type Report struct {
	Requested   int                 `json:"requested"`
	Total       int                 `json:"total"`
	Successful  int                 `json:"successful"`
	Failed      int                 `json:"failed"`
	SuccessRate float64             `json:"success_rate"`
	Elapsed     time.Duration       `json:"elapsed"`
	Throughput  float64             `json:"throughput"`
	Latency     *LatencySummary     `json:"latency,omitempty"`
	Failures    runner.FailureTally `json:"failures"`
}

// AllFailed reports whether the run had no successful request. Such a report
// carries no latency statistics.
func (r Report) AllFailed() bool {
	return r.Latency == nil
}

// Percentile returns the value recorded for p, if p is one of Percentiles.
func (r Report) Percentile(p int) (float64, bool) {
	if r.Latency == nil {
		return 0, false
	}
	for _, pc := range r.Latency.Percentiles {
		if pc.P == p {
			return pc.ValueMs, true
		}
	}
	return 0, false
}

// FromResult summarizes a runner result and keeps the configured request
// count for display.
func FromResult(res runner.Result) Report {
	rep := Summarize(res.Outcomes, res.Failures, res.Elapsed)
	rep.Requested = res.Requested
	return rep
}

// Summarize computes the report for a set of outcomes. It does not modify its
// arguments and returns the same report for the same input.
func Summarize(outcomes []runner.Outcome, failures runner.FailureTally, elapsed time.Duration) Report {
	rep := Report{
		Requested: len(outcomes),
		Total:     len(outcomes),
		Elapsed:   elapsed,
		Failures:  failures.Clone(),
	}

	latencies := make([]float64, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Success {
			latencies = append(latencies, o.LatencyMs)
		}
	}
	rep.Successful = len(latencies)
	rep.Failed = rep.Total - rep.Successful

	if rep.Successful == 0 {
		return rep
	}

	sort.Float64s(latencies)

	rep.SuccessRate = float64(rep.Successful) / float64(rep.Total)
	if secs := elapsed.Seconds(); secs > 0 {
		rep.Throughput = float64(rep.Successful) / secs
	}

	lat := &LatencySummary{
		Samples:  len(latencies),
		MeanMs:   Mean(latencies),
		MedianMs: Median(latencies),
		MinMs:    latencies[0],
		MaxMs:    latencies[len(latencies)-1],
	}
	if sd, err := SampleStdDev(latencies); err == nil {
		lat.StdDevMs = sd
		lat.HasStdDev = true
	}
	for _, p := range Percentiles {
		lat.Percentiles = append(lat.Percentiles, Percentile{P: p, ValueMs: NearestRank(latencies, p)})
	}
	rep.Latency = lat

	return rep
}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Median expects sorted input. For an even count it is the mean of the two
// middle values.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// SampleStdDev uses the n-1 divisor and is undefined below two samples.
func SampleStdDev(xs []float64) (float64, error) {
	n := len(xs)
	if n < 2 {
		return 0, ErrTooFewSamples
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), nil
}

// NearestRank returns sorted[floor(n*p/100)] with the index clamped to the
// slice bounds. It returns 0 for an empty slice.
func NearestRank(sorted []float64, p int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := n * p / 100
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
