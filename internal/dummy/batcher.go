package dummy

import (
	"context"
	"sync"
	"time"
)

type BatchMetrics struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalBatches   int64   `json:"total_batches"`
	FullBatches    int64   `json:"full_batches"`
	TimeoutBatches int64   `json:"timeout_batches"`
	AvgBatchSize   float64 `json:"avg_batch_size"`
}

type batchItem struct {
	input []float64
	reply chan []float64
}

// Batcher groups concurrent inputs into batches of up to MaxSize, waiting
// at most Timeout after the first input of a batch.
type Batcher struct {
	MaxSize int
	Timeout time.Duration
	compute func([][]float64) [][]float64

	queue chan batchItem
	stop  chan struct{}
	done  chan struct{}

	mu      sync.Mutex
	metrics BatchMetrics
}

func NewBatcher(maxSize int, timeout time.Duration, compute func([][]float64) [][]float64) *Batcher {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Batcher{
		MaxSize: maxSize,
		Timeout: timeout,
		compute: compute,
		queue:   make(chan batchItem, maxSize*4),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (b *Batcher) Start() {
	go b.loop()
}

func (b *Batcher) Stop() {
	close(b.stop)
	<-b.done
}

// Process submits input and waits for its batch to be computed.
func (b *Batcher) Process(ctx context.Context, input []float64) ([]float64, error) {
	item := batchItem{input: input, reply: make(chan []float64, 1)}

	select {
	case b.queue <- item:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	b.mu.Lock()
	b.metrics.TotalRequests++
	b.mu.Unlock()

	select {
	case out := <-item.reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Batcher) Metrics() BatchMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

func (b *Batcher) loop() {
	defer close(b.done)

	for {
		var first batchItem
		select {
		case <-b.stop:
			return
		case first = <-b.queue:
		}

		batch := []batchItem{first}
		timer := time.NewTimer(b.Timeout)
		stopping := false

	collect:
		for len(batch) < b.MaxSize {
			select {
			case it := <-b.queue:
				batch = append(batch, it)
			case <-timer.C:
				break collect
			case <-b.stop:
				stopping = true
				break collect
			}
		}
		timer.Stop()

		b.run(batch, len(batch) == b.MaxSize)
		if stopping {
			return
		}
	}
}

func (b *Batcher) run(batch []batchItem, full bool) {
	inputs := make([][]float64, len(batch))
	for i, it := range batch {
		inputs[i] = it.input
	}
	outputs := b.compute(inputs)

	b.mu.Lock()
	m := &b.metrics
	m.TotalBatches++
	if full {
		m.FullBatches++
	} else {
		m.TimeoutBatches++
	}
	m.AvgBatchSize += (float64(len(batch)) - m.AvgBatchSize) / float64(m.TotalBatches)
	b.mu.Unlock()

	for i, it := range batch {
		var out []float64
		if i < len(outputs) {
			out = outputs[i]
		}
		it.reply <- out
	}
}
