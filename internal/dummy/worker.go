package dummy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// cachedInferenceMicros is reported for responses served from the cache.
const cachedInferenceMicros = 50

type WorkerConfig struct {
	NodeID       string
	MaxBatch     int
	BatchTimeout time.Duration
	// ComputeLatency is slept once per batch to stand in for a forward pass.
	ComputeLatency time.Duration
	CacheTTL       time.Duration
	// FailureRate is the probability in [0, 1] of answering 500 on a miss.
	FailureRate float64
}

func (c *WorkerConfig) setDefaults() {
	if c.MaxBatch <= 0 {
		c.MaxBatch = 32
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 20 * time.Millisecond
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

type InferRequest struct {
	RequestID string    `json:"request_id"`
	InputData []float64 `json:"input_data"`
}

type InferResponse struct {
	RequestID       string    `json:"request_id"`
	OutputData      []float64 `json:"output_data"`
	NodeID          string    `json:"node_id"`
	Cached          bool      `json:"cached"`
	InferenceTimeUs int64     `json:"inference_time_us"`
}

type WorkerHealth struct {
	Healthy        bool         `json:"healthy"`
	NodeID         string       `json:"node_id"`
	TotalRequests  int64        `json:"total_requests"`
	CacheHits      int64        `json:"cache_hits"`
	CacheSize      int          `json:"cache_size"`
	CacheHitRate   float64      `json:"cache_hit_rate"`
	BatchProcessor BatchMetrics `json:"batch_processor"`
}

// Worker is one simulated inference node: a result cache in front of a
// batching model.
type Worker struct {
	cfg     WorkerConfig
	cache   *cache.Cache
	batcher *Batcher
	router  *gin.Engine

	requests  atomic.Int64
	cacheHits atomic.Int64
}

func NewWorker(cfg WorkerConfig) *Worker {
	cfg.setDefaults()

	w := &Worker{
		cfg:   cfg,
		cache: cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
	w.batcher = NewBatcher(cfg.MaxBatch, cfg.BatchTimeout, w.compute)
	w.batcher.Start()

	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/infer", w.handleInfer)
	router.GET("/health", w.handleHealth)
	w.router = router

	return w
}

func (w *Worker) Router() *gin.Engine {
	return w.router
}

func (w *Worker) Close() {
	w.batcher.Stop()
}

func (w *Worker) Health() WorkerHealth {
	total := w.requests.Load()
	hits := w.cacheHits.Load()
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return WorkerHealth{
		Healthy:        true,
		NodeID:         w.cfg.NodeID,
		TotalRequests:  total,
		CacheHits:      hits,
		CacheSize:      w.cache.ItemCount(),
		CacheHitRate:   rate,
		BatchProcessor: w.batcher.Metrics(),
	}
}

func (w *Worker) handleInfer(c *gin.Context) {
	var req InferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w.requests.Add(1)

	key := cacheKey(req.InputData)
	if out, ok := w.cache.Get(key); ok {
		w.cacheHits.Add(1)
		c.JSON(http.StatusOK, InferResponse{
			RequestID:       req.RequestID,
			OutputData:      out.([]float64),
			NodeID:          w.cfg.NodeID,
			Cached:          true,
			InferenceTimeUs: cachedInferenceMicros,
		})
		return
	}

	if w.cfg.FailureRate > 0 && rand.Float64() < w.cfg.FailureRate {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "inference failed"})
		return
	}

	start := time.Now()
	out, err := w.batcher.Process(c.Request.Context(), req.InputData)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	w.cache.SetDefault(key, out)

	c.JSON(http.StatusOK, InferResponse{
		RequestID:       req.RequestID,
		OutputData:      out,
		NodeID:          w.cfg.NodeID,
		InferenceTimeUs: time.Since(start).Microseconds(),
	})
}

func (w *Worker) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, w.Health())
}

func (w *Worker) compute(inputs [][]float64) [][]float64 {
	if w.cfg.ComputeLatency > 0 {
		time.Sleep(w.cfg.ComputeLatency)
	}
	outputs := make([][]float64, len(inputs))
	for i, in := range inputs {
		out := make([]float64, len(in))
		for j, x := range in {
			out[j] = math.Tanh(x)
		}
		outputs[i] = out
	}
	return outputs
}

func cacheKey(input []float64) string {
	parts := make([]string, len(input))
	for i, x := range input {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ","))
}
