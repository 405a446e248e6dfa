package dummy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	breakerFailureThreshold = 5
	breakerSuccessThreshold = 2
	breakerResetTimeout     = 30 * time.Second
)

type BreakerStatus struct {
	Node      string `json:"node"`
	State     string `json:"state"`
	Failures  int    `json:"failures"`
	Successes int    `json:"successes"`
}

type GatewayStats struct {
	TotalWorkers    int             `json:"total_workers"`
	CircuitBreakers []BreakerStatus `json:"circuit_breakers"`
}

// Gateway routes /infer to workers by consistent hash of the request id and
// fails over to the remaining workers when the owner is unavailable.
type Gateway struct {
	ring     *HashRing
	breakers map[string]*CircuitBreaker
	client   *http.Client
	router   *gin.Engine
}

func NewGateway(workers []string, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	g := &Gateway{
		ring:     NewHashRing(defaultVirtualNodes),
		breakers: make(map[string]*CircuitBreaker, len(workers)),
		client:   client,
	}
	for _, w := range workers {
		w = strings.TrimRight(w, "/")
		g.ring.Add(w)
		g.breakers[w] = NewCircuitBreaker(breakerFailureThreshold, breakerSuccessThreshold, breakerResetTimeout)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/infer", g.handleInfer)
	router.GET("/stats", g.handleStats)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"healthy": true})
	})
	g.router = router

	return g
}

func (g *Gateway) Router() *gin.Engine {
	return g.router
}

func (g *Gateway) Stats() GatewayStats {
	nodes := g.ring.Nodes()
	st := GatewayStats{
		TotalWorkers:    len(nodes),
		CircuitBreakers: make([]BreakerStatus, 0, len(nodes)),
	}
	for _, n := range nodes {
		state, failures, successes := g.breakers[n].Counts()
		st.CircuitBreakers = append(st.CircuitBreakers, BreakerStatus{
			Node:      n,
			State:     state.String(),
			Failures:  failures,
			Successes: successes,
		})
	}
	return st
}

func (g *Gateway) handleInfer(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req InferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, node := range g.candidates(req.RequestID) {
		if resp, ok := g.forward(c, node, body); ok {
			c.Data(http.StatusOK, "application/json", resp)
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "All workers failed or circuit breakers open"})
}

func (g *Gateway) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, g.Stats())
}

// candidates lists the owner of key first, then every other node.
func (g *Gateway) candidates(key string) []string {
	nodes := g.ring.Nodes()
	primary := g.ring.Get(key)
	if primary == "" {
		return nil
	}
	out := make([]string, 0, len(nodes))
	out = append(out, primary)
	for _, n := range nodes {
		if n != primary {
			out = append(out, n)
		}
	}
	return out
}

func (g *Gateway) forward(c *gin.Context, node string, body []byte) ([]byte, bool) {
	cb := g.breakers[node]
	if !cb.Allow() {
		return nil, false
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, node+"/infer", bytes.NewReader(body))
	if err != nil {
		cb.RecordFailure()
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		cb.RecordFailure()
		return nil, false
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		cb.RecordFailure()
		return nil, false
	}
	cb.RecordSuccess()
	return out, true
}
