package probe

import (
	"fmt"
	"io"
	"strings"
)

// Render prints the snapshot. Targets that could not be read are skipped.
func Render(w io.Writer, s Snapshot) {
	rule := strings.Repeat("=", 70)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SYSTEM STATISTICS")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	if s.Gateway != nil {
		fmt.Fprintln(w, "Gateway Circuit Breakers:")
		for _, b := range s.Gateway.CircuitBreakers {
			fmt.Fprintf(w, "  %s: %s (failures: %d, successes: %d)\n", b.Node, b.State, b.Failures, b.Successes)
		}
		fmt.Fprintln(w)
	}

	for _, wr := range s.Workers {
		if wr.Health == nil {
			continue
		}
		h := wr.Health
		nodeID := h.NodeID
		if nodeID == "" {
			nodeID = "unknown"
		}
		fmt.Fprintf(w, "Worker %s (%s):\n", nodeID, wr.URL)
		fmt.Fprintf(w, "  Total requests:    %d\n", h.TotalRequests)
		fmt.Fprintf(w, "  Cache size:        %d\n", h.CacheSize)
		fmt.Fprintf(w, "  Cache hits:        %d\n", h.CacheHits)
		fmt.Fprintf(w, "  Cache hit rate:    %.2f%%\n", h.CacheHitRate*100)
		fmt.Fprintf(w, "  Avg batch size:    %.2f\n", h.BatchProcessor.AvgBatchSize)
		fmt.Fprintf(w, "  Total batches:     %d\n", h.BatchProcessor.TotalBatches)
		fmt.Fprintf(w, "  Full batches:      %d\n", h.BatchProcessor.FullBatches)
		fmt.Fprintf(w, "  Timeout batches:   %d\n", h.BatchProcessor.TimeoutBatches)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, rule)
}
