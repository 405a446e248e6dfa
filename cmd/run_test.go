package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infbench/internal/config"
	"infbench/internal/dummy"
)

func startCluster(t *testing.T) (gateway string, workers []string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	for _, id := range []string{"worker1", "worker2"} {
		w := dummy.NewWorker(dummy.WorkerConfig{NodeID: id, BatchTimeout: time.Millisecond})
		srv := httptest.NewServer(w.Router())
		t.Cleanup(func() {
			srv.Close()
			w.Close()
		})
		workers = append(workers, srv.URL)
	}

	g := dummy.NewGateway(workers, nil)
	gs := httptest.NewServer(g.Router())
	t.Cleanup(gs.Close)
	return gs.URL, workers
}

func TestRunBenchmark_AgainstDummyCluster(t *testing.T) {
	gateway, workers := startCluster(t)

	cfg := &config.Config{
		Gateway:  gateway,
		Requests: 20,
		Threads:  4,
		Workers:  workers,
		Timeout:  5 * time.Second,
		CacheTest: config.CacheTestConfig{
			Enabled:  true,
			Requests: 10,
		},
		Probe: config.ProbeConfig{Timeout: time.Second},
	}

	var out, errOut bytes.Buffer
	require.NoError(t, runBenchmark(context.Background(), cfg, &out, &errOut))

	s := out.String()
	assert.Contains(t, s, "CACHE EFFECTIVENESS TEST")
	assert.Contains(t, s, "Cache speedup:")
	assert.Contains(t, s, "Starting benchmark:")
	assert.Contains(t, s, "BENCHMARK RESULTS")
	assert.Contains(t, s, "SYSTEM STATISTICS")
	assert.Contains(t, s, "Gateway Circuit Breakers:")
	assert.Contains(t, s, "Worker worker1")
	assert.Contains(t, s, "Worker worker2")
	assert.NotContains(t, s, "ERROR: All requests failed")

	// Not a terminal: no progress line.
	assert.Empty(t, errOut.String())
}

func TestRunBenchmark_NoStats(t *testing.T) {
	gateway, workers := startCluster(t)

	cfg := &config.Config{
		Gateway:  gateway,
		Requests: 4,
		Threads:  2,
		Workers:  workers,
		Timeout:  5 * time.Second,
		Probe:    config.ProbeConfig{Disabled: true},
	}

	var out bytes.Buffer
	require.NoError(t, runBenchmark(context.Background(), cfg, &out, &bytes.Buffer{}))
	assert.Contains(t, out.String(), "BENCHMARK RESULTS")
	assert.NotContains(t, out.String(), "SYSTEM STATISTICS")
	assert.NotContains(t, out.String(), "CACHE EFFECTIVENESS TEST")
}

func TestRunBenchmark_BadTemplate(t *testing.T) {
	cfg := &config.Config{
		Gateway:         "http://localhost:1",
		Requests:        1,
		Threads:         1,
		Timeout:         time.Second,
		PayloadTemplate: "{{",
	}
	err := runBenchmark(context.Background(), cfg, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "payload template")
}

func TestBindFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("threads", 10, "")
	fs.Bool("no-stats", false, "")
	fs.Bool("cache-test", false, "")
	fs.String("log-level", "warn", "")
	require.NoError(t, fs.Parse([]string{"--threads=3", "--no-stats", "--log-level=debug"}))

	v := viper.New()
	bindFlags(v, fs)

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Threads)
	assert.True(t, cfg.Probe.Disabled)
	assert.False(t, cfg.CacheTest.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestProgressWriter(t *testing.T) {
	assert.Nil(t, progressWriter(&bytes.Buffer{}))
}
