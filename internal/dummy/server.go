package dummy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ServerConfig describes a local gateway on Port with Workers workers on
// the ports that follow it.
type ServerConfig struct {
	Port    int
	Workers int
	Worker  WorkerConfig
}

// Cluster is a running gateway and its workers.
type Cluster struct {
	Gateway *Gateway
	Workers []*Worker
	servers []*http.Server
}

// Start launches the cluster in the background and returns once every
// listener has been created.
func Start(cfg ServerConfig) (*Cluster, error) {
	if cfg.Port <= 0 {
		cfg.Port = 8000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	gin.SetMode(gin.ReleaseMode)

	cl := &Cluster{}
	urls := make([]string, 0, cfg.Workers)
	for i := 1; i <= cfg.Workers; i++ {
		wc := cfg.Worker
		wc.NodeID = fmt.Sprintf("worker%d", i)
		w := NewWorker(wc)
		cl.Workers = append(cl.Workers, w)

		port := cfg.Port + i
		urls = append(urls, fmt.Sprintf("http://localhost:%d", port))
		if err := cl.serve(fmt.Sprintf(":%d", port), w.Router()); err != nil {
			_ = cl.Shutdown(context.Background())
			return nil, err
		}
	}

	cl.Gateway = NewGateway(urls, nil)
	if err := cl.serve(fmt.Sprintf(":%d", cfg.Port), cl.Gateway.Router()); err != nil {
		_ = cl.Shutdown(context.Background())
		return nil, err
	}

	slog.Info("dummy cluster running",
		"gateway", fmt.Sprintf("http://localhost:%d", cfg.Port),
		"workers", urls,
	)
	return cl, nil
}

func (cl *Cluster) serve(addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	cl.servers = append(cl.servers, server)

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("dummy server failed", "addr", addr, "error", err)
		}
	}()
	return nil
}

// Shutdown stops the listeners and the workers' batchers.
func (cl *Cluster) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range cl.servers {
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, w := range cl.Workers {
		w.Close()
	}
	return errors.Join(errs...)
}
