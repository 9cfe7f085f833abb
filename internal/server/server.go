// Package server exposes Nelder-Mead minimization of catalogue objectives as
// background jobs over a REST API and a JSON-RPC 2.0 endpoint.
package server

import (
	"context"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/simplex/internal/config"
	"github.com/copyleftdev/simplex/internal/logging"
	"github.com/copyleftdev/simplex/internal/metrics"
	"github.com/copyleftdev/simplex/internal/store"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server manages optimization jobs. Each job runs on its own Optimizer; at
// most cfg.Optimization.WorkerCount jobs run at once, the rest wait as
// pending.
type Server struct {
	cfg     *config.Config
	logger  Logger
	runs    store.Store
	metrics *metrics.Metrics

	// jobsMu protects jobs and every field of the jobs it holds.
	jobs   map[string]*job
	jobsMu sync.RWMutex
	closed bool

	sem       chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewServer creates a server. The run store must already be initialized;
// a nil store keeps runs in memory. A nil m records metrics on unregistered
// collectors.
func NewServer(cfg *config.Config, logger Logger, runs store.Store, m *metrics.Metrics) *Server {
	if runs == nil {
		mem := store.NewMemoryStore()
		_ = mem.Init(context.Background())
		runs = mem
	}
	if m == nil {
		m, _ = metrics.New(nil)
	}
	workers := cfg.Optimization.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		runs:    runs,
		metrics: m,
		jobs:    make(map[string]*job),
		sem:     make(chan struct{}, workers),
		done:    make(chan struct{}),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/simplices/{id}", s.handleSimplices)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/objectives", s.handleObjectives)
		r.Get("/runs", s.handleRuns)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close refuses new jobs, cancels the unfinished ones and waits for their
// workers to return. Running minimizations finish their iterations first.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	s.closed = true
	for _, j := range s.jobs {
		if !j.terminal() {
			j.cancel()
		}
	}
	s.jobsMu.Unlock()

	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}
