// Package services wires storage, indexes, the paging engine and the HTTP
// server into one process.
package services

import (
	"log/slog"
	"sync"

	"github.com/syntrixbase/pager/internal/config"
	"github.com/syntrixbase/pager/internal/index"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/metrics"
	"github.com/syntrixbase/pager/internal/pager"
	"github.com/syntrixbase/pager/internal/server"
	"github.com/syntrixbase/pager/internal/storage"
)

type Options struct {
	// RunAPI starts the HTTP server. Seeding and benchmarking leave it off.
	RunAPI bool
	// BuildIndexes rebuilds the configured indexes before Init returns instead
	// of in the background after Start.
	BuildIndexes bool
}

type Manager struct {
	cfg     *config.Config
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	store      storage.Store
	namespaces map[string]*keyspace.Namespace
	indexes    []*index.Index
	engine     *pager.Engine
	server     *server.Server

	wg   sync.WaitGroup
	errs chan error
}

func NewManager(cfg *config.Config, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		metrics: metrics.New(),
		errs:    make(chan error, 1),
	}
}

// Engine returns the paging engine. It is nil before Init.
func (m *Manager) Engine() *pager.Engine { return m.engine }

// Store returns the opened store. It is nil before Init.
func (m *Manager) Store() storage.Store { return m.store }

// Namespace looks up a configured namespace by name.
func (m *Manager) Namespace(name string) (*keyspace.Namespace, bool) {
	ns, ok := m.namespaces[name]
	return ns, ok
}

func (m *Manager) Metrics() *metrics.Metrics { return m.metrics }

// Server returns the HTTP server, or nil when the API is not run.
func (m *Manager) Server() *server.Server { return m.server }

// Errors reports fatal failures of background services.
func (m *Manager) Errors() <-chan error { return m.errs }
