package services

import (
	"context"
	"fmt"

	"github.com/syntrixbase/pager/internal/api/rest"
	"github.com/syntrixbase/pager/internal/index"
	"github.com/syntrixbase/pager/internal/pager"
	"github.com/syntrixbase/pager/internal/server"
	"github.com/syntrixbase/pager/internal/storage"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

// Dependency injection for testing
var openStore = storage.Open

func (m *Manager) Init(ctx context.Context) error {
	namespaces, err := m.cfg.Namespaces.Compile()
	if err != nil {
		return err
	}
	m.namespaces = namespaces

	store, err := openStore(ctx, m.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	m.store = store
	m.logger.Info("Connected to storage", "backend", m.cfg.Storage.Backend)

	if err := m.initIndexes(ctx); err != nil {
		return err
	}

	if err := m.initEngine(); err != nil {
		return err
	}

	if m.opts.RunAPI {
		m.initAPIServer()
	}
	return nil
}

func (m *Manager) initIndexes(ctx context.Context) error {
	if !m.cfg.Index.Enabled {
		return nil
	}
	for name, defs := range m.cfg.Index.Definitions {
		ns := m.namespaces[name]
		pattern, err := ns.Resolve(nil)
		if err != nil {
			return fmt.Errorf("index %s: %w", name, err)
		}
		ix := index.New(pattern, defs, m.logger)
		if feed, ok := m.store.(types.ChangeFeed); ok {
			feed.OnChange(ix.Apply)
		}
		m.indexes = append(m.indexes, ix)
	}
	if m.opts.BuildIndexes {
		return m.RebuildIndexes(ctx)
	}
	return nil
}

// RebuildIndexes reloads every index from the store.
func (m *Manager) RebuildIndexes(ctx context.Context) error {
	for _, ix := range m.indexes {
		if err := ix.Rebuild(ctx, m.store); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) initEngine() error {
	strategy, err := pager.ParseStrategy(m.cfg.Pager.Strategy)
	if err != nil {
		return err
	}
	searchers := make([]pager.KeySearcher, len(m.indexes))
	for i, ix := range m.indexes {
		searchers[i] = ix
	}

	m.engine, err = pager.NewEngine(m.store,
		pager.WithStrategy(strategy),
		pager.WithMode(model.CompareMode(m.cfg.Pager.Mode)),
		pager.WithIndex(searchers...),
		pager.WithLogger(m.logger),
		pager.WithMetrics(m.metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create paging engine: %w", err)
	}
	m.logger.Info("Initialized paging engine",
		"strategy", strategy, "mode", m.engine.Mode(),
		"remote", m.engine.RemoteAvailable(), "indexes", len(m.indexes))
	return nil
}

func (m *Manager) initAPIServer() {
	m.server = server.New(m.cfg.Server, m.logger, m.metrics)
	handler := rest.NewHandler(m.engine, m.namespaces, m.cfg.Pager.DefaultPageSize, m.metrics.Handler(), m.logger)
	handler.RegisterRoutes(m.server)
}
