package services

import (
	"context"
	"time"
)

// Start launches the HTTP server and any pending index rebuilds. It returns
// immediately; failures arrive on Errors.
func (m *Manager) Start(bgCtx context.Context) {
	if m.server != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.server.Start(bgCtx); err != nil {
				m.logger.Error("HTTP server failed", "error", err)
				m.report(err)
			}
		}()
	}

	if len(m.indexes) > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.refreshIndexes(bgCtx)
		}()
	}
}

// refreshIndexes builds the indexes if Init did not, then rebuilds them every
// refresh interval until ctx is done. Healthy indexes keep serving while a
// rebuild runs.
func (m *Manager) refreshIndexes(ctx context.Context) {
	if !m.opts.BuildIndexes {
		// queries fall back to other strategies until this finishes
		if err := m.RebuildIndexes(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("Initial index build failed", "error", err)
		}
	}

	interval := m.cfg.Index.RefreshInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RebuildIndexes(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("Index refresh failed", "error", err)
			}
		}
	}
}

func (m *Manager) report(err error) {
	select {
	case m.errs <- err:
	default:
	}
}
