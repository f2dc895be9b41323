package pager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

// RemoteScanner runs the scan, filter, sort and slice procedure inside the
// store. Both variants of the procedure are compiled once and reused.
type RemoteScanner struct {
	store    types.DocumentStore
	mode     model.CompareMode
	sorted   types.Procedure
	unsorted types.Procedure
	logger   *slog.Logger
	warnOnce sync.Once
}

// NewRemoteScanner compiles the procedures. It fails with
// model.ErrProcedureUnsupported if the store cannot run them in mode.
func NewRemoteScanner(store types.DocumentStore, mode model.CompareMode, logger *slog.Logger) (*RemoteScanner, error) {
	if mode == "" {
		mode = model.ModeDecoded
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown compare mode %q", model.ErrInvalidRequest, mode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	sorted, err := store.CompileProcedure(types.ProcedureSpec{Sort: true, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("compile sorted procedure: %w", err)
	}
	unsorted, err := store.CompileProcedure(types.ProcedureSpec{Sort: false, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("compile unsorted procedure: %w", err)
	}

	r := &RemoteScanner{
		store:    store,
		mode:     mode,
		sorted:   sorted,
		unsorted: unsorted,
		logger:   logger.With("component", "remote_scanner"),
	}
	r.logger.Info("Remote scanner ready", "mode", mode)
	return r, nil
}

// Mode reports how the procedure compares field values.
func (r *RemoteScanner) Mode() model.CompareMode {
	return r.mode
}

// Execute returns the requested page. Procedure failures are
// *model.ProcedureError; the caller decides whether to fall back.
func (r *RemoteScanner) Execute(ctx context.Context, pattern keyspace.Pattern, req model.PageRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	proc := r.unsorted
	if req.Order != nil {
		proc = r.sorted
		if r.mode == model.ModeRaw {
			r.warnOnce.Do(func() {
				r.logger.Warn("Raw compare mode sorts field values as text; unpadded numbers will be out of numeric order",
					"field", req.Order.Field)
			})
		}
	}

	res, err := r.store.RunProcedure(ctx, proc, types.ProcedureArgs{
		Pattern: pattern,
		Filter:  req.Filter,
		Order:   req.Order,
		Offset:  req.Offset,
		Size:    req.Size,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Entries) > req.Size {
		return nil, &model.ProcedureError{
			Procedure: proc.Spec().Name(),
			Err:       fmt.Errorf("returned %d entries for a page of %d", len(res.Entries), req.Size),
		}
	}

	docs, failed := decodeEntries(res.Entries)
	if failed > 0 {
		r.logger.Debug("Dropped undecodable documents from page", "count", failed, "mode", r.mode)
	}
	return &Result{
		Page:           model.NewPage(req, docs, res.Total, failed),
		Strategy:       StrategyRemote,
		Candidates:     len(res.Entries),
		DecodeFailures: failed,
	}, nil
}
