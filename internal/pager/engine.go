package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/pager/internal/index"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/metrics"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

// Strategy selects how a page is computed.
type Strategy string

const (
	// StrategyAuto tries the index, then the remote procedure, then bulk.
	StrategyAuto Strategy = "auto"
	// StrategyRemote runs the paging procedure inside the store.
	StrategyRemote Strategy = "remote"
	// StrategyIndex resolves the page keys through a secondary index.
	StrategyIndex Strategy = "index"
	// StrategyBulk loads every candidate and pages in process.
	StrategyBulk Strategy = "bulk"
)

// ParseStrategy validates a strategy name. The empty string means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyRemote, StrategyIndex, StrategyBulk:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", model.ErrInvalidRequest, s)
}

// Result is a page together with how it was produced.
type Result struct {
	Page     *model.Page
	Strategy Strategy
	// Candidates is the number of documents transferred from the store.
	Candidates     int
	DecodeFailures int
}

// Fetcher produces the full set of documents to paginate.
type Fetcher func(ctx context.Context) ([]model.Document, error)

// ListFunc returns one page of a listing.
type ListFunc func(ctx context.Context, req model.PageRequest) (*model.Page, error)

// PaginateFunc pages whatever fetch returns.
func PaginateFunc(ctx context.Context, fetch Fetcher, req model.PageRequest) (*model.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	docs, err := fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.ErrCanceled
		}
		return nil, err
	}
	return Paginate(docs, req)
}

// Paginated adapts a plain listing function into a paginated one.
func Paginated(fetch Fetcher) ListFunc {
	return func(ctx context.Context, req model.PageRequest) (*model.Page, error) {
		return PaginateFunc(ctx, fetch, req)
	}
}

// KeySearcher answers page queries with document keys.
type KeySearcher interface {
	Search(ctx context.Context, q index.Query) (*index.Result, error)
}

// Engine serves listing requests with interchangeable strategies. All of them
// return the same page for the same request.
type Engine struct {
	store    types.DocumentStore
	remote   *RemoteScanner
	indexes  []KeySearcher
	strategy Strategy
	mode     model.CompareMode
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Engine)

// WithIndex adds secondary indexes. The first one covering a request serves it.
func WithIndex(ix ...KeySearcher) Option {
	return func(e *Engine) { e.indexes = append(e.indexes, ix...) }
}

// WithStrategy sets the default strategy.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithMode sets how field values are compared.
func WithMode(m model.CompareMode) Option {
	return func(e *Engine) { e.mode = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over store. Stores without procedure support
// get an engine that never tries the remote strategy.
func NewEngine(store types.DocumentStore, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    store,
		strategy: StrategyAuto,
		mode:     model.ModeDecoded,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := ParseStrategy(string(e.strategy)); err != nil {
		return nil, err
	}
	if !e.mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown compare mode %q", model.ErrInvalidRequest, e.mode)
	}
	e.logger = e.logger.With("component", "pager")

	remote, err := NewRemoteScanner(store, e.mode, e.logger)
	switch {
	case err == nil:
		e.remote = remote
	case errors.Is(err, model.ErrProcedureUnsupported):
		e.logger.Info("Store cannot run the paging procedure; remote strategy disabled", "mode", e.mode, "reason", err)
	default:
		return nil, err
	}
	return e, nil
}

// Mode reports the configured compare mode.
func (e *Engine) Mode() model.CompareMode {
	return e.mode
}

// RemoteAvailable reports whether the store runs the paging procedure.
func (e *Engine) RemoteAvailable() bool {
	return e.remote != nil
}

// List returns one page using the default strategy.
func (e *Engine) List(ctx context.Context, ns *keyspace.Namespace, bindings map[string]string, req model.PageRequest) (*model.Page, error) {
	res, err := e.Execute(ctx, e.strategy, ns, bindings, req)
	if err != nil {
		return nil, err
	}
	return res.Page, nil
}

// Execute returns one page using strategy, falling back to the next strategy
// when the preferred one cannot serve the request. A caller that gives up gets
// model.ErrCanceled, never a partial page.
func (e *Engine) Execute(ctx context.Context, strategy Strategy, ns *keyspace.Namespace, bindings map[string]string, req model.PageRequest) (*Result, error) {
	start := time.Now()
	if strategy == "" {
		strategy = e.strategy
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pattern, err := ns.Resolve(bindings)
	if err != nil {
		return nil, err
	}

	steps := e.plan(strategy)
	for i, step := range steps {
		res, err := e.run(ctx, step, pattern, req)
		if err == nil {
			e.metrics.RecordList(string(step), "ok", time.Since(start))
			e.metrics.RecordCandidates(string(step), res.Candidates)
			e.metrics.RecordDecodeFailures(string(e.mode), res.DecodeFailures)
			return res, nil
		}

		if ctx.Err() != nil {
			e.metrics.RecordList(string(step), "canceled", time.Since(start))
			return nil, model.ErrCanceled
		}
		reason, ok := fallbackReason(step, err)
		if !ok || i == len(steps)-1 {
			e.metrics.RecordList(string(step), "error", time.Since(start))
			return nil, err
		}
		e.metrics.RecordFallback(string(step), reason)
		e.logger.Debug("Strategy fell back", "from", step, "to", steps[i+1], "reason", reason, "error", err)
	}
	return nil, fmt.Errorf("no strategy for %q", strategy)
}

// plan lists the strategies to try in order. Bulk always comes last.
func (e *Engine) plan(strategy Strategy) []Strategy {
	switch strategy {
	case StrategyBulk:
		return []Strategy{StrategyBulk}
	case StrategyRemote:
		return []Strategy{StrategyRemote, StrategyBulk}
	case StrategyIndex:
		return []Strategy{StrategyIndex, StrategyBulk}
	}

	// The remote procedure reads the store itself, so it goes before the
	// index, which may lag writes the store does not report.
	var steps []Strategy
	if e.remote != nil {
		steps = append(steps, StrategyRemote)
	}
	if len(e.indexes) > 0 && e.mode == model.ModeDecoded {
		steps = append(steps, StrategyIndex)
	}
	return append(steps, StrategyBulk)
}

func (e *Engine) run(ctx context.Context, step Strategy, pattern keyspace.Pattern, req model.PageRequest) (*Result, error) {
	switch step {
	case StrategyRemote:
		if e.remote == nil {
			return nil, model.ErrProcedureUnsupported
		}
		return e.remote.Execute(ctx, pattern, req)
	case StrategyIndex:
		return e.runIndex(ctx, pattern, req)
	default:
		return e.runBulk(ctx, pattern, req)
	}
}

func (e *Engine) runIndex(ctx context.Context, pattern keyspace.Pattern, req model.PageRequest) (*Result, error) {
	if e.mode != model.ModeDecoded {
		return nil, fmt.Errorf("%w: index compares decoded values only", index.ErrNoMatchingIndex)
	}

	var found *index.Result
	err := error(index.ErrNoMatchingIndex)
	for _, ix := range e.indexes {
		found, err = ix.Search(ctx, index.Query{
			Pattern: pattern,
			Filter:  req.Filter,
			Order:   req.Order,
			Offset:  req.Offset,
			Limit:   req.Size,
		})
		if !errors.Is(err, index.ErrNoMatchingIndex) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	entries := make([]types.Entry, 0, len(found.Keys))
	if len(found.Keys) > 0 {
		vals, err := e.store.GetMany(ctx, found.Keys)
		if err != nil {
			return nil, err
		}
		for i, k := range found.Keys {
			if vals[i] != nil {
				entries = append(entries, types.Entry{Key: k, Value: vals[i]})
			}
		}
	}
	// keys the index still lists but the store no longer has count as skipped
	missing := len(found.Keys) - len(entries)
	docs, failed := decodeEntries(entries)
	return &Result{
		Page:           model.NewPage(req, docs, found.Total, missing+failed),
		Strategy:       StrategyIndex,
		Candidates:     len(entries),
		DecodeFailures: failed,
	}, nil
}

func (e *Engine) runBulk(ctx context.Context, pattern keyspace.Pattern, req model.PageRequest) (*Result, error) {
	entries, err := Collect(ctx, e.store, pattern)
	if err != nil {
		return nil, err
	}
	page, failed, err := PaginateEntries(entries, req, e.mode)
	if err != nil {
		return nil, err
	}
	return &Result{
		Page:           page,
		Strategy:       StrategyBulk,
		Candidates:     len(entries),
		DecodeFailures: failed,
	}, nil
}

// fallbackReason reports whether err from step lets the next strategy try.
func fallbackReason(step Strategy, err error) (string, bool) {
	switch step {
	case StrategyIndex:
		switch {
		case errors.Is(err, index.ErrNoMatchingIndex):
			return "no_index", true
		case errors.Is(err, index.ErrIndexNotReady):
			return "index_not_ready", true
		}
	case StrategyRemote:
		var procErr *model.ProcedureError
		switch {
		case errors.Is(err, model.ErrProcedureUnsupported):
			return "unsupported", true
		case errors.As(err, &procErr) && procErr.Timeout:
			return "timeout", true
		case errors.Is(err, model.ErrProcedureExecution):
			return "procedure_error", true
		}
	}
	return "", false
}
