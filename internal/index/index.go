// Package index maintains an in-memory secondary index over the documents of
// one key pattern and answers filter + sort + slice queries with document keys.
//
// # Usage
//
//	ix := index.New(pattern, []index.Definition{{Field: "name", Sortable: true}}, logger)
//	ix.Rebuild(ctx, store)
//	res, err := ix.Search(ctx, index.Query{Pattern: p, Order: &model.Order{Field: "name"}, Limit: 20})
//
// Queries the index cannot answer exactly return ErrNoMatchingIndex so the caller
// can serve them another way.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syntrixbase/pager/internal/codec"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

var (
	// ErrNoMatchingIndex is returned when the query uses a pattern or field the index does not cover.
	ErrNoMatchingIndex = errors.New("no matching index")
	// ErrIndexNotReady is returned while the index is being rebuilt.
	ErrIndexNotReady = errors.New("index not ready")
)

// Definition declares one indexed field.
type Definition struct {
	Field    string `yaml:"field"`
	Sortable bool   `yaml:"sortable"`
}

// Query is a page request against the index.
type Query struct {
	Pattern keyspace.Pattern
	Filter  *model.Filter
	Order   *model.Order
	Offset  int
	Limit   int
}

// Result holds the keys of one page and the number of matching documents.
type Result struct {
	Keys  []string
	Total int
}

// State represents the current state of the index.
type State int

const (
	StateEmpty      State = iota // Never built
	StateHealthy                 // Up to date and serving queries
	StateRebuilding              // Being rebuilt, queries fall back
	StateFailed                  // Last rebuild failed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateHealthy:
		return "healthy"
	case StateRebuilding:
		return "rebuilding"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Index struct {
	pattern keyspace.Pattern
	defs    map[string]Definition
	logger  *slog.Logger

	mu    sync.RWMutex
	state State
	t     *tables
	// pending records changes applied while a rebuild runs; they are replayed
	// onto the rebuilt tables before the swap. nil value means deleted.
	pending map[string][]byte
}

// tables hold the indexed documents. A rebuild fills a fresh set and swaps it in.
type tables struct {
	values map[string]map[string]interface{} // key -> indexed field -> normalized value
	byKey  *shard
	asc    map[string]*shard
	desc   map[string]*shard
}

func (ix *Index) newTables() *tables {
	t := &tables{
		values: make(map[string]map[string]interface{}),
		byKey:  newShard(),
		asc:    make(map[string]*shard),
		desc:   make(map[string]*shard),
	}
	for field, d := range ix.defs {
		if d.Sortable {
			t.asc[field] = newShard()
			t.desc[field] = newShard()
		}
	}
	return t
}

// New creates an empty index over the documents matching pattern.
func New(pattern keyspace.Pattern, defs []Definition, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Index{
		pattern: pattern,
		defs:    make(map[string]Definition, len(defs)),
		logger:  logger.With("component", "index", "pattern", pattern.String()),
	}
	for _, d := range defs {
		ix.defs[d.Field] = d
	}
	ix.t = ix.newTables()
	return ix
}

// Pattern returns the indexed key pattern.
func (ix *Index) Pattern() keyspace.Pattern {
	return ix.pattern
}

func (ix *Index) State() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.t.byKey.len()
}

// Rebuild reloads every document matching the pattern into fresh tables and
// swaps them in. A healthy index keeps serving from the old tables meanwhile;
// an index that was never built falls back until the first rebuild completes.
// Changes applied during the rebuild are carried over.
func (ix *Index) Rebuild(ctx context.Context, store types.DocumentStore) error {
	start := time.Now()
	ix.mu.Lock()
	if ix.pending != nil {
		ix.mu.Unlock()
		return fmt.Errorf("rebuild index: already rebuilding")
	}
	ix.pending = make(map[string][]byte)
	if ix.state != StateHealthy {
		ix.state = StateRebuilding
	}
	ix.mu.Unlock()

	fresh := ix.newTables()
	var scanned, added, skipped int
	err := store.ScanKeys(ctx, ix.pattern, func(batch []string) error {
		if len(batch) == 0 {
			return nil
		}
		vals, err := store.GetMany(ctx, batch)
		if err != nil {
			return err
		}
		for i, key := range batch {
			scanned++
			if vals[i] == nil {
				continue
			}
			doc, err := codec.DecodeDocument(key, vals[i])
			if err != nil {
				skipped++
				continue
			}
			ix.upsertInto(fresh, key, doc.Data)
			added++
		}
		return nil
	})

	ix.mu.Lock()
	defer ix.mu.Unlock()
	pending := ix.pending
	ix.pending = nil
	if err != nil {
		ix.state = StateFailed
		ix.t = ix.newTables()
		ix.logger.Error("Index rebuild failed", "error", err)
		return fmt.Errorf("rebuild index: %w", err)
	}
	for key, raw := range pending {
		ix.applyInto(fresh, key, raw)
	}
	ix.t = fresh
	ix.state = StateHealthy
	ix.logger.Info("Index rebuilt",
		"scanned", scanned, "added", added, "skipped", skipped,
		"replayed", len(pending), "duration", time.Since(start))
	return nil
}

// Apply records a store change: raw is the new encoded value, nil for a
// deletion. Keys outside the pattern are ignored and values that do not decode
// are removed. It has the signature of a types.ChangeFeed listener.
func (ix *Index) Apply(key string, raw []byte) {
	if !ix.pattern.Match(key) {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.pending != nil {
		ix.pending[key] = raw
	}
	ix.applyInto(ix.t, key, raw)
}

func (ix *Index) applyInto(t *tables, key string, raw []byte) {
	if raw != nil {
		if doc, err := codec.DecodeDocument(key, raw); err == nil {
			ix.upsertInto(t, key, doc.Data)
			return
		}
	}
	delete(t.values, key)
	t.byKey.delete(key)
	for field := range t.asc {
		t.asc[field].delete(key)
		t.desc[field].delete(key)
	}
}

func (ix *Index) upsertInto(t *tables, key string, data map[string]interface{}) {
	vals := make(map[string]interface{}, len(ix.defs))
	for field, def := range ix.defs {
		v := model.NormalizeValue(data[field])
		vals[field] = v
		if def.Sortable {
			t.asc[field].upsert(key, EncodeOrderKey(v, false))
			t.desc[field].upsert(key, EncodeOrderKey(v, true))
		}
	}
	t.values[key] = vals
	t.byKey.upsert(key, nil)
}

// covers reports whether every key matching p also matches the indexed pattern.
func (ix *Index) covers(p keyspace.Pattern) bool {
	mine, theirs := ix.pattern.Segments(), p.Segments()
	if len(mine) != len(theirs) {
		return false
	}
	for i := range mine {
		if mine[i].Wildcard {
			continue
		}
		if theirs[i].Wildcard || theirs[i].Literal != mine[i].Literal {
			return false
		}
	}
	return true
}

// Search returns the keys of the requested page in sort order.
func (ix *Index) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Offset < 0 || q.Limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", model.ErrInvalidRequest, q.Offset, q.Limit)
	}
	if !ix.covers(q.Pattern) {
		return nil, fmt.Errorf("%w: pattern %s", ErrNoMatchingIndex, q.Pattern)
	}
	if q.Filter != nil {
		if _, ok := ix.defs[q.Filter.Field]; !ok {
			return nil, fmt.Errorf("%w: field %q is not indexed", ErrNoMatchingIndex, q.Filter.Field)
		}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.state != StateHealthy {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotReady, ix.state)
	}

	view := ix.t.byKey
	if q.Order != nil {
		var ok bool
		if q.Order.Descending() {
			view, ok = ix.t.desc[q.Order.Field]
		} else {
			view, ok = ix.t.asc[q.Order.Field]
		}
		if !ok {
			return nil, fmt.Errorf("%w: field %q is not sortable", ErrNoMatchingIndex, q.Order.Field)
		}
	}

	narrowed := !q.Pattern.Equal(ix.pattern)
	res := &Result{Keys: make([]string, 0, q.Limit)}
	var err error
	visited := 0
	view.ascend(func(key string) bool {
		visited++
		if visited%1024 == 0 {
			if err = ctx.Err(); err != nil {
				return false
			}
		}
		if narrowed && !q.Pattern.Match(key) {
			return true
		}
		if q.Filter != nil {
			s, ok := ix.t.values[key][q.Filter.Field].(string)
			if !ok || !q.Filter.MatchText(s) {
				return true
			}
		}
		if res.Total >= q.Offset && len(res.Keys) < q.Limit {
			res.Keys = append(res.Keys, key)
		}
		res.Total++
		return true
	})
	if err != nil {
		return nil, model.ErrCanceled
	}
	return res, nil
}
