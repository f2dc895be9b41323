// Package memory is an in-process DocumentStore. It has no scripting support,
// so listing against it always takes the bulk path.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

const defaultBatchSize = 256

// Store keeps encoded documents in a map.
type Store struct {
	mu        sync.RWMutex
	data      map[string][]byte
	batchSize int
	listeners []func(key string, value []byte)
}

var (
	_ types.Store      = (*Store)(nil)
	_ types.ChangeFeed = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		data:      make(map[string][]byte),
		batchSize: defaultBatchSize,
	}
}

// WithBatchSize sets the number of keys handed to each ScanKeys callback.
func (s *Store) WithBatchSize(n int) *Store {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

func (s *Store) ScanKeys(ctx context.Context, pattern keyspace.Pattern, fn func(batch []string) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if pattern.Match(k) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	for start := 0; start < len(keys); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return model.ErrCanceled
		}
		end := start + s.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := fn(keys[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.ErrCanceled
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := s.data[k]; ok {
			out[i] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.ErrCanceled
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) CompileProcedure(spec types.ProcedureSpec) (types.Procedure, error) {
	return nil, model.ErrProcedureUnsupported
}

func (s *Store) RunProcedure(ctx context.Context, proc types.Procedure, args types.ProcedureArgs) (*types.ProcedureResult, error) {
	return nil, model.ErrProcedureUnsupported
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return model.ErrCanceled
	}
	stored := append([]byte(nil), value...)
	s.mu.Lock()
	s.data[key] = stored
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(key, stored)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	if _, ok := s.data[key]; !ok {
		s.mu.Unlock()
		return model.ErrNotFound
	}
	delete(s.data, key)
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(key, nil)
	}
	return nil
}

// OnChange registers fn to be called after every Put and Delete.
func (s *Store) OnChange(fn func(key string, value []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}
