// Package redis implements the DocumentStore on Redis: SCAN for enumeration,
// chunked MGET for bulk reads and a Lua script for server-side paging.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/config"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

// Client is the subset of go-redis used by the store.
type Client interface {
	redis.Scripter
	Ping(ctx context.Context) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

type Store struct {
	client  Client
	cfg     config.RedisConfig
	timeout time.Duration
}

var _ types.Store = (*Store)(nil)

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, cfg config.RedisConfig, timeout time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := types.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg, timeout), nil
}

// New wraps an existing client.
func New(client Client, cfg config.RedisConfig, timeout time.Duration) *Store {
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = 1000
	}
	if cfg.MGetChunk <= 0 {
		cfg.MGetChunk = 500
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 1
	}
	return &Store{client: client, cfg: cfg, timeout: timeout}
}

func (s *Store) ScanKeys(ctx context.Context, pattern keyspace.Pattern, fn func(batch []string) error) error {
	glob := pattern.String()
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		opCtx, cancel := types.WithTimeout(ctx, s.timeout)
		keys, next, err := s.client.Scan(opCtx, cursor, glob, s.cfg.ScanCount).Result()
		cancel()
		if err != nil {
			return types.ClassifyError(ctx, fmt.Errorf("scan %q: %w", glob, err))
		}

		batch := make([]string, 0, len(keys))
		for _, k := range keys {
			if _, dup := seen[k]; dup || !pattern.Match(k) {
				continue
			}
			seen[k] = struct{}{}
			batch = append(batch, k)
		}
		if err := fn(batch); err != nil {
			return err
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// GetMany splits keys into MGET chunks and fetches them concurrently. Results
// keep the input order.
func (s *Store) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)
	for start := 0; start < len(keys); start += s.cfg.MGetChunk {
		end := start + s.cfg.MGetChunk
		if end > len(keys) {
			end = len(keys)
		}
		g.Go(func() error {
			return s.mget(gctx, keys[start:end], out[start:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, types.ClassifyError(ctx, err)
	}
	return out, nil
}

func (s *Store) mget(ctx context.Context, keys []string, dst [][]byte) error {
	opCtx, cancel := types.WithTimeout(ctx, s.timeout)
	defer cancel()

	vals, err := s.client.MGet(opCtx, keys...).Result()
	if err != nil {
		return fmt.Errorf("mget %d keys: %w", len(keys), err)
	}
	if len(vals) != len(keys) {
		return fmt.Errorf("mget returned %d values for %d keys", len(vals), len(keys))
	}
	for i, v := range vals {
		switch val := v.(type) {
		case string:
			dst[i] = []byte(val)
		case []byte:
			dst[i] = val
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	opCtx, cancel := types.WithTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(opCtx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, types.ClassifyError(ctx, err)
	}
	return val, nil
}

type procedure struct {
	spec   types.ProcedureSpec
	script *redis.Script
}

func (p *procedure) Spec() types.ProcedureSpec { return p.spec }

func (s *Store) CompileProcedure(spec types.ProcedureSpec) (types.Procedure, error) {
	if spec.Mode == "" {
		spec.Mode = model.ModeDecoded
	}
	if !spec.Mode.IsValid() {
		return nil, fmt.Errorf("%w: compare mode %q", model.ErrProcedureUnsupported, spec.Mode)
	}
	return &procedure{spec: spec, script: redis.NewScript(buildScript(spec))}, nil
}

func (s *Store) RunProcedure(ctx context.Context, proc types.Procedure, args types.ProcedureArgs) (*types.ProcedureResult, error) {
	p, ok := proc.(*procedure)
	if !ok {
		return nil, fmt.Errorf("%w: procedure was not compiled by the redis store", model.ErrProcedureUnsupported)
	}

	opCtx, cancel := types.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := p.script.Run(opCtx, s.client, nil, scriptArgs(args, s.cfg.ScanCount)...).Result()
	if err != nil {
		return nil, types.ProcedureFailure(ctx, p.spec, err)
	}
	res, err := parseReply(reply)
	if err != nil {
		return nil, &model.ProcedureError{Procedure: p.spec.Name(), Err: err}
	}
	return res, nil
}

func scriptArgs(args types.ProcedureArgs, scanCount int64) []interface{} {
	var filterField, filterOp, filterValue, sortField, sortDir string
	if args.Filter != nil {
		filterField, filterOp, filterValue = args.Filter.Field, string(args.Filter.Op), args.Filter.Value
	}
	if args.Order != nil {
		sortField, sortDir = args.Order.Field, string(model.Asc)
		if args.Order.Descending() {
			sortDir = string(model.Desc)
		}
	}
	return []interface{}{
		args.Pattern.String(),
		strconv.Itoa(args.Offset),
		strconv.Itoa(args.Size),
		filterField, filterOp, filterValue,
		sortField, sortDir,
		luaPattern(args.Pattern),
		strconv.FormatInt(scanCount, 10),
	}
}

func parseReply(reply interface{}) (*types.ProcedureResult, error) {
	items, ok := reply.([]interface{})
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("unexpected reply type %T", reply)
	}
	total, ok := items[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected total %T", items[0])
	}
	rest := items[1:]
	if len(rest)%2 != 0 {
		return nil, fmt.Errorf("odd number of key/value items: %d", len(rest))
	}

	res := &types.ProcedureResult{Total: int(total), Entries: make([]types.Entry, 0, len(rest)/2)}
	for i := 0; i < len(rest); i += 2 {
		key, ok := rest[i].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %T at %d", rest[i], i)
		}
		val, ok := rest[i+1].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected value %T for %s", rest[i+1], key)
		}
		res.Entries = append(res.Entries, types.Entry{Key: key, Value: []byte(val)})
	}
	return res, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := types.WithTimeout(ctx, s.timeout)
	defer cancel()
	return types.ClassifyError(ctx, s.client.Set(opCtx, key, value, 0).Err())
}

func (s *Store) Delete(ctx context.Context, key string) error {
	opCtx, cancel := types.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.client.Del(opCtx, key).Result()
	if err != nil {
		return types.ClassifyError(ctx, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}
