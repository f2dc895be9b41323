// Package storage opens the configured DocumentStore backend.
package storage

import (
	"context"
	"fmt"

	"github.com/syntrixbase/pager/internal/storage/config"
	"github.com/syntrixbase/pager/internal/storage/memory"
	"github.com/syntrixbase/pager/internal/storage/mongo"
	"github.com/syntrixbase/pager/internal/storage/redis"
	"github.com/syntrixbase/pager/internal/storage/types"
)

type (
	DocumentStore   = types.DocumentStore
	Store           = types.Store
	Writer          = types.Writer
	Procedure       = types.Procedure
	ProcedureSpec   = types.ProcedureSpec
	ProcedureArgs   = types.ProcedureArgs
	ProcedureResult = types.ProcedureResult
	Entry           = types.Entry
)

// Dependency injection for testing
var (
	connectRedis = func(ctx context.Context, cfg config.Config) (Store, error) {
		return redis.Connect(ctx, cfg.Redis, cfg.Timeout)
	}
	connectMongo = func(ctx context.Context, cfg config.Config) (Store, error) {
		return mongo.Connect(ctx, cfg.Mongo, cfg.Timeout)
	}
)

// Open connects to the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendRedis:
		s, err := connectRedis(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis backend: %w", err)
		}
		return s, nil
	case config.BackendMongo:
		s, err := connectMongo(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo backend: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported backend type: %s", cfg.Backend)
}
