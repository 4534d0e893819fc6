package main

import (
	"context"
	"fmt"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/algorithms"
	"github.com/evident-labs/evidcore/internal/auditsink"
	"github.com/evident-labs/evidcore/internal/config"
	"github.com/evident-labs/evidcore/internal/evidence"
	"github.com/evident-labs/evidcore/internal/lock"
	"github.com/evident-labs/evidcore/internal/observability"
	"github.com/evident-labs/evidcore/internal/relational"
	"github.com/evident-labs/evidcore/internal/storage"
)

// system bundles the collaborators every subcommand needs, built from
// process environment via config.Load. It mirrors the capability set of
// algorithm.Context plus the registry and relational service that sit above
// it.
type system struct {
	cfg        *config.Config
	obs        *observability.Provider
	store      *evidence.Store
	relational relational.Service
	registry   *algorithm.Registry
	audit      auditsink.Sink
}

func newSystem(ctx context.Context) (*system, error) {
	cfg := config.Load()
	obs := observability.New("evidctl", cfg.LogLevel)

	var backend storage.Backend
	var err error
	switch cfg.StorageBackend {
	case "s3":
		backend, err = storage.NewS3(ctx, storage.S3Config{Bucket: cfg.S3Bucket, Region: cfg.S3Region, Endpoint: cfg.S3Endpoint})
	default:
		backend, err = storage.NewLocalFS(cfg.StorageRoot)
	}
	if err != nil {
		return nil, fmt.Errorf("init storage backend: %w", err)
	}

	var locks lock.Manager
	if cfg.RedisAddr != "" {
		locks = lock.NewRedis(cfg.RedisAddr)
	} else {
		locks = lock.NewInMemory()
	}

	store := evidence.New(backend, locks)

	rel, err := relational.NewPostgres(cfg.RelationalDSN)
	if err != nil {
		return nil, fmt.Errorf("init relational service: %w", err)
	}
	if err := rel.Init(ctx); err != nil {
		return nil, fmt.Errorf("init relational schema: %w", err)
	}

	registry := algorithms.NewRegistry(func(msg string) { obs.Log().Warn(msg) })
	audit := auditsink.New(store, obs)

	return &system{cfg: cfg, obs: obs, store: store, relational: rel, registry: registry, audit: audit}, nil
}

// algorithmContext builds the algorithm.Context an algorithm or higher-level
// builder (replay, export) needs, scoped to this process's collaborators.
func (s *system) algorithmContext(ctx context.Context) algorithm.Context {
	return algorithm.Context{
		Ctx: ctx, Store: s.store, Derivatives: s.store, Relational: s.relational, Audit: s.audit,
	}
}
