package main

import (
	"context"
	"fmt"

	"github.com/andresuchdata/tutorstore/internal/cache"
	"github.com/andresuchdata/tutorstore/internal/config"
	"github.com/andresuchdata/tutorstore/internal/repository"
	"github.com/andresuchdata/tutorstore/internal/repository/postgres"
)

// openRepository returns the namespace backend named by cfg.Namespace.Backend
// and a function that releases its connections.
func openRepository(ctx context.Context, cfg *config.Config) (repository.Repository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Namespace.Backend {
	case "", "file":
		return repository.NewFileRepository(cfg.Namespace.FilePath), noop, nil
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewNamespaceStore(client, cfg.Namespace.Name), client.Close, nil
	case "postgres":
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewNamespaceRepository(db, cfg.Namespace.Name)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown namespace backend %q", cfg.Namespace.Backend)
	}
}
