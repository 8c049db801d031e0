package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/savdobot/core/logger"
)

// Seeder loads reference data into a store of type S.
type Seeder[S any] interface {
	Seed(ctx context.Context, store S) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc[S any] func(ctx context.Context, store S) error

// Seed executes the underlying function.
func (f SeederFunc[S]) Seed(ctx context.Context, store S) error {
	return f(ctx, store)
}

// RunSeeders applies seeders in order and stops at the first failure.
func RunSeeders[S any](ctx context.Context, store S, seeders ...Seeder[S]) error {
	start := time.Now()
	for i, s := range seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, store); err != nil {
			logger.SEED.Error("seed failed",
				slog.String("event", "seed"),
				slog.Int("index", i),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("bootstrap: seeder %d: %w", i, err)
		}
	}
	logger.SEED.Info("seed summary",
		slog.String("event", "summary"),
		slog.Int("count", len(seeders)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
