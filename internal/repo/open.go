package repo

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/logger"
	"github.com/angelmondragon/library-backend/pkg/migrate"
	mongoclient "github.com/angelmondragon/library-backend/pkg/mongo"
)

// Store is an opened backend: the repository set, its health checks and a
// closer for the underlying connections.
type Store struct {
	*Set
	Driver  string
	Pingers map[string]db.Pinger

	closers []func(context.Context) error
}

// Open connects to the configured driver and prepares its schema: goose or
// auto-migrations for relational stores, indexes for Mongo.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Store, error) {
	driver := cfg.DB.NormalizedDriver()
	if cfg.DB.UsesMongo() {
		client, err := mongoclient.New(ctx, cfg.Mongo, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap mongo: %w", err)
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return &Store{
			Set:     NewMongo(client),
			Driver:  driver,
			Pingers: map[string]db.Pinger{"mongo": client},
			closers: []func(context.Context) error{client.Close},
		}, nil
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}
	return &Store{
		Set:     NewGorm(client.DB()),
		Driver:  driver,
		Pingers: map[string]db.Pinger{"database": client},
		closers: []func(context.Context) error{func(context.Context) error { return client.Close() }},
	}, nil
}

// Close releases every connection, collecting all failures.
func (s *Store) Close(ctx context.Context) error {
	var errs error
	for _, closeFn := range s.closers {
		errs = multierr.Append(errs, closeFn(ctx))
	}
	return errs
}
