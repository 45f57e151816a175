package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/library-backend/internal/repo"
	"github.com/angelmondragon/library-backend/internal/seed"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"driver": cfg.DB.NormalizedDriver(),
	})

	store, err := repo.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap storage", err)
		os.Exit(1)
	}

	seeder, err := seed.New(seed.Params{
		Users:    store.Users,
		Books:    store.Books,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create seeder", err)
		_ = store.Close(ctx)
		os.Exit(1)
	}

	result, runErr := seeder.Run(ctx)
	if err := store.Close(ctx); err != nil {
		logg.Error(ctx, "error closing storage", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "seed incomplete: %v\n", runErr)
		os.Exit(1)
	}
	fmt.Printf("seed complete: %d users, %d books created\n", result.UsersCreated, result.BooksCreated)
}
