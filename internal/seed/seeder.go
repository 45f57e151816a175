// Package seed bootstraps demo accounts and the starter catalog. Every step
// is idempotent so it can run on each boot.
package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/logger"
	"github.com/angelmondragon/library-backend/pkg/security"
)

type userStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

type catalogStore interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, book *models.Book) (*models.Book, error)
}

// Params configures a Seeder.
type Params struct {
	Users    userStore
	Books    catalogStore
	Password config.PasswordConfig
	Logger   *logger.Logger
}

// Result reports what a run created.
type Result struct {
	UsersCreated int
	BooksCreated int
}

type Seeder struct {
	users    userStore
	books    catalogStore
	password config.PasswordConfig
	logg     *logger.Logger
}

func New(params Params) (*Seeder, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("books repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Seeder{users: params.Users, books: params.Books, password: params.Password, logg: logg}, nil
}

// Run creates missing default accounts and fills an empty catalog. Failures
// on individual records are collected and returned together.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var res Result
	var errs error

	for _, account := range DefaultAccounts {
		created, err := s.ensureAccount(ctx, account)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("seed user %s: %w", account.Username, err))
			continue
		}
		if created {
			res.UsersCreated++
		}
	}

	books, err := s.ensureCatalog(ctx)
	res.BooksCreated = books
	errs = multierr.Append(errs, err)

	if errs != nil {
		s.logg.Error(ctx, "seed.failed", errs)
	}
	return res, errs
}

func (s *Seeder) ensureAccount(ctx context.Context, account DefaultAccount) (bool, error) {
	_, err := s.users.FindByUsername(ctx, account.Username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, err
	}

	hash, err := security.HashPassword(account.Password, s.password)
	if err != nil {
		return false, err
	}
	if _, err := s.users.Create(ctx, users.CreateUserDTO{
		Username:     account.Username,
		PasswordHash: hash,
		Role:         account.Role,
	}); err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			return false, nil
		}
		return false, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"username": account.Username, "role": string(account.Role)})
	s.logg.Info(logCtx, "seed.user.created")
	return true, nil
}

func (s *Seeder) ensureCatalog(ctx context.Context) (int, error) {
	count, err := s.books.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	var errs error
	created := 0
	for _, book := range SampleBooks() {
		book := book
		book.SyncAvailability()
		if _, err := s.books.Create(ctx, &book); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("seed book %q: %w", book.Title, err))
			continue
		}
		created++
	}
	if created > 0 {
		s.logg.Info(s.logg.WithField(ctx, "count", created), "seed.books.created")
	}
	return created, errs
}
