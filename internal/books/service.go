package books

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
)

// ActiveBorrowChecker reports whether any unreturned borrow references a book.
type ActiveBorrowChecker interface {
	HasActiveForBook(ctx context.Context, bookID uuid.UUID) (bool, error)
}

// Service exposes catalog reads to any caller and mutations to admins.
type Service struct {
	repo    Repository
	borrows ActiveBorrowChecker
}

func NewService(repo Repository, borrows ActiveBorrowChecker) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("books repository required")
	}
	if borrows == nil {
		return nil, fmt.Errorf("active borrow checker required")
	}
	return &Service{repo: repo, borrows: borrows}, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]BookDTO, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Storage(err, "list books")
	}
	out := make([]BookDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Categories returns the number of titles per category.
func (s *Service) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, pkgerrors.Storage(err, "count books by category")
	}
	if rows == nil {
		rows = []CategoryCount{}
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*BookDTO, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "load book")
	}
	return FromModel(book), nil
}

func (s *Service) Create(ctx context.Context, caller access.Identity, input CreateBookInput) (*BookDTO, error) {
	if err := access.RequireRole(caller, enums.RoleAdmin); err != nil {
		return nil, err
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	if input.Title == "" || input.Author == "" || input.Category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Title, author, and category are required")
	}
	if !input.Category.IsValid() {
		return nil, invalidCategory(input.Category)
	}
	if input.Copies != nil && *input.Copies < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "copies must be zero or greater")
	}

	book, err := s.repo.Create(ctx, input.toModel())
	if err != nil {
		return nil, pkgerrors.Storage(err, "create book")
	}
	return FromModel(book), nil
}

// Update applies a partial change. A new copies value recomputes availability.
func (s *Service) Update(ctx context.Context, caller access.Identity, id uuid.UUID, patch Patch) (*BookDTO, error) {
	if err := access.RequireRole(caller, enums.RoleAdmin); err != nil {
		return nil, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
	}
	if patch.Author != nil && strings.TrimSpace(*patch.Author) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author cannot be empty")
	}
	if patch.Category != nil && !patch.Category.IsValid() {
		return nil, invalidCategory(*patch.Category)
	}
	if patch.Copies != nil && *patch.Copies < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "copies must be zero or greater")
	}

	book, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, mapRepoError(err, "update book")
	}
	return FromModel(book), nil
}

// Delete removes a book no active borrow references.
func (s *Service) Delete(ctx context.Context, caller access.Identity, id uuid.UUID) error {
	if err := access.RequireRole(caller, enums.RoleAdmin); err != nil {
		return err
	}
	active, err := s.borrows.HasActiveForBook(ctx, id)
	if err != nil {
		return pkgerrors.Storage(err, "check active borrows")
	}
	if active {
		return pkgerrors.New(pkgerrors.CodeConflict, "Cannot delete book that is currently borrowed")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, "delete book")
	}
	return nil
}

func invalidCategory(c enums.BookCategory) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid category").
		WithDetails(map[string]any{"category": string(c), "allowed": enums.BookCategories()})
}

func mapRepoError(err error, op string) error {
	if errors.Is(err, db.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Book not found")
	}
	return pkgerrors.Storage(err, op)
}
