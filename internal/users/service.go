package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
)

// Service serves user directory reads.
type Service struct {
	repo Repository
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &Service{repo: repo}, nil
}

// List returns every registered user without credentials, newest first.
func (s *Service) List(ctx context.Context) ([]UserDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Storage(err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Get loads a single user by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		return nil, pkgerrors.Storage(err, "load user")
	}
	return FromModel(user), nil
}

// Resolve turns a token subject into the identity attached to requests. A
// user deleted after the token was issued is rejected as unauthenticated.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (access.Identity, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return access.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid token")
		}
		return access.Identity{}, pkgerrors.Storage(err, "resolve identity")
	}
	return access.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}
