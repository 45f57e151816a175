// Package stats computes the dashboard counters shown to admins and students.
package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/borrows"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
)

type bookCounter interface {
	Count(ctx context.Context) (int64, error)
}

type userCounter interface {
	CountByRole(ctx context.Context, role enums.Role) (int64, error)
}

type borrowCounter interface {
	Count(ctx context.Context, filter borrows.Filter) (int64, error)
}

// AdminStats summarises the whole library.
type AdminStats struct {
	TotalBooks     int64 `json:"totalBooks"`
	TotalUsers     int64 `json:"totalUsers"`
	TotalBorrows   int64 `json:"totalBorrows"`
	ActiveBorrows  int64 `json:"activeBorrows"`
	OverdueBorrows int64 `json:"overdueBorrows"`
}

// StudentStats summarises the caller's own borrowing history.
type StudentStats struct {
	MyBorrows       int64 `json:"myBorrows"`
	MyActiveBorrows int64 `json:"myActiveBorrows"`
	MyReturnedBooks int64 `json:"myReturnedBooks"`
}

type Service struct {
	books   bookCounter
	users   userCounter
	borrows borrowCounter
	now     func() time.Time
}

func NewService(books bookCounter, users userCounter, borrows borrowCounter, now func() time.Time) (*Service, error) {
	if books == nil || users == nil || borrows == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stats repositories required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{books: books, users: users, borrows: borrows, now: now}, nil
}

// For returns AdminStats for admins and StudentStats for students.
func (s *Service) For(ctx context.Context, caller access.Identity) (any, error) {
	if err := access.RequireRole(caller, enums.RoleAdmin, enums.RoleStudent); err != nil {
		return nil, err
	}
	if caller.IsAdmin() {
		return s.Admin(ctx)
	}
	return s.Student(ctx, caller.UserID)
}

func (s *Service) Admin(ctx context.Context) (*AdminStats, error) {
	var out AdminStats
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalBooks, err = s.books.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TotalUsers, err = s.users.CountByRole(gctx, enums.RoleStudent)
		return err
	})
	g.Go(func() (err error) {
		out.TotalBorrows, err = s.borrows.Count(gctx, borrows.Filter{})
		return err
	})
	g.Go(func() (err error) {
		out.ActiveBorrows, err = s.borrows.Count(gctx, borrows.Filter{Unreturned: true})
		return err
	})
	g.Go(func() (err error) {
		out.OverdueBorrows, err = s.borrows.Count(gctx, borrows.Filter{Unreturned: true, DueBefore: &now})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Storage(err, "compute admin stats")
	}
	return &out, nil
}

func (s *Service) Student(ctx context.Context, studentID uuid.UUID) (*StudentStats, error) {
	var out StudentStats
	returned := enums.BorrowStatusReturned

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.MyBorrows, err = s.borrows.Count(gctx, borrows.Filter{StudentID: &studentID})
		return err
	})
	g.Go(func() (err error) {
		out.MyActiveBorrows, err = s.borrows.Count(gctx, borrows.Filter{StudentID: &studentID, Unreturned: true})
		return err
	})
	g.Go(func() (err error) {
		out.MyReturnedBooks, err = s.borrows.Count(gctx, borrows.Filter{StudentID: &studentID, Status: &returned})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Storage(err, "compute student stats")
	}
	return &out, nil
}
