package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/borrows"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/db/dbtest"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
)

const loanPeriod = 14 * 24 * time.Hour

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func TestStatsProjections(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	bookRepo := books.NewRepository(conn)
	userRepo := users.NewRepository(conn)
	borrowRepo := borrows.NewRepository(conn)

	admin, err := userRepo.Create(ctx, users.CreateUserDTO{Username: "admin", PasswordHash: "x", Role: enums.RoleAdmin})
	require.NoError(t, err)
	alice, err := userRepo.Create(ctx, users.CreateUserDTO{Username: "alice", PasswordHash: "x"})
	require.NoError(t, err)
	bob, err := userRepo.Create(ctx, users.CreateUserDTO{Username: "bob", PasswordHash: "x"})
	require.NoError(t, err)

	var bookIDs []uuid.UUID
	for _, title := range []string{"Dune", "Emma", "Ulysses"} {
		book, err := bookRepo.Create(ctx, &models.Book{Title: title, Author: "a", Category: enums.BookCategoryNovel, Copies: 2})
		require.NoError(t, err)
		bookIDs = append(bookIDs, book.ID)
	}

	overdue, err := borrowRepo.Create(ctx, alice.ID, bookIDs[0], t0, loanPeriod)
	require.NoError(t, err)
	returned, err := borrowRepo.Create(ctx, alice.ID, bookIDs[1], t0, loanPeriod)
	require.NoError(t, err)
	_, err = borrowRepo.MarkReturned(ctx, returned.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = borrowRepo.Create(ctx, bob.ID, bookIDs[2], t0.Add(10*24*time.Hour), loanPeriod)
	require.NoError(t, err)

	svc, err := NewService(bookRepo, userRepo, borrowRepo, func() time.Time { return t0.Add(20 * 24 * time.Hour) })
	require.NoError(t, err)

	got, err := svc.For(ctx, access.Identity{UserID: admin.ID, Username: "admin", Role: enums.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, &AdminStats{
		TotalBooks:     3,
		TotalUsers:     2,
		TotalBorrows:   3,
		ActiveBorrows:  2,
		OverdueBorrows: 1,
	}, got)

	got, err = svc.For(ctx, access.Identity{UserID: alice.ID, Username: "alice", Role: enums.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, &StudentStats{MyBorrows: 2, MyActiveBorrows: 1, MyReturnedBooks: 1}, got)

	_, err = borrowRepo.MarkReturned(ctx, overdue.ID, t0.Add(2*time.Hour))
	require.NoError(t, err)
	adminStats, err := svc.Admin(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, adminStats.OverdueBorrows)
	assert.EqualValues(t, 1, adminStats.ActiveBorrows)
}

func TestStatsRequiresIdentity(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	svc, err := NewService(books.NewRepository(conn), users.NewRepository(conn), borrows.NewRepository(conn), nil)
	require.NoError(t, err)

	_, err = svc.For(context.Background(), access.Identity{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

type failingBorrowCounter struct{}

func (failingBorrowCounter) Count(context.Context, borrows.Filter) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestStatsStorageFailure(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	svc, err := NewService(books.NewRepository(conn), users.NewRepository(conn), failingBorrowCounter{}, nil)
	require.NoError(t, err)

	_, err = svc.Student(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorage))
}

func TestNewServiceRequiresRepositories(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
