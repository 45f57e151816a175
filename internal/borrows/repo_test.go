package borrows

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/dbtest"
	"github.com/angelmondragon/library-backend/pkg/enums"
)

const loanPeriod = 14 * 24 * time.Hour

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func TestCreateOpensActiveBorrow(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))
	student, book := uuid.New(), uuid.New()

	borrow, err := repo.Create(ctx, student, book, t0, loanPeriod)
	require.NoError(t, err)
	assert.True(t, borrow.Active())
	assert.False(t, borrow.IsPending)
	assert.True(t, borrow.DueDate.Equal(t0.Add(loanPeriod)))
	assert.Equal(t, enums.BorrowStatusActive, borrow.Status())

	found, err := repo.FindActive(ctx, student, book)
	require.NoError(t, err)
	assert.Equal(t, borrow.ID, found.ID)

	_, err = repo.FindActive(ctx, student, uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreateRejectsSecondActiveBorrowOfPair(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))
	student, book := uuid.New(), uuid.New()

	first, err := repo.Create(ctx, student, book, t0, loanPeriod)
	require.NoError(t, err)

	_, err = repo.TogglePending(ctx, first.ID, t0)
	require.NoError(t, err)

	_, err = repo.Create(ctx, student, book, t0.Add(time.Minute), loanPeriod)
	assert.ErrorIs(t, err, ErrDuplicateActive)

	_, err = repo.MarkReturned(ctx, first.ID, t0.Add(time.Hour))
	require.NoError(t, err)

	_, err = repo.Create(ctx, student, book, t0.Add(2*time.Hour), loanPeriod)
	assert.NoError(t, err)
}

func TestTogglePendingIsReversible(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))
	borrow, err := repo.Create(ctx, uuid.New(), uuid.New(), t0, loanPeriod)
	require.NoError(t, err)

	toggled, err := repo.TogglePending(ctx, borrow.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, enums.BorrowStatusPendingReturn, toggled.Status())

	toggled, err = repo.TogglePending(ctx, borrow.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, enums.BorrowStatusActive, toggled.Status())
}

func TestMarkReturnedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))
	borrow, err := repo.Create(ctx, uuid.New(), uuid.New(), t0, loanPeriod)
	require.NoError(t, err)
	_, err = repo.TogglePending(ctx, borrow.ID, t0)
	require.NoError(t, err)

	returned, err := repo.MarkReturned(ctx, borrow.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)
	assert.False(t, returned.IsPending)
	assert.Equal(t, enums.BorrowStatusReturned, returned.Status())

	_, err = repo.MarkReturned(ctx, borrow.ID, t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrNotActive)
	_, err = repo.TogglePending(ctx, borrow.ID, t0)
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = repo.MarkReturned(ctx, uuid.New(), t0)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListAndCountFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))
	alice, bob := uuid.New(), uuid.New()
	bookA, bookB := uuid.New(), uuid.New()

	a1, err := repo.Create(ctx, alice, bookA, t0, loanPeriod)
	require.NoError(t, err)
	a2, err := repo.Create(ctx, alice, bookB, t0.Add(time.Hour), loanPeriod)
	require.NoError(t, err)
	b1, err := repo.Create(ctx, bob, bookA, t0.Add(2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = repo.TogglePending(ctx, a2.ID, t0)
	require.NoError(t, err)
	_, err = repo.MarkReturned(ctx, a1.ID, t0.Add(3*time.Hour))
	require.NoError(t, err)

	all, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, b1.ID, all[0].ID)
	assert.Equal(t, a1.ID, all[2].ID)

	mine, err := repo.List(ctx, Filter{StudentID: &alice})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending := enums.BorrowStatusPendingReturn
	pendingRows, err := repo.List(ctx, Filter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, pendingRows, 1)
	assert.Equal(t, a2.ID, pendingRows[0].ID)

	returned := enums.BorrowStatusReturned
	count, err := repo.Count(ctx, Filter{Status: &returned})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	active, err := repo.CountActive(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)

	cutoff := t0.Add(24 * time.Hour)
	overdue, err := repo.Count(ctx, Filter{Unreturned: true, DueBefore: &cutoff})
	require.NoError(t, err)
	assert.EqualValues(t, 1, overdue)

	held, err := repo.HasActiveForBook(ctx, bookA)
	require.NoError(t, err)
	assert.True(t, held)

	_, err = repo.MarkReturned(ctx, b1.ID, t0.Add(4*time.Hour))
	require.NoError(t, err)
	held, err = repo.HasActiveForBook(ctx, bookA)
	require.NoError(t, err)
	assert.False(t, held)
}
