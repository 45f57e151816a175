package lending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/borrows"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/db/dbtest"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
	"github.com/angelmondragon/library-backend/pkg/metrics"
)

type fixture struct {
	coord   *Coordinator
	books   *books.GormRepository
	borrows *borrows.GormRepository
	users   *users.GormRepository
	admin   access.Identity
	metrics *metrics.LendingMetrics
	reg     *prometheus.Registry
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	f := &fixture{
		books:   books.NewRepository(conn),
		borrows: borrows.NewRepository(conn),
		users:   users.NewRepository(conn),
		reg:     prometheus.NewRegistry(),
		clock:   &fakeClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)},
	}
	f.metrics = metrics.NewLendingMetrics(f.reg)
	f.coord = f.newCoordinator(t, f.borrows)
	f.admin = f.identity(t, "admin", enums.RoleAdmin)
	return f
}

func (f *fixture) newCoordinator(t *testing.T, ledger ledger) *Coordinator {
	t.Helper()
	coord, err := NewCoordinator(Params{
		Books:   f.books,
		Borrows: ledger,
		Users:   f.users,
		Config:  config.LendingConfig{MaxActiveBorrows: 5, LoanPeriod: 14 * 24 * time.Hour},
		Metrics: f.metrics,
		Now:     f.clock.Now,
	})
	require.NoError(t, err)
	return coord
}

func (f *fixture) identity(t *testing.T, username string, role enums.Role) access.Identity {
	t.Helper()
	user, err := f.users.Create(context.Background(), users.CreateUserDTO{Username: username, PasswordHash: "x", Role: role})
	require.NoError(t, err)
	return access.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
}

func (f *fixture) book(t *testing.T, title string, copies int) uuid.UUID {
	t.Helper()
	book, err := f.books.Create(context.Background(), &models.Book{
		Title: title, Author: "Author", Category: enums.BookCategoryScience, Copies: copies,
	})
	require.NoError(t, err)
	return book.ID
}

func (f *fixture) copies(t *testing.T, id uuid.UUID) (int, bool) {
	t.Helper()
	book, err := f.books.FindByID(context.Background(), id)
	require.NoError(t, err)
	return book.Copies, book.Available
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "error: %v", err)
}

func TestBorrowRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	bob := f.identity(t, "bob", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 1)

	view, err := f.coord.Borrow(ctx, alice, bookID)
	require.NoError(t, err)
	assert.Equal(t, enums.BorrowStatusActive, view.Status)
	require.NotNil(t, view.Book)
	assert.Equal(t, 0, view.Book.Copies)
	require.NotNil(t, view.Student)
	assert.Equal(t, "alice", view.Student.Username)
	assert.True(t, view.DueDate.Equal(view.BorrowedAt.Add(14*24*time.Hour)))

	copies, available := f.copies(t, bookID)
	assert.Equal(t, 0, copies)
	assert.False(t, available)

	_, err = f.coord.Borrow(ctx, bob, bookID)
	requireCode(t, err, pkgerrors.CodeUnavailable)
	copies, _ = f.copies(t, bookID)
	assert.Equal(t, 0, copies)

	approved, err := f.coord.Approve(ctx, f.admin, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BorrowStatusReturned, approved.Status)
	assert.NotNil(t, approved.ReturnedAt)
	assert.False(t, approved.IsPending)

	copies, available = f.copies(t, bookID)
	assert.Equal(t, 1, copies)
	assert.True(t, available)

	_, err = f.coord.Borrow(ctx, bob, bookID)
	require.NoError(t, err)
}

func TestBorrowDuplicateWhileActiveOrPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 3)

	view, err := f.coord.Borrow(ctx, alice, bookID)
	require.NoError(t, err)

	_, err = f.coord.Borrow(ctx, alice, bookID)
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = f.coord.ToggleReturn(ctx, alice, view.ID)
	require.NoError(t, err)
	_, err = f.coord.Borrow(ctx, alice, bookID)
	requireCode(t, err, pkgerrors.CodeConflict)

	copies, _ := f.copies(t, bookID)
	assert.Equal(t, 2, copies)
}

func TestBorrowLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)

	var first *BorrowView
	for i := 0; i < 5; i++ {
		view, err := f.coord.Borrow(ctx, alice, f.book(t, fmt.Sprintf("Book %d", i), 1))
		require.NoError(t, err)
		if first == nil {
			first = view
		}
	}

	sixth := f.book(t, "Book 6", 1)
	_, err := f.coord.Borrow(ctx, alice, sixth)
	requireCode(t, err, pkgerrors.CodeLimitExceeded)
	copies, _ := f.copies(t, sixth)
	assert.Equal(t, 1, copies)

	_, err = f.coord.Approve(ctx, f.admin, first.ID)
	require.NoError(t, err)

	_, err = f.coord.Borrow(ctx, alice, sixth)
	require.NoError(t, err)
}

func TestConcurrentBorrowsRespectLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)

	ids := make([]uuid.UUID, 8)
	for i := range ids {
		ids[i] = f.book(t, fmt.Sprintf("Parallel %d", i), 1)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = f.coord.Borrow(ctx, alice, id)
		}(id)
	}
	wg.Wait()

	active, err := f.borrows.CountActive(ctx, alice.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, active)

	total := 0
	for _, id := range ids {
		copies, _ := f.copies(t, id)
		total += copies
	}
	assert.Equal(t, 3, total)
	assert.Zero(t, f.coord.students.size())
}

func TestToggleReturnIsReversibleAndKeepsCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 2)

	view, err := f.coord.Borrow(ctx, alice, bookID)
	require.NoError(t, err)

	toggled, err := f.coord.ToggleReturn(ctx, alice, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BorrowStatusPendingReturn, toggled.Status)
	assert.True(t, toggled.IsPending)

	toggled, err = f.coord.ToggleReturn(ctx, f.admin, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BorrowStatusActive, toggled.Status)

	copies, _ := f.copies(t, bookID)
	assert.Equal(t, 1, copies)
}

func TestToggleReturnGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	mallory := f.identity(t, "mallory", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 1)

	view, err := f.coord.Borrow(ctx, alice, bookID)
	require.NoError(t, err)

	_, err = f.coord.ToggleReturn(ctx, mallory, view.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.coord.ToggleReturn(ctx, alice, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.coord.Approve(ctx, f.admin, view.ID)
	require.NoError(t, err)
	_, err = f.coord.ToggleReturn(ctx, alice, view.ID)
	requireCode(t, err, pkgerrors.CodeAlreadyReturned)
}

func TestApproveTwiceReleasesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 1)

	view, err := f.coord.Borrow(ctx, alice, bookID)
	require.NoError(t, err)
	_, err = f.coord.ToggleReturn(ctx, alice, view.ID)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		codes     []pkgerrors.Code
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.Approve(ctx, f.admin, view.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			codes = append(codes, pkgerrors.As(err).Code())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, code := range codes {
		assert.Equal(t, pkgerrors.CodeAlreadyReturned, code)
	}
	copies, available := f.copies(t, bookID)
	assert.Equal(t, 1, copies)
	assert.True(t, available)
}

func TestApproveRoleAndMissingBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 1)

	view, err := f.coord.Borrow(ctx, alice, bookID)
	require.NoError(t, err)

	_, err = f.coord.Approve(ctx, alice, view.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.coord.Approve(ctx, f.admin, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	require.NoError(t, f.books.Delete(ctx, bookID))
	approved, err := f.coord.Approve(ctx, f.admin, view.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BorrowStatusReturned, approved.Status)
	assert.Nil(t, approved.Book)
}

func TestBorrowRequiresStudentAndExistingBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)

	_, err := f.coord.Borrow(ctx, f.admin, f.book(t, "Cosmos", 1))
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.coord.Borrow(ctx, access.Identity{}, uuid.New())
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = f.coord.Borrow(ctx, alice, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

type failingCreateLedger struct {
	ledger
	err error
}

func (l failingCreateLedger) Create(context.Context, uuid.UUID, uuid.UUID, time.Time, time.Duration) (*models.Borrow, error) {
	return nil, l.err
}

func TestBorrowCompensatesFailedCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 1)

	coord := f.newCoordinator(t, failingCreateLedger{ledger: f.borrows, err: errors.New("disk full")})
	_, err := coord.Borrow(ctx, alice, bookID)
	requireCode(t, err, pkgerrors.CodeStorage)

	copies, available := f.copies(t, bookID)
	assert.Equal(t, 1, copies)
	assert.True(t, available)

	coord = f.newCoordinator(t, failingCreateLedger{ledger: f.borrows, err: borrows.ErrDuplicateActive})
	_, err = coord.Borrow(ctx, alice, bookID)
	requireCode(t, err, pkgerrors.CodeConflict)
	copies, _ = f.copies(t, bookID)
	assert.Equal(t, 1, copies)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	bob := f.identity(t, "bob", enums.RoleStudent)
	first := f.book(t, "First", 2)
	second := f.book(t, "Second", 2)

	_, err := f.coord.Borrow(ctx, alice, first)
	require.NoError(t, err)
	latest, err := f.coord.Borrow(ctx, alice, second)
	require.NoError(t, err)
	_, err = f.coord.Borrow(ctx, bob, first)
	require.NoError(t, err)

	mine, err := f.coord.MyBorrows(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, latest.ID, mine[0].ID)
	assert.Equal(t, "Second", mine[0].Book.Title)

	_, err = f.coord.MyBorrows(ctx, f.admin)
	requireCode(t, err, pkgerrors.CodeForbidden)

	all, err := f.coord.ListAll(ctx, f.admin, borrows.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bob", all[0].Student.Username)

	onlyFirst, err := f.coord.ListAll(ctx, f.admin, borrows.Filter{BookID: &first})
	require.NoError(t, err)
	assert.Len(t, onlyFirst, 2)

	_, err = f.coord.ListAll(ctx, alice, borrows.Filter{})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCoordinatorRecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.identity(t, "alice", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 0)

	_, err := f.coord.Borrow(ctx, alice, bookID)
	requireCode(t, err, pkgerrors.CodeUnavailable)

	families, err := f.reg.Gather()
	require.NoError(t, err)

	var outcomes []string
	for _, family := range families {
		if family.GetName() != "lending_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" {
					outcomes = append(outcomes, label.GetValue())
				}
			}
		}
	}
	assert.Equal(t, []string{string(pkgerrors.CodeUnavailable)}, outcomes)
}

func TestNewCoordinatorValidatesParams(t *testing.T) {
	_, err := NewCoordinator(Params{})
	assert.Error(t, err)
}

func TestDeleteBookBlockedUntilBorrowApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	catalog, err := books.NewService(f.books, f.borrows)
	require.NoError(t, err)

	alice := f.identity(t, "alice", enums.RoleStudent)
	bookID := f.book(t, "Cosmos", 1)

	view, err := f.coord.Borrow(ctx, alice, bookID)
	require.NoError(t, err)
	requireCode(t, catalog.Delete(ctx, f.admin, bookID), pkgerrors.CodeConflict)

	_, err = f.coord.ToggleReturn(ctx, alice, view.ID)
	require.NoError(t, err)
	requireCode(t, catalog.Delete(ctx, f.admin, bookID), pkgerrors.CodeConflict)

	_, err = f.coord.Approve(ctx, f.admin, view.ID)
	require.NoError(t, err)
	require.NoError(t, catalog.Delete(ctx, f.admin, bookID))

	_, err = catalog.Get(ctx, bookID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}
