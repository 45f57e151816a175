// Package lending runs the borrow lifecycle: Active, then optionally
// PendingReturn, then Returned once an admin approves. Every transition pairs
// a ledger change with a conditional copy-count update on the catalog.
package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/borrows"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
	"github.com/angelmondragon/library-backend/pkg/logger"
	"github.com/angelmondragon/library-backend/pkg/metrics"
)

const (
	defaultMaxActive  = 5
	defaultLoanPeriod = 14 * 24 * time.Hour
)

type catalog interface {
	ReserveCopy(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ReleaseCopy(ctx context.Context, id uuid.UUID) (*models.Book, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Book, error)
}

type ledger interface {
	FindActive(ctx context.Context, studentID, bookID uuid.UUID) (*models.Borrow, error)
	CountActive(ctx context.Context, studentID uuid.UUID) (int64, error)
	Create(ctx context.Context, studentID, bookID uuid.UUID, now time.Time, loanPeriod time.Duration) (*models.Borrow, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Borrow, error)
	List(ctx context.Context, filter borrows.Filter) ([]models.Borrow, error)
	TogglePending(ctx context.Context, id uuid.UUID, now time.Time) (*models.Borrow, error)
	MarkReturned(ctx context.Context, id uuid.UUID, now time.Time) (*models.Borrow, error)
}

type userDirectory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Params bundles the coordinator dependencies.
type Params struct {
	Books   catalog
	Borrows ledger
	Users   userDirectory
	Config  config.LendingConfig
	Metrics *metrics.LendingMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// Coordinator owns every borrow state transition.
type Coordinator struct {
	books      catalog
	borrows    ledger
	users      userDirectory
	maxActive  int64
	loanPeriod time.Duration
	metrics    *metrics.LendingMetrics
	logg       *logger.Logger
	now        func() time.Time
	students   *keyedMutex
}

func NewCoordinator(p Params) (*Coordinator, error) {
	if p.Books == nil {
		return nil, fmt.Errorf("books repository required")
	}
	if p.Borrows == nil {
		return nil, fmt.Errorf("borrows repository required")
	}
	if p.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	maxActive := p.Config.MaxActiveBorrows
	if maxActive <= 0 {
		maxActive = defaultMaxActive
	}
	loanPeriod := p.Config.LoanPeriod
	if loanPeriod <= 0 {
		loanPeriod = defaultLoanPeriod
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{
		books:      p.Books,
		borrows:    p.Borrows,
		users:      p.Users,
		maxActive:  int64(maxActive),
		loanPeriod: loanPeriod,
		metrics:    p.Metrics,
		logg:       logg,
		now:        now,
		students:   newKeyedMutex(),
	}, nil
}

// Borrow lends one copy of bookID to the calling student. The duplicate and
// limit checks, the reservation and the ledger insert run under the student's
// lock; the unique active-pair index still rejects a duplicate from another node.
func (c *Coordinator) Borrow(ctx context.Context, caller access.Identity, bookID uuid.UUID) (view *BorrowView, err error) {
	defer c.observe("borrow", time.Now(), &err)

	if err := access.RequireRole(caller, enums.RoleStudent); err != nil {
		return nil, err
	}
	ctx = c.logg.WithUserID(ctx, caller.UserID.String())
	ctx = c.logg.WithBookID(ctx, bookID.String())

	unlock := c.students.Lock(caller.UserID)
	defer unlock()

	existing, err := c.borrows.FindActive(ctx, caller.UserID, bookID)
	switch {
	case err == nil && existing != nil:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "You have already borrowed this book")
	case err != nil && !errors.Is(err, db.ErrNotFound):
		return nil, pkgerrors.Storage(err, "check existing borrow")
	}

	active, err := c.borrows.CountActive(ctx, caller.UserID)
	if err != nil {
		return nil, pkgerrors.Storage(err, "count active borrows")
	}
	if active >= c.maxActive {
		return nil, pkgerrors.New(pkgerrors.CodeLimitExceeded,
			fmt.Sprintf("You have reached the maximum borrowing limit (%d books)", c.maxActive)).
			WithDetails(map[string]any{"limit": c.maxActive, "active": active})
	}

	book, err := c.books.ReserveCopy(ctx, bookID)
	if err != nil {
		switch {
		case errors.Is(err, books.ErrNoCopiesAvailable):
			return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "Book is not available for borrowing")
		case errors.Is(err, db.ErrNotFound):
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Book not found")
		default:
			return nil, pkgerrors.Storage(err, "reserve copy")
		}
	}

	borrow, err := c.borrows.Create(ctx, caller.UserID, bookID, c.now(), c.loanPeriod)
	if err != nil {
		c.compensate(ctx, bookID, err)
		if errors.Is(err, borrows.ErrDuplicateActive) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "You have already borrowed this book")
		}
		return nil, pkgerrors.Storage(err, "create borrow")
	}

	ctx = c.logg.WithBorrowID(ctx, borrow.ID.String())
	c.logg.Info(ctx, "lending.borrow.created")

	summary := books.SummaryOf(*book)
	student := users.Summary{ID: caller.UserID, Username: caller.Username}
	out := newView(*borrow, &summary, &student, c.now())
	return &out, nil
}

func (c *Coordinator) compensate(ctx context.Context, bookID uuid.UUID, cause error) {
	c.logg.Warn(c.logg.WithField(ctx, "cause", cause.Error()), "lending.borrow.compensating")
	if _, err := c.books.ReleaseCopy(ctx, bookID); err != nil {
		c.logg.Error(ctx, "lending.borrow.compensation_failed", err)
	}
}

// ToggleReturn flips the pending-return flag. Students may only toggle their
// own borrows; the toggle is reversible and never touches copies.
func (c *Coordinator) ToggleReturn(ctx context.Context, caller access.Identity, borrowID uuid.UUID) (view *BorrowView, err error) {
	defer c.observe("toggle_return", time.Now(), &err)

	if err := access.RequireRole(caller, enums.RoleAdmin, enums.RoleStudent); err != nil {
		return nil, err
	}
	ctx = c.logg.WithBorrowID(ctx, borrowID.String())

	borrow, err := c.loadBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if err := access.CanActOnBorrow(caller, borrow.StudentID); err != nil {
		return nil, err
	}
	if !borrow.Active() {
		return nil, alreadyReturned()
	}

	updated, err := c.borrows.TogglePending(ctx, borrowID, c.now())
	if err != nil {
		return nil, mapTransitionError(err, "toggle return")
	}
	c.logg.Info(c.logg.WithField(ctx, "is_pending", updated.IsPending), "lending.borrow.toggled")
	return c.populateOne(ctx, *updated)
}

// Approve closes a borrow and puts its copy back on the shelf. The ledger
// update only matches unreturned rows, so a concurrent second approval gets
// AlreadyReturned and never releases a second copy.
func (c *Coordinator) Approve(ctx context.Context, caller access.Identity, borrowID uuid.UUID) (view *BorrowView, err error) {
	defer c.observe("approve", time.Now(), &err)

	if err := access.RequireRole(caller, enums.RoleAdmin); err != nil {
		return nil, err
	}
	ctx = c.logg.WithBorrowID(ctx, borrowID.String())

	borrow, err := c.loadBorrow(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if !borrow.Active() {
		return nil, alreadyReturned()
	}

	returned, err := c.borrows.MarkReturned(ctx, borrowID, c.now())
	if err != nil {
		return nil, mapTransitionError(err, "approve return")
	}

	bookCtx := c.logg.WithBookID(ctx, returned.BookID.String())
	if _, err := c.books.ReleaseCopy(bookCtx, returned.BookID); err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			c.logg.Error(bookCtx, "lending.approve.release_failed", err)
			return nil, pkgerrors.Storage(err, "release copy")
		}
		c.logg.Warn(bookCtx, "lending.approve.book_missing")
	}
	c.logg.Info(bookCtx, "lending.borrow.approved")
	return c.populateOne(ctx, *returned)
}

// MyBorrows lists the calling student's borrows, newest first.
func (c *Coordinator) MyBorrows(ctx context.Context, caller access.Identity) (views []BorrowView, err error) {
	defer c.observe("my_borrows", time.Now(), &err)

	if err := access.RequireRole(caller, enums.RoleStudent); err != nil {
		return nil, err
	}
	rows, err := c.borrows.List(ctx, borrows.Filter{StudentID: &caller.UserID})
	if err != nil {
		return nil, pkgerrors.Storage(err, "list borrows")
	}
	return c.populate(ctx, rows)
}

// ListAll lists every borrow matching filter, newest first.
func (c *Coordinator) ListAll(ctx context.Context, caller access.Identity, filter borrows.Filter) (views []BorrowView, err error) {
	defer c.observe("list_all", time.Now(), &err)

	if err := access.RequireRole(caller, enums.RoleAdmin); err != nil {
		return nil, err
	}
	rows, err := c.borrows.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Storage(err, "list borrows")
	}
	return c.populate(ctx, rows)
}

func (c *Coordinator) loadBorrow(ctx context.Context, id uuid.UUID) (*models.Borrow, error) {
	borrow, err := c.borrows.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Borrow record not found")
		}
		return nil, pkgerrors.Storage(err, "load borrow")
	}
	return borrow, nil
}

func (c *Coordinator) populateOne(ctx context.Context, borrow models.Borrow) (*BorrowView, error) {
	views, err := c.populate(ctx, []models.Borrow{borrow})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// populate joins books and students onto rows with one lookup per collection.
func (c *Coordinator) populate(ctx context.Context, rows []models.Borrow) ([]BorrowView, error) {
	out := make([]BorrowView, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	bookIDs := make([]uuid.UUID, 0, len(rows))
	studentIDs := make([]uuid.UUID, 0, len(rows))
	seenBooks := map[uuid.UUID]struct{}{}
	seenStudents := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		if _, ok := seenBooks[row.BookID]; !ok {
			seenBooks[row.BookID] = struct{}{}
			bookIDs = append(bookIDs, row.BookID)
		}
		if _, ok := seenStudents[row.StudentID]; !ok {
			seenStudents[row.StudentID] = struct{}{}
			studentIDs = append(studentIDs, row.StudentID)
		}
	}

	bookRows, err := c.books.FindByIDs(ctx, bookIDs)
	if err != nil {
		return nil, pkgerrors.Storage(err, "load borrowed books")
	}
	userRows, err := c.users.FindByIDs(ctx, studentIDs)
	if err != nil {
		return nil, pkgerrors.Storage(err, "load borrowing students")
	}

	bookByID := make(map[uuid.UUID]books.Summary, len(bookRows))
	for _, b := range bookRows {
		bookByID[b.ID] = books.SummaryOf(b)
	}
	userByID := make(map[uuid.UUID]users.Summary, len(userRows))
	for _, u := range userRows {
		userByID[u.ID] = users.SummaryOf(u)
	}

	now := c.now()
	for _, row := range rows {
		var book *books.Summary
		if b, ok := bookByID[row.BookID]; ok {
			book = &b
		}
		var student *users.Summary
		if u, ok := userByID[row.StudentID]; ok {
			student = &u
		}
		out = append(out, newView(row, book, student, now))
	}
	return out, nil
}

func (c *Coordinator) observe(operation string, started time.Time, errp *error) {
	outcome := ""
	if errp != nil && *errp != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(*errp); typed != nil {
			outcome = string(typed.Code())
		}
	}
	c.metrics.Observe(operation, outcome, time.Since(started))
}

func alreadyReturned() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyReturned, "Book has already been returned")
}

func mapTransitionError(err error, op string) error {
	switch {
	case errors.Is(err, borrows.ErrNotActive):
		return alreadyReturned()
	case errors.Is(err, db.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "Borrow record not found")
	default:
		return pkgerrors.Storage(err, op)
	}
}
