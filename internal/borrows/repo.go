package borrows

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/models"
)

var (
	// ErrDuplicateActive is returned when the student already holds an
	// unreturned borrow of the same book.
	ErrDuplicateActive = errors.New("active borrow already exists for student and book")
	// ErrNotActive is returned when a transition targets a returned borrow.
	ErrNotActive = errors.New("borrow already returned")
)

// Repository is the borrow ledger. TogglePending and MarkReturned only touch
// unreturned rows, so a concurrent second approval affects nothing.
type Repository interface {
	FindActive(ctx context.Context, studentID, bookID uuid.UUID) (*models.Borrow, error)
	CountActive(ctx context.Context, studentID uuid.UUID) (int64, error)
	Create(ctx context.Context, studentID, bookID uuid.UUID, now time.Time, loanPeriod time.Duration) (*models.Borrow, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Borrow, error)
	List(ctx context.Context, filter Filter) ([]models.Borrow, error)
	TogglePending(ctx context.Context, id uuid.UUID, now time.Time) (*models.Borrow, error)
	MarkReturned(ctx context.Context, id uuid.UUID, now time.Time) (*models.Borrow, error)
	HasActiveForBook(ctx context.Context, bookID uuid.UUID) (bool, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// GormRepository is the relational Repository.
type GormRepository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *GormRepository {
	return &GormRepository{db: conn}
}

// FindActive returns the unreturned borrow for the pair, or db.ErrNotFound.
func (r *GormRepository) FindActive(ctx context.Context, studentID, bookID uuid.UUID) (*models.Borrow, error) {
	var borrow models.Borrow
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND book_id = ? AND returned_at IS NULL", studentID, bookID).
		First(&borrow).Error
	if err != nil {
		return nil, db.Normalize(err)
	}
	return &borrow, nil
}

func (r *GormRepository) CountActive(ctx context.Context, studentID uuid.UUID) (int64, error) {
	return r.Count(ctx, Filter{StudentID: &studentID, Unreturned: true})
}

// Create opens a new Active borrow due loanPeriod after now.
func (r *GormRepository) Create(ctx context.Context, studentID, bookID uuid.UUID, now time.Time, loanPeriod time.Duration) (*models.Borrow, error) {
	borrow := &models.Borrow{
		StudentID:  studentID,
		BookID:     bookID,
		BorrowedAt: now,
		DueDate:    now.Add(loanPeriod),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.db.WithContext(ctx).Create(borrow).Error; err != nil {
		err = db.Normalize(err)
		if errors.Is(err, db.ErrDuplicateKey) {
			return nil, ErrDuplicateActive
		}
		return nil, err
	}
	return borrow, nil
}

func (r *GormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Borrow, error) {
	var borrow models.Borrow
	if err := r.db.WithContext(ctx).First(&borrow, "id = ?", id).Error; err != nil {
		return nil, db.Normalize(err)
	}
	return &borrow, nil
}

// List returns matching borrows, most recently borrowed first.
func (r *GormRepository) List(ctx context.Context, filter Filter) ([]models.Borrow, error) {
	var out []models.Borrow
	err := filter.apply(r.db.WithContext(ctx).Model(&models.Borrow{})).
		Order("borrowed_at DESC").
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TogglePending flips is_pending on an unreturned borrow.
func (r *GormRepository) TogglePending(ctx context.Context, id uuid.UUID, now time.Time) (*models.Borrow, error) {
	return r.transition(ctx, id, map[string]any{
		"is_pending": gorm.Expr("NOT is_pending"),
		"updated_at": now,
	})
}

// MarkReturned closes an unreturned borrow.
func (r *GormRepository) MarkReturned(ctx context.Context, id uuid.UUID, now time.Time) (*models.Borrow, error) {
	return r.transition(ctx, id, map[string]any{
		"returned_at": now,
		"is_pending":  false,
		"updated_at":  now,
	})
}

func (r *GormRepository) transition(ctx context.Context, id uuid.UUID, cols map[string]any) (*models.Borrow, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Borrow{}).
		Where("id = ? AND returned_at IS NULL", id).
		UpdateColumns(cols)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotActive
	}
	return r.FindByID(ctx, id)
}

func (r *GormRepository) HasActiveForBook(ctx context.Context, bookID uuid.UUID) (bool, error) {
	count, err := r.Count(ctx, Filter{BookID: &bookID, Unreturned: true})
	return count > 0, err
}

func (r *GormRepository) Count(ctx context.Context, filter Filter) (int64, error) {
	var count int64
	err := filter.apply(r.db.WithContext(ctx).Model(&models.Borrow{})).Count(&count).Error
	return count, err
}

var _ Repository = (*GormRepository)(nil)
