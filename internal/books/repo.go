package books

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/models"
)

// ErrNoCopiesAvailable is returned by ReserveCopy when the book exists but
// has no copy left to lend.
var ErrNoCopiesAvailable = errors.New("no copies available")

// Repository is the catalog store. ReserveCopy and ReleaseCopy are single
// conditional updates so concurrent callers can never drive copies below zero.
type Repository interface {
	Create(ctx context.Context, book *models.Book) (*models.Book, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Book, error)
	List(ctx context.Context, filter Filter) ([]models.Book, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ReserveCopy(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ReleaseCopy(ctx context.Context, id uuid.UUID) (*models.Book, error)
	CountByCategory(ctx context.Context) ([]CategoryCount, error)
	Count(ctx context.Context) (int64, error)
}

// GormRepository is the relational Repository.
type GormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository binds a books repository to the provided GORM DB.
func NewRepository(conn *gorm.DB) *GormRepository {
	return &GormRepository{db: conn, now: func() time.Time { return time.Now().UTC() }}
}

func (r *GormRepository) Create(ctx context.Context, book *models.Book) (*models.Book, error) {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, db.Normalize(err)
	}
	return book, nil
}

func (r *GormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, db.Normalize(err)
	}
	return &book, nil
}

func (r *GormRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}
	var out []models.Book
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the catalog newest first, optionally narrowed to a category.
func (r *GormRepository) List(ctx context.Context, filter Filter) ([]models.Book, error) {
	q := r.db.WithContext(ctx).Model(&models.Book{})
	if filter.Category != nil {
		q = q.Where("category = ?", string(*filter.Category))
	}
	var out []models.Book
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies the non-nil patch fields. Setting copies rewrites available
// in the same statement.
func (r *GormRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.Book, error) {
	cols := patch.columns()
	if len(cols) == 0 {
		return r.FindByID(ctx, id)
	}
	cols["updated_at"] = r.now()

	res := r.db.WithContext(ctx).Model(&models.Book{}).Where("id = ?", id).UpdateColumns(cols)
	if res.Error != nil {
		return nil, db.Normalize(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, db.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *GormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// ReserveCopy takes one copy off the shelf. The SET expressions read the
// pre-update row, so available becomes false exactly when the last copy goes.
func (r *GormRepository) ReserveCopy(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND copies > 0", id).
		UpdateColumns(map[string]any{
			"copies":     gorm.Expr("copies - 1"),
			"available":  gorm.Expr("copies > 1"),
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNoCopiesAvailable
	}
	return r.FindByID(ctx, id)
}

// ReleaseCopy puts one copy back on the shelf.
func (r *GormRepository) ReleaseCopy(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"copies":     gorm.Expr("copies + 1"),
			"available":  true,
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, db.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// CountByCategory groups the catalog by category, sorted by category name.
func (r *GormRepository) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	var out []CategoryCount
	err := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("category ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Book{}).Count(&count).Error
	return count, err
}

var _ Repository = (*GormRepository)(nil)
