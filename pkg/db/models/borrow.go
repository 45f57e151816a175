package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/library-backend/pkg/enums"
)

// Borrow links a student to a book. A nil ReturnedAt marks the borrow active;
// the partial unique index keeps one active borrow per (student, book).
type Borrow struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	StudentID  uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_borrows_active_pair,where:returned_at IS NULL"`
	BookID     uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_borrows_active_pair,where:returned_at IS NULL"`
	BorrowedAt time.Time  `gorm:"column:borrowed_at;not null;index"`
	ReturnedAt *time.Time `gorm:"column:returned_at"`
	IsPending  bool       `gorm:"column:is_pending;not null"`
	DueDate    time.Time  `gorm:"column:due_date;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Borrow) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Active reports whether the borrow has not been approved-returned yet.
func (b Borrow) Active() bool {
	return b.ReturnedAt == nil
}

// Status derives the lifecycle state from ReturnedAt and IsPending.
func (b Borrow) Status() enums.BorrowStatus {
	switch {
	case b.ReturnedAt != nil:
		return enums.BorrowStatusReturned
	case b.IsPending:
		return enums.BorrowStatusPendingReturn
	default:
		return enums.BorrowStatusActive
	}
}

// Overdue reports whether an active borrow is past its due date at now.
func (b Borrow) Overdue(now time.Time) bool {
	return b.ReturnedAt == nil && now.After(b.DueDate)
}
