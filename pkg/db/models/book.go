package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/library-backend/pkg/enums"
)

// Book is a catalog entry. Copies counts units currently on the shelf.
type Book struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Title       string             `gorm:"type:text;not null"`
	Author      string             `gorm:"type:text;not null"`
	Category    enums.BookCategory `gorm:"type:text;not null;index"`
	Copies      int                `gorm:"not null"`
	Available   bool               `gorm:"not null"`
	Description string             `gorm:"type:text;not null;default:''"`
	StackNumber string             `gorm:"column:stack_number;type:text;not null;default:''"`
	ShelfNumber string             `gorm:"column:shelf_number;type:text;not null;default:''"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// SyncAvailability recomputes Available from Copies.
func (b *Book) SyncAvailability() {
	b.Available = b.Copies > 0
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Book) BeforeSave(tx *gorm.DB) error {
	b.SyncAvailability()
	return nil
}
