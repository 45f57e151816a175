package books

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
)

// BookDTO is the catalog entry returned to clients.
type BookDTO struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Author      string             `json:"author"`
	Category    enums.BookCategory `json:"category"`
	Copies      int                `json:"copies"`
	Available   bool               `json:"available"`
	Description string             `json:"description"`
	StackNumber string             `json:"stackNumber"`
	ShelfNumber string             `json:"shelfNumber"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Summary is the book projection embedded in borrow views.
type Summary struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Author      string             `json:"author"`
	Category    enums.BookCategory `json:"category"`
	Copies      int                `json:"copies"`
	Description string             `json:"description"`
	StackNumber string             `json:"stackNumber"`
	ShelfNumber string             `json:"shelfNumber"`
}

// CategoryCount is one row of the category report.
type CategoryCount struct {
	Category enums.BookCategory `json:"category"`
	Count    int64              `json:"count"`
}

// CreateBookInput holds the validated payload to create a book. A nil Copies
// defaults to one.
type CreateBookInput struct {
	Title       string
	Author      string
	Category    enums.BookCategory
	Copies      *int
	Description string
	StackNumber string
	ShelfNumber string
}

// Patch holds optional mutation values for a book.
type Patch struct {
	Title       *string
	Author      *string
	Category    *enums.BookCategory
	Copies      *int
	Description *string
	StackNumber *string
	ShelfNumber *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Category == nil && p.Copies == nil &&
		p.Description == nil && p.StackNumber == nil && p.ShelfNumber == nil
}

func (p Patch) columns() map[string]any {
	cols := map[string]any{}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Author != nil {
		cols["author"] = *p.Author
	}
	if p.Category != nil {
		cols["category"] = string(*p.Category)
	}
	if p.Copies != nil {
		cols["copies"] = *p.Copies
		cols["available"] = *p.Copies > 0
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.StackNumber != nil {
		cols["stack_number"] = *p.StackNumber
	}
	if p.ShelfNumber != nil {
		cols["shelf_number"] = *p.ShelfNumber
	}
	return cols
}

// Filter narrows catalog listings.
type Filter struct {
	Category *enums.BookCategory
}

func FromModel(b *models.Book) *BookDTO {
	if b == nil {
		return nil
	}
	return &BookDTO{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Category:    b.Category,
		Copies:      b.Copies,
		Available:   b.Available,
		Description: b.Description,
		StackNumber: b.StackNumber,
		ShelfNumber: b.ShelfNumber,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// SummaryOf projects the fields shown alongside a borrow.
func SummaryOf(b models.Book) Summary {
	return Summary{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Category:    b.Category,
		Copies:      b.Copies,
		Description: b.Description,
		StackNumber: b.StackNumber,
		ShelfNumber: b.ShelfNumber,
	}
}

func (in CreateBookInput) toModel() *models.Book {
	copies := 1
	if in.Copies != nil {
		copies = *in.Copies
	}
	book := &models.Book{
		Title:       in.Title,
		Author:      in.Author,
		Category:    in.Category,
		Copies:      copies,
		Description: in.Description,
		StackNumber: in.StackNumber,
		ShelfNumber: in.ShelfNumber,
	}
	book.SyncAvailability()
	return book
}
