package borrows

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"gorm.io/gorm"

	"github.com/angelmondragon/library-backend/pkg/enums"
)

// Filter narrows borrow listings and counts. Zero values match everything.
type Filter struct {
	StudentID  *uuid.UUID
	BookID     *uuid.UUID
	Status     *enums.BorrowStatus
	Unreturned bool
	DueBefore  *time.Time
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.StudentID != nil {
		q = q.Where("student_id = ?", *f.StudentID)
	}
	if f.BookID != nil {
		q = q.Where("book_id = ?", *f.BookID)
	}
	if f.Status != nil {
		switch *f.Status {
		case enums.BorrowStatusActive:
			q = q.Where("returned_at IS NULL AND is_pending = ?", false)
		case enums.BorrowStatusPendingReturn:
			q = q.Where("returned_at IS NULL AND is_pending = ?", true)
		case enums.BorrowStatusReturned:
			q = q.Where("returned_at IS NOT NULL")
		}
	}
	if f.Unreturned {
		q = q.Where("returned_at IS NULL")
	}
	if f.DueBefore != nil {
		q = q.Where("due_date < ?", *f.DueBefore)
	}
	return q
}

func (f Filter) document() bson.M {
	query := bson.M{}
	if f.StudentID != nil {
		query["student_id"] = f.StudentID.String()
	}
	if f.BookID != nil {
		query["book_id"] = f.BookID.String()
	}
	if f.Status != nil {
		switch *f.Status {
		case enums.BorrowStatusActive:
			query["active"] = true
			query["is_pending"] = false
		case enums.BorrowStatusPendingReturn:
			query["active"] = true
			query["is_pending"] = true
		case enums.BorrowStatusReturned:
			query["active"] = false
		}
	}
	if f.Unreturned {
		query["active"] = true
	}
	if f.DueBefore != nil {
		query["due_date"] = bson.M{"$lt": *f.DueBefore}
	}
	return query
}
