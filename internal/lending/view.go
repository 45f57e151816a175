package lending

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
)

// BorrowView is a borrow populated with its book and student. Book is nil
// when the book was deleted after the borrow closed.
type BorrowView struct {
	ID         uuid.UUID          `json:"id"`
	Book       *books.Summary     `json:"book"`
	Student    *users.Summary     `json:"student"`
	BorrowedAt time.Time          `json:"borrowedAt"`
	ReturnedAt *time.Time         `json:"returnedAt"`
	IsPending  bool               `json:"isPending"`
	DueDate    time.Time          `json:"dueDate"`
	Status     enums.BorrowStatus `json:"status"`
	Overdue    bool               `json:"overdue"`
}

func newView(b models.Borrow, book *books.Summary, student *users.Summary, now time.Time) BorrowView {
	return BorrowView{
		ID:         b.ID,
		Book:       book,
		Student:    student,
		BorrowedAt: b.BorrowedAt,
		ReturnedAt: b.ReturnedAt,
		IsPending:  b.IsPending,
		DueDate:    b.DueDate,
		Status:     b.Status(),
		Overdue:    b.Overdue(now),
	}
}
