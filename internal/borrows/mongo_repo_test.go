package borrows

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/enums"
)

func borrowDoc(id, student, book uuid.UUID, active, pending bool) bson.D {
	doc := bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "student_id", Value: student.String()},
		{Key: "book_id", Value: book.String()},
		{Key: "borrowed_at", Value: t0},
		{Key: "is_pending", Value: pending},
		{Key: "due_date", Value: t0.Add(loanPeriod)},
		{Key: "active", Value: active},
		{Key: "created_at", Value: t0},
		{Key: "updated_at", Value: t0},
	}
	if active {
		doc = append(doc, bson.E{Key: "returned_at", Value: nil})
	} else {
		doc = append(doc, bson.E{Key: "returned_at", Value: t0.Add(loanPeriod)})
	}
	return doc
}

func TestMongoCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("opens active borrow", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		borrow, err := repo.Create(context.Background(), uuid.New(), uuid.New(), t0, loanPeriod)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if borrow.Status() != enums.BorrowStatusActive || !borrow.DueDate.Equal(t0.Add(loanPeriod)) {
			t.Fatalf("unexpected borrow %+v", borrow)
		}
	})

	mt.Run("duplicate active pair", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 borrows_active_pair"}))

		_, err := repo.Create(context.Background(), uuid.New(), uuid.New(), t0, loanPeriod)
		if !errors.Is(err, ErrDuplicateActive) {
			t.Fatalf("expected ErrDuplicateActive, got %v", err)
		}
	})
}

func TestMongoMarkReturned(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("closes active borrow", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		id := uuid.New()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: borrowDoc(id, uuid.New(), uuid.New(), false, false)},
		})

		borrow, err := repo.MarkReturned(context.Background(), id, t0)
		if err != nil {
			t.Fatalf("mark returned: %v", err)
		}
		if borrow.Status() != enums.BorrowStatusReturned {
			t.Fatalf("expected returned, got %s", borrow.Status())
		}
	})

	mt.Run("already returned", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		id := uuid.New()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}},
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, borrowDoc(id, uuid.New(), uuid.New(), false, false)),
		)

		if _, err := repo.MarkReturned(context.Background(), id, t0); !errors.Is(err, ErrNotActive) {
			t.Fatalf("expected ErrNotActive, got %v", err)
		}
	})

	mt.Run("missing borrow", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}},
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		if _, err := repo.MarkReturned(context.Background(), uuid.New(), t0); !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestFilterDocument(t *testing.T) {
	student := uuid.New()
	pending := enums.BorrowStatusPendingReturn
	doc := Filter{StudentID: &student, Status: &pending}.document()
	if doc["student_id"] != student.String() || doc["active"] != true || doc["is_pending"] != true {
		t.Fatalf("unexpected filter %v", doc)
	}
}
