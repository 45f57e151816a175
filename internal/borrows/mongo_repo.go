package borrows

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	mongoclient "github.com/angelmondragon/library-backend/pkg/mongo"
)

// borrowDocument mirrors models.Borrow. Active duplicates returned_at == nil
// so the borrows_active_pair partial index can enforce one open borrow per pair.
type borrowDocument struct {
	ID         string     `bson:"_id"`
	StudentID  string     `bson:"student_id"`
	BookID     string     `bson:"book_id"`
	BorrowedAt time.Time  `bson:"borrowed_at"`
	ReturnedAt *time.Time `bson:"returned_at"`
	IsPending  bool       `bson:"is_pending"`
	DueDate    time.Time  `bson:"due_date"`
	Active     bool       `bson:"active"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

func (d borrowDocument) toModel() (models.Borrow, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Borrow{}, err
	}
	studentID, err := uuid.Parse(d.StudentID)
	if err != nil {
		return models.Borrow{}, err
	}
	bookID, err := uuid.Parse(d.BookID)
	if err != nil {
		return models.Borrow{}, err
	}
	return models.Borrow{
		ID:         id,
		StudentID:  studentID,
		BookID:     bookID,
		BorrowedAt: d.BorrowedAt,
		ReturnedAt: d.ReturnedAt,
		IsPending:  d.IsPending,
		DueDate:    d.DueDate,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

// MongoRepository is the document-store Repository.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

func (r *MongoRepository) FindActive(ctx context.Context, studentID, bookID uuid.UUID) (*models.Borrow, error) {
	return r.findOne(ctx, bson.M{"student_id": studentID.String(), "book_id": bookID.String(), "active": true})
}

func (r *MongoRepository) CountActive(ctx context.Context, studentID uuid.UUID) (int64, error) {
	return r.Count(ctx, Filter{StudentID: &studentID, Unreturned: true})
}

func (r *MongoRepository) Create(ctx context.Context, studentID, bookID uuid.UUID, now time.Time, loanPeriod time.Duration) (*models.Borrow, error) {
	doc := borrowDocument{
		ID:         uuid.NewString(),
		StudentID:  studentID.String(),
		BookID:     bookID.String(),
		BorrowedAt: now,
		DueDate:    now.Add(loanPeriod),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		err = mongoclient.Translate(err)
		if errors.Is(err, db.ErrDuplicateKey) {
			return nil, ErrDuplicateActive
		}
		return nil, err
	}
	borrow, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Borrow, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *MongoRepository) List(ctx context.Context, filter Filter) ([]models.Borrow, error) {
	opts := options.Find().SetSort(bson.D{{Key: "borrowed_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, filter.document(), opts)
	if err != nil {
		return nil, err
	}
	var docs []borrowDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Borrow, 0, len(docs))
	for _, doc := range docs {
		borrow, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, borrow)
	}
	return out, nil
}

func (r *MongoRepository) TogglePending(ctx context.Context, id uuid.UUID, now time.Time) (*models.Borrow, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"is_pending": bson.M{"$not": bson.A{"$is_pending"}},
			"updated_at": now,
		}}},
	}
	return r.transition(ctx, id, pipeline)
}

func (r *MongoRepository) MarkReturned(ctx context.Context, id uuid.UUID, now time.Time) (*models.Borrow, error) {
	update := bson.M{"$set": bson.M{
		"returned_at": now,
		"is_pending":  false,
		"active":      false,
		"updated_at":  now,
	}}
	return r.transition(ctx, id, update)
}

func (r *MongoRepository) transition(ctx context.Context, id uuid.UUID, update any) (*models.Borrow, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc borrowDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id.String(), "active": true}, update, opts).Decode(&doc)
	if err != nil {
		err = mongoclient.Translate(err)
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotActive
	}
	borrow, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

func (r *MongoRepository) HasActiveForBook(ctx context.Context, bookID uuid.UUID) (bool, error) {
	err := r.coll.FindOne(ctx, bson.M{"book_id": bookID.String(), "active": true}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

func (r *MongoRepository) Count(ctx context.Context, filter Filter) (int64, error) {
	return r.coll.CountDocuments(ctx, filter.document())
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.Borrow, error) {
	var doc borrowDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mongoclient.Translate(err)
	}
	borrow, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

var _ Repository = (*MongoRepository)(nil)
