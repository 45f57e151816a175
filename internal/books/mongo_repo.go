package books

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
	"github.com/angelmondragon/library-backend/pkg/enums"
	mongoclient "github.com/angelmondragon/library-backend/pkg/mongo"
)

type bookDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Author      string    `bson:"author"`
	Category    string    `bson:"category"`
	Copies      int       `bson:"copies"`
	Available   bool      `bson:"available"`
	Description string    `bson:"description"`
	StackNumber string    `bson:"stack_number"`
	ShelfNumber string    `bson:"shelf_number"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func documentFromModel(b *models.Book) bookDocument {
	return bookDocument{
		ID:          b.ID.String(),
		Title:       b.Title,
		Author:      b.Author,
		Category:    string(b.Category),
		Copies:      b.Copies,
		Available:   b.Available,
		Description: b.Description,
		StackNumber: b.StackNumber,
		ShelfNumber: b.ShelfNumber,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func (d bookDocument) toModel() (models.Book, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Book{}, err
	}
	return models.Book{
		ID:          id,
		Title:       d.Title,
		Author:      d.Author,
		Category:    enums.BookCategory(d.Category),
		Copies:      d.Copies,
		Available:   d.Available,
		Description: d.Description,
		StackNumber: d.StackNumber,
		ShelfNumber: d.ShelfNumber,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

// MongoRepository is the document-store Repository. Copy mutations use
// FindOneAndUpdate with an aggregation pipeline so available is derived from
// the new copies value inside the same write.
type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll, now: func() time.Time { return time.Now().UTC() }}
}

func (r *MongoRepository) Create(ctx context.Context, book *models.Book) (*models.Book, error) {
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	now := r.now()
	book.CreatedAt, book.UpdatedAt = now, now
	book.SyncAvailability()

	if _, err := r.coll.InsertOne(ctx, documentFromModel(book)); err != nil {
		return nil, mongoclient.Translate(err)
	}
	return book, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var doc bookDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongoclient.Translate(err)
	}
	book, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *MongoRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": keys}}, options.Find())
}

func (r *MongoRepository) List(ctx context.Context, filter Filter) ([]models.Book, error) {
	query := bson.M{}
	if filter.Category != nil {
		query["category"] = string(*filter.Category)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return r.find(ctx, query, opts)
}

func (r *MongoRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.Book, error) {
	cols := patch.columns()
	if len(cols) == 0 {
		return r.FindByID(ctx, id)
	}
	cols["updated_at"] = r.now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return r.findOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M(cols)}, opts)
}

func (r *MongoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ReserveCopy(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"copies":     bson.M{"$subtract": bson.A{"$copies", 1}},
			"available":  bson.M{"$gt": bson.A{"$copies", 1}},
			"updated_at": r.now(),
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	book, err := r.findOneAndUpdate(ctx, bson.M{"_id": id.String(), "copies": bson.M{"$gt": 0}}, pipeline, opts)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNoCopiesAvailable
}

func (r *MongoRepository) ReleaseCopy(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	update := bson.M{
		"$inc": bson.M{"copies": 1},
		"$set": bson.M{"available": true, "updated_at": r.now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return r.findOneAndUpdate(ctx, bson.M{"_id": id.String()}, update, opts)
}

func (r *MongoRepository) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Category string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]CategoryCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategoryCount{Category: enums.BookCategory(row.Category), Count: row.Count})
	}
	return out, nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) findOneAndUpdate(ctx context.Context, filter, update any, opts *options.FindOneAndUpdateOptions) (*models.Book, error) {
	var doc bookDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, mongoclient.Translate(err)
	}
	book, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Book, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Book, 0, len(docs))
	for _, doc := range docs {
		book, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, book)
	}
	return out, nil
}

var _ Repository = (*MongoRepository)(nil)
