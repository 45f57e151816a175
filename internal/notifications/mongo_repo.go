package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/library-backend/pkg/db/models"
)

type messageDocument struct {
	ID          string     `bson:"_id"`
	RecipientID string     `bson:"recipient_id"`
	SenderID    string     `bson:"sender_id"`
	Text        string     `bson:"text"`
	ReadAt      *time.Time `bson:"read_at"`
	CreatedAt   time.Time  `bson:"created_at"`
}

func (d messageDocument) toModel() (models.Message, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Message{}, err
	}
	recipient, err := uuid.Parse(d.RecipientID)
	if err != nil {
		return models.Message{}, err
	}
	sender, err := uuid.Parse(d.SenderID)
	if err != nil {
		return models.Message{}, err
	}
	return models.Message{
		ID:          id,
		RecipientID: recipient,
		SenderID:    sender,
		Text:        d.Text,
		ReadAt:      d.ReadAt,
		CreatedAt:   d.CreatedAt,
	}, nil
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns a notifications repository backed by a collection.
func NewMongoRepository(coll *mongo.Collection) Repository {
	return &mongoRepository{coll: coll}
}

func (r *mongoRepository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	doc := messageDocument{
		ID:          message.ID.String(),
		RecipientID: message.RecipientID.String(),
		SenderID:    message.SenderID.String(),
		Text:        message.Text,
		ReadAt:      message.ReadAt,
		CreatedAt:   message.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return message, nil
}

func (r *mongoRepository) ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a.String(), "recipient_id": b.String()},
		bson.M{"sender_id": b.String(), "recipient_id": a.String()},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoRepository) ListInbox(ctx context.Context, params InboxQuery) ([]models.Message, error) {
	filter := bson.M{"recipient_id": params.RecipientID.String()}
	if params.UnreadOnly {
		filter["read_at"] = nil
	}
	if params.Cursor != nil {
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": params.Cursor.CreatedAt}},
			bson.M{"created_at": params.Cursor.CreatedAt, "_id": bson.M{"$lt": params.Cursor.ID.String()}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(params.Limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoRepository) MarkRead(ctx context.Context, recipientID, messageID uuid.UUID, now time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID.String(), "recipient_id": recipientID.String(), "read_at": nil},
		bson.M{"$set": bson.M{"read_at": now}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": messageID.String(), "recipient_id": recipientID.String()})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *mongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Message, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		msg, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}
