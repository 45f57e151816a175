package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexSpec groups the indexes owned by one collection.
type IndexSpec struct {
	Collection string
	Models     []mongo.IndexModel
}

// Indexes lists every index the repositories rely on.
func Indexes() []IndexSpec {
	return []IndexSpec{
		{
			Collection: CollectionUsers,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_username_unique")},
				{Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("users_role_created")},
			},
		},
		{
			Collection: CollectionBooks,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("books_category")},
				{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("books_created_at")},
			},
		},
		{
			Collection: CollectionBorrows,
			Models: []mongo.IndexModel{
				{
					Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "book_id", Value: 1}},
					Options: options.Index().
						SetUnique(true).
						SetName("borrows_active_pair").
						SetPartialFilterExpression(bson.M{"active": true}),
				},
				{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "borrowed_at", Value: -1}}, Options: options.Index().SetName("borrows_student_borrowed")},
				{Keys: bson.D{{Key: "book_id", Value: 1}, {Key: "active", Value: 1}}, Options: options.Index().SetName("borrows_book_active")},
			},
		},
		{
			Collection: CollectionMessages,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, Options: options.Index().SetName("messages_recipient_created")},
				{Keys: bson.D{{Key: "sender_id", Value: 1}}, Options: options.Index().SetName("messages_sender")},
			},
		},
	}
}

// EnsureIndexes creates every index in Indexes. CreateMany is a no-op for
// indexes that already exist with the same definition.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for _, spec := range Indexes() {
		if _, err := c.Collection(spec.Collection).Indexes().CreateMany(ctx, spec.Models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", spec.Collection, err)
		}
	}
	return nil
}
