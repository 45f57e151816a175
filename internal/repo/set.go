// Package repo selects the storage backend and hands out the repositories
// every service is built from.
package repo

import (
	"gorm.io/gorm"

	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/borrows"
	"github.com/angelmondragon/library-backend/internal/notifications"
	"github.com/angelmondragon/library-backend/internal/users"
	mongoclient "github.com/angelmondragon/library-backend/pkg/mongo"
)

// Set bundles one repository per aggregate, all bound to the same backend.
type Set struct {
	Users    users.Repository
	Books    books.Repository
	Borrows  borrows.Repository
	Messages notifications.Repository
}

// NewGorm builds the relational set used for postgres and sqlite.
func NewGorm(conn *gorm.DB) *Set {
	return &Set{
		Users:    users.NewRepository(conn),
		Books:    books.NewRepository(conn),
		Borrows:  borrows.NewRepository(conn),
		Messages: notifications.NewRepository(conn),
	}
}

// NewMongo builds the document set over the configured database.
func NewMongo(client *mongoclient.Client) *Set {
	return &Set{
		Users:    users.NewMongoRepository(client.Collection(mongoclient.CollectionUsers)),
		Books:    books.NewMongoRepository(client.Collection(mongoclient.CollectionBooks)),
		Borrows:  borrows.NewMongoRepository(client.Collection(mongoclient.CollectionBorrows)),
		Messages: notifications.NewMongoRepository(client.Collection(mongoclient.CollectionMessages)),
	}
}
