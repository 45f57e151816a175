package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/db/dbtest"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
	"github.com/angelmondragon/library-backend/pkg/security"
)

var testPasswords = config.PasswordConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestSeederIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	userRepo := users.NewRepository(conn)
	bookRepo := books.NewRepository(conn)

	seeder, err := New(Params{Users: userRepo, Books: bookRepo, Password: testPasswords})
	require.NoError(t, err)

	res, err := seeder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{UsersCreated: 2, BooksCreated: 15}, res)

	admin, err := userRepo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, admin.Role)
	ok, err := security.VerifyPassword("admin123", admin.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	student, err := userRepo.FindByUsername(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, enums.RoleStudent, student.Role)

	rows, err := bookRepo.List(ctx, books.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 15)
	for _, row := range rows {
		assert.True(t, row.Category.IsValid(), row.Title)
		assert.True(t, row.Available, row.Title)
	}

	again, err := seeder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, again)
	count, err := bookRepo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 15, count)
}

func TestSeederSkipsNonEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	bookRepo := books.NewRepository(conn)
	_, err := bookRepo.Create(ctx, &models.Book{Title: "Existing", Author: "a", Category: enums.BookCategoryArt, Copies: 1})
	require.NoError(t, err)

	seeder, err := New(Params{Users: users.NewRepository(conn), Books: bookRepo, Password: testPasswords})
	require.NoError(t, err)

	res, err := seeder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.BooksCreated)
}

type brokenCatalog struct{}

func (brokenCatalog) Count(context.Context) (int64, error) { return 0, errors.New("disk full") }
func (brokenCatalog) Create(context.Context, *models.Book) (*models.Book, error) {
	return nil, errors.New("disk full")
}

func TestSeederCollectsFailures(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	seeder, err := New(Params{Users: users.NewRepository(conn), Books: brokenCatalog{}, Password: testPasswords})
	require.NoError(t, err)

	res, err := seeder.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count books")
	assert.Equal(t, 2, res.UsersCreated)
}

func TestSampleBooksAreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, book := range SampleBooks() {
		assert.True(t, book.Category.IsValid(), book.Title)
		assert.Positive(t, book.Copies, book.Title)
		assert.False(t, seen[book.Title], "duplicate %s", book.Title)
		seen[book.Title] = true
	}
	assert.Len(t, seen, 15)
}
