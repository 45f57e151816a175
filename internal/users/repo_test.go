package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/dbtest"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
)

func TestGormRepositoryCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))

	created, err := repo.Create(ctx, CreateUserDTO{Username: "alice", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, enums.RoleStudent, created.Role)

	byName, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = repo.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestGormRepositoryRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))

	_, err := repo.Create(ctx, CreateUserDTO{Username: "alice", PasswordHash: "a"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, CreateUserDTO{Username: "alice", PasswordHash: "b"})
	assert.ErrorIs(t, err, db.ErrDuplicateKey)
}

func TestGormRepositoryRoleQueries(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	seed := []models.User{
		{ID: uuid.New(), Username: "second-admin", PasswordHash: "x", Role: enums.RoleAdmin, CreatedAt: base.Add(time.Hour)},
		{ID: uuid.New(), Username: "first-admin", PasswordHash: "x", Role: enums.RoleAdmin, CreatedAt: base},
		{ID: uuid.New(), Username: "student", PasswordHash: "x", Role: enums.RoleStudent, CreatedAt: base.Add(2 * time.Hour)},
	}
	require.NoError(t, conn.Create(&seed).Error)

	admin, err := repo.FirstByRole(ctx, enums.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "first-admin", admin.Username)

	students, err := repo.CountByRole(ctx, enums.RoleStudent)
	require.NoError(t, err)
	assert.EqualValues(t, 1, students)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "student", list[0].Username)
	assert.Equal(t, "first-admin", list[2].Username)

	found, err := repo.FindByIDs(ctx, []uuid.UUID{seed[0].ID, seed[2].ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormRepositoryFirstByRoleMissing(t *testing.T) {
	repo := NewRepository(dbtest.NewSQLite(t))
	_, err := repo.FirstByRole(context.Background(), enums.RoleAdmin)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestGormRepositoryUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))

	user, err := repo.Create(ctx, CreateUserDTO{Username: "bob", PasswordHash: "old", Role: enums.RoleAdmin})
	require.NoError(t, err)

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "new"))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	assert.True(t, reloaded.LastLoginAt.Equal(at))
	assert.Equal(t, "new", reloaded.PasswordHash)
}
