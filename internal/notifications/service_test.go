package notifications

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/db/dbtest"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
)

type fixture struct {
	users *users.GormRepository
	repo  Repository
	svc   Service
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	f := &fixture{
		users: users.NewRepository(conn),
		repo:  NewRepository(conn),
		now:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(f.repo, f.users, func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) identity(t *testing.T, username string, role enums.Role) access.Identity {
	t.Helper()
	user, err := f.users.Create(context.Background(), users.CreateUserDTO{Username: username, PasswordHash: "x", Role: role})
	require.NoError(t, err)
	return access.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestSendToAdminDeliversToFirstAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.identity(t, "admin", enums.RoleAdmin)
	student := f.identity(t, "student", enums.RoleStudent)

	res, err := f.svc.SendToAdmin(ctx, student, "  Is the library open on Sunday?  ")
	require.NoError(t, err)
	assert.Equal(t, "Message sent to admin", res.Message)
	assert.Equal(t, admin.UserID, res.Notification.RecipientID)
	assert.Equal(t, "Is the library open on Sunday?", res.Notification.Text)
	require.NotNil(t, res.Notification.Sender)
	assert.Equal(t, "student", res.Notification.Sender.Username)
	assert.False(t, res.Notification.Read)

	page, err := f.svc.Inbox(ctx, admin, InboxParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, res.Notification.ID, page.Items[0].ID)
	assert.Equal(t, enums.RoleStudent, page.Items[0].Sender.Role)
}

func TestSendToAdminWithoutAdmin(t *testing.T) {
	f := newFixture(t)
	student := f.identity(t, "student", enums.RoleStudent)

	_, err := f.svc.SendToAdmin(context.Background(), student, "hello")
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "No admin user found to receive message", pkgerrors.As(err).Message())
}

func TestSendValidatesTextAndRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.identity(t, "admin", enums.RoleAdmin)
	student := f.identity(t, "student", enums.RoleStudent)

	_, err := f.svc.SendToAdmin(ctx, student, "   ")
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, "Notification text is required", pkgerrors.As(err).Message())

	_, err = f.svc.SendToAdmin(ctx, student, strings.Repeat("a", MaxTextLength+1))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.SendToAdmin(ctx, student, strings.Repeat("é", MaxTextLength))
	require.NoError(t, err)

	_, err = f.svc.SendToAdmin(ctx, admin, "hi")
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.SendToUser(ctx, student, admin.UserID, "hi")
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.SendToUser(ctx, admin, uuid.New(), "hi")
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "Target user not found", pkgerrors.As(err).Message())
}

func TestConversationMergesBothDirections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.identity(t, "admin", enums.RoleAdmin)
	student := f.identity(t, "student", enums.RoleStudent)
	other := f.identity(t, "other", enums.RoleStudent)

	_, err := f.svc.SendToAdmin(ctx, student, "first")
	require.NoError(t, err)
	_, err = f.svc.SendToUser(ctx, admin, student.UserID, "second")
	require.NoError(t, err)
	_, err = f.svc.SendToAdmin(ctx, other, "unrelated")
	require.NoError(t, err)
	_, err = f.svc.SendToAdmin(ctx, student, "third")
	require.NoError(t, err)

	conv, err := f.svc.Conversation(ctx, student, "admin")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "first", conv.Messages[0].Text)
	assert.Equal(t, "second", conv.Messages[1].Text)
	assert.Equal(t, "admin", conv.Messages[1].Sender.Username)
	assert.Equal(t, "third", conv.Messages[2].Text)
	assert.Equal(t, student.UserID, conv.Participants.Me.ID)
	assert.Equal(t, admin.UserID, conv.Participants.Other.ID)

	fromAdmin, err := f.svc.Conversation(ctx, admin, student.UserID.String())
	require.NoError(t, err)
	assert.Len(t, fromAdmin.Messages, 3)
	assert.Equal(t, "student", fromAdmin.Participants.Other.Username)

	_, err = f.svc.Conversation(ctx, admin, uuid.NewString())
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "User(s) not found", pkgerrors.As(err).Message())

	_, err = f.svc.Conversation(ctx, admin, "not-a-uuid")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestConversationAdminAliasWithoutAdmin(t *testing.T) {
	f := newFixture(t)
	student := f.identity(t, "student", enums.RoleStudent)

	_, err := f.svc.Conversation(context.Background(), student, "admin")
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Equal(t, "No admin found", pkgerrors.As(err).Message())
}

func TestInboxPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.identity(t, "admin", enums.RoleAdmin)
	student := f.identity(t, "student", enums.RoleStudent)

	for _, text := range []string{"m1", "m2", "m3", "m4", "m5"} {
		_, err := f.svc.SendToAdmin(ctx, student, text)
		require.NoError(t, err)
	}

	first, err := f.svc.Inbox(ctx, admin, InboxParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "m5", first.Items[0].Text)
	assert.Equal(t, "m4", first.Items[1].Text)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.Inbox(ctx, admin, InboxParams{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, "m3", second.Items[0].Text)
	assert.Equal(t, "m2", second.Items[1].Text)

	last, err := f.svc.Inbox(ctx, admin, InboxParams{Limit: 2, Cursor: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "m1", last.Items[0].Text)
	assert.Empty(t, last.NextCursor)

	_, err = f.svc.Inbox(ctx, admin, InboxParams{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)

	empty, err := f.svc.Inbox(ctx, student, InboxParams{})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.identity(t, "admin", enums.RoleAdmin)
	student := f.identity(t, "student", enums.RoleStudent)

	res, err := f.svc.SendToAdmin(ctx, student, "please extend my loan")
	require.NoError(t, err)

	err = f.svc.MarkRead(ctx, student, res.Notification.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	require.NoError(t, f.svc.MarkRead(ctx, admin, res.Notification.ID))
	require.NoError(t, f.svc.MarkRead(ctx, admin, res.Notification.ID))

	unread, err := f.svc.Inbox(ctx, admin, InboxParams{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)

	all, err := f.svc.Inbox(ctx, admin, InboxParams{})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	assert.True(t, all.Items[0].Read)
	require.NotNil(t, all.Items[0].ReadAt)

	requireCode(t, f.svc.MarkRead(ctx, admin, uuid.New()), pkgerrors.CodeNotFound)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	requireCode(t, err, pkgerrors.CodeDependency)
}
