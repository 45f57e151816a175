package notifications

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/internal/access"
	"github.com/angelmondragon/library-backend/pkg/db"
	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
	"github.com/angelmondragon/library-backend/pkg/pagination"
)

// MaxTextLength bounds a message body, counted in characters.
const MaxTextLength = 4000

// AdminAlias resolves to the first registered admin in conversation lookups.
const AdminAlias = "admin"

// Service defines messaging between students and admins.
type Service interface {
	SendToAdmin(ctx context.Context, caller access.Identity, text string) (*SendResult, error)
	SendToUser(ctx context.Context, caller access.Identity, recipientID uuid.UUID, text string) (*SendResult, error)
	Conversation(ctx context.Context, caller access.Identity, other string) (*Conversation, error)
	Inbox(ctx context.Context, caller access.Identity, params InboxParams) (*pagination.Page[MessageDTO], error)
	MarkRead(ctx context.Context, caller access.Identity, messageID uuid.UUID) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	FirstByRole(ctx context.Context, role enums.Role) (*models.User, error)
}

type service struct {
	repo  Repository
	users userDirectory
	now   func() time.Time
}

// NewService wires notifications dependencies. now defaults to the UTC wall clock.
func NewService(repo Repository, users userDirectory, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: repo, users: users, now: now}, nil
}

func (s *service) SendToAdmin(ctx context.Context, caller access.Identity, text string) (*SendResult, error) {
	if err := access.RequireRole(caller, enums.RoleStudent); err != nil {
		return nil, err
	}
	body, err := normalizeText(text)
	if err != nil {
		return nil, err
	}

	admin, err := s.users.FirstByRole(ctx, enums.RoleAdmin)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No admin user found to receive message")
		}
		return nil, pkgerrors.Storage(err, "load admin")
	}

	msg, err := s.deliver(ctx, caller, admin.ID, body)
	if err != nil {
		return nil, err
	}
	return &SendResult{Message: "Message sent to admin", Notification: msg}, nil
}

func (s *service) SendToUser(ctx context.Context, caller access.Identity, recipientID uuid.UUID, text string) (*SendResult, error) {
	if err := access.RequireRole(caller, enums.RoleAdmin); err != nil {
		return nil, err
	}
	body, err := normalizeText(text)
	if err != nil {
		return nil, err
	}

	recipient, err := s.users.FindByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Target user not found")
		}
		return nil, pkgerrors.Storage(err, "load recipient")
	}

	msg, err := s.deliver(ctx, caller, recipient.ID, body)
	if err != nil {
		return nil, err
	}
	return &SendResult{Message: "Message sent to " + recipient.Username, Notification: msg}, nil
}

func (s *service) deliver(ctx context.Context, caller access.Identity, recipientID uuid.UUID, body string) (MessageDTO, error) {
	created, err := s.repo.Create(ctx, &models.Message{
		RecipientID: recipientID,
		SenderID:    caller.UserID,
		Text:        body,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return MessageDTO{}, pkgerrors.Storage(err, "store message")
	}
	sender := Participant{ID: caller.UserID, Username: caller.Username, Role: caller.Role}
	return messageOf(*created, &sender), nil
}

func (s *service) Conversation(ctx context.Context, caller access.Identity, other string) (*Conversation, error) {
	if err := access.RequireRole(caller, enums.RoleAdmin, enums.RoleStudent); err != nil {
		return nil, err
	}

	otherID, err := s.resolveOther(ctx, other)
	if err != nil {
		return nil, err
	}

	users, err := s.users.FindByIDs(ctx, []uuid.UUID{caller.UserID, otherID})
	if err != nil {
		return nil, pkgerrors.Storage(err, "load participants")
	}
	byID := make(map[uuid.UUID]Participant, len(users))
	for _, u := range users {
		byID[u.ID] = participantOf(u)
	}
	me, okMe := byID[caller.UserID]
	them, okThem := byID[otherID]
	if !okMe || !okThem {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User(s) not found")
	}

	rows, err := s.repo.ListConversation(ctx, caller.UserID, otherID)
	if err != nil {
		return nil, pkgerrors.Storage(err, "load conversation")
	}
	out := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		sender := byID[row.SenderID]
		out = append(out, messageOf(row, &sender))
	}
	return &Conversation{
		Messages:     out,
		Participants: Participants{Me: me, Other: them},
	}, nil
}

func (s *service) resolveOther(ctx context.Context, other string) (uuid.UUID, error) {
	other = strings.TrimSpace(other)
	if strings.EqualFold(other, AdminAlias) {
		admin, err := s.users.FirstByRole(ctx, enums.RoleAdmin)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "No admin found")
			}
			return uuid.Nil, pkgerrors.Storage(err, "load admin")
		}
		return admin.ID, nil
	}
	id, err := uuid.Parse(other)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id")
	}
	return id, nil
}

func (s *service) Inbox(ctx context.Context, caller access.Identity, params InboxParams) (*pagination.Page[MessageDTO], error) {
	if err := access.RequireRole(caller, enums.RoleAdmin, enums.RoleStudent); err != nil {
		return nil, err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListInbox(ctx, InboxQuery{
		RecipientID: caller.UserID,
		Limit:       pagination.LimitWithBuffer(params.Limit),
		Cursor:      cursor,
		UnreadOnly:  params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Storage(err, "list inbox")
	}

	page := pagination.Trim(rows, params.Limit, func(m models.Message) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})

	senders, err := s.senders(ctx, page.Items)
	if err != nil {
		return nil, err
	}
	items := make([]MessageDTO, 0, len(page.Items))
	for _, row := range page.Items {
		var sender *Participant
		if p, ok := senders[row.SenderID]; ok {
			sender = &p
		}
		items = append(items, messageOf(row, sender))
	}
	return &pagination.Page[MessageDTO]{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) senders(ctx context.Context, rows []models.Message) (map[uuid.UUID]Participant, error) {
	if len(rows) == 0 {
		return map[uuid.UUID]Participant{}, nil
	}
	seen := make(map[uuid.UUID]struct{}, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.SenderID]; ok {
			continue
		}
		seen[row.SenderID] = struct{}{}
		ids = append(ids, row.SenderID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Storage(err, "load senders")
	}
	out := make(map[uuid.UUID]Participant, len(users))
	for _, u := range users {
		out[u.ID] = participantOf(u)
	}
	return out, nil
}

func (s *service) MarkRead(ctx context.Context, caller access.Identity, messageID uuid.UUID) error {
	if err := access.RequireRole(caller, enums.RoleAdmin, enums.RoleStudent); err != nil {
		return err
	}
	found, err := s.repo.MarkRead(ctx, caller.UserID, messageID, s.now())
	if err != nil {
		return pkgerrors.Storage(err, "mark message read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Notification not found")
	}
	return nil
}

func normalizeText(text string) (string, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Notification text is required")
	}
	if utf8.RuneCountInString(body) > MaxTextLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Notification text must be 4000 characters or fewer")
	}
	return body, nil
}
