package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/enums"
)

// Participant is the public projection of a message author.
type Participant struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Role     enums.Role `json:"role"`
}

func participantOf(user models.User) Participant {
	return Participant{ID: user.ID, Username: user.Username, Role: user.Role}
}

// MessageDTO is a stored message as returned to clients.
type MessageDTO struct {
	ID          uuid.UUID    `json:"id"`
	RecipientID uuid.UUID    `json:"recipientId"`
	Sender      *Participant `json:"sender,omitempty"`
	Text        string       `json:"text"`
	Read        bool         `json:"read"`
	ReadAt      *time.Time   `json:"readAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

func messageOf(msg models.Message, sender *Participant) MessageDTO {
	return MessageDTO{
		ID:          msg.ID,
		RecipientID: msg.RecipientID,
		Sender:      sender,
		Text:        msg.Text,
		Read:        msg.Read(),
		ReadAt:      msg.ReadAt,
		CreatedAt:   msg.CreatedAt,
	}
}

// SendResult acknowledges a delivered message.
type SendResult struct {
	Message      string     `json:"message"`
	Notification MessageDTO `json:"notification"`
}

// Participants names both sides of a conversation.
type Participants struct {
	Me    Participant `json:"me"`
	Other Participant `json:"other"`
}

// Conversation is every message exchanged between two users, oldest first.
type Conversation struct {
	Messages     []MessageDTO `json:"conversation"`
	Participants Participants `json:"participants"`
}

// InboxParams configures a page of the caller's inbox.
type InboxParams struct {
	Limit      int
	Cursor     string
	UnreadOnly bool
}
