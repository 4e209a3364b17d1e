package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*Conversation, int, error)
	// SetLastMessage refreshes the denormalized preview on the
	// conversation row.
	SetLastMessage(ctx context.Context, conversationID, text string, senderID uuid.UUID, at time.Time) error
	// IncrementUnread adds exactly one to participantID's counter.
	IncrementUnread(ctx context.Context, conversationID string, participantID uuid.UUID) error
	ResetUnread(ctx context.Context, conversationID string, participantID uuid.UUID) error

	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListMessages returns messages visible to viewerID, newest first,
	// skipping ones the viewer deleted for themselves.
	ListMessages(ctx context.Context, conversationID string, viewerID uuid.UUID, limit, offset int) ([]*Message, int, error)
	MarkMessagesRead(ctx context.Context, conversationID string, readerID uuid.UUID) error
	MarkDeletedFor(ctx context.Context, messageID uuid.UUID, participantID uuid.UUID) error
	// DeleteForEveryone blanks the text and flags the message deleted.
	DeleteForEveryone(ctx context.Context, messageID uuid.UUID) error
}
