package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/api/internal/platform/db"
	"github.com/carelink/api/internal/platform/realtime"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotParticipant       = errors.New("account is not a participant of this conversation")
	ErrNotSender            = errors.New("only the sender can delete a message for everyone")
	ErrNotFamily            = errors.New("accounts are not family members")
	ErrEmptyMessage         = errors.New("message text is empty")
)

// Membership answers whether two accounts are linked in each other's
// family network. Satisfied by the family service.
type Membership interface {
	IsMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error)
}

// Notifier writes an in-app notification. Satisfied by the
// notification service.
type Notifier interface {
	Notify(ctx context.Context, recipientID, senderID uuid.UUID, kind, title, message string) error
}

type Service struct {
	repo       Repository
	membership Membership
	tx         db.TxRunner
	notifier   Notifier
	publisher  realtime.EventPublisher
}

func NewService(repo Repository, membership Membership, tx db.TxRunner, notifier Notifier, publisher realtime.EventPublisher) *Service {
	return &Service{
		repo:       repo,
		membership: membership,
		tx:         tx,
		notifier:   notifier,
		publisher:  publisher,
	}
}

// EnsureConversation returns the conversation between the caller and
// otherID, creating it when absent. Both accounts must be family
// members of each other.
func (s *Service) EnsureConversation(ctx context.Context, callerID, otherID uuid.UUID) (*Conversation, error) {
	if callerID == otherID {
		return nil, fmt.Errorf("cannot open a conversation with yourself")
	}
	linked, err := s.membership.IsMember(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, ErrNotFamily
	}

	id := ConversationIDFor(callerID, otherID)
	conv, err := s.repo.GetConversation(ctx, id)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, err
	}

	a, b := SortParticipants(callerID, otherID)
	conv = &Conversation{ID: id, ParticipantA: a, ParticipantB: b}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	// Re-read so a concurrent creator's row wins over our zero value.
	return s.repo.GetConversation(ctx, id)
}

// SendMessage appends the message and updates the conversation's
// preview and the recipient's unread counter in one transaction.
func (s *Service) SendMessage(ctx context.Context, conversationID string, senderID uuid.UUID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}
	recipient := conv.Other(senderID)

	msg := &Message{ConversationID: conversationID, SenderID: senderID, Text: text}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateMessage(txCtx, msg); err != nil {
			return err
		}
		at := msg.SentAt
		if at.IsZero() {
			at = time.Now()
		}
		if err := s.repo.SetLastMessage(txCtx, conversationID, text, senderID, at); err != nil {
			return err
		}
		return s.repo.IncrementUnread(txCtx, conversationID, recipient)
	})
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	s.publisher.Publish(realtime.NewEvent(realtime.EventMessageNew, realtime.ConversationTopic(conversationID), msg))
	_ = s.notifier.Notify(ctx, recipient, senderID, "chat_message", "New message", text)

	return msg, nil
}

// MarkRead zeroes the caller's unread counter and stamps the caller on
// every message they had not read yet.
func (s *Service) MarkRead(ctx context.Context, conversationID string, readerID uuid.UUID) error {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return ErrNotParticipant
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.ResetUnread(txCtx, conversationID, readerID); err != nil {
			return err
		}
		return s.repo.MarkMessagesRead(txCtx, conversationID, readerID)
	})
}

// DeleteForMe hides the message from the caller only.
func (s *Service) DeleteForMe(ctx context.Context, messageID, callerID uuid.UUID) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := s.repo.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(callerID) {
		return ErrNotParticipant
	}
	return s.repo.MarkDeletedFor(ctx, messageID, callerID)
}

// DeleteForEveryone blanks the message for both sides. Sender only.
func (s *Service) DeleteForEveryone(ctx context.Context, messageID, callerID uuid.UUID) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != callerID {
		return ErrNotSender
	}
	if err := s.repo.DeleteForEveryone(ctx, messageID); err != nil {
		return err
	}
	s.publisher.Publish(realtime.NewEvent(realtime.EventMessageDeleted, realtime.ConversationTopic(msg.ConversationID), map[string]interface{}{
		"message_id": messageID,
	}))
	return nil
}

func (s *Service) GetConversation(ctx context.Context, conversationID string, callerID uuid.UUID) (*Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context, callerID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	return s.repo.ListConversations(ctx, callerID, limit, offset)
}

func (s *Service) ListMessages(ctx context.Context, conversationID string, callerID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, 0, ErrNotParticipant
	}
	return s.repo.ListMessages(ctx, conversationID, callerID, limit, offset)
}
