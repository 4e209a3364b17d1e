package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carelink/api/internal/platform/realtime"
)

var (
	ErrNotFound     = errors.New("notification not found")
	ErrNotRecipient = errors.New("notification belongs to a different account")
)

type Service struct {
	repo      Repository
	publisher realtime.EventPublisher
}

func NewService(repo Repository, publisher realtime.EventPublisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// Create appends an inbox entry and pushes it to the recipient's
// websocket topic.
func (s *Service) Create(ctx context.Context, n *Notification) error {
	if !validTypes[n.Type] {
		return fmt.Errorf("invalid notification type: %s", n.Type)
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.publisher.Publish(realtime.NewEvent(realtime.EventNotificationNew, realtime.UserTopic(n.RecipientID), n))
	return nil
}

// Notify is the fan-out entry point other services use.
func (s *Service) Notify(ctx context.Context, recipientID, senderID uuid.UUID, kind, title, message string) error {
	n := &Notification{
		RecipientID: recipientID,
		Type:        kind,
		Title:       title,
		Message:     message,
	}
	if senderID != uuid.Nil {
		n.SenderID = &senderID
	}
	if kind == TypeEmergencyAlert {
		n.Priority = PriorityHigh
	}
	return s.Create(ctx, n)
}

// NotifyWithData attaches a structured payload to the entry.
func (s *Service) NotifyWithData(ctx context.Context, recipientID, senderID uuid.UUID, kind, title, message string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding notification data: %w", err)
	}
	n := &Notification{
		RecipientID: recipientID,
		Type:        kind,
		Title:       title,
		Message:     message,
		Data:        raw,
	}
	if senderID != uuid.Nil {
		n.SenderID = &senderID
	}
	if kind == TypeEmergencyAlert {
		n.Priority = PriorityHigh
	}
	return s.Create(ctx, n)
}

func (s *Service) ListInbox(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.repo.List(ctx, recipientID, unreadOnly, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, id, callerID uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.RecipientID != callerID {
		return ErrNotRecipient
	}
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, callerID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, callerID)
}

// Delete flags the entry deleted. The row stays.
func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.RecipientID != callerID {
		return ErrNotRecipient
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) UnreadCount(ctx context.Context, callerID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, callerID)
}
