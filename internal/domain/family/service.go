package family

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carelink/api/internal/domain/account"
	"github.com/carelink/api/internal/platform/db"
	"github.com/carelink/api/internal/platform/realtime"
)

var (
	ErrRequestNotFound   = errors.New("family request not found")
	ErrMemberNotFound    = errors.New("family member not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrRequestExists     = errors.New("a pending request to this recipient already exists")
	ErrAlreadyMember     = errors.New("recipient is already a family member")
	ErrSelfRequest       = errors.New("cannot send a family request to yourself")
	ErrNotRecipient      = errors.New("request is addressed to a different account")
	ErrRequestClosed     = errors.New("request has already been rejected")
)

// Directory resolves accounts by id or email. Satisfied by the account
// repository.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
}

// Notifier writes an in-app notification for a recipient. Satisfied by
// the notification service.
type Notifier interface {
	Notify(ctx context.Context, recipientID, senderID uuid.UUID, kind, title, message string) error
}

type Mailer interface {
	SendTemplate(ctx context.Context, templateID string, data map[string]string, to string) error
}

type Service struct {
	repo      Repository
	directory Directory
	tx        db.TxRunner
	notifier  Notifier
	mailer    Mailer
	publisher realtime.EventPublisher
}

func NewService(repo Repository, directory Directory, tx db.TxRunner, notifier Notifier, mailer Mailer, publisher realtime.EventPublisher) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		tx:        tx,
		notifier:  notifier,
		mailer:    mailer,
		publisher: publisher,
	}
}

// SendRequest creates a pending family request from the authenticated
// sender to the account behind toEmail.
func (s *Service) SendRequest(ctx context.Context, fromID uuid.UUID, toEmail, relationship string) (*Request, error) {
	if relationship == "" {
		return nil, fmt.Errorf("relationship is required")
	}
	sender, err := s.directory.GetByID(ctx, fromID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.directory.GetByEmail(ctx, toEmail)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	if recipient.ID == fromID {
		return nil, ErrSelfRequest
	}
	if _, err := s.repo.GetMember(ctx, fromID, recipient.ID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, ErrMemberNotFound) {
		return nil, err
	}
	if _, err := s.repo.FindPendingRequest(ctx, fromID, recipient.ID); err == nil {
		return nil, ErrRequestExists
	} else if !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}

	req := &Request{
		FromID:       sender.ID,
		FromEmail:    sender.Email,
		FromName:     sender.Name,
		ToID:         recipient.ID,
		ToEmail:      recipient.Email,
		ToName:       recipient.Name,
		Relationship: relationship,
		Status:       StatusPending,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	// Best effort from here on; the request row is the source of truth.
	_ = s.notifier.Notify(ctx, recipient.ID, sender.ID, "family_request",
		"New family request",
		fmt.Sprintf("%s wants to add you as their %s", sender.Name, relationship))
	s.publisher.Publish(realtime.NewEvent(realtime.EventFamilyRequest, realtime.UserTopic(recipient.ID), req))
	_ = s.mailer.SendTemplate(ctx, "family-request", map[string]string{
		"sender_name":    sender.Name,
		"recipient_name": recipient.Name,
		"relationship":   relationship,
	}, recipient.Email)

	return req, nil
}

// AcceptRequest flips a pending request to accepted and creates the
// member record on both sides in one transaction. The recipient's view
// of the sender carries the requested relationship; the sender's view
// of the recipient carries its inverse. Accepting an already accepted
// request is a no-op success.
func (s *Service) AcceptRequest(ctx context.Context, requestID, callerID uuid.UUID) (*Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToID != callerID {
		return nil, ErrNotRecipient
	}
	switch req.Status {
	case StatusAccepted:
		return req, nil
	case StatusRejected:
		return nil, ErrRequestClosed
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateRequestStatus(txCtx, req.ID, StatusAccepted); err != nil {
			return err
		}
		if err := s.repo.AddMember(txCtx, &Member{
			OwnerID:      req.FromID,
			MemberID:     req.ToID,
			Name:         req.ToName,
			Email:        req.ToEmail,
			Relationship: InverseRelationship(req.Relationship),
			AccessLevel:  AccessFull,
		}); err != nil {
			return err
		}
		return s.repo.AddMember(txCtx, &Member{
			OwnerID:      req.ToID,
			MemberID:     req.FromID,
			Name:         req.FromName,
			Email:        req.FromEmail,
			Relationship: req.Relationship,
			AccessLevel:  AccessFull,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("accepting family request: %w", err)
	}
	req.Status = StatusAccepted

	_ = s.notifier.Notify(ctx, req.FromID, req.ToID, "family_accepted",
		"Family request accepted",
		fmt.Sprintf("%s accepted your family request", req.ToName))
	s.publisher.Publish(realtime.NewEvent(realtime.EventFamilyAccepted, realtime.UserTopic(req.FromID), req))

	return req, nil
}

// RejectRequest is terminal and never touches either side's members.
func (s *Service) RejectRequest(ctx context.Context, requestID, callerID uuid.UUID) (*Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToID != callerID {
		return nil, ErrNotRecipient
	}
	if req.Status != StatusPending {
		return nil, ErrRequestClosed
	}
	if err := s.repo.UpdateRequestStatus(ctx, req.ID, StatusRejected); err != nil {
		return nil, err
	}
	req.Status = StatusRejected

	_ = s.notifier.Notify(ctx, req.FromID, req.ToID, "family_rejected",
		"Family request declined",
		fmt.Sprintf("%s declined your family request", req.ToName))

	return req, nil
}

// RemoveMember deletes both directions of a link in one transaction.
func (s *Service) RemoveMember(ctx context.Context, ownerID uuid.UUID, memberEmail string) error {
	member, err := s.directory.GetByEmail(ctx, memberEmail)
	if errors.Is(err, account.ErrNotFound) {
		return ErrMemberNotFound
	}
	if err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.RemoveMember(txCtx, ownerID, member.ID); err != nil {
			return err
		}
		return s.repo.RemoveMember(txCtx, member.ID, ownerID)
	})
}

func (s *Service) GetNetwork(ctx context.Context, ownerID uuid.UUID) ([]*Member, error) {
	return s.repo.ListMembers(ctx, ownerID)
}

func (s *Service) IsMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	_, err := s.repo.GetMember(ctx, ownerID, memberID)
	if errors.Is(err, ErrMemberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ListIncoming(ctx context.Context, toID uuid.UUID, status string) ([]*Request, error) {
	return s.repo.ListIncoming(ctx, toID, status)
}

func (s *Service) ListOutgoing(ctx context.Context, fromID uuid.UUID, status string) ([]*Request, error) {
	return s.repo.ListOutgoing(ctx, fromID, status)
}

// UpdateMemberSettings changes the caller's view of a member. It never
// touches the member's own record.
func (s *Service) UpdateMemberSettings(ctx context.Context, ownerID, memberID uuid.UUID, accessLevel string, isEmergencyContact bool) (*Member, error) {
	if !validAccessLevels[accessLevel] {
		return nil, fmt.Errorf("invalid access level: %s", accessLevel)
	}
	m, err := s.repo.GetMember(ctx, ownerID, memberID)
	if err != nil {
		return nil, err
	}
	m.AccessLevel = accessLevel
	m.IsEmergencyContact = isEmergencyContact
	if err := s.repo.UpdateMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
