package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/api/internal/domain/family"
	"github.com/carelink/api/internal/platform/geo"
	"github.com/carelink/api/internal/platform/realtime"
)

var (
	ErrShareNotFound  = errors.New("emergency share not found")
	ErrNotOwner       = errors.New("share belongs to a different account")
	ErrNotAuthorized  = errors.New("share is not visible to this account")
	ErrInvalidType    = errors.New("invalid emergency type")
	ErrShareNotActive = errors.New("share is no longer active")
)

// Network reads the caller's family members. Satisfied by the family
// service.
type Network interface {
	GetNetwork(ctx context.Context, ownerID uuid.UUID) ([]*family.Member, error)
}

// Geocoder resolves coordinates to addresses and routes between
// points. Satisfied by the geo client.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
	GetRoute(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (*geo.Route, error)
}

// Notifier writes an in-app notification with an attached payload.
// Satisfied by the notification service.
type Notifier interface {
	NotifyWithData(ctx context.Context, recipientID, senderID uuid.UUID, kind, title, message string, data interface{}) error
}

type Mailer interface {
	SendTemplate(ctx context.Context, templateID string, data map[string]string, to string) error
}

type Service struct {
	repo      Repository
	network   Network
	geocoder  Geocoder
	notifier  Notifier
	mailer    Mailer
	publisher realtime.EventPublisher
	logger    zerolog.Logger
}

func NewService(repo Repository, network Network, geocoder Geocoder, notifier Notifier, mailer Mailer, publisher realtime.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		network:   network,
		geocoder:  geocoder,
		notifier:  notifier,
		mailer:    mailer,
		publisher: publisher,
		logger:    logger,
	}
}

type ShareInput struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Accuracy      float64 `json:"accuracy"`
	EmergencyType string  `json:"emergency_type"`
	Message       string  `json:"message"`
	SenderName    string  `json:"-"`
}

// Share records an active emergency location and alerts the owner's
// family network. The share itself is the source of truth; alerts are
// best effort.
func (s *Service) Share(ctx context.Context, userID uuid.UUID, input ShareInput) (*EmergencyShare, error) {
	if !validEmergencyTypes[input.EmergencyType] {
		return nil, ErrInvalidType
	}
	if input.Lat < -90 || input.Lat > 90 || input.Lng < -180 || input.Lng > 180 {
		return nil, fmt.Errorf("coordinates out of range")
	}

	// Degrades to a coordinate string when the provider is down.
	address, err := s.geocoder.ReverseGeocode(ctx, input.Lat, input.Lng)
	if err != nil {
		address = fmt.Sprintf("%.6f, %.6f", input.Lat, input.Lng)
	}

	now := time.Now()
	share := &EmergencyShare{
		UserID:        userID,
		Lat:           input.Lat,
		Lng:           input.Lng,
		Accuracy:      input.Accuracy,
		Address:       address,
		EmergencyType: input.EmergencyType,
		Message:       input.Message,
		IsActive:      true,
		Status:        StatusActive,
		ExpiresAt:     now.Add(ShareTTL),
	}
	if err := s.repo.Create(ctx, share); err != nil {
		return nil, err
	}

	members, err := s.network.GetNetwork(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Stringer("user_id", userID).Msg("emergency share saved but family lookup failed")
		return share, nil
	}
	title := fmt.Sprintf("Emergency: %s", share.EmergencyType)
	body := fmt.Sprintf("%s shared their location at %s", input.SenderName, share.Address)
	for _, m := range members {
		if err := s.notifier.NotifyWithData(ctx, m.MemberID, userID, "emergency_alert", title, body, share); err != nil {
			s.logger.Error().Err(err).Stringer("member_id", m.MemberID).Msg("emergency notification failed")
		}
		s.publisher.Publish(realtime.NewEvent(realtime.EventLocationShared, realtime.UserTopic(m.MemberID), share))
		if m.IsEmergencyContact {
			_ = s.mailer.SendTemplate(ctx, "emergency-alert", map[string]string{
				"sender_name":    input.SenderName,
				"emergency_type": share.EmergencyType,
				"address":        share.Address,
			}, m.Email)
		}
	}
	return share, nil
}

// ActiveShares returns the active, unexpired shares of the viewer and
// their family members. Expiry is also enforced here so stale rows are
// invisible between sweeper runs.
func (s *Service) ActiveShares(ctx context.Context, viewerID uuid.UUID) ([]*EmergencyShare, error) {
	members, err := s.network.GetNetwork(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	owners := make([]uuid.UUID, 0, len(members)+1)
	owners = append(owners, viewerID)
	for _, m := range members {
		owners = append(owners, m.MemberID)
	}
	return s.repo.ListActiveForOwners(ctx, owners, time.Now())
}

// Resolve ends a share. Owner only.
func (s *Service) Resolve(ctx context.Context, shareID, callerID uuid.UUID) (*EmergencyShare, error) {
	share, err := s.repo.GetByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share.UserID != callerID {
		return nil, ErrNotOwner
	}
	if err := s.repo.UpdateStatus(ctx, shareID, StatusResolved, false); err != nil {
		return nil, err
	}
	share.Status = StatusResolved
	share.IsActive = false
	return share, nil
}

// Route computes distance and duration from the caller's position to a
// share they are allowed to see.
func (s *Service) Route(ctx context.Context, callerID uuid.UUID, fromLat, fromLng float64, shareID uuid.UUID) (*geo.Route, error) {
	share, err := s.repo.GetByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share.UserID != callerID {
		members, err := s.network.GetNetwork(ctx, callerID)
		if err != nil {
			return nil, err
		}
		linked := false
		for _, m := range members {
			if m.MemberID == share.UserID {
				linked = true
				break
			}
		}
		if !linked {
			return nil, ErrNotAuthorized
		}
	}
	if !share.IsActive || time.Now().After(share.ExpiresAt) {
		return nil, ErrShareNotActive
	}
	return s.geocoder.GetRoute(ctx, fromLat, fromLng, share.Lat, share.Lng)
}

// ExpireStale deactivates shares past their expiry. Called by the
// sweeper.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	return s.repo.ExpireStale(ctx, time.Now())
}
