package location

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, share *EmergencyShare) error
	GetByID(ctx context.Context, id uuid.UUID) (*EmergencyShare, error)
	// ListActiveForOwners returns active shares that have not passed
	// their expiry as of now, newest first.
	ListActiveForOwners(ctx context.Context, ownerIDs []uuid.UUID, now time.Time) ([]*EmergencyShare, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, isActive bool) error
	// ExpireStale flips active shares whose expiry has passed to the
	// expired status and reports how many rows changed.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
