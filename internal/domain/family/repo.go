package family

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id uuid.UUID) (*Request, error)
	// FindPendingRequest looks up a pending request for the ordered
	// sender/recipient pair.
	FindPendingRequest(ctx context.Context, fromID, toID uuid.UUID) (*Request, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, status string) error
	ListIncoming(ctx context.Context, toID uuid.UUID, status string) ([]*Request, error)
	ListOutgoing(ctx context.Context, fromID uuid.UUID, status string) ([]*Request, error)

	AddMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, ownerID, memberID uuid.UUID) (*Member, error)
	UpdateMember(ctx context.Context, m *Member) error
	RemoveMember(ctx context.Context, ownerID, memberID uuid.UUID) error
	ListMembers(ctx context.Context, ownerID uuid.UUID) ([]*Member, error)
}
