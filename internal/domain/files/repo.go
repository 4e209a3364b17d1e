package files

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, f *UserFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*UserFile, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*UserFile, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
