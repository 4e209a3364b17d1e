package account

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
	SetPresence(ctx context.Context, id uuid.UUID, online bool) error
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*Account, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*Account, int, error)
	// Password resets
	CreatePasswordReset(ctx context.Context, pr *PasswordReset) error
	GetPasswordReset(ctx context.Context, tokenHash string) (*PasswordReset, error)
	MarkResetUsed(ctx context.Context, id uuid.UUID) error
}
