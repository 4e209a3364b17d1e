package connect

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, req *ConnectionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*ConnectionRequest, error)
	FindPending(ctx context.Context, patientID, doctorID uuid.UUID) (*ConnectionRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, confirmedAt *time.Time) error
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*ConnectionRequest, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, status string) ([]*ConnectionRequest, error)
}
