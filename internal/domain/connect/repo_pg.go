package connect

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const cols = `id, patient_id, doctor_id, secret, status, created_at, expires_at, confirmed_at`

func scanRequest(row pgx.Row) (*ConnectionRequest, error) {
	var req ConnectionRequest
	err := row.Scan(&req.ID, &req.PatientID, &req.DoctorID, &req.Secret,
		&req.Status, &req.CreatedAt, &req.ExpiresAt, &req.ConfirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repoPG) Create(ctx context.Context, req *ConnectionRequest) error {
	req.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO connection_request (id, patient_id, doctor_id, secret, status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		req.ID, req.PatientID, req.DoctorID, req.Secret, req.Status, req.ExpiresAt).
		Scan(&req.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ConnectionRequest, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM connection_request WHERE id = $1`, id))
}

func (r *repoPG) FindPending(ctx context.Context, patientID, doctorID uuid.UUID) (*ConnectionRequest, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+cols+` FROM connection_request
		WHERE patient_id = $1 AND doctor_id = $2 AND status = $3`,
		patientID, doctorID, StatusPending))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, confirmedAt *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE connection_request SET status=$2, confirmed_at=$3 WHERE id = $1`,
		id, status, confirmedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*ConnectionRequest, error) {
	return r.list(ctx, `SELECT `+cols+` FROM connection_request
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
}

func (r *repoPG) ListForDoctor(ctx context.Context, doctorID uuid.UUID, status string) ([]*ConnectionRequest, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+cols+` FROM connection_request
			WHERE doctor_id = $1 ORDER BY created_at DESC`, doctorID)
	}
	return r.list(ctx, `SELECT `+cols+` FROM connection_request
		WHERE doctor_id = $1 AND status = $2 ORDER BY created_at DESC`, doctorID, status)
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*ConnectionRequest, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ConnectionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}
