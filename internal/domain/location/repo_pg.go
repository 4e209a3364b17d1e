package location

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

const cols = `id, user_id, lat, lng, accuracy, address, emergency_type, message,
	is_active, status, shared_at, expires_at`

func scanShare(row pgx.Row) (*EmergencyShare, error) {
	var s EmergencyShare
	err := row.Scan(&s.ID, &s.UserID, &s.Lat, &s.Lng, &s.Accuracy, &s.Address,
		&s.EmergencyType, &s.Message, &s.IsActive, &s.Status, &s.SharedAt, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, share *EmergencyShare) error {
	share.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO emergency_share (id, user_id, lat, lng, accuracy, address,
			emergency_type, message, is_active, status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING shared_at`,
		share.ID, share.UserID, share.Lat, share.Lng, share.Accuracy, share.Address,
		share.EmergencyType, share.Message, share.IsActive, share.Status, share.ExpiresAt).
		Scan(&share.SharedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*EmergencyShare, error) {
	return scanShare(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM emergency_share WHERE id = $1`, id))
}

func (r *repoPG) ListActiveForOwners(ctx context.Context, ownerIDs []uuid.UUID, now time.Time) ([]*EmergencyShare, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+cols+` FROM emergency_share
		WHERE user_id = ANY($1) AND is_active AND status = $2 AND expires_at > $3
		ORDER BY shared_at DESC`, ownerIDs, StatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*EmergencyShare
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, isActive bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE emergency_share SET status=$2, is_active=$3 WHERE id = $1`, id, status, isActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShareNotFound
	}
	return nil
}

func (r *repoPG) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE emergency_share SET status=$1, is_active=FALSE
		WHERE is_active AND expires_at <= $2`, StatusExpired, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
