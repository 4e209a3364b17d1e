package family

import (
	"context"
	"errors"

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

const requestCols = `id, from_id, from_email, from_name, to_id, to_email, to_name,
	relationship, status, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.FromID, &req.FromEmail, &req.FromName,
		&req.ToID, &req.ToEmail, &req.ToName,
		&req.Relationship, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repoPG) CreateRequest(ctx context.Context, req *Request) error {
	req.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO family_request (id, from_id, from_email, from_name, to_id, to_email, to_name,
			relationship, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		req.ID, req.FromID, req.FromEmail, req.FromName, req.ToID, req.ToEmail, req.ToName,
		req.Relationship, req.Status)
	return err
}

func (r *repoPG) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM family_request WHERE id = $1`, id))
}

func (r *repoPG) FindPendingRequest(ctx context.Context, fromID, toID uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+requestCols+` FROM family_request
		WHERE from_id = $1 AND to_id = $2 AND status = $3`,
		fromID, toID, StatusPending))
}

func (r *repoPG) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE family_request SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *repoPG) listRequests(ctx context.Context, column string, id uuid.UUID, status string) ([]*Request, error) {
	query := `SELECT ` + requestCols + ` FROM family_request WHERE ` + column + ` = $1`
	args := []interface{}{id}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

func (r *repoPG) ListIncoming(ctx context.Context, toID uuid.UUID, status string) ([]*Request, error) {
	return r.listRequests(ctx, "to_id", toID, status)
}

func (r *repoPG) ListOutgoing(ctx context.Context, fromID uuid.UUID, status string) ([]*Request, error) {
	return r.listRequests(ctx, "from_id", fromID, status)
}

const memberCols = `id, owner_id, member_id, name, email, relationship,
	access_level, is_emergency_contact, added_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.OwnerID, &m.MemberID, &m.Name, &m.Email,
		&m.Relationship, &m.AccessLevel, &m.IsEmergencyContact, &m.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) AddMember(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO family_member (id, owner_id, member_id, name, email, relationship,
			access_level, is_emergency_contact)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.OwnerID, m.MemberID, m.Name, m.Email, m.Relationship,
		m.AccessLevel, m.IsEmergencyContact)
	return err
}

func (r *repoPG) GetMember(ctx context.Context, ownerID, memberID uuid.UUID) (*Member, error) {
	return scanMember(r.conn(ctx).QueryRow(ctx, `
		SELECT `+memberCols+` FROM family_member
		WHERE owner_id = $1 AND member_id = $2`, ownerID, memberID))
}

func (r *repoPG) UpdateMember(ctx context.Context, m *Member) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE family_member SET access_level=$3, is_emergency_contact=$4
		WHERE owner_id = $1 AND member_id = $2`,
		m.OwnerID, m.MemberID, m.AccessLevel, m.IsEmergencyContact)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *repoPG) RemoveMember(ctx context.Context, ownerID, memberID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM family_member WHERE owner_id = $1 AND member_id = $2`, ownerID, memberID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *repoPG) ListMembers(ctx context.Context, ownerID uuid.UUID) ([]*Member, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+memberCols+` FROM family_member
		WHERE owner_id = $1 ORDER BY added_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
