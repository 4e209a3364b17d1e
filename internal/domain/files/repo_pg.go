package files

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

const cols = `id, owner_id, file_name, content_type, size, object_key, hash, uploaded_at`

func scanFile(row pgx.Row) (*UserFile, error) {
	var f UserFile
	err := row.Scan(&f.ID, &f.OwnerID, &f.FileName, &f.ContentType, &f.Size,
		&f.ObjectKey, &f.Hash, &f.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repoPG) Create(ctx context.Context, f *UserFile) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_file (id, owner_id, file_name, content_type, size, object_key, hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING uploaded_at`,
		f.ID, f.OwnerID, f.FileName, f.ContentType, f.Size, f.ObjectKey, f.Hash).
		Scan(&f.UploadedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*UserFile, error) {
	return scanFile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM user_file WHERE id = $1`, id))
}

func (r *repoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*UserFile, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM user_file WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+cols+` FROM user_file WHERE owner_id = $1
		ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*UserFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM user_file WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
