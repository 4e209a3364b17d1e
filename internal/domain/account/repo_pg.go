package account

import (
	"context"
	"errors"
	"strings"

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

const accountCols = `id, email, name, password_hash, role, phone, photo_url,
	specialty, license_number, online, last_seen_at, created_at, updated_at`

func (r *repoPG) scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role,
		&a.Phone, &a.PhotoURL, &a.Specialty, &a.LicenseNumber,
		&a.Online, &a.LastSeenAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	a.Email = strings.ToLower(a.Email)
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO account (id, email, name, password_hash, role, phone, photo_url,
			specialty, license_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Role, a.Phone, a.PhotoURL,
		a.Specialty, a.LicenseNumber)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE email = $1`, strings.ToLower(email)))
}

func (r *repoPG) Update(ctx context.Context, a *Account) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE account SET name=$2, phone=$3, photo_url=$4, specialty=$5,
			license_number=$6, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Name, a.Phone, a.PhotoURL, a.Specialty, a.LicenseNumber)
	return err
}

func (r *repoPG) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE account SET password_hash=$2, updated_at=NOW() WHERE id = $1`, id, passwordHash)
	return err
}

func (r *repoPG) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE account SET role=$2, updated_at=NOW() WHERE id = $1`, id, role)
	return err
}

func (r *repoPG) SetPresence(ctx context.Context, id uuid.UUID, online bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE account SET online=$2, last_seen_at=NOW(), updated_at=NOW() WHERE id = $1`, id, online)
	return err
}

func (r *repoPG) ListByRole(ctx context.Context, role string, limit, offset int) ([]*Account, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM account WHERE role = $1`, role).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+accountCols+` FROM account WHERE role = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Account
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Account, int, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM account WHERE email LIKE $1 OR LOWER(name) LIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+accountCols+` FROM account WHERE email LIKE $1 OR LOWER(name) LIKE $1
		 ORDER BY name LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Account
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) CreatePasswordReset(ctx context.Context, pr *PasswordReset) error {
	pr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO password_reset (id, account_id, token_hash, expires_at)
		VALUES ($1,$2,$3,$4)`,
		pr.ID, pr.AccountID, pr.TokenHash, pr.ExpiresAt)
	return err
}

func (r *repoPG) GetPasswordReset(ctx context.Context, tokenHash string) (*PasswordReset, error) {
	var pr PasswordReset
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, account_id, token_hash, expires_at, used_at, created_at
		FROM password_reset WHERE token_hash = $1`, tokenHash).
		Scan(&pr.ID, &pr.AccountID, &pr.TokenHash, &pr.ExpiresAt, &pr.UsedAt, &pr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResetInvalid
	}
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *repoPG) MarkResetUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE password_reset SET used_at=NOW() WHERE id = $1`, id)
	return err
}
