package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"eventhub/internal/model"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUsersByEmails(ctx context.Context, emails []string) ([]model.User, error)
	SetVerificationCode(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	ActivateUser(ctx context.Context, userID int64) error
	UpdateProfile(ctx context.Context, userID int64, firstName, lastName, phone string) (*model.User, error)
	SetPassword(ctx context.Context, userID int64, hash string) error
	SetStaff(ctx context.Context, userID int64, staff bool) error
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

const userColumns = `id, email, password_hash, first_name, last_name, phone_number,
	is_active, is_staff, email_verification_code, email_verification_expires_at, date_joined`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.PhoneNumber,
		&u.IsActive, &u.IsStaff, &u.VerificationCode, &u.VerificationExpiresAt, &u.DateJoined,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts the user together with an empty cart.
func (r *repository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (email, password_hash, first_name, last_name, phone_number,
			                   is_active, is_staff, email_verification_code, email_verification_expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, date_joined
		`, strings.ToLower(u.Email), u.PasswordHash, u.FirstName, u.LastName, u.PhoneNumber,
			u.IsActive, u.IsStaff, u.VerificationCode, u.VerificationExpiresAt,
		).Scan(&id, &u.DateJoined)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO carts (user_id) VALUES ($1)`, id); err != nil {
			return fmt.Errorf("failed to create cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

func (r *repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (r *repository) GetUsersByEmails(ctx context.Context, emails []string) ([]model.User, error) {
	lowered := make([]string, 0, len(emails))
	for _, e := range emails {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(e)))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = ANY($1)`, pq.Array(lowered))
	if err != nil {
		return nil, fmt.Errorf("failed to get users by email: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *repository) SetVerificationCode(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	return r.execOne(ctx, ErrUserNotFound, `
		UPDATE users
		SET email_verification_code = $1, email_verification_expires_at = $2
		WHERE id = $3
	`, code, expiresAt, userID)
}

func (r *repository) ActivateUser(ctx context.Context, userID int64) error {
	return r.execOne(ctx, ErrUserNotFound, `
		UPDATE users
		SET is_active = TRUE, email_verification_code = NULL, email_verification_expires_at = NULL
		WHERE id = $1
	`, userID)
}

func (r *repository) UpdateProfile(ctx context.Context, userID int64, firstName, lastName, phone string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, phone_number = $3
		WHERE id = $4
		RETURNING `+userColumns, firstName, lastName, phone, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

func (r *repository) SetPassword(ctx context.Context, userID int64, hash string) error {
	return r.execOne(ctx, ErrUserNotFound, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
}

func (r *repository) SetStaff(ctx context.Context, userID int64, staff bool) error {
	return r.execOne(ctx, ErrUserNotFound,
		`UPDATE users SET is_staff = $1, is_active = is_active OR $1 WHERE id = $2`, staff, userID)
}

func (r *repository) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	// expired entries can no longer be replayed
	if _, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`); err != nil {
		r.log.Warn().Err(err).Msg("failed to prune revoked tokens")
	}
	return nil
}

func (r *repository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return exists, nil
}

// execOne runs an update that must touch exactly one row, returning notFound otherwise.
func (r *repository) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
