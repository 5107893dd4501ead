package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row does not exist or is not visible to the
// caller.
var ErrNotFound = errors.New("repo: not found")

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("repo: duplicate")

// User is an account row.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	ZipCode      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session stores a hashed refresh token.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	RefreshToken string
	UserAgent    *string
	IP           *string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Users provides account and session persistence.
type Users struct {
	Pool *pgxpool.Pool
}

// CreateUser inserts a new account. Email uniqueness violations surface as
// ErrDuplicate.
func (r Users) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	const query = `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, password_hash, zip_code, created_at, updated_at`

	var u User
	err := r.Pool.QueryRow(ctx, query, name, email, passwordHash).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ZipCode, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches an account by normalised email.
func (r Users) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const query = `
		SELECT id, name, email, password_hash, zip_code, created_at, updated_at
		FROM users WHERE email = $1`
	return r.scanUser(r.Pool.QueryRow(ctx, query, email), "get user by email")
}

// GetUserByID fetches an account by id.
func (r Users) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const query = `
		SELECT id, name, email, password_hash, zip_code, created_at, updated_at
		FROM users WHERE id = $1`
	return r.scanUser(r.Pool.QueryRow(ctx, query, id), "get user by id")
}

func (r Users) scanUser(row pgx.Row, op string) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ZipCode, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// CreateSession stores a hashed refresh token for the user.
func (r Users) CreateSession(ctx context.Context, userID uuid.UUID, tokenHash string, userAgent, ip string, expiresAt time.Time) (Session, error) {
	const query = `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING id, user_id, refresh_token, user_agent, ip, expires_at, created_at`

	var s Session
	err := r.Pool.QueryRow(ctx, query, userID, tokenHash, userAgent, ip, expiresAt).Scan(
		&s.ID, &s.UserID, &s.RefreshToken, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// GetSessionByToken fetches a session by refresh token hash.
func (r Users) GetSessionByToken(ctx context.Context, tokenHash string) (Session, error) {
	const query = `
		SELECT id, user_id, refresh_token, user_agent, ip, expires_at, created_at
		FROM sessions WHERE refresh_token = $1`

	var s Session
	err := r.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID, &s.UserID, &s.RefreshToken, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session by token: %w", err)
	}
	return s, nil
}

// RotateSessionToken swaps the stored hash and extends the expiry.
func (r Users) RotateSessionToken(ctx context.Context, sessionID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE sessions SET refresh_token = $2, expires_at = $3 WHERE id = $1`
	tag, err := r.Pool.Exec(ctx, query, sessionID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("rotate session token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSessionByToken revokes a single session.
func (r Users) DeleteSessionByToken(ctx context.Context, tokenHash string) error {
	if _, err := r.Pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete session by token: %w", err)
	}
	return nil
}

// DeleteSessionsByUser revokes every session the user holds.
func (r Users) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.Pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete sessions by user: %w", err)
	}
	return nil
}
