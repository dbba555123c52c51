// Package otp manages short-lived, single-use password reset codes.
package otp

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"pathpal-api/internal/credentials"
	"pathpal-api/internal/models"
)

var (
	// ErrNoActiveRequest means no unused, unexpired reset code exists for
	// the user.
	ErrNoActiveRequest = errors.New("no active password reset request")
	// ErrInvalidCode means an active request exists but the candidate code
	// does not match its hash.
	ErrInvalidCode = errors.New("invalid reset code")
)

type Ledger struct {
	db  *sql.DB
	ttl time.Duration
}

func NewLedger(db *sql.DB, ttl time.Duration) *Ledger {
	return &Ledger{db: db, ttl: ttl}
}

// Issue generates a fresh 4-digit code for the user, stores its hash with an
// expiry, and returns the plaintext to be delivered out-of-band. Any prior
// unused requests for the user are invalidated first. The plaintext is never
// persisted.
func (l *Ledger) Issue(ctx context.Context, userID int) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate reset code: %w", err)
	}

	hashed, err := credentials.Hash(code)
	if err != nil {
		return "", fmt.Errorf("failed to hash reset code: %w", err)
	}

	expiresAt := time.Now().Add(l.ttl)

	_, err = l.db.ExecContext(ctx,
		"DELETE FROM password_resets WHERE user_id = $1 AND used = FALSE", userID)
	if err != nil {
		return "", fmt.Errorf("failed to invalidate prior reset requests: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO password_resets (user_id, token, expires_at, used)
		VALUES ($1, $2, $3, FALSE)
	`, userID, hashed, expiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to store reset request: %w", err)
	}

	return code, nil
}

// Verify checks the candidate code against the user's active reset request
// without consuming it, so a client can confirm a code before submitting the
// new password.
func (l *Ledger) Verify(ctx context.Context, userID int, code string) (*models.PasswordReset, error) {
	reset, err := l.activeRequest(ctx, l.db, userID)
	if err != nil {
		return nil, err
	}

	match, err := credentials.Check(code, reset.TokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to compare reset code: %w", err)
	}
	if !match {
		return nil, ErrInvalidCode
	}

	return reset, nil
}

// Consume validates the code and, in a single transaction, replaces the
// user's password hash and marks the reset request used. Either both writes
// commit or neither does.
func (l *Ledger) Consume(ctx context.Context, userID int, code, newPassword string) error {
	newHash, err := credentials.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reset, err := l.activeRequest(ctx, tx, userID)
	if err != nil {
		return err
	}

	match, err := credentials.Check(code, reset.TokenHash)
	if err != nil {
		return fmt.Errorf("failed to compare reset code: %w", err)
	}
	if !match {
		return ErrInvalidCode
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET password_hash = $1 WHERE user_id = $2", newHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE password_resets SET used = TRUE WHERE reset_id = $1", reset.ResetID)
	if err != nil {
		return fmt.Errorf("failed to mark reset request used: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit password reset: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// activeRequest fetches the user's unused, unexpired request. If several
// exist the one with the latest expiry wins.
func (l *Ledger) activeRequest(ctx context.Context, q querier, userID int) (*models.PasswordReset, error) {
	var reset models.PasswordReset
	err := q.QueryRowContext(ctx, `
		SELECT reset_id, user_id, token, expires_at, used
		FROM password_resets
		WHERE user_id = $1 AND used = FALSE AND expires_at > NOW()
		ORDER BY expires_at DESC
		LIMIT 1
	`, userID).Scan(&reset.ResetID, &reset.UserID, &reset.TokenHash, &reset.ExpiresAt, &reset.Used)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoActiveRequest
		}
		return nil, fmt.Errorf("failed to fetch reset request: %w", err)
	}
	return &reset, nil
}

// generateCode draws a code uniformly from [1000, 9999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}
