package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dchurch/fridge/internal/model"
)

const verificationTTL = 24 * time.Hour

type VerificationTokenStore struct {
	db *sql.DB
}

func NewVerificationTokenStore(db *sql.DB) *VerificationTokenStore {
	return &VerificationTokenStore{db: db}
}

func scanVerificationToken(scanner interface{ Scan(...any) error }) (*model.VerificationToken, error) {
	var vt model.VerificationToken
	var usedAt sql.NullTime

	err := scanner.Scan(&vt.ID, &vt.Token, &vt.UserID, &vt.ExpiresAt, &usedAt, &vt.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		vt.UsedAt = &usedAt.Time
	}
	return &vt, nil
}

const verificationTokenCols = `id, token, user_id, expires_at, used_at, created_at`

// Create issues a fresh verification token for the user with a 24-hour
// expiry. Any earlier unused tokens for the same user are invalidated so
// only the newest link works.
func (s *VerificationTokenStore) Create(userID int64) (*model.VerificationToken, error) {
	_, err := s.db.Exec(
		`UPDATE verification_tokens SET used_at = datetime('now') WHERE user_id = ? AND used_at IS NULL`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous tokens: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(verificationTTL)

	result, err := s.db.Exec(
		`INSERT INTO verification_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert verification token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+verificationTokenCols+` FROM verification_tokens WHERE id = ?`, id)
	return scanVerificationToken(row)
}

// GetValidByToken returns the token if it is unused and unexpired, else nil.
func (s *VerificationTokenStore) GetValidByToken(token string) (*model.VerificationToken, error) {
	row := s.db.QueryRow(
		`SELECT `+verificationTokenCols+` FROM verification_tokens
		 WHERE token = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		token,
	)
	vt, err := scanVerificationToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification token: %w", err)
	}
	return vt, nil
}

func (s *VerificationTokenStore) MarkUsed(id int64) error {
	_, err := s.db.Exec(
		`UPDATE verification_tokens SET used_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark verification token used: %w", err)
	}
	return nil
}

func (s *VerificationTokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM verification_tokens WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired verification tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
