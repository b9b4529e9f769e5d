package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dchurch/fridge/internal/model"
)

const invitationTTL = 7 * 24 * time.Hour

type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.Invitation, error) {
	var inv model.Invitation
	err := scanner.Scan(
		&inv.ID, &inv.Token, &inv.HouseholdID, &inv.Email, &inv.Status,
		&inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

const invitationCols = `id, token, household_id, email, status, expires_at, created_at, updated_at`

// Create issues a new pending invitation with a 7-day expiry. Re-inviting
// the same email to the same household expires any earlier pending
// invitations, so only the most recent link works.
func (s *InvitationStore) Create(householdID int64, email string) (*model.Invitation, error) {
	_, err := s.db.Exec(
		`UPDATE invitations SET status = ?, updated_at = datetime('now')
		 WHERE household_id = ? AND email = ? AND status = ?`,
		model.InvitationExpired, householdID, email, model.InvitationPending,
	)
	if err != nil {
		return nil, fmt.Errorf("expire previous invitations: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(invitationTTL)

	result, err := s.db.Exec(
		`INSERT INTO invitations (token, household_id, email, expires_at) VALUES (?, ?, ?, ?)`,
		token, householdID, email, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE id = ?`, id)
	return scanInvitation(row)
}

// GetPendingByToken returns the invitation if it is still pending and
// unexpired, else nil.
func (s *InvitationStore) GetPendingByToken(token string) (*model.Invitation, error) {
	row := s.db.QueryRow(
		`SELECT `+invitationCols+` FROM invitations
		 WHERE token = ? AND status = ? AND expires_at > datetime('now')`,
		token, model.InvitationPending,
	)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}
	return inv, nil
}

func (s *InvitationStore) MarkAccepted(id int64) error {
	_, err := s.db.Exec(
		`UPDATE invitations SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		model.InvitationAccepted, id,
	)
	if err != nil {
		return fmt.Errorf("mark invitation accepted: %w", err)
	}
	return nil
}

// ExpireOverdue flips pending invitations whose expiry has passed to expired.
func (s *InvitationStore) ExpireOverdue() (int64, error) {
	result, err := s.db.Exec(
		`UPDATE invitations SET status = ?, updated_at = datetime('now')
		 WHERE status = ? AND expires_at <= datetime('now')`,
		model.InvitationExpired, model.InvitationPending,
	)
	if err != nil {
		return 0, fmt.Errorf("expire overdue invitations: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *InvitationStore) ListByHousehold(householdID int64) ([]model.Invitation, error) {
	rows, err := s.db.Query(
		`SELECT `+invitationCols+` FROM invitations WHERE household_id = ? ORDER BY created_at DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}
