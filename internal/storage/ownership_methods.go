package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/models"
)

const ownershipRequestColumns = `id, created_at, updated_at, flat_id, society_id, current_owner_id,
	new_owner_name, new_owner_email, new_owner_phone, reason,
	status, reviewed_by, review_note, reviewed_at, new_owner_id`

func scanOwnershipRequest(row interface{ Scan(dest ...interface{}) error }) (*models.OwnershipRequest, error) {
	req := &models.OwnershipRequest{}
	err := row.Scan(
		&req.ID, &req.CreatedAt, &req.UpdatedAt, &req.FlatID, &req.SocietyID, &req.CurrentOwnerID,
		&req.NewOwnerName, &req.NewOwnerEmail, &req.NewOwnerPhone, &req.Reason,
		&req.Status, &req.ReviewedBy, &req.ReviewNote, &req.ReviewedAt, &req.NewOwnerID,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return req, nil
}

// CreateOwnershipRequest creates a pending ownership request. A second
// pending request for the same flat fails with ErrDuplicateKey.
func (s *SQLStore) CreateOwnershipRequest(ctx context.Context, req *models.OwnershipRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Status = models.RequestPending
	req.NewOwnerEmail = strings.ToLower(strings.TrimSpace(req.NewOwnerEmail))

	query := `
		INSERT INTO ownership_requests (` + ownershipRequestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.getDB().ExecContext(ctx, query,
		req.ID, req.CreatedAt, req.UpdatedAt, req.FlatID, req.SocietyID, req.CurrentOwnerID,
		req.NewOwnerName, req.NewOwnerEmail, req.NewOwnerPhone, req.Reason,
		req.Status, req.ReviewedBy, req.ReviewNote, req.ReviewedAt, req.NewOwnerID,
	)

	return translateError(err)
}

// GetOwnershipRequest gets an ownership request by ID
func (s *SQLStore) GetOwnershipRequest(ctx context.Context, id uuid.UUID) (*models.OwnershipRequest, error) {
	query := `SELECT ` + ownershipRequestColumns + ` FROM ownership_requests WHERE id = $1`
	return scanOwnershipRequest(s.getDB().QueryRowContext(ctx, query, id))
}

// HasPendingOwnershipRequest reports whether the flat has an unreviewed request
func (s *SQLStore) HasPendingOwnershipRequest(ctx context.Context, flatID uuid.UUID) (bool, error) {
	var count int
	err := s.getDB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ownership_requests WHERE flat_id = $1 AND status = 'pending'`,
		flatID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReviewOwnershipRequest stores the review outcome. The update only matches a
// request that is still pending; otherwise ErrStaleState is returned.
func (s *SQLStore) ReviewOwnershipRequest(ctx context.Context, req *models.OwnershipRequest) error {
	req.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE ownership_requests SET
			updated_at = $2, status = $3, reviewed_by = $4, review_note = $5,
			reviewed_at = $6, new_owner_id = $7
		WHERE id = $1 AND status = 'pending'`

	result, err := s.getDB().ExecContext(ctx, query,
		req.ID, req.UpdatedAt, req.Status, req.ReviewedBy, req.ReviewNote,
		req.ReviewedAt, req.NewOwnerID,
	)
	if err != nil {
		return translateError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaleState
	}

	return nil
}

// ListOwnershipRequests lists ownership requests, newest first
func (s *SQLStore) ListOwnershipRequests(ctx context.Context, filters RequestFilters, limit, offset int) ([]*models.OwnershipRequest, int64, error) {
	var where whereBuilder
	if filters.AdminID != nil {
		where.add("society_id IN (SELECT id FROM societies WHERE admin_id = $%d)", *filters.AdminID)
	}
	if filters.CurrentOwnerID != nil {
		where.add("current_owner_id = $%d", *filters.CurrentOwnerID)
	}
	if filters.FlatID != nil {
		where.add("flat_id = $%d", *filters.FlatID)
	}
	if filters.Status != nil {
		where.add("status = $%d", *filters.Status)
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM ownership_requests"+where.String(), where.args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + ownershipRequestColumns + ` FROM ownership_requests` + where.String() +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []*models.OwnershipRequest
	for rows.Next() {
		req, err := scanOwnershipRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}

	return requests, count, rows.Err()
}
