package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/models"
)

const complaintColumns = `id, created_at, updated_at, society_id, flat_id, raised_by,
	category, title, description, status, resolution, resolved_at`

func scanComplaint(row interface{ Scan(dest ...interface{}) error }) (*models.Complaint, error) {
	c := &models.Complaint{}
	err := row.Scan(
		&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.SocietyID, &c.FlatID, &c.RaisedBy,
		&c.Category, &c.Title, &c.Description, &c.Status, &c.Resolution, &c.ResolvedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return c, nil
}

// CreateComplaint creates an open complaint
func (s *SQLStore) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Status = models.ComplaintOpen

	query := `
		INSERT INTO complaints (` + complaintColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.getDB().ExecContext(ctx, query,
		c.ID, c.CreatedAt, c.UpdatedAt, c.SocietyID, c.FlatID, c.RaisedBy,
		c.Category, c.Title, c.Description, c.Status, c.Resolution, c.ResolvedAt,
	)

	return translateError(err)
}

// GetComplaint gets a complaint by ID
func (s *SQLStore) GetComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`
	return scanComplaint(s.getDB().QueryRowContext(ctx, query, id))
}

// UpdateComplaintStatus moves a complaint out of state from. It returns
// ErrStaleState when the stored status no longer equals from.
func (s *SQLStore) UpdateComplaintStatus(ctx context.Context, c *models.Complaint, from models.ComplaintStatus) error {
	c.UpdatedAt = time.Now().UTC()

	result, err := s.getDB().ExecContext(ctx, `
		UPDATE complaints SET updated_at = $2, status = $3, resolution = $4, resolved_at = $5
		WHERE id = $1 AND status = $6`,
		c.ID, c.UpdatedAt, c.Status, c.Resolution, c.ResolvedAt, from,
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

// ListComplaints lists complaints, newest first
func (s *SQLStore) ListComplaints(ctx context.Context, filters ComplaintFilters, limit, offset int) ([]*models.Complaint, int64, error) {
	var where whereBuilder
	if filters.SocietyID != nil {
		where.add("society_id = $%d", *filters.SocietyID)
	}
	if filters.RaisedBy != nil {
		where.add("raised_by = $%d", *filters.RaisedBy)
	}
	if filters.Status != nil {
		where.add("status = $%d", *filters.Status)
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM complaints"+where.String(), where.args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + complaintColumns + ` FROM complaints` + where.String() +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var complaints []*models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, 0, err
		}
		complaints = append(complaints, c)
	}

	return complaints, count, rows.Err()
}

const announcementColumns = `id, created_at, society_id, created_by, title, body, audience, valid_from, valid_until`

// CreateAnnouncement creates an announcement
func (s *SQLStore) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()
	if a.ValidFrom.IsZero() {
		a.ValidFrom = a.CreatedAt
	}
	if a.Audience == "" {
		a.Audience = models.AudienceAll
	}

	query := `
		INSERT INTO announcements (` + announcementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		a.ID, a.CreatedAt, a.SocietyID, a.CreatedBy, a.Title, a.Body, a.Audience,
		a.ValidFrom.UTC(), a.ValidUntil,
	)

	return translateError(err)
}

// ListAnnouncements lists a society's announcements, newest first
func (s *SQLStore) ListAnnouncements(ctx context.Context, societyID uuid.UUID, limit, offset int) ([]*models.Announcement, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements WHERE society_id = $1`, societyID).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE society_id = $1` +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, societyID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var announcements []*models.Announcement
	for rows.Next() {
		a := &models.Announcement{}
		err := rows.Scan(
			&a.ID, &a.CreatedAt, &a.SocietyID, &a.CreatedBy, &a.Title, &a.Body,
			&a.Audience, &a.ValidFrom, &a.ValidUntil,
		)
		if err != nil {
			return nil, 0, err
		}
		announcements = append(announcements, a)
	}

	return announcements, count, rows.Err()
}
