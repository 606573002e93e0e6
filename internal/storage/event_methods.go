package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/models"
)

// CreateActivityLog creates an activity log entry
func (s *SQLStore) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if entry.Level == "" {
		entry.Level = models.ActivityLevelInfo
	}

	query := `
		INSERT INTO activity_logs (
			id, created_at, society_id, flat_id, actor_id,
			type, level, description, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		entry.ID, entry.CreatedAt, entry.SocietyID, entry.FlatID, entry.ActorID,
		entry.Type, entry.Level, entry.Description, entry.Details,
	)

	return translateError(err)
}

// ListActivityLogs lists activity logs with filters, newest first
func (s *SQLStore) ListActivityLogs(ctx context.Context, filters ActivityFilters, limit, offset int) ([]*models.ActivityLog, int64, error) {
	var where whereBuilder

	if filters.SocietyID != nil {
		where.add("society_id = $%d", *filters.SocietyID)
	}

	if filters.FlatID != nil {
		where.add("flat_id = $%d", *filters.FlatID)
	}

	if filters.Type != nil {
		where.add("type = $%d", *filters.Type)
	}

	if filters.StartTime != nil {
		where.add("created_at >= $%d", filters.StartTime.UTC())
	}

	if filters.EndTime != nil {
		where.add("created_at <= $%d", filters.EndTime.UTC())
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_logs"+where.String(), where.args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get entries
	query := `
		SELECT id, created_at, society_id, flat_id, actor_id,
			type, level, description, details
		FROM activity_logs` + where.String() +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT %d OFFSET %d", limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*models.ActivityLog
	for rows.Next() {
		entry := &models.ActivityLog{}
		err := rows.Scan(
			&entry.ID, &entry.CreatedAt, &entry.SocietyID, &entry.FlatID, &entry.ActorID,
			&entry.Type, &entry.Level, &entry.Description, &entry.Details,
		)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	return entries, count, rows.Err()
}
