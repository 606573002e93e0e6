package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/models"
)

const userColumns = `id, created_at, updated_at, name, email, phone, password_hash, role, is_active, society_id`

func scanUser(row interface{ Scan(dest ...interface{}) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Name, &user.Email,
		&user.Phone, &user.PasswordHash, &user.Role, &user.IsActive, &user.SocietyID,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return user, nil
}

// CreateUser creates a new user. Email is stored lower-cased.
func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.CreatedAt, user.UpdatedAt, user.Name, user.Email,
		user.Phone, user.PasswordHash, user.Role, user.IsActive, user.SocietyID,
	)

	return translateError(err)
}

// GetUser gets a user by ID
func (s *SQLStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.getDB().QueryRowContext(ctx, query, id))
}

// GetUserByEmail gets a user by email
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.getDB().QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// UpdateUser updates a user's profile fields and role
func (s *SQLStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users SET
			updated_at = $2, name = $3, phone = $4, password_hash = $5,
			role = $6, is_active = $7, society_id = $8
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.UpdatedAt, user.Name, user.Phone, user.PasswordHash,
		user.Role, user.IsActive, user.SocietyID,
	)

	return expectOneRow(result, err)
}

// ListUsers lists users
func (s *SQLStore) ListUsers(ctx context.Context, filters UserFilters, limit, offset int) ([]*models.User, int64, error) {
	var where whereBuilder
	if filters.SocietyID != nil {
		where.add("society_id = $%d", *filters.SocietyID)
	}
	if filters.Role != nil {
		where.add("role = $%d", *filters.Role)
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where.String(), where.args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	query := `SELECT ` + userColumns + ` FROM users` + where.String() +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, count, rows.Err()
}
