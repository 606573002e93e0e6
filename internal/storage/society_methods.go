package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/models"
)

// ========== Society Methods ==========

const societyColumns = `id, created_at, updated_at, admin_id, name, registration_number,
	address, city, maintenance_frequency, maintenance_amount`

func scanSociety(row interface{ Scan(dest ...interface{}) error }) (*models.Society, error) {
	society := &models.Society{}
	err := row.Scan(
		&society.ID, &society.CreatedAt, &society.UpdatedAt, &society.AdminID, &society.Name,
		&society.RegistrationNumber, &society.Address, &society.City,
		&society.MaintenancePolicy.Frequency, &society.MaintenancePolicy.AmountPerFlat,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return society, nil
}

// CreateSociety creates a new society
func (s *SQLStore) CreateSociety(ctx context.Context, society *models.Society) error {
	if society.ID == uuid.Nil {
		society.ID = uuid.New()
	}

	now := time.Now().UTC()
	society.CreatedAt = now
	society.UpdatedAt = now
	if society.MaintenancePolicy.Frequency == "" {
		society.MaintenancePolicy.Frequency = models.FrequencyMonthly
	}

	query := `
		INSERT INTO societies (` + societyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		society.ID, society.CreatedAt, society.UpdatedAt, society.AdminID, society.Name,
		society.RegistrationNumber, society.Address, society.City,
		society.MaintenancePolicy.Frequency, society.MaintenancePolicy.AmountPerFlat,
	)

	return translateError(err)
}

// GetSociety gets a society by ID
func (s *SQLStore) GetSociety(ctx context.Context, id uuid.UUID) (*models.Society, error) {
	query := `SELECT ` + societyColumns + ` FROM societies WHERE id = $1`
	return scanSociety(s.getDB().QueryRowContext(ctx, query, id))
}

// UpdateSociety updates a society
func (s *SQLStore) UpdateSociety(ctx context.Context, society *models.Society) error {
	society.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE societies SET
			updated_at = $2, name = $3, registration_number = $4, address = $5,
			city = $6, maintenance_frequency = $7, maintenance_amount = $8
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		society.ID, society.UpdatedAt, society.Name, society.RegistrationNumber,
		society.Address, society.City, society.MaintenancePolicy.Frequency,
		society.MaintenancePolicy.AmountPerFlat,
	)

	return expectOneRow(result, err)
}

// DeleteSociety deletes a society; buildings, flats and bills cascade
func (s *SQLStore) DeleteSociety(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM societies WHERE id = $1", id)
	return expectOneRow(result, err)
}

// ListSocieties lists societies, optionally only those of one admin
func (s *SQLStore) ListSocieties(ctx context.Context, adminID *uuid.UUID, limit, offset int) ([]*models.Society, int64, error) {
	var where whereBuilder
	if adminID != nil {
		where.add("admin_id = $%d", *adminID)
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM societies"+where.String(), where.args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	query := `SELECT ` + societyColumns + ` FROM societies` + where.String() +
		fmt.Sprintf(` ORDER BY created_at, id LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var societies []*models.Society
	for rows.Next() {
		society, err := scanSociety(rows)
		if err != nil {
			return nil, 0, err
		}
		societies = append(societies, society)
	}

	return societies, count, rows.Err()
}

// ========== Building Methods ==========

const buildingColumns = `id, created_at, updated_at, society_id, name, total_floors, total_flats`

func scanBuilding(row interface{ Scan(dest ...interface{}) error }) (*models.Building, error) {
	b := &models.Building{}
	err := row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt, &b.SocietyID, &b.Name, &b.TotalFloors, &b.TotalFlats)
	if err != nil {
		return nil, translateError(err)
	}
	return b, nil
}

// CreateBuilding creates a new building
func (s *SQLStore) CreateBuilding(ctx context.Context, building *models.Building) error {
	if building.ID == uuid.Nil {
		building.ID = uuid.New()
	}

	now := time.Now().UTC()
	building.CreatedAt = now
	building.UpdatedAt = now

	query := `
		INSERT INTO buildings (` + buildingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.getDB().ExecContext(ctx, query,
		building.ID, building.CreatedAt, building.UpdatedAt, building.SocietyID,
		building.Name, building.TotalFloors, building.TotalFlats,
	)

	return translateError(err)
}

// GetBuilding gets a building by ID
func (s *SQLStore) GetBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error) {
	query := `SELECT ` + buildingColumns + ` FROM buildings WHERE id = $1`
	return scanBuilding(s.getDB().QueryRowContext(ctx, query, id))
}

// ListBuildings lists the buildings of a society
func (s *SQLStore) ListBuildings(ctx context.Context, societyID uuid.UUID) ([]*models.Building, error) {
	query := `SELECT ` + buildingColumns + ` FROM buildings WHERE society_id = $1 ORDER BY name, id`

	rows, err := s.getDB().QueryContext(ctx, query, societyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buildings []*models.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}

	return buildings, rows.Err()
}
