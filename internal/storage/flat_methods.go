package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyhub/society-server/internal/models"
)

const flatColumns = `id, created_at, updated_at, building_id, society_id, number, floor,
	rent_amount, owner_id, tenant_id, occupancy_status, is_rented`

// flatInsertBatch keeps multi-row inserts well under driver parameter limits
const flatInsertBatch = 200

func scanFlat(row interface{ Scan(dest ...interface{}) error }) (*models.Flat, error) {
	f := &models.Flat{}
	err := row.Scan(
		&f.ID, &f.CreatedAt, &f.UpdatedAt, &f.BuildingID, &f.SocietyID, &f.Number, &f.Floor,
		&f.RentAmount, &f.OwnerID, &f.TenantID, &f.OccupancyStatus, &f.IsRented,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return f, nil
}

// CreateFlats inserts flats in batches. Occupancy fields are derived here so
// new rows can never disagree with their owner and tenant.
func (s *SQLStore) CreateFlats(ctx context.Context, flats []*models.Flat) error {
	now := time.Now().UTC()

	for start := 0; start < len(flats); start += flatInsertBatch {
		end := start + flatInsertBatch
		if end > len(flats) {
			end = len(flats)
		}

		var (
			values []string
			args   []interface{}
		)
		for _, f := range flats[start:end] {
			if f.ID == uuid.Nil {
				f.ID = uuid.New()
			}
			f.CreatedAt = now
			f.UpdatedAt = now
			f.Recompute()

			n := len(args)
			values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10, n+11, n+12))
			args = append(args,
				f.ID, f.CreatedAt, f.UpdatedAt, f.BuildingID, f.SocietyID, f.Number, f.Floor,
				f.RentAmount, f.OwnerID, f.TenantID, f.OccupancyStatus, f.IsRented,
			)
		}

		query := `INSERT INTO flats (` + flatColumns + `) VALUES ` + strings.Join(values, ", ")
		if _, err := s.getDB().ExecContext(ctx, query, args...); err != nil {
			return translateError(err)
		}
	}

	return nil
}

// CountFlats counts the flats of a building
func (s *SQLStore) CountFlats(ctx context.Context, buildingID uuid.UUID) (int, error) {
	var count int
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM flats WHERE building_id = $1", buildingID).Scan(&count)
	return count, err
}

// GetFlat gets a flat by ID. Inside a transaction the row stays locked so
// occupancy read-modify-write cycles on one flat run one at a time.
func (s *SQLStore) GetFlat(ctx context.Context, id uuid.UUID) (*models.Flat, error) {
	query := `SELECT ` + flatColumns + ` FROM flats WHERE id = $1` + s.rowLock()
	return scanFlat(s.getDB().QueryRowContext(ctx, query, id))
}

// GetFlatDetail gets a flat with building, society, owner and tenant resolved
func (s *SQLStore) GetFlatDetail(ctx context.Context, id uuid.UUID) (*models.FlatDetail, error) {
	flat, err := s.GetFlat(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.FlatDetail{Flat: *flat}

	if detail.Building, err = s.GetBuilding(ctx, flat.BuildingID); err != nil {
		return nil, fmt.Errorf("building %s: %w", flat.BuildingID, err)
	}
	if detail.Society, err = s.GetSociety(ctx, flat.SocietyID); err != nil {
		return nil, fmt.Errorf("society %s: %w", flat.SocietyID, err)
	}
	if flat.OwnerID != nil {
		if detail.Owner, err = s.GetUser(ctx, *flat.OwnerID); err != nil {
			return nil, fmt.Errorf("owner %s: %w", *flat.OwnerID, err)
		}
	}
	if flat.TenantID != nil {
		if detail.Tenant, err = s.GetUser(ctx, *flat.TenantID); err != nil {
			return nil, fmt.Errorf("tenant %s: %w", *flat.TenantID, err)
		}
	}

	return detail, nil
}

// UpdateFlatOccupancy writes owner, tenant and the derived status fields
func (s *SQLStore) UpdateFlatOccupancy(ctx context.Context, flat *models.Flat) error {
	flat.UpdatedAt = time.Now().UTC()
	flat.Recompute()

	query := `
		UPDATE flats SET
			updated_at = $2, owner_id = $3, tenant_id = $4,
			occupancy_status = $5, is_rented = $6
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		flat.ID, flat.UpdatedAt, flat.OwnerID, flat.TenantID,
		flat.OccupancyStatus, flat.IsRented,
	)

	return expectOneRow(result, err)
}

// UpdateFlatRent sets the monthly rent of a flat
func (s *SQLStore) UpdateFlatRent(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE flats SET updated_at = $2, rent_amount = $3 WHERE id = $1",
		id, time.Now().UTC(), amount,
	)
	return expectOneRow(result, err)
}

func flatWhere(filters FlatFilters) *whereBuilder {
	where := &whereBuilder{}
	addFlatConds(where, filters)
	return where
}

func addFlatConds(where *whereBuilder, filters FlatFilters) {
	if filters.SocietyID != nil {
		where.add("society_id = $%d", *filters.SocietyID)
	}
	if filters.AdminID != nil {
		where.add("society_id IN (SELECT id FROM societies WHERE admin_id = $%d)", *filters.AdminID)
	}
	if filters.BuildingID != nil {
		where.add("building_id = $%d", *filters.BuildingID)
	}
	if filters.OwnerID != nil {
		where.add("owner_id = $%d", *filters.OwnerID)
	}
	if filters.TenantID != nil {
		where.add("tenant_id = $%d", *filters.TenantID)
	}
	if filters.RentedOnly {
		where.raw("is_rented = TRUE")
	}
	if filters.OwnedOnly {
		where.raw("owner_id IS NOT NULL")
	}
}

// ListFlats lists flats matching filters
func (s *SQLStore) ListFlats(ctx context.Context, filters FlatFilters) ([]*models.Flat, error) {
	where := flatWhere(filters)
	query := `SELECT ` + flatColumns + ` FROM flats` + where.String() + ` ORDER BY building_id, floor, number`

	rows, err := s.getDB().QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flats []*models.Flat
	for rows.Next() {
		f, err := scanFlat(rows)
		if err != nil {
			return nil, err
		}
		flats = append(flats, f)
	}

	return flats, rows.Err()
}
