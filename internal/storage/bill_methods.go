package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/societyhub/society-server/internal/models"
)

const billColumns = `id, created_at, updated_at, flat_id, society_id, billed_to, billing_month,
	amount, due_date, status, paid_on, paid_by, payment_method, transaction_id`

const billInsertBatch = 200

// billTable returns the table holding bills of the given type
func billTable(t models.BillType) (string, error) {
	switch t {
	case models.BillTypeRent:
		return "rents", nil
	case models.BillTypeMaintenance:
		return "maintenances", nil
	default:
		return "", fmt.Errorf("unknown bill type %q", t)
	}
}

func scanBill(row interface{ Scan(dest ...interface{}) error }, t models.BillType) (*models.Bill, error) {
	b := &models.Bill{Type: t}
	err := row.Scan(
		&b.ID, &b.CreatedAt, &b.UpdatedAt, &b.FlatID, &b.SocietyID, &b.BilledTo, &b.BillingMonth,
		&b.Amount, &b.DueDate, &b.Status, &b.PaidOn, &b.PaidBy, &b.PaymentMethod, &b.TransactionID,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return b, nil
}

// InsertBills inserts bills, skipping any (flat, month) pair that already
// has a bill. It returns the number of rows actually inserted.
func (s *SQLStore) InsertBills(ctx context.Context, billType models.BillType, bills []*models.Bill) (int64, error) {
	table, err := billTable(billType)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var inserted int64

	for start := 0; start < len(bills); start += billInsertBatch {
		end := start + billInsertBatch
		if end > len(bills) {
			end = len(bills)
		}

		var (
			values []string
			args   []interface{}
		)
		for _, b := range bills[start:end] {
			if b.ID == uuid.Nil {
				b.ID = uuid.New()
			}
			b.Type = billType
			b.CreatedAt = now
			b.UpdatedAt = now
			if b.Status == "" {
				b.Status = models.BillStatusUnpaid
			}

			n := len(args)
			values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10, n+11, n+12, n+13, n+14))
			args = append(args,
				b.ID, b.CreatedAt, b.UpdatedAt, b.FlatID, b.SocietyID, b.BilledTo, b.BillingMonth,
				b.Amount, b.DueDate, b.Status, b.PaidOn, b.PaidBy, b.PaymentMethod, b.TransactionID,
			)
		}

		query := `INSERT INTO ` + table + ` (` + billColumns + `) VALUES ` + strings.Join(values, ", ") +
			` ON CONFLICT (flat_id, billing_month) DO NOTHING`

		result, err := s.getDB().ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, translateError(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += n
	}

	return inserted, nil
}

// BilledFlatIDs returns the flats matching filters that already have a bill
// for month
func (s *SQLStore) BilledFlatIDs(ctx context.Context, billType models.BillType, month models.BillingMonth, filters FlatFilters) (map[uuid.UUID]bool, error) {
	table, err := billTable(billType)
	if err != nil {
		return nil, err
	}

	where := &whereBuilder{}
	where.add("billing_month = $%d", month)

	sub := &whereBuilder{args: where.args}
	addFlatConds(sub, filters)
	where.args = sub.args
	if len(sub.conds) > 0 {
		where.raw("flat_id IN (SELECT id FROM flats" + sub.String() + ")")
	}

	rows, err := s.getDB().QueryContext(ctx, `SELECT flat_id FROM `+table+where.String(), where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	billed := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		billed[id] = true
	}

	return billed, rows.Err()
}

// GetBill gets a bill by ID
func (s *SQLStore) GetBill(ctx context.Context, billType models.BillType, id uuid.UUID) (*models.Bill, error) {
	table, err := billTable(billType)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + billColumns + ` FROM ` + table + ` WHERE id = $1`
	return scanBill(s.getDB().QueryRowContext(ctx, query, id), billType)
}

// MarkBillPaid records a payment. It only matches a bill that is not yet
// paid and returns ErrStaleState otherwise.
func (s *SQLStore) MarkBillPaid(ctx context.Context, bill *models.Bill) error {
	table, err := billTable(bill.Type)
	if err != nil {
		return err
	}

	bill.UpdatedAt = time.Now().UTC()
	bill.Status = models.BillStatusPaid

	query := `
		UPDATE ` + table + ` SET
			updated_at = $2, status = $3, paid_on = $4, paid_by = $5,
			payment_method = $6, transaction_id = $7
		WHERE id = $1 AND status <> 'paid'`

	result, err := s.getDB().ExecContext(ctx, query,
		bill.ID, bill.UpdatedAt, bill.Status, bill.PaidOn, bill.PaidBy,
		bill.PaymentMethod, bill.TransactionID,
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

// MarkRentOverdue flags unpaid rent whose due date is before asOf
func (s *SQLStore) MarkRentOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := s.getDB().ExecContext(ctx,
		`UPDATE rents SET status = 'overdue', updated_at = $1 WHERE status = 'unpaid' AND due_date < $2`,
		time.Now().UTC(), asOf.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListBills lists bills of one type
func (s *SQLStore) ListBills(ctx context.Context, billType models.BillType, filters BillFilters, limit, offset int) ([]*models.Bill, int64, error) {
	table, err := billTable(billType)
	if err != nil {
		return nil, 0, err
	}

	var where whereBuilder
	if filters.SocietyID != nil {
		where.add("society_id = $%d", *filters.SocietyID)
	}
	if filters.AdminID != nil {
		where.add("society_id IN (SELECT id FROM societies WHERE admin_id = $%d)", *filters.AdminID)
	}
	if filters.FlatID != nil {
		where.add("flat_id = $%d", *filters.FlatID)
	}
	if filters.Month != nil {
		where.add("billing_month = $%d", *filters.Month)
	}
	if filters.Status != nil {
		where.add("status = $%d", *filters.Status)
	}

	// Get count
	var count int64
	err = s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+where.String(), where.args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	query := `SELECT ` + billColumns + ` FROM ` + table + where.String() +
		fmt.Sprintf(` ORDER BY billing_month DESC, flat_id LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bills []*models.Bill
	for rows.Next() {
		b, err := scanBill(rows, billType)
		if err != nil {
			return nil, 0, err
		}
		bills = append(bills, b)
	}

	return bills, count, rows.Err()
}
