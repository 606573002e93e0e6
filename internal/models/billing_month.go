package models

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"time"
)

var billingMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// BillingMonth is a calendar month token in YYYY-MM form
type BillingMonth struct {
	year  int
	month time.Month
}

// ParseBillingMonth parses a YYYY-MM token
func ParseBillingMonth(s string) (BillingMonth, error) {
	if !billingMonthPattern.MatchString(s) {
		return BillingMonth{}, fmt.Errorf("billing month %q must match YYYY-MM", s)
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return BillingMonth{}, fmt.Errorf("billing month %q: %w", s, err)
	}
	return BillingMonth{year: t.Year(), month: t.Month()}, nil
}

// MonthOf returns the billing month containing t
func MonthOf(t time.Time) BillingMonth {
	t = t.UTC()
	return BillingMonth{year: t.Year(), month: t.Month()}
}

// IsZero reports whether m is unset
func (m BillingMonth) IsZero() bool {
	return m.year == 0
}

// Month returns the calendar month
func (m BillingMonth) Month() time.Month {
	return m.month
}

// Start returns midnight UTC on the first day of the month
func (m BillingMonth) Start() time.Time {
	return time.Date(m.year, m.month, 1, 0, 0, 0, 0, time.UTC)
}

// LastDay returns midnight UTC on the last day of the month
func (m BillingMonth) LastDay() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

func (m BillingMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.year, int(m.month))
}

// MarshalText implements encoding.TextMarshaler
func (m BillingMonth) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *BillingMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseBillingMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer
func (m BillingMonth) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner
func (m *BillingMonth) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		return m.UnmarshalText([]byte(v))
	case []byte:
		return m.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into BillingMonth", value)
	}
}
