package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillType selects rent or maintenance
type BillType string

const (
	BillTypeRent        BillType = "rent"
	BillTypeMaintenance BillType = "maintenance"
)

// Valid reports whether t is a known bill type
func (t BillType) Valid() bool {
	return t == BillTypeRent || t == BillTypeMaintenance
}

// BillStatus is the payment state of a bill
type BillStatus string

const (
	BillStatusUnpaid  BillStatus = "unpaid"
	BillStatusPaid    BillStatus = "paid"
	BillStatusOverdue BillStatus = "overdue"
)

// Bill is one rent or maintenance charge for a flat and billing month
type Bill struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Type      BillType   `json:"type" db:"-"`
	FlatID    uuid.UUID  `json:"flatId" db:"flat_id"`
	SocietyID uuid.UUID  `json:"societyId" db:"society_id"`
	BilledTo  *uuid.UUID `json:"billedTo,omitempty" db:"billed_to"`

	BillingMonth BillingMonth    `json:"billingMonth" db:"billing_month"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	DueDate      time.Time       `json:"dueDate" db:"due_date"`

	Status        BillStatus `json:"status" db:"status"`
	PaidOn        *time.Time `json:"paidOn,omitempty" db:"paid_on"`
	PaidBy        *uuid.UUID `json:"paidBy,omitempty" db:"paid_by"`
	PaymentMethod string     `json:"paymentMethod,omitempty" db:"payment_method"`
	TransactionID string     `json:"transactionId,omitempty" db:"transaction_id"`
}

// PaymentDetails is what a payer reports when settling a bill
type PaymentDetails struct {
	Method        string `json:"method"`
	TransactionID string `json:"transactionId"`
}
