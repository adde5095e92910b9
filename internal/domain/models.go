package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PartyKind string

const (
	PartyCustomer PartyKind = "customer"
	PartySupplier PartyKind = "supplier"
)

// Party is a customer or supplier, the subject of a ledger. Read-only for
// ledger purposes; the write path lives in the main ERP backend.
type Party struct {
	ID      string    `json:"id"`
	Kind    PartyKind `json:"kind"`
	Number  string    `json:"number"`
	Name    string    `json:"name"`
	Email   string    `json:"email,omitempty"`
	Phone   string    `json:"phone,omitempty"`
	Address string    `json:"address,omitempty"`
}

// Order is a sale (customer) or purchase (supplier). AmountPaid is the legacy
// per-order aggregate; Payments are the itemized records. The two are expected
// to agree but may diverge for data imported before itemized tracking existed.
type Order struct {
	ID          string          `json:"id"`
	PartyID     string          `json:"party_id"`
	OrderNumber string          `json:"order_number"`
	Date        time.Time       `json:"date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Status      string          `json:"status"`
	Payments    []Payment       `json:"payments,omitempty"` // ascending by PaymentDate
}

type Payment struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	PaymentDate     time.Time       `json:"payment_date"`
	Notes           string          `json:"notes,omitempty"`
}

// Adjustment is a refund (customer) or return credit (supplier). Its own date
// is the ledger filter key, which may legitimately fall outside the order's.
type Adjustment struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Number      string          `json:"number"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Reason      string          `json:"reason"`
}

type EntryType string

const (
	EntryOrder      EntryType = "ORDER"
	EntryPayment    EntryType = "PAYMENT"
	EntryAdjustment EntryType = "ADJUSTMENT"
)

// LedgerEntry is derived, never persisted. Exactly one of Debit/Credit is
// nonzero; Balance is the running total after this entry.
type LedgerEntry struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Type        EntryType       `json:"type"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

type LedgerSummary struct {
	TotalOrders       decimal.Decimal `json:"total_orders"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	TotalAdjustments  decimal.Decimal `json:"total_adjustments"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	TotalTransactions int             `json:"total_transactions"`
}

type Ledger struct {
	Party       Party         `json:"party"`
	Summary     LedgerSummary `json:"summary"`
	Entries     []LedgerEntry `json:"entries"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// DateRange is an inclusive filter on event dates. Either bound may be nil.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

type PartyListResponse struct {
	Parties []Party `json:"parties"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
