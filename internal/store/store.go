package store

import (
	"context"
	"errors"
	"time"

	"stockbook/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the read-side contract the ledger engine consumes. Any store
// implementing these queries suffices; the ledger itself writes nothing.
type Repository interface {
	FindParty(ctx context.Context, id string) (*domain.Party, error)
	ListParties(ctx context.Context, kind domain.PartyKind, search string, limit int) ([]domain.Party, error)

	// FindOrders returns the party's orders ascending by order date, each with
	// its itemized payments ascending by payment date. The range filters on
	// the order date.
	FindOrders(ctx context.Context, partyID string, rng domain.DateRange) ([]domain.Order, error)

	// FindAdjustments returns adjustments against the party's orders ascending
	// by adjustment date. The range filters on the adjustment's own date, not
	// the underlying order's.
	FindAdjustments(ctx context.Context, partyID string, rng domain.DateRange) ([]domain.Adjustment, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
