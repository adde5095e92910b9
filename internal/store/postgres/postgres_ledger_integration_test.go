package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"stockbook/backend/internal/domain"
	"stockbook/backend/internal/store"
)

func TestLedgerQueriesAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("STOCKBOOK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set STOCKBOOK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	partyID := fmt.Sprintf("cust-it-%d", stamp)
	orderID := fmt.Sprintf("so-it-%d", stamp)
	paymentID := fmt.Sprintf("pay-it-%d", stamp)
	adjustmentID := fmt.Sprintf("adj-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM adjustments WHERE id = $1`, adjustmentID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, paymentID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM parties WHERE id = $1`, partyID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO parties (id, kind, number, name)
		VALUES ($1, 'customer', 'CUST-IT', 'Integration Test Customer')
	`, partyID); err != nil {
		t.Fatalf("insert party: %v", err)
	}

	orderDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, party_id, order_number, order_date, total_amount, amount_paid, status)
		VALUES ($1, $2, 'SO-IT', $3, 500.00, 500.00, 'completed')
	`, orderID, partyID, orderDate); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, amount, method, reference_number, payment_date)
		VALUES ($1, $2, 300.00, 'bank_transfer', 'TRX-IT', $3)
	`, paymentID, orderID, orderDate.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("insert payment: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO adjustments (id, order_id, number, amount, adjustment_date, reason)
		VALUES ($1, $2, 'RF-IT', 50.00, $3, 'damaged item')
	`, adjustmentID, orderID, orderDate.AddDate(0, 0, 5)); err != nil {
		t.Fatalf("insert adjustment: %v", err)
	}

	party, err := s.FindParty(ctx, partyID)
	if err != nil {
		t.Fatalf("find party: %v", err)
	}
	if party.Kind != domain.PartyCustomer {
		t.Fatalf("party kind: %s", party.Kind)
	}

	orders, err := s.FindOrders(ctx, partyID, domain.DateRange{})
	if err != nil {
		t.Fatalf("find orders: %v", err)
	}
	if len(orders) != 1 || len(orders[0].Payments) != 1 {
		t.Fatalf("orders: %+v", orders)
	}
	if orders[0].TotalAmount.StringFixed(2) != "500.00" {
		t.Fatalf("total amount: %s", orders[0].TotalAmount.StringFixed(2))
	}

	// Range covering only the adjustment date: order filtered, adjustment kept.
	start := orderDate.AddDate(0, 0, 4)
	end := orderDate.AddDate(0, 0, 6)
	rng := domain.DateRange{Start: &start, End: &end}

	orders, err = s.FindOrders(ctx, partyID, rng)
	if err != nil {
		t.Fatalf("find orders ranged: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders in range, got %d", len(orders))
	}

	adjustments, err := s.FindAdjustments(ctx, partyID, rng)
	if err != nil {
		t.Fatalf("find adjustments: %v", err)
	}
	if len(adjustments) != 1 || adjustments[0].Amount.StringFixed(2) != "50.00" {
		t.Fatalf("adjustments: %+v", adjustments)
	}
	if adjustments[0].OrderNumber != "SO-IT" {
		t.Fatalf("adjustment order number: %s", adjustments[0].OrderNumber)
	}

	if _, err := s.FindParty(ctx, "no-such-party"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
