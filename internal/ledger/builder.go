// Package ledger reconstructs a party's running-balance statement from its
// orders, itemized payments, and adjustments, reconciling the legacy per-order
// amount_paid aggregate with the itemized payment records.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stockbook/backend/internal/domain"
	"stockbook/backend/internal/store"
)

type Builder struct {
	repo store.Repository
}

func NewBuilder(repo store.Repository) *Builder {
	return &Builder{repo: repo}
}

// Build assembles the full ledger for one party. Returns store.ErrNotFound if
// the party does not exist; any store failure aborts the whole build — a
// ledger is never partially computed.
func (b *Builder) Build(ctx context.Context, partyID string, rng domain.DateRange) (*domain.Ledger, error) {
	party, err := b.repo.FindParty(ctx, partyID)
	if err != nil {
		return nil, err
	}

	orders, err := b.repo.FindOrders(ctx, partyID, rng)
	if err != nil {
		return nil, err
	}

	adjustments, err := b.repo.FindAdjustments(ctx, partyID, rng)
	if err != nil {
		return nil, err
	}

	orderLabel := "Sale"
	adjustmentLabel := "Refund"
	if party.Kind == domain.PartySupplier {
		orderLabel = "Purchase"
		adjustmentLabel = "Return"
	}

	entries := make([]domain.LedgerEntry, 0, len(orders)*2+len(adjustments))
	totalOrders := decimal.Zero
	totalAdjustments := decimal.Zero
	itemizedTotal := decimal.Zero
	aggregateTotal := decimal.Zero

	// Composition order is the tie-break for entries sharing a date: orders,
	// then adjustments, then itemized payments, then historical synthetics.
	// The sort below is stable, so this order must not change.
	for _, order := range orders {
		totalOrders = totalOrders.Add(order.TotalAmount)
		aggregateTotal = aggregateTotal.Add(order.AmountPaid)
		entries = append(entries, domain.LedgerEntry{
			ID:          "order-" + order.ID,
			Date:        order.Date,
			Type:        domain.EntryOrder,
			Reference:   order.OrderNumber,
			Description: fmt.Sprintf("%s %s (%s)", orderLabel, order.OrderNumber, order.Status),
			Debit:       order.TotalAmount,
			Credit:      decimal.Zero,
		})
	}

	for _, adj := range adjustments {
		totalAdjustments = totalAdjustments.Add(adj.Amount)
		entries = append(entries, domain.LedgerEntry{
			ID:          "adjustment-" + adj.ID,
			Date:        adj.Date,
			Type:        domain.EntryAdjustment,
			Reference:   adj.OrderNumber,
			Description: fmt.Sprintf("%s %s: %s", adjustmentLabel, adj.Number, adj.Reason),
			Debit:       decimal.Zero,
			Credit:      adj.Amount,
		})
	}

	for _, order := range orders {
		for _, payment := range order.Payments {
			itemizedTotal = itemizedTotal.Add(payment.Amount)
			description := "Payment via " + payment.Method
			if payment.ReferenceNumber != "" {
				description += " (ref " + payment.ReferenceNumber + ")"
			}
			entries = append(entries, domain.LedgerEntry{
				ID:          "payment-" + payment.ID,
				Date:        payment.PaymentDate,
				Type:        domain.EntryPayment,
				Reference:   order.OrderNumber,
				Description: description,
				Debit:       decimal.Zero,
				Credit:      payment.Amount,
			})
		}
	}

	entries = append(entries, synthesizeHistorical(orders)...)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	running := decimal.Zero
	for i := range entries {
		running = running.Add(entries[i].Debit).Sub(entries[i].Credit)
		entries[i].Balance = running
	}

	// Reconciliation policy: take the larger of the two independently tracked
	// sums so the reported total never under-counts money actually received.
	// This can over-count when both mechanisms record the same payment with
	// partially overlapping amounts; that approximation is deliberate.
	totalPaid := decimal.Max(itemizedTotal, aggregateTotal)

	return &domain.Ledger{
		Party: *party,
		Summary: domain.LedgerSummary{
			TotalOrders:       totalOrders,
			TotalPaid:         totalPaid,
			TotalAdjustments:  totalAdjustments,
			CurrentBalance:    totalOrders.Sub(totalPaid).Sub(totalAdjustments),
			TotalTransactions: len(entries),
		},
		Entries:     entries,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// synthesizeHistorical produces one virtual payment entry per order whose
// aggregate amount_paid exceeds the sum of its itemized payments. The entry is
// dated at the order's own date and its id is derived from the order id, so
// repeated builds are stable. Orders fully covered by itemized records
// produce nothing.
func synthesizeHistorical(orders []domain.Order) []domain.LedgerEntry {
	var synthetic []domain.LedgerEntry
	for _, order := range orders {
		if !order.AmountPaid.IsPositive() {
			continue
		}
		covered := decimal.Zero
		for _, payment := range order.Payments {
			covered = covered.Add(payment.Amount)
		}
		uncovered := order.AmountPaid.Sub(covered)
		if !uncovered.IsPositive() {
			continue
		}
		tag := "full"
		if covered.IsPositive() {
			tag = "partial"
		}
		synthetic = append(synthetic, domain.LedgerEntry{
			ID:          "historical-" + order.ID,
			Date:        order.Date,
			Type:        domain.EntryPayment,
			Reference:   order.OrderNumber,
			Description: fmt.Sprintf("Historical payment (%s, no itemized record)", tag),
			Debit:       decimal.Zero,
			Credit:      uncovered,
		})
	}
	return synthetic
}
