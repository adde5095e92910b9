// Package memory is an in-memory Repository used for development mode and
// tests. It is seeded with a small demo dataset so the service runs with no
// infrastructure at all.
package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"stockbook/backend/internal/domain"
	"stockbook/backend/internal/store"
)

type Store struct {
	mu                 sync.RWMutex
	partiesByID        map[string]domain.Party
	ordersByID         map[string]domain.Order
	ordersByParty      map[string][]string
	adjustmentsByParty map[string][]domain.Adjustment
	auditLogs          []domain.AuditLog
	usersByUsername    map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		partiesByID:        make(map[string]domain.Party),
		ordersByID:         make(map[string]domain.Order),
		ordersByParty:      make(map[string][]string),
		adjustmentsByParty: make(map[string][]domain.Adjustment),
		usersByUsername:    make(map[string]domain.UserAccount),
	}
}

// NewSeeded builds a store pre-loaded with demo parties, orders with mixed
// itemized/aggregate payment coverage, adjustments, and dev user accounts.
func NewSeeded() *Store {
	s := New()

	for username, user := range seedUsers() {
		s.usersByUsername[username] = user
	}

	s.PutParty(domain.Party{
		ID: "cust-001", Kind: domain.PartyCustomer, Number: "CUST-001",
		Name: "PT Maju Jaya", Email: "finance@majujaya.example", Phone: "+62-811-000-111",
		Address: "Jl. Sudirman 10, Jakarta",
	})
	s.PutParty(domain.Party{
		ID: "cust-002", Kind: domain.PartyCustomer, Number: "CUST-002",
		Name: "Toko Berkah", Phone: "+62-812-222-333",
	})
	s.PutParty(domain.Party{
		ID: "sup-001", Kind: domain.PartySupplier, Number: "SUP-001",
		Name: "CV Sumber Pangan", Email: "admin@sumberpangan.example",
	})

	// cust-001: fully paid order where the aggregate covers more than the
	// itemized records, so a historical payment is synthesized.
	s.PutOrder(domain.Order{
		ID: "so-1001", PartyID: "cust-001", OrderNumber: "SO-1001",
		Date:        date(2024, 1, 10),
		TotalAmount: dec("500.00"), AmountPaid: dec("500.00"), Status: "completed",
		Payments: []domain.Payment{
			{ID: "pay-001", OrderID: "so-1001", Amount: dec("300.00"), Method: "bank_transfer",
				ReferenceNumber: "TRX-8821", PaymentDate: date(2024, 1, 12)},
		},
	})
	s.PutOrder(domain.Order{
		ID: "so-1002", PartyID: "cust-001", OrderNumber: "SO-1002",
		Date:        date(2024, 2, 5),
		TotalAmount: dec("250.00"), AmountPaid: dec("100.00"), Status: "partial",
		Payments: []domain.Payment{
			{ID: "pay-002", OrderID: "so-1002", Amount: dec("100.00"), Method: "cash",
				PaymentDate: date(2024, 2, 6)},
		},
	})
	s.PutAdjustment(domain.Adjustment{
		ID: "adj-001", OrderID: "so-1001", Number: "RF-2024-001",
		Amount: dec("50.00"), Date: date(2024, 1, 15), Reason: "damaged item",
	})

	// cust-002: open order, nothing paid yet.
	s.PutOrder(domain.Order{
		ID: "so-2001", PartyID: "cust-002", OrderNumber: "SO-2001",
		Date:        date(2024, 3, 1),
		TotalAmount: dec("120.50"), AmountPaid: decimal.Zero, Status: "pending",
	})

	// sup-001: purchase with an itemized payment only (no aggregate recorded).
	s.PutOrder(domain.Order{
		ID: "po-3001", PartyID: "sup-001", OrderNumber: "PO-3001",
		Date:        date(2024, 1, 20),
		TotalAmount: dec("800.00"), AmountPaid: decimal.Zero, Status: "received",
		Payments: []domain.Payment{
			{ID: "pay-101", OrderID: "po-3001", Amount: dec("400.00"), Method: "bank_transfer",
				ReferenceNumber: "TRX-9102", PaymentDate: date(2024, 1, 25)},
		},
	})

	return s
}

// seedUsers builds the initial dev/demo user accounts. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; hardcoded defaults are used
// with a warning when unset. Production deployments use PostgreSQL accounts.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("[memory-store] bad seed amount %q: %v", s, err)
	}
	return d
}

// PutParty inserts or replaces a party. Used by the seeder and by tests.
func (s *Store) PutParty(party domain.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partiesByID[party.ID] = party
}

// PutOrder inserts or replaces an order with its payments. Payments are kept
// sorted ascending by payment date, matching the Repository contract.
func (s *Store) PutOrder(order domain.Order) {
	payments := make([]domain.Payment, len(order.Payments))
	copy(payments, order.Payments)
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].PaymentDate.Before(payments[j].PaymentDate)
	})
	order.Payments = payments

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ordersByID[order.ID]; !exists {
		s.ordersByParty[order.PartyID] = append(s.ordersByParty[order.PartyID], order.ID)
	}
	s.ordersByID[order.ID] = order
}

// PutAdjustment inserts an adjustment, resolving its party and order number
// from the referenced order. Adjustments against unknown orders are dropped.
func (s *Store) PutAdjustment(adj domain.Adjustment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.ordersByID[adj.OrderID]
	if !ok {
		log.Printf("[memory-store] WARN: adjustment %s references unknown order %s", adj.ID, adj.OrderID)
		return
	}
	adj.OrderNumber = order.OrderNumber
	s.adjustmentsByParty[order.PartyID] = append(s.adjustmentsByParty[order.PartyID], adj)
}

func (s *Store) FindParty(_ context.Context, id string) (*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	party, ok := s.partiesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := party
	return &found, nil
}

func (s *Store) ListParties(_ context.Context, kind domain.PartyKind, search string, limit int) ([]domain.Party, error) {
	if limit < 1 {
		limit = 100
	}
	search = strings.ToLower(strings.TrimSpace(search))

	s.mu.RLock()
	defer s.mu.RUnlock()

	parties := make([]domain.Party, 0, len(s.partiesByID))
	for _, party := range s.partiesByID {
		if kind != "" && party.Kind != kind {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(party.Name), search) &&
			!strings.Contains(strings.ToLower(party.Number), search) {
			continue
		}
		parties = append(parties, party)
	}
	sort.Slice(parties, func(i, j int) bool { return parties[i].Name < parties[j].Name })
	if len(parties) > limit {
		parties = parties[:limit]
	}
	return parties, nil
}

func (s *Store) FindOrders(_ context.Context, partyID string, rng domain.DateRange) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.ordersByParty[partyID]))
	for _, orderID := range s.ordersByParty[partyID] {
		order := s.ordersByID[orderID]
		if !rng.Contains(order.Date) {
			continue
		}
		payments := make([]domain.Payment, len(order.Payments))
		copy(payments, order.Payments)
		order.Payments = payments
		orders = append(orders, order)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].Date.Before(orders[j].Date) })
	return orders, nil
}

func (s *Store) FindAdjustments(_ context.Context, partyID string, rng domain.DateRange) ([]domain.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adjustments := make([]domain.Adjustment, 0, len(s.adjustmentsByParty[partyID]))
	for _, adj := range s.adjustmentsByParty[partyID] {
		if !rng.Contains(adj.Date) {
			continue
		}
		adjustments = append(adjustments, adj)
	}
	sort.SliceStable(adjustments, func(i, j int) bool { return adjustments[i].Date.Before(adjustments[j].Date) })
	return adjustments, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	user.Username = username

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
