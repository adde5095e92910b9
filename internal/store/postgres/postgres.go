package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stockbook/backend/internal/domain"
	"stockbook/backend/internal/store"
	"stockbook/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindParty(ctx context.Context, id string) (*domain.Party, error) {
	var party domain.Party
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, number, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,'')
		FROM parties
		WHERE id = $1
	`, id).Scan(&party.ID, &party.Kind, &party.Number, &party.Name, &party.Email, &party.Phone, &party.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &party, nil
}

func (s *Store) ListParties(ctx context.Context, kind domain.PartyKind, search string, limit int) ([]domain.Party, error) {
	if limit < 1 {
		limit = 100
	}
	search = strings.TrimSpace(search)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, number, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,'')
		FROM parties
		WHERE ($1 = '' OR kind = $1)
			AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR number ILIKE '%' || $2 || '%')
		ORDER BY name ASC
		LIMIT $3
	`, string(kind), search, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parties := make([]domain.Party, 0, limit)
	for rows.Next() {
		var party domain.Party
		if err := rows.Scan(&party.ID, &party.Kind, &party.Number, &party.Name, &party.Email, &party.Phone, &party.Address); err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parties, nil
}

func (s *Store) FindOrders(ctx context.Context, partyID string, rng domain.DateRange) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, party_id, order_number, order_date, total_amount, amount_paid, status
		FROM orders
		WHERE party_id = $1
			AND ($2::timestamptz IS NULL OR order_date >= $2)
			AND ($3::timestamptz IS NULL OR order_date <= $3)
		ORDER BY order_date ASC
	`, partyID, rng.Start, rng.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 32)
	orderIDs := make([]string, 0, 32)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.PartyID, &order.OrderNumber, &order.Date, &order.TotalAmount, &order.AmountPaid, &order.Status); err != nil {
			return nil, err
		}
		order.Date = order.Date.UTC()
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	paymentsByOrder, err := s.findPayments(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Payments = paymentsByOrder[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) findPayments(ctx context.Context, orderIDs []string) (map[string][]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, amount, method, COALESCE(reference_number,''), payment_date, COALESCE(notes,'')
		FROM payments
		WHERE order_id = ANY($1)
		ORDER BY payment_date ASC
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.Payment, len(orderIDs))
	for rows.Next() {
		var payment domain.Payment
		if err := rows.Scan(&payment.ID, &payment.OrderID, &payment.Amount, &payment.Method, &payment.ReferenceNumber, &payment.PaymentDate, &payment.Notes); err != nil {
			return nil, err
		}
		payment.PaymentDate = payment.PaymentDate.UTC()
		byOrder[payment.OrderID] = append(byOrder[payment.OrderID], payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return byOrder, nil
}

func (s *Store) FindAdjustments(ctx context.Context, partyID string, rng domain.DateRange) ([]domain.Adjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.order_id, o.order_number, a.number, a.amount, a.adjustment_date, a.reason
		FROM adjustments a
		JOIN orders o ON o.id = a.order_id
		WHERE o.party_id = $1
			AND ($2::timestamptz IS NULL OR a.adjustment_date >= $2)
			AND ($3::timestamptz IS NULL OR a.adjustment_date <= $3)
		ORDER BY a.adjustment_date ASC
	`, partyID, rng.Start, rng.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adjustments := make([]domain.Adjustment, 0, 8)
	for rows.Next() {
		var adj domain.Adjustment
		if err := rows.Scan(&adj.ID, &adj.OrderID, &adj.OrderNumber, &adj.Number, &adj.Amount, &adj.Date, &adj.Reason); err != nil {
			return nil, err
		}
		adj.Date = adj.Date.UTC()
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
