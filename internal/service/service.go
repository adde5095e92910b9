package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"stockbook/backend/internal/cache"
	"stockbook/backend/internal/domain"
	"stockbook/backend/internal/ledger"
	"stockbook/backend/internal/store"
	"stockbook/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	builder      *ledger.Builder
	directory    cache.DirectoryCache
	directoryTTL time.Duration
}

func New(repo store.Repository, directory cache.DirectoryCache, directoryTTL time.Duration) *Service {
	if directory == nil {
		directory = cache.NoopDirectoryCache{}
	}
	if directoryTTL <= 0 {
		directoryTTL = 60 * time.Second
	}

	return &Service{
		repo:         repo,
		builder:      ledger.NewBuilder(repo),
		directory:    directory,
		directoryTTL: directoryTTL,
	}
}

// ParseDateRange validates the optional start/end query values. Dates are
// calendar days: the end bound is widened to the last instant of its day so
// the range stays inclusive.
func ParseDateRange(startDate string, endDate string) (domain.DateRange, error) {
	var rng domain.DateRange

	if startDate != "" {
		start, err := time.ParseInLocation("2006-01-02", startDate, time.UTC)
		if err != nil {
			return rng, fmt.Errorf("%w: bad start date %q", store.ErrInvalidInput, startDate)
		}
		rng.Start = &start
	}
	if endDate != "" {
		end, err := time.ParseInLocation("2006-01-02", endDate, time.UTC)
		if err != nil {
			return rng, fmt.Errorf("%w: bad end date %q", store.ErrInvalidInput, endDate)
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
		rng.End = &end
	}

	if rng.Start != nil && rng.End != nil && rng.End.Before(*rng.Start) {
		return domain.DateRange{}, fmt.Errorf("%w: end date before start date", store.ErrInvalidInput)
	}
	return rng, nil
}

// PartyLedger builds the statement for one party, scoped to a kind so that a
// customer route can never leak a supplier's ledger (and vice versa).
func (s *Service) PartyLedger(ctx context.Context, kind domain.PartyKind, partyID string, rng domain.DateRange) (*domain.Ledger, error) {
	party, err := s.GetParty(ctx, kind, partyID)
	if err != nil {
		return nil, err
	}

	led, err := s.builder.Build(ctx, party.ID, rng)
	if err != nil {
		return nil, err
	}

	log.Printf("[service] ledger built party=%s entries=%d balance=%s", party.ID, led.Summary.TotalTransactions, led.Summary.CurrentBalance.StringFixed(2))
	return led, nil
}

func (s *Service) ExportLedgerCSV(ctx context.Context, kind domain.PartyKind, partyID string, rng domain.DateRange) (string, []byte, error) {
	led, err := s.PartyLedger(ctx, kind, partyID, rng)
	if err != nil {
		return "", nil, err
	}

	s.logAudit(ctx, "ledger_export_csv", "party", led.Party.ID, fmt.Sprintf("entries=%d", led.Summary.TotalTransactions))
	return led.Party.ID + "-ledger.csv", []byte(ledger.ToCSV(led)), nil
}

func (s *Service) ExportLedgerPDF(ctx context.Context, kind domain.PartyKind, partyID string, rng domain.DateRange) (string, []byte, error) {
	led, err := s.PartyLedger(ctx, kind, partyID, rng)
	if err != nil {
		return "", nil, err
	}

	body, err := ledger.ToPDF(led)
	if err != nil {
		return "", nil, err
	}

	s.logAudit(ctx, "ledger_export_pdf", "party", led.Party.ID, fmt.Sprintf("entries=%d", led.Summary.TotalTransactions))
	return led.Party.ID + "-ledger.pdf", body, nil
}

func (s *Service) GetParty(ctx context.Context, kind domain.PartyKind, partyID string) (*domain.Party, error) {
	partyID = strings.TrimSpace(partyID)
	if partyID == "" {
		return nil, store.ErrNotFound
	}

	party, err := s.repo.FindParty(ctx, partyID)
	if err != nil {
		return nil, err
	}
	// A kind mismatch is indistinguishable from absence on the wire.
	if party.Kind != kind {
		return nil, store.ErrNotFound
	}
	return party, nil
}

func (s *Service) ListParties(ctx context.Context, kind domain.PartyKind, search string, limit int) ([]domain.Party, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	search = strings.TrimSpace(search)

	key := fmt.Sprintf("directory:%s:%s:%d", kind, strings.ToLower(search), limit)
	if parties, hit, err := s.directory.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: directory cache get failed key=%s: %v", key, err)
	} else if hit {
		return parties, nil
	}

	parties, err := s.repo.ListParties(ctx, kind, search, limit)
	if err != nil {
		return nil, err
	}

	if err := s.directory.Set(ctx, key, parties, s.directoryTTL); err != nil {
		log.Printf("[service] WARN: directory cache set failed key=%s: %v", key, err)
	}
	return parties, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if from.IsZero() {
		from = time.Now().UTC().AddDate(0, 0, -7)
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Minute)
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
