package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/logging"
	"tokobuning/backend/internal/metrics"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/validate"
	"tokobuning/backend/internal/xid"
)

// ErrForbidden is returned when the actor's role lacks the capability an
// operation needs.
var ErrForbidden = errors.New("forbidden")

// ErrLookupDisabled is returned by LookupBarcode when no lookup client is wired.
var ErrLookupDisabled = errors.New("barcode lookup is not configured")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// BarcodeLookup resolves a barcode to catalog pre-fill data.
type BarcodeLookup interface {
	Lookup(ctx context.Context, code string) (domain.BarcodeProduct, error)
}

type Deps struct {
	Repo     store.Repository
	Barcode  BarcodeLookup
	Metrics  *metrics.Registry
	Logger   logrus.FieldLogger
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo    store.Repository
	barcode BarcodeLookup
	metrics *metrics.Registry
	logger  logrus.FieldLogger
	loc     *time.Location
	now     func() time.Time

	infoMu sync.RWMutex
	info   *domain.StoreInfo
}

func New(deps Deps) *Service {
	s := &Service{
		repo:    deps.Repo,
		barcode: deps.Barcode,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		loc:     deps.Location,
		now:     deps.Now,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Location is the store time zone used for date boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) authorize(ctx context.Context, capability domain.Capability) (domain.Actor, error) {
	return s.authorizeAny(ctx, capability)
}

func (s *Service) authorizeAny(ctx context.Context, capabilities ...domain.Capability) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: no authenticated actor", ErrForbidden)
	}
	for _, c := range capabilities {
		if actor.Role.Can(c) {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("%w: role %s lacks %s", ErrForbidden, actor.Role, capabilities[0])
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidTransaction, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidTransaction, fmt.Sprintf(format, args...))
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
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		logging.LogError(s.logger, "service", "logAudit", "audit write failed", map[string]string{"action": action, "entity_id": entityID}, err)
	}
}

// ListAuditLogs returns the audit trail for one store-local date, or the
// most recent entries when date is empty.
func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if _, err := s.authorize(ctx, domain.CapManageStore); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 200
	}
	var from, to time.Time
	if date = strings.TrimSpace(date); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, s.loc)
		if err != nil {
			return nil, invalid("date must be YYYY-MM-DD")
		}
		from, to = day, day.AddDate(0, 0, 1)
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// DateRange parses the start_date and end_date filters of list endpoints.
func (s *Service) DateRange(start string, end string) (time.Time, time.Time, error) {
	return s.parseDateRange(start, end)
}

// parseDateRange turns inclusive YYYY-MM-DD bounds into a half-open range in
// the store time zone. Empty bounds stay open.
func (s *Service) parseDateRange(start string, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	if start = strings.TrimSpace(start); start != "" {
		day, err := time.ParseInLocation("2006-01-02", start, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("start_date must be YYYY-MM-DD")
		}
		from = day
	}
	if end = strings.TrimSpace(end); end != "" {
		day, err := time.ParseInLocation("2006-01-02", end, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("end_date must be YYYY-MM-DD")
		}
		to = day.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, invalid("start_date must not be after end_date")
	}
	return from, to, nil
}

func (s *Service) startOfDay(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
