// Package service implements the registration intake pipeline and the
// orchestration between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bossnet/party-signup/internal/botdefense"
	"github.com/bossnet/party-signup/internal/metrics"
	"github.com/bossnet/party-signup/internal/model"
	"github.com/bossnet/party-signup/internal/repository"
	"github.com/bossnet/party-signup/internal/requestmeta"
	"github.com/bossnet/party-signup/internal/validation"
)

// ErrBotDetected is returned when a submission trips a bot signal. Callers
// must not reveal which one.
var ErrBotDetected = errors.New("suspicious activity")

// ErrInvalidPaidStatus is returned by MarkPaid for anything but 0 or 1.
var ErrInvalidPaidStatus = errors.New("paid status must be 0 or 1")

// Store is the persistence port of the service.
type Store interface {
	Upsert(ctx context.Context, reg model.Registration, prov model.Provenance) (model.UpsertResult, error)
	ListPublic(ctx context.Context, limit int) ([]model.PublicRegistration, error)
	SetPaid(ctx context.Context, email string, status int) error
	GetByEmail(ctx context.Context, email string) (*model.Registration, error)
	Ping(ctx context.Context) error
}

// RegistrationService runs submissions through bot defense, validation and
// the upsert.
type RegistrationService struct {
	store   Store
	bots    *botdefense.Inspector
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// Option customises a RegistrationService.
type Option func(*RegistrationService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *RegistrationService) { s.now = now }
}

// NewRegistrationService constructs a RegistrationService with its
// dependencies. m may be nil; a nil bots uses the default thresholds.
func NewRegistrationService(
	store Store,
	bots *botdefense.Inspector,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *RegistrationService {
	s := &RegistrationService{
		store:   store,
		bots:    bots,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("github.com/bossnet/party-signup/internal/service"),
		now:     time.Now,
	}
	if s.bots == nil {
		s.bots = botdefense.New(0)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register processes one raw submission. It returns ErrBotDetected, a
// *validation.Error, or the store's sentinel errors on rejection.
func (s *RegistrationService) Register(ctx context.Context, sub model.Submission, prov model.Provenance) (result model.UpsertResult, err error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.Register")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "registration rejected")
		}
		span.End()
	}()

	ipPrefix := requestmeta.Anonymize(prov.IPAddress)

	if signal := s.bots.Inspect(sub, s.now()); signal != botdefense.SignalNone {
		span.SetAttributes(attribute.String("bot.signal", string(signal)))
		s.logger.WarnContext(ctx, "bot activity detected",
			"signal", string(signal),
			"ip_prefix", ipPrefix,
		)
		s.metrics.IncRejection(metrics.ReasonBot)
		return result, ErrBotDetected
	}

	reg, err := validation.Validate(sub)
	if err != nil {
		s.logger.InfoContext(ctx, "registration failed validation",
			"error", err,
			"ip_prefix", ipPrefix,
		)
		s.metrics.IncRejection(metrics.ReasonValidation)
		return result, err
	}

	start := s.now()
	result, err = s.store.Upsert(ctx, reg, prov)
	s.metrics.ObserveUpsert(s.now().Sub(start).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyRegistered):
			s.metrics.IncRejection(metrics.ReasonConflict)
		case errors.Is(err, repository.ErrInvalidInput):
			s.metrics.IncRejection(metrics.ReasonInvalid)
		default:
			s.metrics.IncRejection(metrics.ReasonInternal)
		}
		return model.UpsertResult{}, fmt.Errorf("store registration: %w", err)
	}

	s.metrics.IncRegistration(result.Created)
	s.logger.InfoContext(ctx, "registration saved",
		append([]any{
			"id", result.ID,
			"created", result.Created,
			"ticket_type", string(reg.TicketType),
			"guests", reg.Guests,
			"ip_prefix", ipPrefix,
		}, clientAttrs(prov.UserAgent)...)...,
	)
	return result, nil
}

// ListPublic returns the consenting registrations, newest first.
func (s *RegistrationService) ListPublic(ctx context.Context) ([]model.PublicRegistration, error) {
	regs, err := s.store.ListPublic(ctx, repository.MaxPublicListing)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	if regs == nil {
		regs = []model.PublicRegistration{}
	}
	return regs, nil
}

// Health reports whether the store answers.
func (s *RegistrationService) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// MarkPaid sets the paid flag for the registration owning email and returns
// the updated row. The address is canonicalised the same way intake does, so
// any spelling the registrant used finds the row.
func (s *RegistrationService) MarkPaid(ctx context.Context, email string, status int) (*model.Registration, error) {
	if status != 0 && status != 1 {
		return nil, ErrInvalidPaidStatus
	}
	canonical, err := CanonicalEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPaid(ctx, canonical, status); err != nil {
		return nil, fmt.Errorf("mark %s paid=%d: %w", canonical, status, err)
	}
	reg, err := s.store.GetByEmail(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", canonical, err)
	}
	s.logger.InfoContext(ctx, "paid flag updated", "id", reg.ID, "email", canonical, "bezahlt", status)
	return reg, nil
}

// CanonicalEmail applies the intake email rules to a single address.
func CanonicalEmail(email string) (string, error) {
	canonical, msg := validation.CheckEmail(email)
	if msg != "" {
		return "", fmt.Errorf("%q: %s", strings.TrimSpace(email), msg)
	}
	return canonical, nil
}

// clientAttrs summarises a user-agent header for the access log.
func clientAttrs(header string) []any {
	if header == "" {
		return []any{"client", "none"}
	}
	ua := useragent.New(header)
	browser, version := ua.Browser()
	return []any{
		"browser", strings.TrimSpace(browser + " " + version),
		"os", ua.OS(),
		"mobile", ua.Mobile(),
		"bot_ua", ua.Bot(),
	}
}
