// Package service implements the authorization registry: two independent
// role sets plus a single administrator who implicitly holds both.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certtrace/internal/access/models"
	"certtrace/internal/outbox"
	"certtrace/internal/platform/metrics"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
	"certtrace/pkg/requestcontext"
)

var tracer = otel.Tracer("certtrace/access")

// Store persists explicit role grants.
type Store interface {
	Add(ctx context.Context, member models.Member) error
	AddBatch(ctx context.Context, members []models.Member) ([]models.Member, error)
	Remove(ctx context.Context, role models.Role, actor domain.Address) error
	Has(ctx context.Context, role models.Role, actor domain.Address) (bool, error)
	List(ctx context.Context, role models.Role) ([]models.Member, error)
}

// Publisher appends notifications inside the caller's critical section.
type Publisher interface {
	Emit(ctx context.Context, kind outbox.Kind, aggregate string, payload any) (outbox.Event, error)
}

// Service is the authorization registry.
type Service struct {
	admin     domain.Address
	store     Store
	runner    tx.Runner
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs the registry. admin must be non-null.
func New(admin domain.Address, store Store, runner tx.Runner, publisher Publisher, opts ...Option) (*Service, error) {
	if admin.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "administrator must be a non-null address")
	}
	s := &Service{
		admin:     admin,
		store:     store,
		runner:    runner,
		publisher: publisher,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Admin returns the administrator identity.
func (s *Service) Admin() domain.Address {
	return s.admin
}

// IsAdmin reports whether actor is the administrator.
func (s *Service) IsAdmin(actor domain.Address) bool {
	return !actor.IsZero() && actor == s.admin
}

// Grant adds actor to role.
func (s *Service) Grant(ctx context.Context, caller domain.Address, role models.Role, actor domain.Address) error {
	ctx, span := tracer.Start(ctx, "access.Grant", trace.WithAttributes(
		attribute.String("role", role.String()),
		attribute.String("actor", actor.String()),
	))
	defer span.End()

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		if !role.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown role")
		}
		if actor.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "actor must be a non-null address")
		}
		member := models.Member{Role: role, Actor: actor, GrantedBy: caller, GrantedAt: s.clock().UTC()}
		if err := s.store.Add(ctx, member); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "role already granted")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
		}
		return s.emitChange(ctx, outbox.KindRoleGranted, member.Role, member.Actor, caller, member.GrantedAt)
	})
	if err != nil {
		s.reject(span, "grant", err)
		return err
	}

	s.logAudit(ctx, "role_granted",
		"role", role.String(),
		"actor", actor.String(),
		"granted_by", caller.String(),
	)
	s.incRoleChange(role, "grant")
	return nil
}

// Revoke removes actor from role.
func (s *Service) Revoke(ctx context.Context, caller domain.Address, role models.Role, actor domain.Address) error {
	ctx, span := tracer.Start(ctx, "access.Revoke", trace.WithAttributes(
		attribute.String("role", role.String()),
		attribute.String("actor", actor.String()),
	))
	defer span.End()

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		if !role.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown role")
		}
		if err := s.store.Remove(ctx, role, actor); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "role not granted")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
		}
		return s.emitChange(ctx, outbox.KindRoleRevoked, role, actor, caller, s.clock().UTC())
	})
	if err != nil {
		s.reject(span, "revoke", err)
		return err
	}

	s.logAudit(ctx, "role_revoked",
		"role", role.String(),
		"actor", actor.String(),
		"revoked_by", caller.String(),
	)
	s.incRoleChange(role, "revoke")
	return nil
}

// GrantBatch grants role to every eligible actor. Null identities, repeats
// within the batch and actors already holding role are skipped silently.
func (s *Service) GrantBatch(ctx context.Context, caller domain.Address, role models.Role, actors []domain.Address) (*models.BatchResult, error) {
	ctx, span := tracer.Start(ctx, "access.GrantBatch", trace.WithAttributes(
		attribute.String("role", role.String()),
		attribute.Int("batch_size", len(actors)),
	))
	defer span.End()

	var result models.BatchResult
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
		if !role.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown role")
		}

		now := s.clock().UTC()
		candidates := make([]models.Member, 0, len(actors))
		for _, actor := range dedupe(actors) {
			if actor.IsZero() {
				continue
			}
			candidates = append(candidates, models.Member{Role: role, Actor: actor, GrantedBy: caller, GrantedAt: now})
		}
		added, err := s.store.AddBatch(ctx, candidates)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant roles")
		}
		for _, m := range added {
			if err := s.emitChange(ctx, outbox.KindRoleGranted, role, m.Actor, caller, now); err != nil {
				return err
			}
			result.Granted = append(result.Granted, m.Actor)
		}
		result.Skipped = len(actors) - len(added)
		return nil
	})
	if err != nil {
		s.reject(span, "grant_batch", err)
		return nil, err
	}

	s.logAudit(ctx, "role_batch_granted",
		"role", role.String(),
		"granted", len(result.Granted),
		"skipped", result.Skipped,
		"granted_by", caller.String(),
	)
	for range result.Granted {
		s.incRoleChange(role, "grant")
	}
	return &result, nil
}

// IsAuthorized reports whether actor holds role or is the administrator.
// Lookup failures and unknown roles read as unauthorized.
func (s *Service) IsAuthorized(ctx context.Context, role models.Role, actor domain.Address) bool {
	if s.IsAdmin(actor) {
		return true
	}
	if actor.IsZero() || !role.IsValid() {
		return false
	}
	var ok bool
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		ok, err = s.store.Has(ctx, role, actor)
		return err
	})
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "role lookup failed",
				"role", role.String(),
				"actor", actor.String(),
				"error", err,
			)
		}
		return false
	}
	return ok
}

// Members lists the explicit grants of role in grant order. The
// administrator is not listed.
func (s *Service) Members(ctx context.Context, role models.Role) ([]models.Member, error) {
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	var members []models.Member
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		members, err = s.store.List(ctx, role)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list role members")
	}
	return members, nil
}

func (s *Service) requireAdmin(caller domain.Address) error {
	if !s.IsAdmin(caller) {
		return dErrors.New(dErrors.CodeForbidden, "caller is not the administrator")
	}
	return nil
}

func (s *Service) emitChange(ctx context.Context, kind outbox.Kind, role models.Role, actor, by domain.Address, at time.Time) error {
	_, err := s.publisher.Emit(ctx, kind, role.String()+":"+actor.String(), models.Change{
		Role:      role,
		Actor:     actor,
		ChangedBy: by,
		ChangedAt: at,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record notification")
	}
	return nil
}

func dedupe(actors []domain.Address) []domain.Address {
	seen := make(map[domain.Address]struct{}, len(actors))
	out := make([]domain.Address, 0, len(actors))
	for _, a := range actors {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (s *Service) reject(span trace.Span, operation string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.Message(err))
	if s.metrics != nil {
		s.metrics.IncRejected(operation, string(dErrors.CodeOf(err)))
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) incRoleChange(role models.Role, change string) {
	if s.metrics != nil {
		s.metrics.IncRoleChange(role.String(), change)
	}
}
