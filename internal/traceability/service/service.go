// Package service implements the traceability ledger: an append-only log of
// EPCIS operations, each anchoring the digest of an off-ledger document.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accessmodels "certtrace/internal/access/models"
	"certtrace/internal/outbox"
	"certtrace/internal/platform/metrics"
	"certtrace/internal/traceability/models"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
	"certtrace/pkg/requestcontext"
)

var tracer = otel.Tracer("certtrace/traceability")

type Store interface {
	Count(ctx context.Context) (uint64, error)
	Append(ctx context.Context, op *models.Operation) error
	FindByID(ctx context.Context, id domain.OperationID) (*models.Operation, error)
}

// Authorizer answers whether an actor may record operations.
type Authorizer interface {
	IsAuthorized(ctx context.Context, role accessmodels.Role, actor domain.Address) bool
}

type Publisher interface {
	Emit(ctx context.Context, kind outbox.Kind, aggregate string, payload any) (outbox.Event, error)
}

type Service struct {
	store      Store
	authorizer Authorizer
	runner     tx.Runner
	publisher  Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	clock      func() time.Time
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

func New(store Store, authorizer Authorizer, runner tx.Runner, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		store:      store,
		authorizer: authorizer,
		runner:     runner,
		publisher:  publisher,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordOperation appends entry to the ledger on behalf of caller, who must
// hold the operator role. The certificate reference is stored as given.
func (s *Service) RecordOperation(ctx context.Context, caller domain.Address, entry models.Entry) (*models.Operation, error) {
	ctx, span := tracer.Start(ctx, "traceability.Record", trace.WithAttributes(
		attribute.String("event_type", entry.EventType.String()),
		attribute.String("action", entry.Action.String()),
	))
	defer span.End()

	var op *models.Operation
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if !s.authorizer.IsAuthorized(ctx, accessmodels.RoleOperator, caller) {
			return dErrors.New(dErrors.CodeForbidden, "caller is not an authorized operator")
		}
		if err := entry.Validate(); err != nil {
			return err
		}

		count, err := s.store.Count(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read operation sequence")
		}
		next := &models.Operation{
			ID:             domain.OperationID(count + 1),
			EventType:      entry.EventType,
			Action:         entry.Action,
			EPC:            strings.TrimSpace(entry.EPC),
			CertificateRef: entry.CertificateRef,
			RecordedBy:     caller,
			RecordedAt:     s.clock().UTC(),
			DocumentDigest: entry.DocumentDigest,
		}
		if err := s.store.Append(ctx, next); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "operation sequence out of order")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store operation")
		}
		if _, err := s.publisher.Emit(ctx, outbox.KindOperationRecorded, "operation:"+next.ID.String(), models.Recorded{
			OperationID:    next.ID,
			EventType:      next.EventType,
			Action:         next.Action,
			EPC:            next.EPC,
			CertificateRef: next.CertificateRef,
			RecordedBy:     next.RecordedBy,
			RecordedAt:     next.RecordedAt,
			DocumentDigest: next.DocumentDigest,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record notification")
		}
		op = next
		return nil
	})
	if err != nil {
		s.reject(span, "record_operation", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("operation_id", int64(op.ID)))
	s.logAudit(ctx, "operation_recorded",
		"operation_id", op.ID.String(),
		"event_type", op.EventType.String(),
		"action", op.Action.String(),
		"certificate_ref", op.CertificateRef,
		"recorded_by", caller.String(),
	)
	if s.metrics != nil {
		s.metrics.IncOperationRecorded(op.EventType.String())
	}
	return op, nil
}

// VerifyDigest reports whether candidate byte-equals the digest anchored by
// operation id.
func (s *Service) VerifyDigest(ctx context.Context, id domain.OperationID, candidate domain.Digest) (bool, error) {
	ctx, span := tracer.Start(ctx, "traceability.VerifyDigest", trace.WithAttributes(
		attribute.Int64("operation_id", int64(id)),
	))
	defer span.End()

	op, err := s.GetOperation(ctx, id)
	if err != nil {
		s.reject(span, "verify_digest", err)
		return false, err
	}
	match := op.Matches(candidate)
	span.SetAttributes(attribute.Bool("match", match))
	return match, nil
}

func (s *Service) GetOperation(ctx context.Context, id domain.OperationID) (*models.Operation, error) {
	var op *models.Operation
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		found, err := s.store.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "operation not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation")
		}
		op = found
		return nil
	})
	return op, err
}

func (s *Service) TotalOperations(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.store.Count(ctx)
		return err
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count operations")
	}
	return n, nil
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
