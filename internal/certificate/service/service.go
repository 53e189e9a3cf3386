// Package service implements the certificate registry: authorized issuance
// of soulbound certificates with permanent batch uniqueness.
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
	"certtrace/internal/certificate/models"
	"certtrace/internal/certificate/ports"
	"certtrace/internal/outbox"
	"certtrace/internal/platform/metrics"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
	"certtrace/pkg/requestcontext"
)

var tracer = otel.Tracer("certtrace/certificate")

// Store persists certificates.
type Store interface {
	Count(ctx context.Context) (uint64, error)
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, id domain.CertificateID) (*models.Certificate, error)
	FindIDByBatch(ctx context.Context, batchID string) (domain.CertificateID, error)
	ListIDsByOwner(ctx context.Context, owner domain.Address) ([]domain.CertificateID, error)
	SetActive(ctx context.Context, id domain.CertificateID, active bool) error
}

// Service is the certificate registry for one product family.
type Service struct {
	store      Store
	extension  ports.ProductExtension
	authorizer ports.Authorizer
	runner     tx.Runner
	publisher  ports.Publisher
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

func New(store Store, extension ports.ProductExtension, authorizer ports.Authorizer, runner tx.Runner, publisher ports.Publisher, opts ...Option) *Service {
	s := &Service{
		store:      store,
		extension:  extension,
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

// ProductType reports the product family this registry issues for.
func (s *Service) ProductType() string {
	return s.extension.ProductType()
}

// IssueCertificate mints a certificate to app.Producer. Every check runs
// before any state changes, so a failure leaves nothing behind.
func (s *Service) IssueCertificate(ctx context.Context, caller domain.Address, app models.Application) (*models.Certificate, error) {
	ctx, span := tracer.Start(ctx, "certificate.Issue", trace.WithAttributes(
		attribute.String("batch_id", app.BatchID),
		attribute.String("product_type", s.extension.ProductType()),
	))
	defer span.End()

	var cert *models.Certificate
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if !s.authorizer.IsAuthorized(ctx, accessmodels.RoleIssuer, caller) {
			return dErrors.New(dErrors.CodeForbidden, "caller is not an authorized issuer")
		}
		if err := s.ensureBatchUnseen(ctx, app.BatchID); err != nil {
			return err
		}
		if err := validateApplication(app); err != nil {
			return err
		}
		if app.Payload == nil && len(app.RawPayload) > 0 {
			payload, err := s.extension.Decode(app.RawPayload)
			if err != nil {
				return err
			}
			app.Payload = payload
		}
		if err := s.extension.Validate(app.Payload); err != nil {
			return err
		}

		count, err := s.store.Count(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate sequence")
		}
		now := s.clock().UTC()
		next := &models.Certificate{
			ID:           domain.CertificateID(count + 1),
			BatchID:      app.BatchID,
			ProducerName: strings.TrimSpace(app.ProducerName),
			Region:       strings.TrimSpace(app.Region),
			Quantity:     app.Quantity,
			Unit:         strings.TrimSpace(app.Unit),
			DocumentsCID: app.DocumentsCID,
			MetadataCID:  app.MetadataCID,
			ProductType:  s.extension.ProductType(),
			HarvestedAt:  app.HarvestedAt.UTC(),
			IssuedAt:     now,
			IssuedBy:     caller,
			Active:       true,
		}
		if err := next.BindOwner(app.Producer); err != nil {
			return err
		}
		if err := s.store.Create(ctx, next); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return dErrors.New(dErrors.CodeConflict, "batch id already certified")
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.Wrap(err, dErrors.CodeInternal, "certificate sequence out of order")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
		}
		if err := s.extension.Persist(ctx, next.ID, app.Payload); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store product payload")
		}
		if _, err := s.publisher.Emit(ctx, outbox.KindCertificateIssued, "certificate:"+next.ID.String(), models.Issued{
			CertificateID: next.ID,
			Producer:      next.Owner,
			BatchID:       next.BatchID,
			ProductType:   next.ProductType,
			IssuedAt:      now,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record notification")
		}
		cert = next
		return nil
	})
	if err != nil {
		s.reject(span, "issue_certificate", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("certificate_id", int64(cert.ID)))
	s.logAudit(ctx, "certificate_issued",
		"certificate_id", cert.ID.String(),
		"batch_id", cert.BatchID,
		"producer", cert.Owner.String(),
		"issued_by", caller.String(),
	)
	if s.metrics != nil {
		s.metrics.IncCertificateIssued(cert.ProductType)
	}
	return cert, nil
}

func (s *Service) ensureBatchUnseen(ctx context.Context, batchID string) error {
	_, err := s.store.FindIDByBatch(ctx, batchID)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeConflict, "batch id already certified")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check batch id")
	}
}

func validateApplication(app models.Application) error {
	if app.Producer.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "producer must be a non-null address")
	}
	if strings.TrimSpace(app.BatchID) == "" {
		return dErrors.New(dErrors.CodeValidation, "batch id is required")
	}
	if app.Quantity == 0 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be greater than zero")
	}
	if strings.TrimSpace(app.DocumentsCID) == "" {
		return dErrors.New(dErrors.CodeValidation, "documents cid is required")
	}
	if strings.TrimSpace(app.MetadataCID) == "" {
		return dErrors.New(dErrors.CodeValidation, "metadata cid is required")
	}
	return nil
}

// RevokeCertificate deactivates id. Only the administrator may revoke.
func (s *Service) RevokeCertificate(ctx context.Context, caller domain.Address, id domain.CertificateID, reason string) error {
	ctx, span := tracer.Start(ctx, "certificate.Revoke", trace.WithAttributes(
		attribute.Int64("certificate_id", int64(id)),
	))
	defer span.End()

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if !s.authorizer.IsAdmin(caller) {
			return dErrors.New(dErrors.CodeForbidden, "caller is not the administrator")
		}
		cert, err := s.find(ctx, id)
		if err != nil {
			return err
		}
		if err := cert.Revoke(); err != nil {
			return err
		}
		if err := s.store.SetActive(ctx, id, false); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
		}
		if _, err := s.publisher.Emit(ctx, outbox.KindCertificateRevoked, "certificate:"+id.String(), models.Revoked{
			CertificateID: id,
			Reason:        reason,
			RevokedBy:     caller,
			RevokedAt:     s.clock().UTC(),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record notification")
		}
		return nil
	})
	if err != nil {
		s.reject(span, "revoke_certificate", err)
		return err
	}

	s.logAudit(ctx, "certificate_revoked",
		"certificate_id", id.String(),
		"reason", reason,
		"revoked_by", caller.String(),
	)
	if s.metrics != nil {
		s.metrics.IncCertificateRevoked()
	}
	return nil
}

// GetCertificate returns the certificate with id.
func (s *Service) GetCertificate(ctx context.Context, id domain.CertificateID) (*models.Certificate, error) {
	var cert *models.Certificate
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		cert, err = s.find(ctx, id)
		return err
	})
	return cert, err
}

// GetByBatch resolves a batch identifier to its certificate id.
func (s *Service) GetByBatch(ctx context.Context, batchID string) (domain.CertificateID, error) {
	var id domain.CertificateID
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.store.FindIDByBatch(ctx, batchID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "batch id not certified")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up batch id")
		}
		return nil
	})
	return id, err
}

// GetByProducer lists producer's certificates in issuance order.
func (s *Service) GetByProducer(ctx context.Context, producer domain.Address) ([]domain.CertificateID, error) {
	var ids []domain.CertificateID
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		ids, err = s.store.ListIDsByOwner(ctx, producer)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
		}
		return nil
	})
	return ids, err
}

// IsActive reports the active flag of id.
func (s *Service) IsActive(ctx context.Context, id domain.CertificateID) (bool, error) {
	cert, err := s.GetCertificate(ctx, id)
	if err != nil {
		return false, err
	}
	return cert.Active, nil
}

// TotalCertificates is the number of successful issuances.
func (s *Service) TotalCertificates(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.store.Count(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count certificates")
		}
		return nil
	})
	return n, err
}

// OwnerOf returns the producer bound to id.
func (s *Service) OwnerOf(ctx context.Context, id domain.CertificateID) (domain.Address, error) {
	cert, err := s.GetCertificate(ctx, id)
	if err != nil {
		return domain.ZeroAddress, err
	}
	return cert.Owner, nil
}

// BalanceOf counts the certificates owned by producer.
func (s *Service) BalanceOf(ctx context.Context, producer domain.Address) (uint64, error) {
	if producer.IsZero() {
		return 0, dErrors.New(dErrors.CodeValidation, "null address has no balance")
	}
	ids, err := s.GetByProducer(ctx, producer)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// TokenURI returns the metadata location of id.
func (s *Service) TokenURI(ctx context.Context, id domain.CertificateID) (string, error) {
	cert, err := s.GetCertificate(ctx, id)
	if err != nil {
		return "", err
	}
	return cert.TokenURI(), nil
}

// GetProductPayload returns the product payload stored with id.
func (s *Service) GetProductPayload(ctx context.Context, id domain.CertificateID) (models.ProductPayload, error) {
	var payload models.ProductPayload
	err := s.runner.ReadOnly(ctx, func(ctx context.Context) error {
		if _, err := s.find(ctx, id); err != nil {
			return err
		}
		var err error
		payload, err = s.extension.Payload(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "product payload not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product payload")
		}
		return nil
	})
	return payload, err
}

func (s *Service) find(ctx context.Context, id domain.CertificateID) (*models.Certificate, error) {
	cert, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	return cert, nil
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
