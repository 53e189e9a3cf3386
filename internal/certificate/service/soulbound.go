package service

import (
	"context"

	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
)

// Certificates are soulbound. The transfer and approval surface exists so
// callers get a definite rejection; none of it ever changes ownership.

var errSoulbound = dErrors.New(dErrors.CodeInvariantViolation, "certificate is soulbound and cannot be transferred or approved")

func (s *Service) Transfer(ctx context.Context, caller, from, to domain.Address, id domain.CertificateID) error {
	return s.rejectSoulbound(ctx, "transfer", caller, id)
}

func (s *Service) SafeTransfer(ctx context.Context, caller, from, to domain.Address, id domain.CertificateID) error {
	return s.rejectSoulbound(ctx, "safe_transfer", caller, id)
}

func (s *Service) Approve(ctx context.Context, caller, spender domain.Address, id domain.CertificateID) error {
	return s.rejectSoulbound(ctx, "approve", caller, id)
}

func (s *Service) SetApprovalForAll(ctx context.Context, caller, operator domain.Address, approved bool) error {
	return s.rejectSoulbound(ctx, "set_approval_for_all", caller, 0)
}

func (s *Service) rejectSoulbound(ctx context.Context, operation string, caller domain.Address, id domain.CertificateID) error {
	_, span := tracer.Start(ctx, "certificate."+operation)
	defer span.End()

	if s.logger != nil {
		s.logger.WarnContext(ctx, "soulbound violation rejected",
			"operation", operation,
			"caller", caller.String(),
			"certificate_id", id.String(),
		)
	}
	s.reject(span, operation, errSoulbound)
	return errSoulbound
}
