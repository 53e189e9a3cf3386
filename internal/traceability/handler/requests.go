package handler

import (
	"strings"
	"time"

	"certtrace/internal/traceability/models"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
)

// RecordRequest is the body of POST /operations.
type RecordRequest struct {
	EventType      string `json:"event_type"`
	Action         string `json:"action"`
	EPC            string `json:"epc"`
	CertificateRef uint64 `json:"certificate_ref"`
	DocumentDigest string `json:"document_digest"`

	entry models.Entry
}

func (r *RecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	eventType, err := models.ParseEventType(r.EventType)
	if err != nil {
		return err
	}
	action, err := models.ParseAction(r.Action)
	if err != nil {
		return err
	}
	digest, err := domain.ParseDigest(strings.TrimSpace(r.DocumentDigest))
	if err != nil {
		return err
	}
	r.entry = models.Entry{
		EventType:      eventType,
		Action:         action,
		EPC:            r.EPC,
		CertificateRef: r.CertificateRef,
		DocumentDigest: digest,
	}
	return nil
}

type VerifyRequest struct {
	Digest string `json:"digest"`

	digest domain.Digest
}

func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	d, err := domain.ParseDigest(strings.TrimSpace(r.Digest))
	if err != nil {
		return err
	}
	r.digest = d
	return nil
}

type OperationResponse struct {
	ID             uint64    `json:"id"`
	EventType      string    `json:"event_type"`
	Action         string    `json:"action"`
	EPC            string    `json:"epc"`
	CertificateRef uint64    `json:"certificate_ref"`
	RecordedBy     string    `json:"recorded_by"`
	RecordedAt     time.Time `json:"recorded_at"`
	DocumentDigest string    `json:"document_digest"`
}

func FromOperation(op *models.Operation) OperationResponse {
	return OperationResponse{
		ID:             uint64(op.ID),
		EventType:      op.EventType.String(),
		Action:         op.Action.String(),
		EPC:            op.EPC,
		CertificateRef: op.CertificateRef,
		RecordedBy:     op.RecordedBy.String(),
		RecordedAt:     op.RecordedAt,
		DocumentDigest: op.DocumentDigest.String(),
	}
}
