package handler

import (
	"encoding/json"
	"strings"
	"time"

	"certtrace/internal/certificate/models"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
)

// IssueRequest is the body of POST /certificates. Field presence rules are
// enforced by the registry so every rejection carries its own reason.
type IssueRequest struct {
	Producer     string          `json:"producer"`
	BatchID      string          `json:"batch_id"`
	ProducerName string          `json:"producer_name"`
	Region       string          `json:"region"`
	Quantity     uint64          `json:"quantity"`
	Unit         string          `json:"unit"`
	DocumentsCID string          `json:"documents_cid"`
	MetadataCID  string          `json:"metadata_cid"`
	HarvestedAt  time.Time       `json:"harvested_at"`
	Product      json.RawMessage `json:"product"`

	producer domain.Address
}

func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.BatchID = strings.TrimSpace(r.BatchID)
	r.DocumentsCID = strings.TrimSpace(r.DocumentsCID)
	r.MetadataCID = strings.TrimSpace(r.MetadataCID)
	if strings.TrimSpace(r.Producer) != "" {
		p, err := domain.ParseAddress(r.Producer)
		if err != nil {
			return err
		}
		r.producer = p
	}
	if len(r.Product) == 0 {
		return dErrors.New(dErrors.CodeValidation, "product payload is required")
	}
	return nil
}

func (r *IssueRequest) toApplication() models.Application {
	return models.Application{
		Producer:     r.producer,
		BatchID:      r.BatchID,
		ProducerName: r.ProducerName,
		Region:       r.Region,
		Quantity:     r.Quantity,
		Unit:         r.Unit,
		DocumentsCID: r.DocumentsCID,
		MetadataCID:  r.MetadataCID,
		HarvestedAt:  r.HarvestedAt,
		RawPayload:   r.Product,
	}
}

// TransferRequest names the would-be recipient. It is parsed so malformed
// bodies are still reported as such.
type TransferRequest struct {
	To string `json:"to"`

	to domain.Address
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	to, err := domain.ParseAddress(strings.TrimSpace(r.To))
	if err != nil {
		return err
	}
	r.to = to
	return nil
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}

func (r *RevokeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > 1024 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 1024 characters")
	}
	return nil
}

type CertificateResponse struct {
	ID           uint64    `json:"id"`
	BatchID      string    `json:"batch_id"`
	Owner        string    `json:"owner"`
	ProducerName string    `json:"producer_name"`
	Region       string    `json:"region"`
	Quantity     uint64    `json:"quantity"`
	Unit         string    `json:"unit"`
	DocumentsCID string    `json:"documents_cid"`
	MetadataCID  string    `json:"metadata_cid"`
	TokenURI     string    `json:"token_uri"`
	ProductType  string    `json:"product_type"`
	HarvestedAt  time.Time `json:"harvested_at"`
	IssuedAt     time.Time `json:"issued_at"`
	IssuedBy     string    `json:"issued_by"`
	Active       bool      `json:"active"`
}

func FromCertificate(c *models.Certificate) CertificateResponse {
	return CertificateResponse{
		ID:           uint64(c.ID),
		BatchID:      c.BatchID,
		Owner:        c.Owner.String(),
		ProducerName: c.ProducerName,
		Region:       c.Region,
		Quantity:     c.Quantity,
		Unit:         c.Unit,
		DocumentsCID: c.DocumentsCID,
		MetadataCID:  c.MetadataCID,
		TokenURI:     c.TokenURI(),
		ProductType:  c.ProductType,
		HarvestedAt:  c.HarvestedAt,
		IssuedAt:     c.IssuedAt,
		IssuedBy:     c.IssuedBy.String(),
		Active:       c.Active,
	}
}
