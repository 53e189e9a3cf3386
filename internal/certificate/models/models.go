// Package models defines soulbound certificates and their notifications.
package models

import (
	"encoding/json"
	"time"

	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
)

// ProductPayload is the product-family specific part of an application.
// Each variant reports the product type it belongs to.
type ProductPayload interface {
	ProductType() string
}

// Certificate is a non-transferable certification record. Owner is bound
// once at issuance and never changes.
type Certificate struct {
	ID           domain.CertificateID
	BatchID      string
	Owner        domain.Address
	ProducerName string
	Region       string
	Quantity     uint64
	Unit         string
	DocumentsCID string
	MetadataCID  string
	ProductType  string
	HarvestedAt  time.Time
	IssuedAt     time.Time
	IssuedBy     domain.Address
	Active       bool
}

// BindOwner performs the single legal ownership transition, from no owner
// to the producer.
func (c *Certificate) BindOwner(producer domain.Address) error {
	if !c.Owner.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate is soulbound: owner already bound")
	}
	if producer.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "producer must be a non-null address")
	}
	c.Owner = producer
	return nil
}

// Revoke flips the active flag. It is one-way.
func (c *Certificate) Revoke() error {
	if !c.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate already revoked")
	}
	c.Active = false
	return nil
}

// TokenURI renders the metadata location.
func (c *Certificate) TokenURI() string {
	return "ipfs://" + c.MetadataCID
}

// Application is a request to issue one certificate.
type Application struct {
	Producer     domain.Address
	BatchID      string
	ProducerName string
	Region       string
	Quantity     uint64
	Unit         string
	DocumentsCID string
	MetadataCID  string
	HarvestedAt  time.Time
	// RawPayload is decoded by the product extension after the caller,
	// batch and metadata checks pass. Payload, when set, is used as is.
	RawPayload json.RawMessage
	Payload    ProductPayload
}

// Issued is the certificate_issued notification payload.
type Issued struct {
	CertificateID domain.CertificateID `json:"certificate_id"`
	Producer      domain.Address       `json:"producer"`
	BatchID       string               `json:"batch_id"`
	ProductType   string               `json:"product_type"`
	IssuedAt      time.Time            `json:"issued_at"`
}

// Revoked is the certificate_revoked notification payload.
type Revoked struct {
	CertificateID domain.CertificateID `json:"certificate_id"`
	Reason        string               `json:"reason"`
	RevokedBy     domain.Address       `json:"revoked_by"`
	RevokedAt     time.Time            `json:"revoked_at"`
}
