// Package ports declares what the certificate registry needs from the rest
// of the system.
package ports

import (
	"context"
	"encoding/json"

	accessmodels "certtrace/internal/access/models"
	"certtrace/internal/certificate/models"
	"certtrace/internal/outbox"
	"certtrace/pkg/domain"
)

// ProductExtension is the per-product-family capability. Validate performs
// format-only checks. Persist runs inside the issuing critical section and
// stores the payload with any per-variant counters.
type ProductExtension interface {
	ProductType() string
	Decode(raw json.RawMessage) (models.ProductPayload, error)
	Validate(payload models.ProductPayload) error
	Persist(ctx context.Context, id domain.CertificateID, payload models.ProductPayload) error
	Payload(ctx context.Context, id domain.CertificateID) (models.ProductPayload, error)
}

// Authorizer answers role questions for issuance and revocation.
type Authorizer interface {
	IsAuthorized(ctx context.Context, role accessmodels.Role, actor domain.Address) bool
	IsAdmin(actor domain.Address) bool
}

// Publisher appends notifications inside the caller's critical section.
type Publisher interface {
	Emit(ctx context.Context, kind outbox.Kind, aggregate string, payload any) (outbox.Event, error)
}
