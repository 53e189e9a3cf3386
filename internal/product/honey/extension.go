package honey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"certtrace/internal/certificate/models"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
)

// Store persists honey payloads and tier counters.
type Store interface {
	Save(ctx context.Context, id domain.CertificateID, payload Payload) error
	Find(ctx context.Context, id domain.CertificateID) (*Payload, error)
	IncrementTier(ctx context.Context, tier Tier) error
	TierCount(ctx context.Context, tier Tier) (uint64, error)
}

// Extension is the honey variant of the certificate registry's product
// extension.
type Extension struct {
	store  Store
	runner tx.Runner
}

func NewExtension(store Store, runner tx.Runner) *Extension {
	return &Extension{store: store, runner: runner}
}

func (e *Extension) ProductType() string {
	return ProductType
}

// Decode parses a honey payload. Unknown fields and unknown tiers are
// rejected; the certifications list is trimmed and deduplicated.
func (e *Extension) Decode(raw json.RawMessage) (models.ProductPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid honey payload")
	}
	if p.Tier == "" {
		p.Tier = TierNone
	}
	p.FloralSource = strings.TrimSpace(p.FloralSource)
	p.CertificationNumber = strings.TrimSpace(p.CertificationNumber)
	p.Certifications = normalizeCertifications(p.Certifications)
	return &p, nil
}

// Validate performs format checks only. Quality judgments live in the
// reviewed documents the certificate references.
func (e *Extension) Validate(payload models.ProductPayload) error {
	p, err := asHoney(payload)
	if err != nil {
		return err
	}
	if p.Moisture == 0 {
		return dErrors.New(dErrors.CodeValidation, "moisture must be greater than zero")
	}
	if strings.TrimSpace(p.FloralSource) == "" {
		return dErrors.New(dErrors.CodeValidation, "floral source is required")
	}
	if !p.Tier.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown certification tier")
	}
	if p.Tier != TierNone && strings.TrimSpace(p.CertificationNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "certification number is required for tier "+p.Tier.String())
	}
	return nil
}

// Persist stores the payload and counts the issuance under its tier. It
// runs inside the issuing section.
func (e *Extension) Persist(ctx context.Context, id domain.CertificateID, payload models.ProductPayload) error {
	p, err := asHoney(payload)
	if err != nil {
		return err
	}
	if err := e.store.Save(ctx, id, *p); err != nil {
		return err
	}
	return e.store.IncrementTier(ctx, p.Tier)
}

func (e *Extension) Payload(ctx context.Context, id domain.CertificateID) (models.ProductPayload, error) {
	p, err := e.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// TierCount is the number of certificates ever issued at tier.
func (e *Extension) TierCount(ctx context.Context, tier Tier) (uint64, error) {
	if !tier.IsValid() {
		return 0, dErrors.New(dErrors.CodeValidation, "unknown certification tier")
	}
	var n uint64
	err := e.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		n, err = e.store.TierCount(ctx, tier)
		if errors.Is(err, sentinel.ErrNotFound) {
			n, err = 0, nil
		}
		return err
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read tier counter")
	}
	return n, nil
}

func asHoney(payload models.ProductPayload) (*Payload, error) {
	switch p := payload.(type) {
	case *Payload:
		if p != nil {
			return p, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeValidation, "honey payload is required")
}

// normalizeCertifications trims entries and drops blanks and repeats. Repeats
// compare case-insensitively; the first spelling wins.
func normalizeCertifications(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
