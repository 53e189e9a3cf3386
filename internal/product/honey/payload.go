// Package honey is the honey product family: its payload, certification
// tiers and per-tier issuance counters.
package honey

import (
	"strings"

	dErrors "certtrace/pkg/domain-errors"
)

// ProductType tags certificates issued for honey.
const ProductType = "honey"

// Tier is the officially assigned certification level. Tiers are ordered
// from least to most demanding.
type Tier string

const (
	TierNone          Tier = "none"
	TierSanitary      Tier = "sanitary"
	TierExport        Tier = "export"
	TierOrganicExport Tier = "organic_export"
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierNone, TierSanitary, TierExport, TierOrganicExport}

// Rank is the tier's position in Tiers, or -1 for unknown tiers.
func (t Tier) Rank() int {
	for i, known := range Tiers {
		if t == known {
			return i
		}
	}
	return -1
}

func (t Tier) IsValid() bool {
	return t.Rank() >= 0
}

func (t Tier) String() string {
	return string(t)
}

// ParseTier accepts a tier name case-insensitively. Empty means none.
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TierNone, nil
	}
	t := Tier(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown certification tier "+s)
	}
	return t, nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Payload is the honey product payload. Moisture and HMF are fixed-point
// integers scaled by 100 (1725 is 17.25).
type Payload struct {
	FloralSource        string   `json:"floral_source"`
	Color               string   `json:"color"`
	Moisture            uint32   `json:"moisture"`
	HMF                 uint32   `json:"hmf"`
	ApiaryType          string   `json:"apiary_type"`
	Tier                Tier     `json:"tier"`
	CertificationNumber string   `json:"certification_number,omitempty"`
	Certifications      []string `json:"certifications,omitempty"`
}

func (p *Payload) ProductType() string {
	return ProductType
}
