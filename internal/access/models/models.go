// Package models defines role membership for the authorization registry.
package models

import (
	"strings"
	"time"

	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
)

// Role is one of the two independent role sets.
type Role string

const (
	RoleIssuer   Role = "issuer"
	RoleOperator Role = "operator"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleIssuer, RoleOperator}

func (r Role) IsValid() bool {
	switch r {
	case RoleIssuer, RoleOperator:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts the role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown role "+s)
	}
	return r, nil
}

// Member is an explicit grant of a role to an actor.
type Member struct {
	Role      Role
	Actor     domain.Address
	GrantedBy domain.Address
	GrantedAt time.Time
}

// Change is the payload of role_granted and role_revoked notifications.
type Change struct {
	Role      Role           `json:"role"`
	Actor     domain.Address `json:"actor"`
	ChangedBy domain.Address `json:"changed_by"`
	ChangedAt time.Time      `json:"changed_at"`
}

// BatchResult reports which actors a batch grant added and which it skipped.
type BatchResult struct {
	Granted []domain.Address
	Skipped int
}
