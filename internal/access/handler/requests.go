package handler

import (
	"strings"

	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
)

// maxBatchSize bounds a single batch grant request.
const maxBatchSize = 500

type GrantRequest struct {
	Actor string `json:"actor"`

	parsed domain.Address
}

func (r *GrantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	actor, err := domain.ParseAddress(strings.TrimSpace(r.Actor))
	if err != nil {
		return err
	}
	r.parsed = actor
	return nil
}

type BatchGrantRequest struct {
	Actors []string `json:"actors"`

	parsed []domain.Address
}

func (r *BatchGrantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Actors) > maxBatchSize {
		return dErrors.New(dErrors.CodeValidation, "too many actors in one batch")
	}
	r.parsed = make([]domain.Address, 0, len(r.Actors))
	for _, raw := range r.Actors {
		actor, err := domain.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		r.parsed = append(r.parsed, actor)
	}
	return nil
}

type MemberResponse struct {
	Actor     string `json:"actor"`
	GrantedBy string `json:"granted_by"`
	GrantedAt string `json:"granted_at"`
}

type BatchGrantResponse struct {
	Granted []string `json:"granted"`
	Skipped int      `json:"skipped"`
}
