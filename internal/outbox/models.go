// Package outbox is the append-only notification log. Every committed
// mutation of the registry or the ledger appends exactly one event, inside the
// same critical section, so sequence order equals commit order. Relay workers
// forward committed events to external sinks for indexing.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of notification types.
type Kind string

const (
	KindCertificateIssued  Kind = "certificate_issued"
	KindCertificateRevoked Kind = "certificate_revoked"
	KindRoleGranted        Kind = "role_granted"
	KindRoleRevoked        Kind = "role_revoked"
	KindOperationRecorded  Kind = "operation_recorded"
)

var kinds = map[Kind]struct{}{
	KindCertificateIssued:  {},
	KindCertificateRevoked: {},
	KindRoleGranted:        {},
	KindRoleRevoked:        {},
	KindOperationRecorded:  {},
}

func (k Kind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

// Event is one committed notification. Sequence is dense, 1-based and shared
// by all kinds.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Sequence   uint64          `json:"sequence"`
	Kind       Kind            `json:"kind"`
	Aggregate  string          `json:"aggregate"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
