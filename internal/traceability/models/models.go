// Package models defines ledger operations in EPCIS vocabulary.
package models

import (
	"strings"
	"time"

	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
)

// EventType is the EPCIS event category of an operation.
type EventType string

const (
	EventObject         EventType = "ObjectEvent"
	EventAggregation    EventType = "AggregationEvent"
	EventTransaction    EventType = "TransactionEvent"
	EventTransformation EventType = "TransformationEvent"
	EventAssociation    EventType = "AssociationEvent"
)

var EventTypes = []EventType{EventObject, EventAggregation, EventTransaction, EventTransformation, EventAssociation}

func (e EventType) IsValid() bool {
	for _, known := range EventTypes {
		if e == known {
			return true
		}
	}
	return false
}

func (e EventType) String() string {
	return string(e)
}

// ParseEventType accepts the EPCIS name, ignoring case.
func ParseEventType(s string) (EventType, error) {
	s = strings.TrimSpace(s)
	for _, known := range EventTypes {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown event type "+s)
}

func (e *EventType) UnmarshalText(text []byte) error {
	parsed, err := ParseEventType(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Action is the EPCIS action of an operation.
type Action string

const (
	ActionAdd     Action = "ADD"
	ActionObserve Action = "OBSERVE"
	ActionDelete  Action = "DELETE"
)

var Actions = []Action{ActionAdd, ActionObserve, ActionDelete}

func (a Action) IsValid() bool {
	switch a {
	case ActionAdd, ActionObserve, ActionDelete:
		return true
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown action "+s)
	}
	return a, nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Operation is one recorded supply-chain event. CertificateRef is not
// checked against the certificate registry.
type Operation struct {
	ID             domain.OperationID
	EventType      EventType
	Action         Action
	EPC            string
	CertificateRef uint64
	RecordedBy     domain.Address
	RecordedAt     time.Time
	DocumentDigest domain.Digest
}

// Matches reports whether candidate is byte-equal to the anchored digest.
func (o *Operation) Matches(candidate domain.Digest) bool {
	return o.DocumentDigest == candidate
}

// Entry is what a caller submits to be recorded.
type Entry struct {
	EventType      EventType
	Action         Action
	EPC            string
	CertificateRef uint64
	DocumentDigest domain.Digest
}

// Validate checks the fields the ledger requires.
func (e Entry) Validate() error {
	if !e.EventType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown event type")
	}
	if !e.Action.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown action")
	}
	if strings.TrimSpace(e.EPC) == "" {
		return dErrors.New(dErrors.CodeValidation, "epc is required")
	}
	if e.DocumentDigest.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "document digest must be non-zero")
	}
	return nil
}

// Recorded is the operation_recorded notification payload. It carries every
// field of the operation.
type Recorded struct {
	OperationID    domain.OperationID `json:"operation_id"`
	EventType      EventType          `json:"event_type"`
	Action         Action             `json:"action"`
	EPC            string             `json:"epc"`
	CertificateRef uint64             `json:"certificate_ref"`
	RecordedBy     domain.Address     `json:"recorded_by"`
	RecordedAt     time.Time          `json:"recorded_at"`
	DocumentDigest domain.Digest      `json:"document_digest"`
}
