package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
)

func TestParseEventType(t *testing.T) {
	got, err := ParseEventType("transformationevent")
	require.NoError(t, err)
	assert.Equal(t, EventTransformation, got)

	_, err = ParseEventType("QuantityEvent")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestParseAction(t *testing.T) {
	got, err := ParseAction("observe")
	require.NoError(t, err)
	assert.Equal(t, ActionObserve, got)

	_, err = ParseAction("UPDATE")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestEntryValidate(t *testing.T) {
	valid := Entry{
		EventType:      EventObject,
		Action:         ActionAdd,
		EPC:            "urn:epc:id:sgtin:0614141.107346.2017",
		DocumentDigest: domain.Digest{1},
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Entry){
		"empty epc":      func(e *Entry) { e.EPC = " " },
		"zero digest":    func(e *Entry) { e.DocumentDigest = domain.Digest{} },
		"unknown event":  func(e *Entry) { e.EventType = "QuantityEvent" },
		"unknown action": func(e *Entry) { e.Action = "UPDATE" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			e := valid
			mutate(&e)
			assert.True(t, dErrors.HasCode(e.Validate(), dErrors.CodeValidation))
		})
	}
}

func TestMatchesIsExact(t *testing.T) {
	op := Operation{DocumentDigest: domain.Digest{0xaa, 0xbb}}
	assert.True(t, op.Matches(domain.Digest{0xaa, 0xbb}))
	assert.False(t, op.Matches(domain.Digest{0xaa, 0xbc}))
}
