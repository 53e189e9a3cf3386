package honey_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrace/internal/certificate/models"
	"certtrace/internal/product/honey"
	"certtrace/internal/product/honey/store"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
	"certtrace/pkg/platform/tx"
)

type otherPayload struct{}

func (otherPayload) ProductType() string { return "wine" }

func validPayload() *honey.Payload {
	return &honey.Payload{
		FloralSource:        "Ulmo",
		Color:               "amber",
		Moisture:            1725,
		HMF:                 1210,
		ApiaryType:          "fixed",
		Tier:                honey.TierExport,
		CertificationNumber: "SAG-2025-0042",
	}
}

func TestDecode(t *testing.T) {
	ext := honey.NewExtension(store.NewInMemory(), tx.NewSerial())

	t.Run("normalizes fields", func(t *testing.T) {
		raw := json.RawMessage(`{
			"floral_source": " Ulmo ",
			"moisture": 1725,
			"tier": "Organic_Export",
			"certification_number": "SAG-1",
			"certifications": [" EU-Organic", "EU-Organic", "", "USDA"]
		}`)
		decoded, err := ext.Decode(raw)
		require.NoError(t, err)
		p, ok := decoded.(*honey.Payload)
		require.True(t, ok)
		assert.Equal(t, "Ulmo", p.FloralSource)
		assert.Equal(t, honey.TierOrganicExport, p.Tier)
		assert.Equal(t, []string{"EU-Organic", "USDA"}, p.Certifications)
	})

	t.Run("missing tier means none", func(t *testing.T) {
		decoded, err := ext.Decode(json.RawMessage(`{"floral_source":"Quillay","moisture":1800}`))
		require.NoError(t, err)
		assert.Equal(t, honey.TierNone, decoded.(*honey.Payload).Tier)
	})

	t.Run("unknown tier", func(t *testing.T) {
		_, err := ext.Decode(json.RawMessage(`{"floral_source":"Ulmo","moisture":1,"tier":"gold"}`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := ext.Decode(json.RawMessage(`{"floral_source":"Ulmo","sweetness":9}`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestValidate(t *testing.T) {
	ext := honey.NewExtension(store.NewInMemory(), tx.NewSerial())

	require.NoError(t, ext.Validate(validPayload()))

	cases := []struct {
		name    string
		payload func() models.ProductPayload
	}{
		{"zero moisture", func() models.ProductPayload { p := validPayload(); p.Moisture = 0; return p }},
		{"empty floral source", func() models.ProductPayload { p := validPayload(); p.FloralSource = " "; return p }},
		{"tier without certification number", func() models.ProductPayload { p := validPayload(); p.CertificationNumber = ""; return p }},
		{"unknown tier", func() models.ProductPayload { p := validPayload(); p.Tier = "gold"; return p }},
		{"nil payload", func() models.ProductPayload { return (*honey.Payload)(nil) }},
		{"missing payload", func() models.ProductPayload { return nil }},
		{"other product", func() models.ProductPayload { return otherPayload{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ext.Validate(tc.payload())
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}

	t.Run("tier none needs no certification number", func(t *testing.T) {
		p := validPayload()
		p.Tier = honey.TierNone
		p.CertificationNumber = ""
		assert.NoError(t, ext.Validate(p))
	})
}

func TestPersistCountsTiers(t *testing.T) {
	ctx := context.Background()
	runner := tx.NewSerial()
	ext := honey.NewExtension(store.NewInMemory(), runner)

	for i, tier := range []honey.Tier{honey.TierExport, honey.TierExport, honey.TierNone} {
		p := validPayload()
		p.Tier = tier
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			return ext.Persist(ctx, idOf(i+1), p)
		})
		require.NoError(t, err)
	}

	export, err := ext.TierCount(ctx, honey.TierExport)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), export)

	none, err := ext.TierCount(ctx, honey.TierNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), none)

	organic, err := ext.TierCount(ctx, honey.TierOrganicExport)
	require.NoError(t, err)
	assert.Zero(t, organic)

	got, err := ext.Payload(ctx, idOf(1))
	require.NoError(t, err)
	assert.Equal(t, "SAG-2025-0042", got.(*honey.Payload).CertificationNumber)
}

func TestPersistRolledBackWithSection(t *testing.T) {
	ctx := context.Background()
	runner := tx.NewSerial()
	ext := honey.NewExtension(store.NewInMemory(), runner)

	boom := errors.New("emit failed")
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := ext.Persist(ctx, idOf(1), validPayload()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := ext.TierCount(ctx, honey.TierExport)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = ext.Payload(ctx, idOf(1))
	assert.Error(t, err)
}

func TestTierOrder(t *testing.T) {
	assert.Less(t, honey.TierNone.Rank(), honey.TierSanitary.Rank())
	assert.Less(t, honey.TierSanitary.Rank(), honey.TierExport.Rank())
	assert.Less(t, honey.TierExport.Rank(), honey.TierOrganicExport.Rank())
	assert.Equal(t, -1, honey.Tier("gold").Rank())
}

func idOf(n int) domain.CertificateID { return domain.CertificateID(n) }
