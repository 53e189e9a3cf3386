package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrace/internal/traceability/models"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
)

func TestInMemory_AppendIsDense(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	require.NoError(t, s.Append(ctx, &models.Operation{ID: 1, EPC: "a"}))
	assert.ErrorIs(t, s.Append(ctx, &models.Operation{ID: 3, EPC: "c"}), sentinel.ErrConflict)

	op, err := s.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", op.EPC)

	_, err = s.FindByID(ctx, 0)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemory_AppendUndoneOnRollback(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	runner := tx.NewSerial()

	boom := errors.New("boom")
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Append(ctx, &models.Operation{ID: domain.OperationID(1)}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
