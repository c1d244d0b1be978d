package gateway

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
)

func TestStaticChargeSettles(t *testing.T) {
	provider := NewStatic()
	result, err := provider.Charge(context.Background(), ChargeRequest{
		TopUpID:        uuid.New(),
		AmountCents:    2500,
		IdempotencyKey: "k-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Reference)
	require.Equal(t, 1, provider.ChargeCount())
}

func TestStaticChargeIdempotent(t *testing.T) {
	provider := NewStatic()
	ctx := context.Background()

	req := ChargeRequest{TopUpID: uuid.New(), AmountCents: 1000, IdempotencyKey: "same-key"}
	first, err := provider.Charge(ctx, req)
	require.NoError(t, err)
	second, err := provider.Charge(ctx, req)
	require.NoError(t, err)

	require.Equal(t, first.Reference, second.Reference)
	require.Equal(t, 1, provider.ChargeCount())
}

func TestStaticChargeDeclined(t *testing.T) {
	provider := NewStatic()
	_, err := provider.Charge(context.Background(), ChargeRequest{
		TopUpID:     uuid.New(),
		AmountCents: 500,
		SourceID:    SourceDeclined,
	})
	require.Error(t, err)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
	require.Equal(t, 0, provider.ChargeCount())
}

func TestStaticRejectsNonPositiveAmount(t *testing.T) {
	provider := NewStatic()
	_, err := provider.Charge(context.Background(), ChargeRequest{AmountCents: 0})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
