// Package gateway abstracts the external payment provider that funds
// top-ups. Gateway calls always happen outside wallet-locking transactions:
// the engine records intent first, calls the provider, then finalizes.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/parcelgrid/wallet-backend/pkg/config"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

const (
	ProviderStatic = "static"
	ProviderSquare = "square"
)

// ChargeRequest describes one funding attempt.
type ChargeRequest struct {
	TopUpID        uuid.UUID
	AmountCents    int64
	Currency       enums.Currency
	SourceID       string
	IdempotencyKey string
}

// ChargeResult carries the provider-side reference of a settled charge.
type ChargeResult struct {
	Reference string
}

// Client is the provider surface the top-up service depends on.
type Client interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// New selects the configured provider.
func New(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (Client, error) {
	switch cfg.Provider {
	case ProviderStatic, "":
		return NewStatic(), nil
	case ProviderSquare:
		return NewSquare(ctx, cfg, logg)
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.Provider)
	}
}
