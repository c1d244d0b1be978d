package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/parcelgrid/wallet-backend/pkg/config"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Square charges wallets through the Square Payments API.
type Square struct {
	sdk        *sqclient.Client
	locationID string
	logg       *logger.Logger
}

// NewSquare validates credentials and builds the Square provider.
func NewSquare(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Square, error) {
	token := strings.TrimSpace(cfg.SquareAccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}
	env := strings.ToLower(strings.TrimSpace(cfg.SquareEnvironment))
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	}
	if strings.TrimSpace(cfg.SquareLocationID) == "" {
		return nil, errors.New("square location id is required")
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(token),
	)
	if logg != nil {
		logg.Info(ctx, "square gateway initialized")
	}
	return &Square{sdk: sdk, locationID: cfg.SquareLocationID, logg: logg}, nil
}

func (s *Square) Name() string {
	return ProviderSquare
}

func (s *Square) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	currency := sq.Currency(string(req.Currency))
	note := fmt.Sprintf("wallet top-up %s", req.TopUpID)
	reference := req.TopUpID.String()
	payment := &sq.CreatePaymentRequest{
		IdempotencyKey: req.IdempotencyKey,
		SourceID:       req.SourceID,
		LocationID:     &s.locationID,
		AmountMoney: &sq.Money{
			Amount:   &req.AmountCents,
			Currency: &currency,
		},
		Note:        &note,
		ReferenceID: &reference,
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"topup_id":     req.TopUpID.String(),
			"amount_cents": req.AmountCents,
		})
		s.logg.Info(logCtx, "square charge requested")
	}

	resp, err := s.sdk.Payments.Create(ctx, payment)
	if err != nil {
		return nil, s.mapError(err)
	}

	settled := resp.GetPayment()
	if settled == nil || settled.GetID() == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment")
	}
	return &ChargeResult{Reference: *settled.GetID()}, nil
}

func (s *Square) mapError(err error) error {
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge declined by provider").
				WithDetails(map[string]any{"status": apiErr.StatusCode})
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square charge failed")
}
