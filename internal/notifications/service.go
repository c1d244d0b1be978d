package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

const KindLowBalance = "low_balance"

// Dispatcher delivers a low-balance alert to the outside world. Delivery is
// fire-and-forget: errors are logged, never propagated to the debit that
// triggered the alert.
type Dispatcher interface {
	DispatchLowBalance(ctx context.Context, notification *models.Notification) error
}

// LogDispatcher writes alerts to the structured log. Dev/test default.
type LogDispatcher struct {
	Logg *logger.Logger
}

func (d *LogDispatcher) DispatchLowBalance(ctx context.Context, notification *models.Notification) error {
	if d == nil || d.Logg == nil {
		return nil
	}
	ctx = d.Logg.WithFields(ctx, map[string]any{
		"wallet_id":       notification.WalletID.String(),
		"effective_cents": notification.EffectiveCents,
		"threshold_cents": notification.ThresholdCents,
	})
	d.Logg.Warn(ctx, "wallet balance below threshold")
	return nil
}

// ServiceParams groups dependencies for the notifications service.
type ServiceParams struct {
	Repo       Repository
	Dispatcher Dispatcher
	Logg       *logger.Logger
}

// Service records low-balance crossings and dispatches alerts after commit.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	logg       *logger.Logger
}

// NewService wires notifications dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &Service{
		repo:       params.Repo,
		dispatcher: params.Dispatcher,
		logg:       params.Logg,
	}, nil
}

// RecordCrossing persists a low-balance notification row inside the caller's
// transaction. The caller owns the wallet's low_balance_notified flag; this
// only creates the row that Dispatch later delivers.
func (s *Service) RecordCrossing(ctx context.Context, tx *gorm.DB, wallet *models.Wallet) (*models.Notification, error) {
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet is required")
	}
	notification := &models.Notification{
		WalletID:       wallet.ID,
		Kind:           KindLowBalance,
		EffectiveCents: wallet.EffectiveCents(),
		ThresholdCents: wallet.LowBalanceThresholdCents,
	}
	if err := s.repo.WithTx(tx).Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording low balance notification")
	}
	return notification, nil
}

// Dispatch delivers the alert and stamps dispatched_at. Called after the
// financial transaction committed; failures are swallowed after logging.
func (s *Service) Dispatch(ctx context.Context, notification *models.Notification) {
	if notification == nil || s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DispatchLowBalance(ctx, notification); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "dispatching low balance notification", err)
		}
		return
	}
	if err := s.repo.MarkDispatched(ctx, notification.ID, time.Now().UTC()); err != nil && s.logg != nil {
		s.logg.Error(ctx, "marking notification dispatched", err)
	}
}

// ListByWallet returns the most recent notifications for a wallet.
func (s *Service) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Notification, error) {
	if walletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	rows, err := s.repo.ListByWallet(ctx, walletID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing notifications")
	}
	return rows, nil
}
