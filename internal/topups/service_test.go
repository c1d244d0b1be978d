package topups

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/wallet-backend/internal/gateway"
	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/notifications"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/db/dbtest"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
)

type topupsFixture struct {
	client   *db.Client
	wallets  *wallet.Service
	topups   *Service
	provider *gateway.Static
}

func newTopUpsFixture(t *testing.T) *topupsFixture {
	t.Helper()
	client := dbtest.Open(t)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{Repo: ledger.NewRepository(client.DB())})
	require.NoError(t, err)

	notifySvc, err := notifications.NewService(notifications.ServiceParams{
		Repo: notifications.NewRepository(client.DB()),
	})
	require.NoError(t, err)

	walletSvc, err := wallet.NewService(wallet.ServiceParams{
		DB:            client,
		Repo:          wallet.NewRepository(client.DB()),
		Ledger:        ledgerSvc,
		Notifications: notifySvc,
	})
	require.NoError(t, err)

	provider := gateway.NewStatic()
	topupSvc, err := NewService(ServiceParams{
		DB:      client,
		Repo:    NewRepository(client.DB()),
		Wallets: walletSvc,
		Ledger:  ledgerSvc,
		Gateway: provider,
	})
	require.NoError(t, err)

	return &topupsFixture{client: client, wallets: walletSvc, topups: topupSvc, provider: provider}
}

func (f *topupsFixture) newWallet(t *testing.T) *models.Wallet {
	t.Helper()
	w, err := f.wallets.GetOrCreate(context.Background(), wallet.GetOrCreateParams{
		AccountID: uuid.New(),
		Currency:  enums.CurrencyUSD,
	})
	require.NoError(t, err)
	return w
}

func TestInitiateCreditsWalletOnSettlement(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)

	topup, err := f.topups.Initiate(context.Background(), InitiateParams{
		WalletID:       w.ID,
		AmountCents:    2500,
		Currency:       enums.CurrencyUSD,
		SourceID:       "card-1",
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.TopUpStatusSuccess, topup.Status)
	require.NotNil(t, topup.ConfirmedAt)
	require.NotNil(t, topup.GatewayReference)
	require.Equal(t, gateway.ProviderStatic, topup.Gateway)

	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2500, balance.AvailableCents)

	var entry models.LedgerEntry
	require.NoError(t, f.client.DB().
		Where("wallet_id = ? AND type = ?", w.ID, enums.TransactionTypeTopUp).
		First(&entry).Error)
	require.Equal(t, enums.EntryDirectionCredit, entry.Direction)
	require.Equal(t, topup.ID.String(), entry.ReferenceID)
}

func TestInitiateDeclinedSourceFailsWithoutCredit(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)

	topup, err := f.topups.Initiate(context.Background(), InitiateParams{
		WalletID:       w.ID,
		AmountCents:    1000,
		SourceID:       gateway.SourceDeclined,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.TopUpStatusFailed, topup.Status)
	require.NotNil(t, topup.FailureReason)

	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.Zero(t, balance.AvailableCents)
}

func TestInitiateIdempotencyReplaySkipsGateway(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)
	key := uuid.NewString()

	params := InitiateParams{
		WalletID:       w.ID,
		AmountCents:    1000,
		SourceID:       "card-2",
		IdempotencyKey: key,
	}
	first, err := f.topups.Initiate(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, 1, f.provider.ChargeCount())

	second, err := f.topups.Initiate(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.provider.ChargeCount())

	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1000, balance.AvailableCents)

	// Same key, different amount is a conflict.
	params.AmountCents = 2000
	_, err = f.topups.Initiate(context.Background(), params)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeIdempotency))
}

func TestInitiateRejectsCurrencyMismatch(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)

	_, err := f.topups.Initiate(context.Background(), InitiateParams{
		WalletID:       w.ID,
		AmountCents:    500,
		Currency:       enums.CurrencyEUR,
		SourceID:       "card-3",
		IdempotencyKey: uuid.NewString(),
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeCurrencyMismatch))
}

func TestInitiateRejectsFrozenWallet(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)
	_, err := f.wallets.Freeze(context.Background(), wallet.SetStatusParams{WalletID: w.ID})
	require.NoError(t, err)

	_, err = f.topups.Initiate(context.Background(), InitiateParams{
		WalletID:       w.ID,
		AmountCents:    500,
		SourceID:       "card-4",
		IdempotencyKey: uuid.NewString(),
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeWalletInactive))
}

func TestConfirmIsIdempotentAndFinal(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)

	topup, err := f.topups.Initiate(context.Background(), InitiateParams{
		WalletID:       w.ID,
		AmountCents:    1000,
		SourceID:       "card-5",
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.TopUpStatusSuccess, topup.Status)

	// A duplicate confirm does not double-credit.
	again, err := f.topups.Confirm(context.Background(), ConfirmParams{TopUpID: topup.ID})
	require.NoError(t, err)
	require.Equal(t, enums.TopUpStatusSuccess, again.Status)

	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1000, balance.AvailableCents)

	// Failing a settled top-up is a conflict.
	_, err = f.topups.Fail(context.Background(), FailParams{TopUpID: topup.ID, Reason: "late decline"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyFinalized))
}

func TestConfirmAfterFailIsRejected(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)

	topup, err := f.topups.Initiate(context.Background(), InitiateParams{
		WalletID:       w.ID,
		AmountCents:    1000,
		SourceID:       gateway.SourceDeclined,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.TopUpStatusFailed, topup.Status)

	_, err = f.topups.Confirm(context.Background(), ConfirmParams{TopUpID: topup.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyFinalized))
}

func TestConfirmRejectsExpiredPending(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)

	// Pending past its window, but the sweep has not reached it yet.
	stale := &models.TopUp{
		WalletID:       w.ID,
		AmountCents:    500,
		Currency:       w.Currency,
		Status:         enums.TopUpStatusPending,
		IdempotencyKey: uuid.NewString(),
		Gateway:        gateway.ProviderStatic,
		ExpiresAt:      time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, f.client.DB().Create(stale).Error)

	_, err := f.topups.Confirm(context.Background(), ConfirmParams{
		TopUpID:          stale.ID,
		GatewayReference: "late-settlement",
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyFinalized))

	// The wallet was never credited and the row is finalized as failed.
	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.Zero(t, balance.AvailableCents)

	finalized, err := f.topups.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.TopUpStatusFailed, finalized.Status)
	require.NotNil(t, finalized.FailureReason)

	var entries int64
	require.NoError(t, f.client.DB().
		Model(&models.LedgerEntry{}).
		Where("wallet_id = ?", w.ID).
		Count(&entries).Error)
	require.Zero(t, entries)
}

func TestExpireDueFailsStalePending(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)

	stale := &models.TopUp{
		WalletID:       w.ID,
		AmountCents:    1000,
		Currency:       w.Currency,
		Status:         enums.TopUpStatusPending,
		IdempotencyKey: uuid.NewString(),
		Gateway:        gateway.ProviderStatic,
		ExpiresAt:      time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, f.client.DB().Create(stale).Error)

	fresh := &models.TopUp{
		WalletID:       w.ID,
		AmountCents:    1000,
		Currency:       w.Currency,
		Status:         enums.TopUpStatusPending,
		IdempotencyKey: uuid.NewString(),
		Gateway:        gateway.ProviderStatic,
		ExpiresAt:      time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, f.client.DB().Create(fresh).Error)

	expired, err := f.topups.ExpireDue(context.Background(), time.Now().UTC(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	swept, err := f.topups.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.TopUpStatusFailed, swept.Status)
	require.NotNil(t, swept.FailureReason)

	kept, err := f.topups.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	require.Equal(t, enums.TopUpStatusPending, kept.Status)
}

func TestAutoTopUpFiresOncePerDay(t *testing.T) {
	t.Parallel()

	f := newTopUpsFixture(t)
	w := f.newWallet(t)
	w.LowBalanceThresholdCents = 500
	w.AutoTopUpEnabled = true
	w.AutoTopUpAmountCents = 2000
	require.NoError(t, f.client.DB().Save(w).Error)

	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	initiated, err := f.topups.AutoTopUp(context.Background(), now, 100)
	require.NoError(t, err)
	require.Equal(t, 1, initiated)

	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2000, balance.AvailableCents)

	// The wallet recovered above its threshold; the next sweep sees no
	// candidates and the day-scoped key guards a same-day rerun anyway.
	initiated, err = f.topups.AutoTopUp(context.Background(), now.Add(time.Hour), 100)
	require.NoError(t, err)
	require.Zero(t, initiated)
	require.Equal(t, 1, f.provider.ChargeCount())
}
