package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/notifications"
	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/db/dbtest"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
)

func newWalletService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{Repo: ledger.NewRepository(client.DB())})
	require.NoError(t, err)

	notifySvc, err := notifications.NewService(notifications.ServiceParams{
		Repo: notifications.NewRepository(client.DB()),
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		DB:            client,
		Repo:          NewRepository(client.DB()),
		Ledger:        ledgerSvc,
		Notifications: notifySvc,
	})
	require.NoError(t, err)
	return svc, client
}

func createWallet(t *testing.T, svc *Service, threshold int64) *models.Wallet {
	t.Helper()
	wallet, err := svc.GetOrCreate(context.Background(), GetOrCreateParams{
		AccountID:                uuid.New(),
		Currency:                 enums.CurrencyUSD,
		LowBalanceThresholdCents: threshold,
	})
	require.NoError(t, err)
	return wallet
}

func fundWallet(t *testing.T, client *db.Client, wallet *models.Wallet, cents int64) {
	t.Helper()
	wallet.AvailableCents += cents
	wallet.TotalCreditedCents += cents
	require.NoError(t, client.DB().Save(wallet).Error)
	require.NoError(t, client.DB().Create(&models.LedgerEntry{
		WalletID:            wallet.ID,
		Sequence:            1,
		Direction:           enums.EntryDirectionCredit,
		AmountCents:         cents,
		RunningBalanceCents: wallet.AvailableCents,
		Type:                enums.TransactionTypeTopUp,
		ReferenceType:       "topup",
		ReferenceID:         uuid.NewString(),
		CorrelationID:       uuid.NewString(),
	}).Error)
}

func TestGetOrCreateReturnsExistingWallet(t *testing.T) {
	t.Parallel()

	svc, _ := newWalletService(t)
	accountID := uuid.New()

	first, err := svc.GetOrCreate(context.Background(), GetOrCreateParams{
		AccountID: accountID,
		Currency:  enums.CurrencyUSD,
	})
	require.NoError(t, err)

	second, err := svc.GetOrCreate(context.Background(), GetOrCreateParams{
		AccountID: accountID,
		Currency:  enums.CurrencyUSD,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// A second currency for the same account is a distinct wallet.
	other, err := svc.GetOrCreate(context.Background(), GetOrCreateParams{
		AccountID: accountID,
		Currency:  enums.CurrencyEUR,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestGetOrCreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	svc, _ := newWalletService(t)

	_, err := svc.GetOrCreate(context.Background(), GetOrCreateParams{Currency: enums.CurrencyUSD})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.GetOrCreate(context.Background(), GetOrCreateParams{
		AccountID: uuid.New(),
		Currency:  enums.Currency("XXX"),
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.GetOrCreate(context.Background(), GetOrCreateParams{
		AccountID:                uuid.New(),
		Currency:                 enums.CurrencyUSD,
		LowBalanceThresholdCents: -1,
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDirectDebitPostsEntryAndReducesBalance(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 0)
	fundWallet(t, client, wallet, 1000)

	entry, err := svc.DirectDebit(context.Background(), DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   400,
		Currency:      enums.CurrencyUSD,
		ReferenceType: "order",
		ReferenceID:   "order-1",
	})
	require.NoError(t, err)
	require.Equal(t, enums.EntryDirectionDebit, entry.Direction)
	require.EqualValues(t, 400, entry.AmountCents)
	require.EqualValues(t, 600, entry.RunningBalanceCents)

	balance, err := svc.GetBalance(context.Background(), wallet.ID)
	require.NoError(t, err)
	require.EqualValues(t, 600, balance.AvailableCents)
	require.EqualValues(t, 600, balance.EffectiveCents)
}

func TestDirectDebitReplaysSameReference(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 0)
	fundWallet(t, client, wallet, 1000)

	params := DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   300,
		ReferenceType: "order",
		ReferenceID:   "order-7",
	}
	first, err := svc.DirectDebit(context.Background(), params)
	require.NoError(t, err)

	second, err := svc.DirectDebit(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// Only one debit was charged.
	balance, err := svc.GetBalance(context.Background(), wallet.ID)
	require.NoError(t, err)
	require.EqualValues(t, 700, balance.AvailableCents)
}

func TestDirectDebitRejectsInsufficientBalance(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 0)
	fundWallet(t, client, wallet, 100)

	_, err := svc.DirectDebit(context.Background(), DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   200,
		ReferenceType: "order",
		ReferenceID:   "order-2",
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientBalance))
}

func TestDirectDebitRejectsFrozenWallet(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 0)
	fundWallet(t, client, wallet, 1000)

	_, err := svc.Freeze(context.Background(), SetStatusParams{WalletID: wallet.ID})
	require.NoError(t, err)

	_, err = svc.DirectDebit(context.Background(), DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   100,
		ReferenceType: "order",
		ReferenceID:   "order-3",
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeWalletInactive))
}

func TestDirectDebitRejectsCurrencyMismatch(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 0)
	fundWallet(t, client, wallet, 1000)

	_, err := svc.DirectDebit(context.Background(), DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   100,
		Currency:      enums.CurrencyEUR,
		ReferenceType: "order",
		ReferenceID:   "order-4",
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeCurrencyMismatch))
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	svc, _ := newWalletService(t)
	wallet := createWallet(t, svc, 0)

	frozen, err := svc.Freeze(context.Background(), SetStatusParams{WalletID: wallet.ID})
	require.NoError(t, err)
	require.Equal(t, enums.WalletStatusFrozen, frozen.Status)

	// Freezing again is a no-op, not an error.
	frozen, err = svc.Freeze(context.Background(), SetStatusParams{WalletID: wallet.ID})
	require.NoError(t, err)
	require.Equal(t, enums.WalletStatusFrozen, frozen.Status)

	active, err := svc.Unfreeze(context.Background(), SetStatusParams{WalletID: wallet.ID})
	require.NoError(t, err)
	require.Equal(t, enums.WalletStatusActive, active.Status)

	closed, err := svc.Close(context.Background(), SetStatusParams{WalletID: wallet.ID})
	require.NoError(t, err)
	require.Equal(t, enums.WalletStatusClosed, closed.Status)

	// Closed wallets refuse every further transition.
	_, err = svc.Freeze(context.Background(), SetStatusParams{WalletID: wallet.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	_, err = svc.Unfreeze(context.Background(), SetStatusParams{WalletID: wallet.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestCloseRejectsReservedFunds(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 0)
	fundWallet(t, client, wallet, 1000)
	wallet.ReservedCents = 200
	require.NoError(t, client.DB().Save(wallet).Error)

	_, err := svc.Close(context.Background(), SetStatusParams{WalletID: wallet.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestReverseEntryRestoresBalance(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 0)
	fundWallet(t, client, wallet, 1000)

	entry, err := svc.DirectDebit(context.Background(), DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   250,
		ReferenceType: "order",
		ReferenceID:   "order-5",
	})
	require.NoError(t, err)

	reversal, err := svc.ReverseEntry(context.Background(), ReverseEntryParams{EntryID: entry.ID})
	require.NoError(t, err)
	require.Equal(t, enums.EntryDirectionCredit, reversal.Direction)
	require.EqualValues(t, 250, reversal.AmountCents)

	balance, err := svc.GetBalance(context.Background(), wallet.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1000, balance.AvailableCents)

	_, err = svc.ReverseEntry(context.Background(), ReverseEntryParams{EntryID: entry.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyFinalized))
}

func TestReverseCreditRequiresCoverage(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 0)
	fundWallet(t, client, wallet, 500)

	var credit models.LedgerEntry
	require.NoError(t, client.DB().
		Where("wallet_id = ?", wallet.ID).
		First(&credit).Error)

	// Spend most of the credit; reversing it would go negative.
	_, err := svc.DirectDebit(context.Background(), DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   400,
		ReferenceType: "order",
		ReferenceID:   "order-6",
	})
	require.NoError(t, err)

	_, err = svc.ReverseEntry(context.Background(), ReverseEntryParams{EntryID: credit.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientBalance))
}

func TestDebitRecordsLowBalanceCrossingOnce(t *testing.T) {
	t.Parallel()

	svc, client := newWalletService(t)
	wallet := createWallet(t, svc, 500)
	fundWallet(t, client, wallet, 1000)

	_, err := svc.DirectDebit(context.Background(), DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   600,
		ReferenceType: "order",
		ReferenceID:   "cross-1",
	})
	require.NoError(t, err)

	var rows []models.Notification
	require.NoError(t, client.DB().Where("wallet_id = ?", wallet.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, notifications.KindLowBalance, rows[0].Kind)
	require.EqualValues(t, 400, rows[0].EffectiveCents)
	require.EqualValues(t, 500, rows[0].ThresholdCents)

	reloaded, err := svc.Get(context.Background(), wallet.ID)
	require.NoError(t, err)
	require.True(t, reloaded.LowBalanceNotified)

	// Further debits below the threshold stay silent.
	_, err = svc.DirectDebit(context.Background(), DirectDebitParams{
		WalletID:      wallet.ID,
		AmountCents:   100,
		ReferenceType: "order",
		ReferenceID:   "cross-2",
	})
	require.NoError(t, err)
	require.NoError(t, client.DB().Where("wallet_id = ?", wallet.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
}

func TestClearLowBalanceIfRecovered(t *testing.T) {
	t.Parallel()

	svc, _ := newWalletService(t)
	wallet := &models.Wallet{
		AvailableCents:           1000,
		LowBalanceThresholdCents: 500,
		LowBalanceNotified:       true,
	}
	svc.ClearLowBalanceIfRecovered(wallet)
	require.False(t, wallet.LowBalanceNotified)

	under := &models.Wallet{
		AvailableCents:           100,
		LowBalanceThresholdCents: 500,
		LowBalanceNotified:       true,
	}
	svc.ClearLowBalanceIfRecovered(under)
	require.True(t, under.LowBalanceNotified)
}

func TestGetWalletNotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newWalletService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
