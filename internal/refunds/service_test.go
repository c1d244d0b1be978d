package refunds

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/wallet-backend/internal/ledger"
	"github.com/parcelgrid/wallet-backend/internal/notifications"
	"github.com/parcelgrid/wallet-backend/internal/wallet"
	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/db/dbtest"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/enums"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
)

type refundsFixture struct {
	client  *db.Client
	wallets *wallet.Service
	refunds *Service
}

func newRefundsFixture(t *testing.T) *refundsFixture {
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

	refundSvc, err := NewService(ServiceParams{
		DB:      client,
		Repo:    NewRepository(client.DB()),
		Wallets: walletSvc,
		Ledger:  ledgerSvc,
	})
	require.NoError(t, err)

	return &refundsFixture{client: client, wallets: walletSvc, refunds: refundSvc}
}

// debitedWallet provisions a wallet with a 1000-cent credit and a posted
// debit of the given amount, returning both.
func (f *refundsFixture) debitedWallet(t *testing.T, debitCents int64) (*models.Wallet, *models.LedgerEntry) {
	t.Helper()
	w, err := f.wallets.GetOrCreate(context.Background(), wallet.GetOrCreateParams{
		AccountID: uuid.New(),
		Currency:  enums.CurrencyUSD,
	})
	require.NoError(t, err)

	w.AvailableCents = 1000
	w.TotalCreditedCents = 1000
	require.NoError(t, f.client.DB().Save(w).Error)
	require.NoError(t, f.client.DB().Create(&models.LedgerEntry{
		WalletID:            w.ID,
		Sequence:            1,
		Direction:           enums.EntryDirectionCredit,
		AmountCents:         1000,
		RunningBalanceCents: 1000,
		Type:                enums.TransactionTypeTopUp,
		ReferenceType:       "topup",
		ReferenceID:         uuid.NewString(),
		CorrelationID:       uuid.NewString(),
	}).Error)

	entry, err := f.wallets.DirectDebit(context.Background(), wallet.DirectDebitParams{
		WalletID:      w.ID,
		AmountCents:   debitCents,
		ReferenceType: "order",
		ReferenceID:   uuid.NewString(),
	})
	require.NoError(t, err)
	return w, entry
}

func TestRefundCreditsWalletBack(t *testing.T) {
	t.Parallel()

	f := newRefundsFixture(t)
	w, debit := f.debitedWallet(t, 600)

	refund, err := f.refunds.Refund(context.Background(), RefundParams{
		OriginalEntryID: debit.ID,
		AmountCents:     200,
		Reason:          "partial cancellation",
		IdempotencyKey:  uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusProcessed, refund.Status)
	require.Equal(t, debit.ID, refund.OriginalEntryID)

	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.EqualValues(t, 600, balance.AvailableCents)

	var entry models.LedgerEntry
	require.NoError(t, f.client.DB().First(&entry, "id = ?", refund.LedgerEntryID).Error)
	require.Equal(t, enums.EntryDirectionCredit, entry.Direction)
	require.Equal(t, enums.TransactionTypeRefund, entry.Type)
	require.Equal(t, refund.ID.String(), entry.ReferenceID)
	// The refund credit carries the original debit's correlation id.
	require.Equal(t, debit.CorrelationID, entry.CorrelationID)
}

func TestRefundCapIsCumulative(t *testing.T) {
	t.Parallel()

	f := newRefundsFixture(t)
	w, debit := f.debitedWallet(t, 600)

	_, err := f.refunds.Refund(context.Background(), RefundParams{
		OriginalEntryID: debit.ID,
		AmountCents:     400,
		Reason:          "first",
		IdempotencyKey:  uuid.NewString(),
	})
	require.NoError(t, err)

	// 400 of 600 refunded; another 300 would overshoot.
	_, err = f.refunds.Refund(context.Background(), RefundParams{
		OriginalEntryID: debit.ID,
		AmountCents:     300,
		Reason:          "second",
		IdempotencyKey:  uuid.NewString(),
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeRefundExceedsDebit))

	// A rejected refund persists nothing.
	var count int64
	require.NoError(t, f.client.DB().
		Model(&models.Refund{}).
		Where("original_entry_id = ?", debit.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)

	// The exact remainder still goes through.
	_, err = f.refunds.Refund(context.Background(), RefundParams{
		OriginalEntryID: debit.ID,
		AmountCents:     200,
		Reason:          "remainder",
		IdempotencyKey:  uuid.NewString(),
	})
	require.NoError(t, err)

	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1000, balance.AvailableCents)
}

func TestRefundIdempotencyReplay(t *testing.T) {
	t.Parallel()

	f := newRefundsFixture(t)
	w, debit := f.debitedWallet(t, 600)
	key := uuid.NewString()

	params := RefundParams{
		OriginalEntryID: debit.ID,
		AmountCents:     150,
		Reason:          "damaged goods",
		IdempotencyKey:  key,
	}
	first, err := f.refunds.Refund(context.Background(), params)
	require.NoError(t, err)

	second, err := f.refunds.Refund(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// Replay did not credit twice.
	balance, err := f.wallets.GetBalance(context.Background(), w.ID)
	require.NoError(t, err)
	require.EqualValues(t, 550, balance.AvailableCents)

	params.AmountCents = 300
	_, err = f.refunds.Refund(context.Background(), params)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeIdempotency))
}

func TestRefundRejectsCreditEntries(t *testing.T) {
	t.Parallel()

	f := newRefundsFixture(t)
	w, _ := f.debitedWallet(t, 600)

	var credit models.LedgerEntry
	require.NoError(t, f.client.DB().
		Where("wallet_id = ? AND direction = ?", w.ID, enums.EntryDirectionCredit).
		First(&credit).Error)

	_, err := f.refunds.Refund(context.Background(), RefundParams{
		OriginalEntryID: credit.ID,
		AmountCents:     100,
		Reason:          "not refundable",
		IdempotencyKey:  uuid.NewString(),
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRefundRejectsFrozenWallet(t *testing.T) {
	t.Parallel()

	f := newRefundsFixture(t)
	w, debit := f.debitedWallet(t, 600)

	_, err := f.wallets.Freeze(context.Background(), wallet.SetStatusParams{WalletID: w.ID})
	require.NoError(t, err)

	_, err = f.refunds.Refund(context.Background(), RefundParams{
		OriginalEntryID: debit.ID,
		AmountCents:     100,
		Reason:          "late return",
		IdempotencyKey:  uuid.NewString(),
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeWalletInactive))
}

func TestListByWalletReturnsRecentRefunds(t *testing.T) {
	t.Parallel()

	f := newRefundsFixture(t)
	w, debit := f.debitedWallet(t, 600)

	for i := 0; i < 3; i++ {
		_, err := f.refunds.Refund(context.Background(), RefundParams{
			OriginalEntryID: debit.ID,
			AmountCents:     100,
			Reason:          "split refund",
			IdempotencyKey:  uuid.NewString(),
		})
		require.NoError(t, err)
	}

	rows, err := f.refunds.ListByWallet(context.Background(), w.ID, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
