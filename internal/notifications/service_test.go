package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/wallet-backend/pkg/db"
	"github.com/parcelgrid/wallet-backend/pkg/db/dbtest"
	"github.com/parcelgrid/wallet-backend/pkg/db/models"
)

// captureDispatcher records delivered notifications and optionally fails.
type captureDispatcher struct {
	delivered []*models.Notification
	err       error
}

func (d *captureDispatcher) DispatchLowBalance(_ context.Context, notification *models.Notification) error {
	if d.err != nil {
		return d.err
	}
	d.delivered = append(d.delivered, notification)
	return nil
}

func newNotificationsService(t *testing.T, dispatcher Dispatcher) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(client.DB()),
		Dispatcher: dispatcher,
	})
	require.NoError(t, err)
	return svc, client
}

func lowBalanceWallet() *models.Wallet {
	return &models.Wallet{
		ID:                       uuid.New(),
		AvailableCents:           300,
		ReservedCents:            100,
		LowBalanceThresholdCents: 500,
	}
}

func TestRecordCrossingPersistsSnapshot(t *testing.T) {
	t.Parallel()

	svc, client := newNotificationsService(t, nil)
	wallet := lowBalanceWallet()

	notification, err := svc.RecordCrossing(context.Background(), nil, wallet)
	require.NoError(t, err)
	require.Equal(t, KindLowBalance, notification.Kind)
	require.EqualValues(t, 200, notification.EffectiveCents)
	require.EqualValues(t, 500, notification.ThresholdCents)
	require.Nil(t, notification.DispatchedAt)

	var stored models.Notification
	require.NoError(t, client.DB().First(&stored, "id = ?", notification.ID).Error)
	require.Equal(t, wallet.ID, stored.WalletID)
}

func TestDispatchDeliversAndStamps(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{}
	svc, client := newNotificationsService(t, dispatcher)
	wallet := lowBalanceWallet()

	notification, err := svc.RecordCrossing(context.Background(), nil, wallet)
	require.NoError(t, err)

	svc.Dispatch(context.Background(), notification)
	require.Len(t, dispatcher.delivered, 1)

	var stored models.Notification
	require.NoError(t, client.DB().First(&stored, "id = ?", notification.ID).Error)
	require.NotNil(t, stored.DispatchedAt)
}

func TestDispatchFailureLeavesRowUnstamped(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{err: errors.New("webhook down")}
	svc, client := newNotificationsService(t, dispatcher)
	wallet := lowBalanceWallet()

	notification, err := svc.RecordCrossing(context.Background(), nil, wallet)
	require.NoError(t, err)

	svc.Dispatch(context.Background(), notification)

	var stored models.Notification
	require.NoError(t, client.DB().First(&stored, "id = ?", notification.ID).Error)
	require.Nil(t, stored.DispatchedAt)
}

func TestDispatchNilNotificationIsNoOp(t *testing.T) {
	t.Parallel()

	dispatcher := &captureDispatcher{}
	svc, _ := newNotificationsService(t, dispatcher)
	svc.Dispatch(context.Background(), nil)
	require.Empty(t, dispatcher.delivered)
}

func TestListByWalletHonorsLimit(t *testing.T) {
	t.Parallel()

	svc, _ := newNotificationsService(t, nil)
	wallet := lowBalanceWallet()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordCrossing(context.Background(), nil, wallet)
		require.NoError(t, err)
	}

	rows, err := svc.ListByWallet(context.Background(), wallet.ID, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = svc.ListByWallet(context.Background(), uuid.New(), 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}
