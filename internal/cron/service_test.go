package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/wallet-backend/pkg/db/models"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
	pkgredis "github.com/parcelgrid/wallet-backend/pkg/redis"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type fakeJob struct {
	name string
	runs int
	err  error
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type fakeLock struct {
	held     bool
	acquires int
	releases int
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	l.acquires++
	return !l.held, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.releases++
	return nil
}

func TestRegistrySkipsNilAndKeepsOrder(t *testing.T) {
	t.Parallel()

	first := &fakeJob{name: "first"}
	second := &fakeJob{name: "second"}

	registry := NewRegistry(first, nil)
	registry.Register(second)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, "first", jobs[0].Name())
	require.Equal(t, "second", jobs[1].Name())
}

func TestRunCycleRunsEveryJob(t *testing.T) {
	t.Parallel()

	healthy := &fakeJob{name: "healthy"}
	failing := &fakeJob{name: "failing", err: errors.New("boom")}
	trailing := &fakeJob{name: "trailing"}
	lock := &fakeLock{}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(healthy, failing, trailing),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	// A failing job does not stop the ones after it.
	require.Equal(t, 1, healthy.runs)
	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, trailing.runs)
	require.Equal(t, 1, lock.acquires)
	require.Equal(t, 1, lock.releases)
}

func TestRunCycleSkipsWhenLockContended(t *testing.T) {
	t.Parallel()

	job := &fakeJob{name: "sweep"}
	lock := &fakeLock{held: true}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	require.Zero(t, job.runs)
	require.Zero(t, lock.releases)
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	t.Parallel()

	mini := miniredis.RunT(t)
	client := pkgredis.NewFromAddr(mini.Addr())
	t.Cleanup(func() { _ = client.Close() })

	key := client.LockKey("wallet-sweeps")
	lock, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// A second worker cannot take the held lock.
	contender, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)
	ok, err = contender.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, lock.Release(context.Background()))

	ok, err = contender.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockReleaseOnlyWhenOwned(t *testing.T) {
	t.Parallel()

	mini := miniredis.RunT(t)
	client := pkgredis.NewFromAddr(mini.Addr())
	t.Cleanup(func() { _ = client.Close() })

	key := client.LockKey("wallet-sweeps")
	lock, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// The TTL lapsed and another worker took over; releasing must not evict
	// the new owner.
	mini.FastForward(2 * time.Minute)
	successor, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)
	ok, err = successor.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(context.Background()))
	_, err = client.Get(context.Background(), key)
	require.NoError(t, err)
}

type fakeExpirer struct {
	expired int
	batch   int
	err     error
}

func (f *fakeExpirer) ExpireDue(_ context.Context, _ time.Time, batchSize int) (int, error) {
	f.batch = batchSize
	return f.expired, f.err
}

func TestHoldExpiryJobReportsFailures(t *testing.T) {
	t.Parallel()

	expirer := &fakeExpirer{expired: 3}
	job, err := NewHoldExpiryJob(HoldExpiryJobParams{
		Logger:    testLogger(),
		Holds:     expirer,
		BatchSize: 50,
	})
	require.NoError(t, err)
	require.Equal(t, "hold-expiry", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 50, expirer.batch)

	expirer.err = errors.New("wallet lock timeout")
	require.Error(t, job.Run(context.Background()))
}

func TestTopUpExpiryJobUsesDefaultBatch(t *testing.T) {
	t.Parallel()

	expirer := &fakeExpirer{expired: 1}
	job, err := NewTopUpExpiryJob(TopUpExpiryJobParams{
		Logger: testLogger(),
		TopUps: expirer,
	})
	require.NoError(t, err)
	require.Equal(t, "topup-expiry", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 200, expirer.batch)
}

type fakeAutoTopUp struct {
	initiated int
	calls     int
}

func (f *fakeAutoTopUp) AutoTopUp(context.Context, time.Time, int) (int, error) {
	f.calls++
	return f.initiated, nil
}

func TestAutoTopUpJobRuns(t *testing.T) {
	t.Parallel()

	runner := &fakeAutoTopUp{initiated: 2}
	job, err := NewAutoTopUpJob(AutoTopUpJobParams{
		Logger: testLogger(),
		TopUps: runner,
	})
	require.NoError(t, err)
	require.Equal(t, "auto-topup", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, runner.calls)
}

type fakeReconciliation struct {
	calls int
	dates []time.Time
}

func (f *fakeReconciliation) Run(_ context.Context, _ string, date time.Time) (*models.ReconciliationReport, error) {
	f.calls++
	f.dates = append(f.dates, date)
	return &models.ReconciliationReport{ReportDate: date}, nil
}

func TestReconciliationJobRunsOncePerDay(t *testing.T) {
	t.Parallel()

	runner := &fakeReconciliation{}
	job, err := NewReconciliationJob(ReconciliationJobParams{
		Logger:         testLogger(),
		Reconciliation: runner,
		Gateway:        "static",
	})
	require.NoError(t, err)
	require.Equal(t, "reconciliation", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, runner.calls)

	// It reconciles the previous UTC day.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	require.Equal(t, today.Add(-24*time.Hour), runner.dates[0])
}
