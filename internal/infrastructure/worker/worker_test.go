package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/service"
)

type mockEscalation struct {
	calls atomic.Int32
	err   error
}

func (m *mockEscalation) Scan(ctx context.Context) (*service.EscalationReport, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &service.EscalationReport{Checked: 2, Reminded: 1}, nil
}

type mockNotifications struct {
	service.NotificationService
	calls atomic.Int32
}

func (m *mockNotifications) DeliverPending(ctx context.Context) (*service.DeliveryReport, error) {
	m.calls.Add(1)
	return &service.DeliveryReport{Sent: 1}, nil
}

func fast() PeriodicConfig {
	return PeriodicConfig{Interval: 10 * time.Millisecond, RunOnStart: true}
}

func TestEscalationWorker_RunsUntilStopped(t *testing.T) {
	scanner := &mockEscalation{}
	w := NewEscalationWorker(fast(), scanner, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	require.Eventually(t, func() bool { return scanner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	calls := scanner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, scanner.calls.Load())

	status := w.Status()
	assert.Equal(t, "EscalationWorker", status.Name)
	assert.False(t, status.Running)
	assert.Equal(t, int(calls), status.Runs)
	assert.Zero(t, status.Failures)

	assert.NoError(t, w.Stop())
}

func TestEscalationWorker_RecordsFailures(t *testing.T) {
	scanner := &mockEscalation{err: errors.New("database is locked")}
	w := NewEscalationWorker(fast(), scanner, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, func() bool { return w.Status().Failures >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.Equal(t, "database is locked", w.Status().LastError)
}

func TestWorker_Defaults(t *testing.T) {
	w := NewOutboxWorker(PeriodicConfig{}, &mockNotifications{}, zap.NewNop())
	assert.Equal(t, DefaultOutboxInterval, w.config.Interval)
	assert.Equal(t, DefaultOutboxInterval, w.config.Timeout)

	e := NewEscalationWorker(PeriodicConfig{}, &mockEscalation{}, zap.NewNop())
	assert.Equal(t, DefaultEscalationInterval, e.config.Interval)

	bad := NewEscalationWorker(PeriodicConfig{Interval: -time.Second}, &mockEscalation{}, zap.NewNop())
	assert.Error(t, bad.Start(context.Background()))
}

func TestManager_Lifecycle(t *testing.T) {
	scanner := &mockEscalation{}
	outbox := &mockNotifications{}
	m := NewManager(zap.NewNop())
	m.Register(NewEscalationWorker(fast(), scanner, zap.NewNop()))
	m.Register(NewOutboxWorker(fast(), outbox, zap.NewNop()))
	m.Register(NewOutboxWorker(PeriodicConfig{Interval: -1}, outbox, zap.NewNop()))

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.Eventually(t, func() bool {
		return scanner.calls.Load() > 0 && outbox.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	statuses := m.Statuses()
	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Running)
	assert.False(t, statuses[2].Running)

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	for _, s := range m.Statuses() {
		assert.False(t, s.Running)
	}
	require.NoError(t, m.StopAll())
}

func TestManager_StopsOnParentCancel(t *testing.T) {
	scanner := &mockEscalation{}
	w := NewEscalationWorker(fast(), scanner, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, w.Start(ctx))
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, w.Stop())
	}()
	wg.Wait()
}

func TestOutboxWorker_Trigger(t *testing.T) {
	outbox := &mockNotifications{}
	w := NewOutboxWorker(PeriodicConfig{Interval: time.Hour}, outbox, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	assert.Zero(t, outbox.calls.Load())

	w.Trigger()
	require.Eventually(t, func() bool { return outbox.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
