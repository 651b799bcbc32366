package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/contract-approvals/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, _ ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, _ ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func submitted() *event.Event {
	return event.NewEvent(event.TypeContractSubmitted, 1, nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string
	d.SubscribeNamed(event.TypeContractSubmitted, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeContractSubmitted, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), submitted()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatch_StopsOnError(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")
	var secondCalled bool
	d.SubscribeNamed(event.TypeContractSubmitted, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.Subscribe(event.TypeContractSubmitted, func(ctx context.Context, evt *event.Event) error {
		secondCalled = true
		return nil
	})

	err := d.Dispatch(context.Background(), submitted())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, secondCalled)
}

func TestDispatch_RecoversPanic(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	d.Subscribe(event.TypeContractSubmitted, func(ctx context.Context, evt *event.Event) error {
		panic("kaboom")
	})

	err := d.Dispatch(context.Background(), submitted())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.GreaterOrEqual(t, logger.ErrorCount(), 1)
}

func TestDispatch_Wildcard(t *testing.T) {
	d := NewDispatcher()
	var seen []event.Type
	d.Subscribe(Wildcard, func(ctx context.Context, evt *event.Event) error {
		seen = append(seen, evt.Type)
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), submitted()))
	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeApprovalDecided, 1, nil)))
	assert.Equal(t, []event.Type{event.TypeContractSubmitted, event.TypeApprovalDecided}, seen)
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var calls int32
	d.SubscribeNamed(event.TypeContractSubmitted, "h", func(ctx context.Context, evt *event.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	d.Unsubscribe(event.TypeContractSubmitted, "h")

	require.NoError(t, d.Dispatch(context.Background(), submitted()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Empty(t, d.ListHandlers(event.TypeContractSubmitted))
}

func TestDispatchAsync_SurvivesCancelledContext(t *testing.T) {
	d := NewDispatcher()
	var ctxErr error
	var mu sync.Mutex
	d.Subscribe(event.TypeContractApproved, func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		ctxErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.DispatchAsync(ctx, event.NewEvent(event.TypeContractApproved, 1, nil))
	require.NoError(t, d.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, ctxErr)
}

func TestPublish_DeliversAll(t *testing.T) {
	d := NewDispatcher()
	var calls int32
	d.Subscribe(Wildcard, func(ctx context.Context, evt *event.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	d.Publish(context.Background(),
		submitted(),
		event.NewEvent(event.TypeStepActivated, 1, nil),
		event.NewEvent(event.TypeContractApproved, 1, nil),
	)
	require.NoError(t, d.Close())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
	assert.ErrorIs(t, d.Dispatch(context.Background(), submitted()), ErrClosed)
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeApprovalDecided, fmt.Sprintf("h-%d", id), func(ctx context.Context, evt *event.Event) error {
				return nil
			})
		}(i)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeApprovalDecided, 1, nil))
		}()
	}
	wg.Wait()
	assert.Len(t, d.ListHandlers(event.TypeApprovalDecided), 20)
}
