package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/demobank/transaction-notifier/internal/bus"
	"github.com/demobank/transaction-notifier/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSubject = "msg.transaction"

type fakeWorkflow struct {
	mu      sync.Mutex
	runs    int
	block   chan struct{}
	lastCtx context.Context
}

func (f *fakeWorkflow) Run(ctx context.Context, instruction string) (string, error) {
	f.mu.Lock()
	f.runs++
	f.lastCtx = ctx
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "checked", nil
}

func (f *fakeWorkflow) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func newTestConsumer(t *testing.T, wf *fakeWorkflow) (*Consumer, *bus.Memory) {
	t.Helper()

	m := bus.NewMemory(logger.NewNop(), 10)
	t.Cleanup(func() { m.Close(context.Background()) })

	c := New(m, wf, Config{
		Subject:         testSubject,
		Instruction:     "check promotions",
		WorkflowTimeout: time.Second,
		MaxInFlight:     4,
	}, logger.NewNop())

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Shutdown(context.Background()) })

	return c, m
}

func TestConsumer_SentinelTriggersWorkflow(t *testing.T) {
	wf := &fakeWorkflow{}
	_, m := newTestConsumer(t, wf)

	require.NoError(t, m.Publish(context.Background(), testSubject, bus.SentinelPayload))

	assert.Eventually(t, func() bool {
		return wf.runCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestConsumer_UnrecognizedPayloadIgnored(t *testing.T) {
	wf := &fakeWorkflow{}
	_, m := newTestConsumer(t, wf)

	require.NoError(t, m.Publish(context.Background(), testSubject, []byte("something else")))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, wf.runCount())
}

func TestConsumer_EachEventIsOneInvocation(t *testing.T) {
	wf := &fakeWorkflow{}
	_, m := newTestConsumer(t, wf)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Publish(context.Background(), testSubject, bus.SentinelPayload))
	}

	assert.Eventually(t, func() bool {
		return wf.runCount() == 3
	}, time.Second, 10*time.Millisecond)
}

func TestConsumer_SlowWorkflowDoesNotBlockDelivery(t *testing.T) {
	block := make(chan struct{})
	wf := &fakeWorkflow{block: block}
	_, m := newTestConsumer(t, wf)

	// First workflow call parks on block; later events must still be
	// picked up while it is in flight.
	require.NoError(t, m.Publish(context.Background(), testSubject, bus.SentinelPayload))
	require.NoError(t, m.Publish(context.Background(), testSubject, bus.SentinelPayload))

	assert.Eventually(t, func() bool {
		return wf.runCount() == 2
	}, time.Second, 10*time.Millisecond)

	close(block)
}

func TestConsumer_ShutdownWaitsForInFlight(t *testing.T) {
	block := make(chan struct{})
	wf := &fakeWorkflow{block: block}

	m := bus.NewMemory(logger.NewNop(), 10)
	defer m.Close(context.Background())

	c := New(m, wf, Config{
		Subject:         testSubject,
		WorkflowTimeout: time.Minute,
	}, logger.NewNop())
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, m.Publish(context.Background(), testSubject, bus.SentinelPayload))
	require.Eventually(t, func() bool {
		return wf.runCount() == 1
	}, time.Second, 10*time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(block)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
}

func TestConsumer_ShutdownStopsBufferedEvents(t *testing.T) {
	wf := &fakeWorkflow{}

	m := bus.NewMemory(logger.NewNop(), 100)
	defer m.Close(context.Background())

	c := New(m, wf, Config{
		Subject:         testSubject,
		WorkflowTimeout: time.Second,
	}, logger.NewNop())
	require.NoError(t, c.Start(context.Background()))

	for i := 0; i < 50; i++ {
		require.NoError(t, m.Publish(context.Background(), testSubject, bus.SentinelPayload))
	}

	require.NoError(t, c.Shutdown(context.Background()))
	settled := wf.runCount()

	// Events still sitting in the bus buffer at shutdown are discarded;
	// none of them may start a workflow after the join has returned.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, settled, wf.runCount())
}

func TestConsumer_ShutdownCancelsPastGracePeriod(t *testing.T) {
	wf := &fakeWorkflow{block: make(chan struct{})}

	m := bus.NewMemory(logger.NewNop(), 10)
	defer m.Close(context.Background())

	c := New(m, wf, Config{
		Subject:         testSubject,
		WorkflowTimeout: time.Minute,
	}, logger.NewNop())
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, m.Publish(context.Background(), testSubject, bus.SentinelPayload))
	require.Eventually(t, func() bool {
		return wf.runCount() == 1
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
