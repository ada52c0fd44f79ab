package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PublishDelivered(t *testing.T) {
	m := NewMemory(logger.NewNop(), 10)
	defer m.Close(context.Background())

	received := make(chan []byte, 1)
	_, err := m.Subscribe("msg.transaction", func(subject string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	err = m.Publish(context.Background(), "msg.transaction", SentinelPayload)
	require.NoError(t, err)

	select {
	case payload := <-received:
		assert.Equal(t, SentinelPayload, payload)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemory_NoSubscriberDropsEvent(t *testing.T) {
	m := NewMemory(logger.NewNop(), 10)
	defer m.Close(context.Background())

	// Publishing with nobody connected must not error and must not queue.
	err := m.Publish(context.Background(), "msg.transaction", SentinelPayload)
	require.NoError(t, err)

	received := make(chan []byte, 1)
	_, err = m.Subscribe("msg.transaction", func(subject string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	select {
	case <-received:
		t.Fatal("late subscriber must not receive an earlier event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemory_SubjectIsolation(t *testing.T) {
	m := NewMemory(logger.NewNop(), 10)
	defer m.Close(context.Background())

	received := make(chan string, 2)
	_, err := m.Subscribe("msg.transaction", func(subject string, payload []byte) {
		received <- subject
	})
	require.NoError(t, err)

	require.NoError(t, m.Publish(context.Background(), "msg.other", []byte("x")))
	require.NoError(t, m.Publish(context.Background(), "msg.transaction", []byte("y")))

	select {
	case subject := <-received:
		assert.Equal(t, "msg.transaction", subject)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case subject := <-received:
		t.Fatalf("unexpected delivery on subject %s", subject)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemory_HandlerPanicIsolated(t *testing.T) {
	m := NewMemory(logger.NewNop(), 10)
	defer m.Close(context.Background())

	var mu sync.Mutex
	delivered := 0

	_, err := m.Subscribe("msg.transaction", func(subject string, payload []byte) {
		mu.Lock()
		delivered++
		n := delivered
		mu.Unlock()

		if n == 1 {
			panic("boom")
		}
	})
	require.NoError(t, err)

	require.NoError(t, m.Publish(context.Background(), "msg.transaction", []byte("1")))
	require.NoError(t, m.Publish(context.Background(), "msg.transaction", []byte("2")))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 2
	}, time.Second, 10*time.Millisecond, "panicking handler must not stop later deliveries")
}

func TestMemory_Unsubscribe(t *testing.T) {
	m := NewMemory(logger.NewNop(), 10)
	defer m.Close(context.Background())

	received := make(chan []byte, 1)
	sub, err := m.Subscribe("msg.transaction", func(subject string, payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, m.Publish(context.Background(), "msg.transaction", SentinelPayload))

	select {
	case <-received:
		t.Fatal("unsubscribed handler must not receive events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemory_CloseWaitsForDispatch(t *testing.T) {
	m := NewMemory(logger.NewNop(), 10)

	handled := make(chan struct{})
	_, err := m.Subscribe("msg.transaction", func(subject string, payload []byte) {
		time.Sleep(50 * time.Millisecond)
		close(handled)
	})
	require.NoError(t, err)

	require.NoError(t, m.Publish(context.Background(), "msg.transaction", SentinelPayload))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	select {
	case <-handled:
	default:
		t.Fatal("Close returned before in-flight handler finished")
	}
}

func TestMemory_PublishAfterCloseErrors(t *testing.T) {
	m := NewMemory(logger.NewNop(), 10)
	require.NoError(t, m.Close(context.Background()))

	err := m.Publish(context.Background(), "msg.transaction", SentinelPayload)
	assert.ErrorIs(t, err, domain.ErrConnection)
}
