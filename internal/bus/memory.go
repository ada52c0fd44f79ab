package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

type message struct {
	subject string
	payload []byte
}

// Memory is an in-process Bus with the same delivery contract as the
// broker: connected subscribers only, no persistence, no replay. Each
// subscriber drains its own buffered channel on a dedicated goroutine so
// a slow handler never blocks publishers.
type Memory struct {
	subscribers map[string][]*memorySubscription
	mu          sync.RWMutex
	wg          sync.WaitGroup
	logger      *logger.Logger
	buffer      int
	closed      bool
}

type memorySubscription struct {
	bus     *Memory
	subject string
	ch      chan message
	once    sync.Once
}

func NewMemory(log *logger.Logger, buffer int) *Memory {
	if buffer <= 0 {
		buffer = 64
	}

	return &Memory{
		subscribers: make(map[string][]*memorySubscription),
		logger:      log,
		buffer:      buffer,
	}
}

func (m *Memory) Publish(ctx context.Context, subject string, payload []byte) error {
	// The lock is held across the sends so Close cannot close a channel
	// mid-publish. Sends never block: the select falls through to drop.
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("%w: publishing to %s: bus closed", domain.ErrConnection, subject)
	}

	subs := m.subscribers[subject]
	if len(subs) == 0 {
		// At-most-once with nobody connected: the event is lost.
		m.logger.Debug(ctx, "No subscriber connected, event dropped",
			"bus_subject", subject,
		)
		return nil
	}

	for _, sub := range subs {
		select {
		case sub.ch <- message{subject: subject, payload: payload}:
		case <-ctx.Done():
			return ctx.Err()
		default:
			m.logger.Warn(ctx, "Subscriber buffer full, event dropped",
				"bus_subject", subject,
			)
		}
	}

	return nil
}

func (m *Memory) Subscribe(subject string, handler Handler) (Subscription, error) {
	sub := &memorySubscription{
		bus:     m,
		subject: subject,
		ch:      make(chan message, m.buffer),
	}

	m.mu.Lock()
	m.subscribers[subject] = append(m.subscribers[subject], sub)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		for msg := range sub.ch {
			m.dispatch(handler, msg)
		}
	}()

	return sub, nil
}

func (m *Memory) dispatch(handler Handler, msg message) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(context.Background(), "Handler panicked",
				"bus_subject", msg.subject,
				"panic", r,
			)
		}
	}()

	handler(msg.subject, msg.payload)
}

func (m *Memory) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	for _, subs := range m.subscribers {
		for _, sub := range subs {
			sub.closeChannel()
		}
	}
	m.subscribers = make(map[string][]*memorySubscription)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	subs := s.bus.subscribers[s.subject]
	for i, sub := range subs {
		if sub == s {
			s.bus.subscribers[s.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()

	s.closeChannel()
	return nil
}

func (s *memorySubscription) closeChannel() {
	s.once.Do(func() {
		close(s.ch)
	})
}
