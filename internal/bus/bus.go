// Package bus is the pub/sub transport between the change detector and
// the notification consumer. Delivery is at most once per connected
// subscriber: nothing is persisted and nothing is replayed, so an event
// published with no subscriber attached is simply lost.
package bus

import "context"

// SentinelPayload is the fixed, content-free message body meaning "ledger
// state changed". Consumers re-derive state themselves; no count or delta
// travels on the wire.
var SentinelPayload = []byte("new transaction")

// Handler receives one message. Handler failures are isolated by the bus
// and never tear down the underlying connection.
type Handler func(subject string, payload []byte)

type Subscription interface {
	Unsubscribe() error
}

type Bus interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Subscribe(subject string, handler Handler) (Subscription, error)
	Close(ctx context.Context) error
}
