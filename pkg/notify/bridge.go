package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/google/uuid"
)

const (
	attrEventKind = "event_kind"
	attrOrigin    = "origin"
)

// Bridge relays hub events between registers through Pub/Sub. Outbound,
// every local event is published with this register's origin stamped;
// inbound, remote events are re-published on the local hub while events
// carrying our own origin are acked and skipped.
type Bridge struct {
	hub       *Hub
	publisher *pubsub.Publisher
	sub       *pubsub.Subscriber
	origin    string
	logg      *logger.Logger

	// injected tracks event IDs re-published locally from remote
	// registers so the outbound pump does not echo them back.
	mu       sync.Mutex
	injected map[uuid.UUID]struct{}
}

// NewBridge builds a bridge for the given register origin name.
func NewBridge(hub *Hub, publisher *pubsub.Publisher, sub *pubsub.Subscriber, origin string, logg *logger.Logger) (*Bridge, error) {
	if hub == nil {
		return nil, fmt.Errorf("notify hub required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("session publisher required")
	}
	if sub == nil {
		return nil, fmt.Errorf("session subscription required")
	}
	if origin == "" {
		return nil, fmt.Errorf("bridge origin required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Bridge{
		hub:       hub,
		publisher: publisher,
		sub:       sub,
		origin:    origin,
		logg:      logg,
		injected:  make(map[uuid.UUID]struct{}),
	}, nil
}

// Run pumps events in both directions until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	local := b.hub.Subscribe(nil)
	defer local.Close()

	outboundDone := make(chan struct{})
	go func() {
		defer close(outboundDone)
		b.pumpOutbound(ctx, local)
	}()

	err := b.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		b.process(ctx, msg)
	})

	<-outboundDone
	return err
}

func (b *Bridge) pumpOutbound(ctx context.Context, local *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-local.Events():
			if !ok {
				return
			}
			if b.wasInjected(ev.ID) {
				continue
			}
			b.publish(ctx, ev)
		}
	}
}

func (b *Bridge) publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logg.Error(ctx, "failed to encode event", err)
		return
	}
	result := b.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			attrEventKind: string(ev.Kind),
			attrOrigin:    b.origin,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		b.logg.Error(ctx, "failed to publish event", err)
	}
}

func (b *Bridge) process(ctx context.Context, msg *pubsub.Message) {
	logCtx := b.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_kind": msg.Attributes[attrEventKind],
	})

	if msg.Attributes[attrOrigin] == b.origin {
		msg.Ack()
		return
	}

	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		b.logg.Error(logCtx, "failed to decode event", err)
		msg.Ack()
		return
	}

	b.markInjected(ev.ID)
	b.hub.Publish(ev)
	msg.Ack()
}

func (b *Bridge) markInjected(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.injected[id] = struct{}{}
}

func (b *Bridge) wasInjected(id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.injected[id]; ok {
		delete(b.injected, id)
		return true
	}
	return false
}
