// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pubsub provides the in-process fan-out used by the observable
// stores. It is a typed layer over watermill's Go channel pub/sub: events
// travel as JSON messages on a single topic per hub.
//
// Publish returns once every subscriber has taken the event, so events
// arrive in publish order. A subscriber that is slow to read never blocks
// the publisher and never loses events; they queue until it catches up.
package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

const topic = "events"

// Hub fans events out to subscribers.
type Hub[T any] struct {
	pubSub *gochannel.GoChannel
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return NewHubWithLogger[T](watermill.NopLogger{})
}

// NewHubWithLogger creates a hub that reports its internals to logger.
func NewHubWithLogger[T any](logger watermill.LoggerAdapter) *Hub[T] {
	return &Hub[T]{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes;
// the channel is closed shortly after. Calling it more than once is
// harmless.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	out := make(chan T, DefaultBuffer)
	ctx, cancel := context.WithCancel(context.Background())

	messages, err := h.pubSub.Subscribe(ctx, topic)
	if err != nil {
		// Closed hub.
		cancel()
		close(out)
		return out, func() {}
	}

	go pump(ctx, messages, out)

	var once sync.Once
	return out, func() { once.Do(cancel) }
}

// pump acks each message as soon as it arrives and queues the decoded
// event for out.
func pump[T any](ctx context.Context, messages <-chan *message.Message, out chan<- T) {
	defer close(out)

	var queue []T
	for {
		var (
			send chan<- T
			next T
		)
		if len(queue) > 0 {
			send = out
			next = queue[0]
		}

		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var ev T
			if err := json.Unmarshal(msg.Payload, &ev); err == nil {
				queue = append(queue, ev)
			}
			msg.Ack()
		case send <- next:
			queue = queue[1:]
		case <-ctx.Done():
			return
		}
	}
}

// Publish delivers ev to every subscriber. Events published after Close
// are discarded.
func (h *Hub[T]) Publish(ev T) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = h.pubSub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload))
}

// Close unsubscribes everyone. Later subscribers receive a closed channel.
func (h *Hub[T]) Close() {
	_ = h.pubSub.Close()
}
