// Package natsbridge fans UiEventStream envelopes out across processes
// over NATS core pub/sub, for deployments where more than one process
// needs to observe the same run (spec.md §2's UiEventStream is otherwise
// in-process only). Grounded on the teacher's nats.go usage throughout
// C360Studio-semspec's processor components, simplified from their
// JetStream durable-consumer pattern to core pub/sub: UiEventStream
// envelopes are a live side channel, not the durable record (that's
// eventlog's job), so at-most-once delivery is an acceptable trade for
// not requiring a JetStream-enabled NATS server.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"goa.design/swarmassistant/uistream"
)

const defaultSubject = "swarmassistant.uistream"

// Publisher publishes every envelope handed to it onto a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher wraps an already-connected *nats.Conn. An empty subject
// defaults to "swarmassistant.uistream".
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = defaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// Publish encodes env as JSON and publishes it on the configured subject.
func (p *Publisher) Publish(env uistream.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("natsbridge: encode envelope: %w", err)
	}
	return p.conn.Publish(p.subject, data)
}

// Bridge mirrors every envelope a local *uistream.Stream publishes onto
// NATS until stop is closed. It reads from its own local subscription
// (envelopes published before it subscribes are not forwarded); callers
// typically spawn Bridge in a goroutine so a slow NATS connection never
// blocks the caller.
func Bridge(stream *uistream.Stream, publisher *Publisher, stop <-chan struct{}) {
	_, live, unsubscribe := stream.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-stop:
			return
		case env, ok := <-live:
			if !ok {
				return
			}
			_ = publisher.Publish(env)
		}
	}
}

// Subscriber receives envelopes published by a remote Publisher and
// republishes them onto a local *uistream.Stream, so a process with no
// direct producer can still serve UiEventStream subscribers.
type Subscriber struct {
	sub *nats.Subscription
}

// NewSubscriber subscribes to subject (or the default) and forwards
// every decoded envelope into local. Decode failures are dropped rather
// than surfaced: a malformed remote envelope must never stall the local
// stream.
func NewSubscriber(conn *nats.Conn, subject string, local *uistream.Stream) (*Subscriber, error) {
	if subject == "" {
		subject = defaultSubject
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		var env uistream.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return
		}
		local.Publish(context.Background(), env)
	})
	if err != nil {
		return nil, fmt.Errorf("natsbridge: subscribe to %s: %w", subject, err)
	}
	return &Subscriber{sub: sub}, nil
}

// Close unsubscribes from NATS.
func (s *Subscriber) Close() error {
	return s.sub.Unsubscribe()
}
