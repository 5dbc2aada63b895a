// Package pubsub implements the event bus the Agent Loop publishes
// streamed deltas and lifecycle status on, topic "agent:<session_key>".
// It is a bus, not a transport: publishers never retry and subscribers
// must tolerate dropped events; anything needing catch-up semantics
// should read persisted history instead.
package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// EventKind discriminates the three event shapes published on an agent
// topic.
type EventKind string

const (
	EventChunk  EventKind = "chunk"
	EventStatus EventKind = "status"
	EventDone   EventKind = "done"
	EventError  EventKind = "error"
)

// Phase labels a :status event's current loop phase.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseInferring Phase = "inferring"
	PhaseToolStart Phase = "tool_start"
	PhaseToolDone  Phase = "tool_done"
	PhaseDone      Phase = "done"
	PhaseError     Phase = "error"
)

// Event is one message published on an agent:<session_key> topic.
type Event struct {
	Kind    EventKind `json:"kind"`
	RunID   string    `json:"run_id"`
	Delta   string    `json:"delta,omitempty"`
	Phase   Phase     `json:"phase,omitempty"`
	Details string    `json:"details,omitempty"`
	Content string    `json:"content,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// AgentTopic returns the pub/sub topic a session's events are published on.
func AgentTopic(sessionKey string) string {
	return "agent:" + sessionKey
}

// CronResultsTopic is the fallback topic for cron job results when no
// per-job result session is configured.
const CronResultsTopic = "cron:results"

// Bus publishes and subscribes to named topics. Publish never blocks on a
// slow subscriber and never retries; Subscribe returns a channel of
// decoded events plus a cancel func that stops delivery and releases the
// subscription.
type Bus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string) (<-chan Event, context.CancelFunc, error)
	Close() error
}

// LocalBus fans out events to in-process subscribers only. It is the
// default for single-node deployments and for tests: no external broker
// is required.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewLocalBus creates an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[chan Event]struct{})}
}

// Publish delivers event to every current subscriber of topic. Slow
// subscribers are skipped rather than blocking the publisher.
func (b *LocalBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber channel for topic.
func (b *LocalBus) Subscribe(ctx context.Context, topic string) (<-chan Event, context.CancelFunc, error) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan Event]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs[topic], ch)
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
		b.mu.Unlock()
		close(ch)
	}
	return ch, cancel, nil
}

// Close is a no-op for LocalBus; there is no external connection to tear
// down.
func (b *LocalBus) Close() error { return nil }

// RedisBus publishes and subscribes through Redis pub/sub so multiple
// runtime instances can share one bus, e.g. when a WebSocket front-end
// and the Agent Loop run in separate processes.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus wraps an existing Redis client as a Bus.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish JSON-encodes event and publishes it to the Redis channel named
// topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, payload).Err()
}

// Subscribe opens a Redis subscription on topic and decodes incoming
// messages into Events on the returned channel. The cancel func closes
// the subscription and stops the consuming goroutine.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan Event, context.CancelFunc, error) {
	sub := b.client.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	events := make(chan Event, 64)
	runCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(events)
		raw := sub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case events <- event:
				case <-runCtx.Done():
					return
				}
			}
		}
	}()

	cancelFunc := func() {
		cancel()
		_ = sub.Close()
	}
	return events, cancelFunc, nil
}

// Close closes the underlying Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
