// Package events implements the engine's publication points (§6): a
// narrow EventBus trait the core publishes consolidation start/finish,
// duplicate rejection, and merge notifications to. It follows
// internal/cache.Manager's Redis bootstrap (connect + ping +
// health-check loop), repurposed here from key/value caching to
// publish/subscribe. InProcessBus is an in-process fan-out that needs
// no external service; this package does not pick between the two
// buses from configuration.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action names the kind of event a notification carries.
type Action string

const (
	ActionConsolidationStarted Action = "consolidation_started"
	ActionConsolidationFinished Action = "consolidation_finished"
	ActionDuplicateRejected    Action = "duplicate_rejected"
	ActionMerged               Action = "merged"
	ActionManualConsolidation  Action = "manual_consolidation"
	ActionMemoryUpdated        Action = "memory_updated"
)

// Event is one notification published on the bus.
type Event struct {
	Action    Action         `json:"action"`
	MemoryID  string         `json:"memory_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler receives events delivered to a subscription.
type Handler func(Event)

// Bus is the event-publication trait the core exposes (§6). Publish
// never returns an error the caller must handle specially; a failed
// publish is logged and swallowed, matching the engine facade's "never
// fatal to a caller" policy for ambient concerns. InProcessBus.Publish
// runs subscriber handlers synchronously, returning after they finish.
type Bus interface {
	Publish(ctx context.Context, topic string, evt Event)
	Subscribe(ctx context.Context, topic string, handler Handler) (unsubscribe func(), err error)
	Close() error
}

// InProcessBus fans events out to in-process subscribers only. It
// requires no external service, for development or single-process
// deployments.
type InProcessBus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler
	nextID int
	logger *zap.Logger
}

// NewInProcessBus builds a bus with no subscribers.
func NewInProcessBus(logger *zap.Logger) *InProcessBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InProcessBus{
		subs:   make(map[string]map[int]Handler),
		logger: logger.With(zap.String("component", "events_inprocess")),
	}
}

func (b *InProcessBus) Publish(_ context.Context, topic string, evt Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

func (b *InProcessBus) Subscribe(_ context.Context, topic string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}, nil
}

func (b *InProcessBus) Close() error { return nil }

// marshalEvent/unmarshalEvent are shared by RedisBus's publish/receive
// loop.
func marshalEvent(evt Event) ([]byte, error) { return json.Marshal(evt) }

func unmarshalEvent(data []byte) (Event, error) {
	var evt Event
	err := json.Unmarshal(data, &evt)
	return evt, err
}
