// Package registry routes outbox rows to Pub/Sub topics and decodes their payloads.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor is the routing entry for one event type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row whose envelope and payload decoded cleanly.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never publish, so the dispatcher dead-letters it at once.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func payloadOf[T any]() func() any {
	return func() any { return new(T) }
}

// NewEventRegistry routes order lifecycle events to the orders topic and stock
// movements to the inventory topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	orders, inventory := strings.TrimSpace(cfg.OrdersTopic), strings.TrimSpace(cfg.InventoryTopic)
	var missing []string
	if orders == "" {
		missing = append(missing, "orders")
	}
	if inventory == "" {
		missing = append(missing, "inventory")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pubsub topics not configured: %s", strings.Join(missing, ", "))
	}

	descriptors := []EventDescriptor{
		{enums.EventOrderCreated, enums.AggregateOrder, orders, payloadOf[payloads.OrderCreatedEvent]()},
		{enums.EventOrderStatusChanged, enums.AggregateOrder, orders, payloadOf[payloads.OrderStatusChangedEvent]()},
		{enums.EventStockDeducted, enums.AggregateOrder, inventory, payloadOf[payloads.StockDeductedEvent]()},
		{enums.EventStockRestocked, enums.AggregateOrder, inventory, payloadOf[payloads.StockRestockedEvent]()},
		{enums.EventInventoryShortfall, enums.AggregateProduct, inventory, payloadOf[payloads.InventoryShortfallEvent]()},
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

// Topics returns the distinct topics the registry publishes to, sorted.
func (r *EventRegistry) Topics() []string {
	set := map[string]struct{}{}
	for _, d := range r.entries {
		set[d.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the payload. Every
// failure is a NonRetryableError because retrying the same bytes cannot succeed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("event %s expects aggregate %s, row has %s", event.EventType, desc.AggregateType, event.AggregateType)
	case strings.TrimSpace(event.AggregateID) == "":
		return nil, nonRetryable("event %s has no aggregate id", event.EventType)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal([]byte(event.Payload), &envelope); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("event %s has an empty payload", event.EventType)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

// IsNonRetryable reports whether err, or anything it wraps, is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}
