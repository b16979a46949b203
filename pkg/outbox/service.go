package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const currentEnvelopeVersion = 1

// DomainEvent is what domain code hands to Emit. Data is marshalled into the envelope.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	var problems []error
	if !e.EventType.IsValid() {
		problems = append(problems, fmt.Errorf("unknown event type %q", e.EventType))
	}
	if !e.AggregateType.IsValid() {
		problems = append(problems, fmt.Errorf("unknown aggregate type %q", e.AggregateType))
	}
	if e.AggregateID == "" {
		problems = append(problems, errors.New("aggregate id required"))
	}
	return errors.Join(problems...)
}

// Emitter queues domain events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

// Service writes outbox rows. It never publishes; cmd/outbox-publisher does.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// OrderAggregateID formats an order primary key as an outbox aggregate id.
func OrderAggregateID(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

// Emit wraps event in a versioned envelope and inserts it with tx, so the row
// commits or rolls back together with the state change that produced it.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	if err := event.validate(); err != nil {
		return fmt.Errorf("outbox event: %w", err)
	}

	envelope, err := s.seal(event)
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := s.repo.Insert(tx, models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       string(body),
	}); err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}

	if s.logg != nil && ctx != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     envelope.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID,
		}), "outbox.queued")
	}
	return nil
}

func (s *Service) seal(event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal %s payload: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = currentEnvelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = s.now()
	}
	return env, nil
}
