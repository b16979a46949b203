package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeadLetter is the operator view of an outbox_dlq row. The payload is omitted.
type DeadLetter struct {
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   string                     `json:"aggregate_id"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Error         string                     `json:"error,omitempty"`
	AttemptCount  int                        `json:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at"`
}

// Remediation lets operators inspect dead-lettered events and send them back to the dispatcher.
type Remediation struct {
	tx     txRunner
	events *Repository
	dlq    *DLQRepository
	logg   *logger.Logger
}

func NewRemediation(tx txRunner, events *Repository, dlq *DLQRepository, logg *logger.Logger) (*Remediation, error) {
	if tx == nil || events == nil || dlq == nil || logg == nil {
		return nil, fmt.Errorf("remediation needs a tx runner, both repositories and a logger")
	}
	return &Remediation{tx: tx, events: events, dlq: dlq, logg: logg}, nil
}

func (r *Remediation) ListDeadLetters(ctx context.Context, reason *enums.OutboxDLQErrorReason, limit int) ([]DeadLetter, error) {
	rows, err := r.dlq.List(ctx, reason, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	out := make([]DeadLetter, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDeadLetter(row))
	}
	return out, nil
}

// Requeue moves a dead-lettered event back into the pending queue and drops its DLQ entry.
// Both happen in one transaction so the event is never in both places.
func (r *Remediation) Requeue(ctx context.Context, eventID uuid.UUID) (*DeadLetter, error) {
	var requeued DeadLetter
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entry, err := r.dlq.FindByEventIDTx(tx, eventID)
		if err != nil {
			return err
		}
		if entry == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
		}
		found, err := r.events.RequeueTx(tx, eventID)
		if err != nil {
			return err
		}
		if !found {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "outbox event no longer exists").
				WithDetails(map[string]any{"event_id": eventID.String()})
		}
		requeued = toDeadLetter(*entry)
		return r.dlq.DeleteTx(tx, entry.ID)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue dead letter")
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"event_id":     eventID.String(),
		"event_type":   requeued.EventType,
		"aggregate_id": requeued.AggregateID,
		"reason":       requeued.Reason,
	}), "outbox.requeued")
	return &requeued, nil
}

func toDeadLetter(row models.OutboxDLQ) DeadLetter {
	dl := DeadLetter{
		EventID:       row.EventID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Reason:        row.ErrorReason,
		AttemptCount:  row.AttemptCount,
		FailedAt:      row.FailedAt,
	}
	if row.ErrorMessage != nil {
		dl.Error = *row.ErrorMessage
	}
	return dl
}
