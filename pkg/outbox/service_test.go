package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestEmitQueuesEnvelope(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   OrderAggregateID(42),
			Actor:         &ActorRef{Source: "webhook"},
			Data: payloads.OrderStatusChangedEvent{
				OrderID: 42,
				From:    enums.OrderStatusPendingPayment,
				To:      enums.OrderStatusPaid,
				Source:  "webhook",
			},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "42", rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal([]byte(rows[0].Payload), &envelope))
	assert.Equal(t, currentEnvelopeVersion, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "webhook", envelope.Actor.Source)

	var data payloads.OrderStatusChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, enums.OrderStatusPaid, data.To)
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	svc := NewService(NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "nope", AggregateType: enums.AggregateOrder, AggregateID: "1"}))
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)

	first := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: "1", Payload: `{}`}
	second := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: "2", Payload: `{}`, AttemptCount: 5}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1, "rows at max attempts are excluded")
	assert.Equal(t, "1", rows[0].AggregateID)

	require.NoError(t, repo.MarkFailedTx(conn, rows[0].ID, errors.New("publish timeout")))
	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", rows[0].ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "publish timeout", *reloaded.LastError)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID, time.Now()))
	count, err := repo.CountUnpublished(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func deadLetterRow(t *testing.T, conn *gorm.DB, repo *Repository, reason enums.OutboxDLQErrorReason, msg string) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{EventType: enums.EventStockDeducted, AggregateType: enums.AggregateOrder, AggregateID: "9", Payload: `{}`, AttemptCount: 3}
	require.NoError(t, event.BeforeCreate(nil))
	require.NoError(t, repo.Insert(conn, event))
	require.NoError(t, repo.MarkTerminalTx(conn, event.ID, time.Now(), errors.New(msg)))
	require.NoError(t, NewDLQRepository(conn).InsertTx(conn, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now(),
	}))
	return event
}

func TestDLQRepositoryClipsMessagesAndFilters(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)

	long := deadLetterRow(t, conn, repo, enums.OutboxDLQReasonMaxAttempts, strings.Repeat("x", maxLastErrorLen+50))
	deadLetterRow(t, conn, repo, enums.OutboxDLQReasonNonRetryable, "payload missing")

	found, err := dlq.FindByEventIDTx(conn, long.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Len(t, *found.ErrorMessage, maxLastErrorLen)

	missing, err := dlq.FindByEventIDTx(conn, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := dlq.List(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	reason := enums.OutboxDLQReasonNonRetryable
	filtered, err := dlq.List(context.Background(), &reason, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "payload missing", *filtered[0].ErrorMessage)
}

func newRemediation(t *testing.T) (*Remediation, *Repository, *gorm.DB) {
	t.Helper()
	client := dbtest.NewClient(t)
	repo := NewRepository(client.DB())
	svc, err := NewRemediation(client, repo, NewDLQRepository(client.DB()), logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)
	return svc, repo, client.DB()
}

func TestRequeueReturnsEventToPendingQueue(t *testing.T) {
	svc, repo, conn := newRemediation(t)
	event := deadLetterRow(t, conn, repo, enums.OutboxDLQReasonMaxAttempts, "unavailable")

	pending, err := repo.CountUnpublished(context.Background())
	require.NoError(t, err)
	require.Zero(t, pending)

	requeued, err := svc.Requeue(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, requeued.Reason)
	assert.Equal(t, "unavailable", requeued.Error)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, event.ID, rows[0].ID)
	assert.Zero(t, rows[0].AttemptCount)
	assert.Nil(t, rows[0].LastError)

	left, err := svc.ListDeadLetters(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = svc.Requeue(context.Background(), event.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "a second requeue finds nothing")
}

func TestRequeueConflictsWhenEventWasPurged(t *testing.T) {
	svc, repo, conn := newRemediation(t)
	event := deadLetterRow(t, conn, repo, enums.OutboxDLQReasonNonRetryable, "bad payload")
	require.NoError(t, conn.Delete(&models.OutboxEvent{}, "id = ?", event.ID).Error)

	_, err := svc.Requeue(context.Background(), event.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	left, err := svc.ListDeadLetters(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Len(t, left, 1, "the entry survives a failed requeue")
}
