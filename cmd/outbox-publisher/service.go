package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, at time.Time, err error) error
	CountUnpublished(ctx context.Context) (int64, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type dispatchRecorder interface {
	IncPublished(topic string)
	IncRetried(eventType string)
	IncDeadLettered(reason string)
	SetBacklog(n int64)
}

type publisherFactory func(topic string) publisher

// ServiceParams wires the outbox dispatcher. Metrics, PublisherFactory and Now are optional.
type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	PublisherFactory publisherFactory
	Metrics          dispatchRecorder
	Now              func() time.Time
}

// Service drains committed outbox rows to Pub/Sub. Each batch runs in one transaction
// holding row locks, so several replicas can dispatch without double delivery.
type Service struct {
	logg      *logger.Logger
	db        dbClient
	pubsub    pubSubClient
	repo      outboxRepository
	registry  registryResolver
	dlq       dlqRepository
	publisher publisherFactory
	metrics   dispatchRecorder
	now       func() time.Time
	settings  dispatchSettings
}

type dispatchSettings struct {
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func settingsFromConfig(cfg config.OutboxConfig) dispatchSettings {
	s := dispatchSettings{
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	return s
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"config", params.Config == nil},
		{"logger", params.Logger == nil},
		{"database client", params.DB == nil},
		{"pubsub client", params.PubSub == nil},
		{"outbox repository", params.Repository == nil},
		{"event registry", params.Registry == nil},
		{"dlq repository", params.DLQRepository == nil},
	}
	for _, dep := range required {
		if dep.missing {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}

	factory := params.PublisherFactory
	if factory == nil {
		client := params.PubSub
		factory = func(topic string) publisher {
			return newGCPPublisher(client.Publisher(topic))
		}
	}
	var recorder dispatchRecorder = metrics.NewOutboxMetrics(nil)
	if params.Metrics != nil {
		recorder = params.Metrics
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		logg:      params.Logger,
		db:        params.DB,
		pubsub:    params.PubSub,
		repo:      params.Repository,
		registry:  params.Registry,
		dlq:       params.DLQRepository,
		publisher: factory,
		metrics:   recorder,
		now:       now,
		settings:  settingsFromConfig(params.Config.Outbox),
	}, nil
}

// Run dispatches until ctx is canceled. An idle poll sleeps for the configured interval;
// a failing batch backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	backoff := s.settings.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox.dispatcher.stopped")
			return err
		}

		processed, err := s.drainBatch(ctx)
		wait := s.settings.pollInterval
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			backoff = nextBackoff(backoff, s.settings.pollInterval, maxBackoff)
			wait = backoff
		case processed:
			backoff = s.settings.pollInterval
			s.refreshBacklog(ctx)
			continue
		default:
			backoff = s.settings.pollInterval
			s.metrics.SetBacklog(0)
		}

		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

func (s *Service) checkDependencies(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	}
	for _, check := range checks {
		if err := check.ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", check.name), "outbox.dependency_unavailable", err)
			return fmt.Errorf("%s ping failed: %w", check.name, err)
		}
	}
	return nil
}

func (s *Service) refreshBacklog(ctx context.Context) {
	count, err := s.repo.CountUnpublished(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox.backlog_count_failed")
		return
	}
	s.metrics.SetBacklog(count)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < ceiling {
		return next
	}
	return ceiling
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

var errNilPublishResult = errors.New("publish result is nil")
