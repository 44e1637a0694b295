package main

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/config"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	"github.com/jmucavele/pdv-backend/pkg/logger"
	"github.com/jmucavele/pdv-backend/pkg/outbox"
	"github.com/jmucavele/pdv-backend/pkg/outbox/payloads"
	"github.com/jmucavele/pdv-backend/pkg/outbox/registry"
)

type testDBClient struct {
	db *gorm.DB
}

func (c testDBClient) Ping(context.Context) error {
	return nil
}

func (c testDBClient) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.db.WithContext(ctx).Transaction(fn)
}

type recordingConsumer struct {
	name    string
	handled []enums.OutboxEventType
	err     error
}

func (r *recordingConsumer) Name() string { return r.name }

func (r *recordingConsumer) Handle(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	r.handled = append(r.handled, event.EventType)
	return r.err
}

type dispatchFixture struct {
	svc      *Service
	db       *gorm.DB
	consumer *recordingConsumer
	emitter  *outbox.Service
}

func newDispatchFixture(t *testing.T, maxAttempts int) *dispatchFixture {
	t.Helper()

	dsn := "file:worker_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))

	logg := logger.New(logger.Options{ServiceName: "worker-test"})
	cons := &recordingConsumer{name: "recording"}
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.MaxAttempts = maxAttempts

	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         testDBClient{db: db},
		Repository: outbox.NewRepository(db),
		Registry:   registry.NewEventRegistry(),
		DLQ:        outbox.NewDLQRepository(db),
		Consumers:  []consumer{cons},
	})
	require.NoError(t, err)

	return &dispatchFixture{
		svc:      svc,
		db:       db,
		consumer: cons,
		emitter:  outbox.NewService(outbox.NewRepository(db), logg),
	}
}

func (f *dispatchFixture) emit(t *testing.T, event outbox.DomainEvent) {
	t.Helper()
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.emitter.Emit(context.Background(), tx, event)
	}))
}

func (f *dispatchFixture) emitSaleCompleted(t *testing.T) {
	t.Helper()
	f.emit(t, outbox.DomainEvent{
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
		Data:          payloads.SaleCompletedEvent{SaleID: uuid.New(), SaleNumber: "202608290001"},
		Version:       1,
	})
}

func TestProcessBatchDispatchesAndMarksPublished(t *testing.T) {
	f := newDispatchFixture(t, 10)
	f.emitSaleCompleted(t)
	f.emitSaleCompleted(t)

	processed, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Len(t, f.consumer.handled, 2)

	var pending int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("published_at IS NULL").Count(&pending).Error)
	require.Zero(t, pending)

	// Drained queue: the next batch is a no-op.
	processed, err = f.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestProcessBatchRetriesConsumerFailure(t *testing.T) {
	f := newDispatchFixture(t, 10)
	f.emitSaleCompleted(t)
	f.consumer.err = errors.New("downstream unavailable")

	processed, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	var event models.OutboxEvent
	require.NoError(t, f.db.First(&event).Error)
	require.Nil(t, event.PublishedAt)
	require.Equal(t, 1, event.AttemptCount)
	require.NotNil(t, event.LastError)

	// Recovered consumer picks the row up again.
	f.consumer.err = nil
	processed, err = f.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Len(t, f.consumer.handled, 2)

	require.NoError(t, f.db.First(&event).Error)
	require.NotNil(t, event.PublishedAt)
}

func TestProcessBatchDeadLettersNonRetryable(t *testing.T) {
	f := newDispatchFixture(t, 10)
	f.emitSaleCompleted(t)
	f.consumer.err = registry.NewNonRetryableError(errors.New("malformed payload"))

	processed, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	var dlq []models.OutboxDLQ
	require.NoError(t, f.db.Find(&dlq).Error)
	require.Len(t, dlq, 1)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq[0].ErrorReason)

	// Terminal rows never re-enter the queue.
	processed, err = f.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
	require.Len(t, f.consumer.handled, 1)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	f := newDispatchFixture(t, 2)
	f.emitSaleCompleted(t)
	f.consumer.err = errors.New("downstream unavailable")

	// Attempt 1 is retryable, attempt 2 hits the ceiling.
	_, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	_, err = f.svc.processBatch(context.Background())
	require.NoError(t, err)

	var dlq []models.OutboxDLQ
	require.NoError(t, f.db.Find(&dlq).Error)
	require.Len(t, dlq, 1)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq[0].ErrorReason)

	processed, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestProcessBatchDeadLettersUnresolvableEvent(t *testing.T) {
	f := newDispatchFixture(t, 10)
	require.NoError(t, f.db.Create(&models.OutboxEvent{
		EventType:     "bogus_event",
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
	}).Error)

	processed, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Empty(t, f.consumer.handled)

	var dlq []models.OutboxDLQ
	require.NoError(t, f.db.Find(&dlq).Error)
	require.Len(t, dlq, 1)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq[0].ErrorReason)
}
