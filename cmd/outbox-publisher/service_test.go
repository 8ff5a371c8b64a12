package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightline/settlement-engine/pkg/config"
	"github.com/freightline/settlement-engine/pkg/db/models"
	"github.com/freightline/settlement-engine/pkg/enums"
	"github.com/freightline/settlement-engine/pkg/logger"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (f *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	failFor  map[string]error
}

func (f *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if err, ok := f.failFor[msg.Attributes["event_id"]]; ok {
		return fakeResult{err: err}
	}
	return fakeResult{}
}

func outboxEvent(eventType enums.OutboxEventType) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateMilestoneSettlement,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"ok":true}`),
		CreatedAt:     time.Now().UTC(),
	}
}

func newTestService(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		Repository: repo,
		Publisher:  pub,
	})
	require.NoError(t, err)
	return svc
}

func TestProcessBatch_PublishesAndMarks(t *testing.T) {
	first := outboxEvent(enums.EventSettlementCreated)
	second := outboxEvent(enums.EventSettlementApproved)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{}

	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, repo.published)
	assert.Empty(t, repo.failed)

	require.Len(t, pub.messages, 2)
	assert.Equal(t, string(enums.EventSettlementCreated), pub.messages[0].Attributes["event_type"])
	assert.Equal(t, first.AggregateID.String(), pub.messages[0].Attributes["aggregate_id"])
}

func TestProcessBatch_FailureMarksAndContinues(t *testing.T) {
	bad := outboxEvent(enums.EventSettlementCreated)
	good := outboxEvent(enums.EventSettlementApproved)
	repo := &fakeRepo{events: []models.OutboxEvent{bad, good}}
	pub := &fakePublisher{failFor: map[string]error{
		bad.ID.String(): errors.New("broker unavailable"),
	}}

	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{bad.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{good.ID}, repo.published)
}

func TestProcessBatch_EmptyIsIdle(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, &fakePublisher{})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessBatch_FetchErrorSurfaces(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("connection reset")}
	svc := newTestService(t, repo, &fakePublisher{})

	_, err := svc.processBatch(context.Background())
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
