package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradeflow/gradeflow-api/internal/broker"
	"github.com/gradeflow/gradeflow-api/internal/dto"
)

type publishChannelStub struct {
	mu        sync.Mutex
	published []interface{}
	closed    bool
}

func (s *publishChannelStub) Publish(ctx context.Context, message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("publish on closed channel")
	}
	s.published = append(s.published, message)
	return nil
}

func (s *publishChannelStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *publishChannelStub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type receiveChannelStub struct {
	mu     sync.Mutex
	closed bool
}

func (s *receiveChannelStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestRoutingKeys(t *testing.T) {
	assert.Equal(t, "m-42.raw-grades", RawGradeRoutingKey("m-42"))
	assert.Equal(t, "m-42.scored", ScoredRoutingKey("m-42"))
}

func TestBuildOpensBothChannels(t *testing.T) {
	publish := &publishChannelStub{}
	receive := &receiveChannelStub{}
	var openedPublishKey, openedReceiveKey string

	factory := NewScoreChannelFactory(
		func(ctx context.Context, key string) (broker.PublishChannel, error) {
			openedPublishKey = key
			return publish, nil
		},
		func(ctx context.Context, key string, onMessage broker.ScoredHandler) (broker.ReceiveChannel, error) {
			openedReceiveKey = key
			return receive, nil
		},
		nil,
	)

	set, err := factory.ForMigration("m-1").
		WithPolicy("s3://policies/p1.js").
		WithOnScoreReceived(func(dto.ScoredMessage) {}).
		Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "m-1.raw-grades", openedPublishKey)
	assert.Equal(t, "m-1.scored", openedReceiveKey)

	msg := set.StartMessage()
	assert.Equal(t, "m-1", msg.MigrationID)
	assert.Equal(t, "s3://policies/p1.js", msg.PolicyURI)
	assert.Equal(t, "m-1.raw-grades", msg.RawGradeRoutingKey)
	assert.Equal(t, "m-1.scored", msg.ScoreCreatedRoutingKey)
}

func TestBuildWithoutHandlerSkipsReceiveChannel(t *testing.T) {
	receiveOpened := 0
	factory := NewScoreChannelFactory(
		func(ctx context.Context, key string) (broker.PublishChannel, error) {
			return &publishChannelStub{}, nil
		},
		func(ctx context.Context, key string, onMessage broker.ScoredHandler) (broker.ReceiveChannel, error) {
			receiveOpened++
			return &receiveChannelStub{}, nil
		},
		nil,
	)

	set, err := factory.ForMigration("m-1").Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.Equal(t, 0, receiveOpened)
}

func TestBuildFailsWhenPublishOpenFails(t *testing.T) {
	factory := NewScoreChannelFactory(
		func(ctx context.Context, key string) (broker.PublishChannel, error) {
			return nil, fmt.Errorf("broker down")
		},
		func(ctx context.Context, key string, onMessage broker.ScoredHandler) (broker.ReceiveChannel, error) {
			t.Fatal("receive channel must not be opened when publish open fails")
			return nil, nil
		},
		nil,
	)

	_, err := factory.ForMigration("m-1").
		WithOnScoreReceived(func(dto.ScoredMessage) {}).
		Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestBuildClosesPublishWhenReceiveOpenFails(t *testing.T) {
	publish := &publishChannelStub{}
	factory := NewScoreChannelFactory(
		func(ctx context.Context, key string) (broker.PublishChannel, error) {
			return publish, nil
		},
		func(ctx context.Context, key string, onMessage broker.ScoredHandler) (broker.ReceiveChannel, error) {
			return nil, fmt.Errorf("subscribe refused")
		},
		nil,
	)

	_, err := factory.ForMigration("m-1").
		WithOnScoreReceived(func(dto.ScoredMessage) {}).
		Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe refused")
	assert.True(t, publish.isClosed())
}

func TestBuildRequiresMigrationID(t *testing.T) {
	factory := NewScoreChannelFactory(
		func(ctx context.Context, key string) (broker.PublishChannel, error) {
			return &publishChannelStub{}, nil
		},
		nil,
		nil,
	)

	_, err := factory.ForMigration("").Build(context.Background())
	require.Error(t, err)
}

func TestPublishRawGradeFlowsToChannel(t *testing.T) {
	publish := &publishChannelStub{}
	factory := NewScoreChannelFactory(
		func(ctx context.Context, key string) (broker.PublishChannel, error) {
			return publish, nil
		},
		nil,
		nil,
	)

	set, err := factory.ForMigration("m-1").Build(context.Background())
	require.NoError(t, err)

	msg := dto.RawGradeMessage{CWID: "S1", RawScore: 88}
	require.NoError(t, set.PublishRawGrade(context.Background(), msg))

	publish.mu.Lock()
	defer publish.mu.Unlock()
	require.Len(t, publish.published, 1)
	assert.Equal(t, msg, publish.published[0])
}

func TestCloseIsIdempotent(t *testing.T) {
	publish := &publishChannelStub{}
	receive := &receiveChannelStub{}
	factory := NewScoreChannelFactory(
		func(ctx context.Context, key string) (broker.PublishChannel, error) {
			return publish, nil
		},
		func(ctx context.Context, key string, onMessage broker.ScoredHandler) (broker.ReceiveChannel, error) {
			return receive, nil
		},
		nil,
	)

	set, err := factory.ForMigration("m-1").
		WithOnScoreReceived(func(dto.ScoredMessage) {}).
		Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, set.Close())
	assert.True(t, publish.isClosed())

	receive.mu.Lock()
	assert.True(t, receive.closed)
	receive.mu.Unlock()

	// second close is a no-op
	require.NoError(t, set.Close())
}
