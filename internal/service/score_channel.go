package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow-api/internal/broker"
	"github.com/gradeflow/gradeflow-api/internal/dto"
)

// Routing key suffixes shared with the scoring engine.
const (
	rawGradeRoutingSuffix = "raw-grades"
	scoredRoutingSuffix   = "scored"
)

// RawGradeRoutingKey is the outbound key for one migration.
func RawGradeRoutingKey(migrationID string) string {
	return fmt.Sprintf("%s.%s", migrationID, rawGradeRoutingSuffix)
}

// ScoredRoutingKey is the inbound key for one migration.
func ScoredRoutingKey(migrationID string) string {
	return fmt.Sprintf("%s.%s", migrationID, scoredRoutingSuffix)
}

// ScoreChannelFactory builds the per-migration channel pair used to exchange
// scores with the external scoring engine.
type ScoreChannelFactory struct {
	openPublish broker.OpenPublishFunc
	openReceive broker.OpenReceiveFunc
	logger      *zap.Logger
}

// NewScoreChannelFactory constructs the factory from channel openers.
func NewScoreChannelFactory(openPublish broker.OpenPublishFunc, openReceive broker.OpenReceiveFunc, logger *zap.Logger) *ScoreChannelFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreChannelFactory{openPublish: openPublish, openReceive: openReceive, logger: logger}
}

// ScoreChannelBuilder accumulates the configuration for one migration's
// channel set.
type ScoreChannelBuilder struct {
	factory *ScoreChannelFactory

	migrationID     string
	policyURI       string
	metadata        *dto.AssignmentMetadata
	onScoreReceived broker.ScoredHandler
}

// ForMigration starts a builder bound to a migration id.
func (f *ScoreChannelFactory) ForMigration(migrationID string) *ScoreChannelBuilder {
	return &ScoreChannelBuilder{factory: f, migrationID: migrationID}
}

// WithPolicy records the policy URI the engine should load.
func (b *ScoreChannelBuilder) WithPolicy(policyURI string) *ScoreChannelBuilder {
	b.policyURI = policyURI
	return b
}

// WithMetadata attaches assignment metadata for the grading start message.
func (b *ScoreChannelBuilder) WithMetadata(meta *dto.AssignmentMetadata) *ScoreChannelBuilder {
	b.metadata = meta
	return b
}

// WithOnScoreReceived registers the handler for computed scores. Without a
// handler no receive channel is opened.
func (b *ScoreChannelBuilder) WithOnScoreReceived(handler broker.ScoredHandler) *ScoreChannelBuilder {
	b.onScoreReceived = handler
	return b
}

// Build opens the channels. The publish channel is opened first; if the
// receive channel then fails to open, the publish channel is closed before
// the error is returned so no half-open set leaks.
func (b *ScoreChannelBuilder) Build(ctx context.Context) (*ScoreChannelSet, error) {
	if b.migrationID == "" {
		return nil, fmt.Errorf("score channel builder requires a migration id")
	}

	set := &ScoreChannelSet{
		migrationID: b.migrationID,
		rawGradeKey: RawGradeRoutingKey(b.migrationID),
		scoredKey:   ScoredRoutingKey(b.migrationID),
		policyURI:   b.policyURI,
		metadata:    b.metadata,
	}

	publish, err := b.factory.openPublish(ctx, set.rawGradeKey)
	if err != nil {
		return nil, fmt.Errorf("open raw grade channel for migration %s: %w", b.migrationID, err)
	}
	set.publish = publish

	if b.onScoreReceived != nil {
		receive, err := b.factory.openReceive(ctx, set.scoredKey, b.onScoreReceived)
		if err != nil {
			if closeErr := publish.Close(); closeErr != nil {
				b.factory.logger.Sugar().Warnw("failed to close publish channel after receive open failure",
					"migration_id", b.migrationID, "error", closeErr)
			}
			return nil, fmt.Errorf("open scored channel for migration %s: %w", b.migrationID, err)
		}
		set.receive = receive
	}

	b.factory.logger.Sugar().Infow("score channels ready",
		"migration_id", b.migrationID,
		"raw_grade_key", set.rawGradeKey,
		"scored_key", set.scoredKey,
		"receiving", set.receive != nil,
	)
	return set, nil
}

// ScoreChannelSet is one migration's live channel pair.
type ScoreChannelSet struct {
	migrationID string
	rawGradeKey string
	scoredKey   string
	policyURI   string
	metadata    *dto.AssignmentMetadata

	publish broker.PublishChannel
	receive broker.ReceiveChannel
}

// StartMessage builds the control message announcing this migration's
// grading run to the engine.
func (s *ScoreChannelSet) StartMessage() dto.GradingStartMessage {
	return dto.GradingStartMessage{
		MigrationID:            s.migrationID,
		PolicyURI:              s.policyURI,
		RawGradeRoutingKey:     s.rawGradeKey,
		ScoreCreatedRoutingKey: s.scoredKey,
		GlobalMetadata:         s.metadata,
	}
}

// PublishRawGrade sends one raw score to the engine.
func (s *ScoreChannelSet) PublishRawGrade(ctx context.Context, msg dto.RawGradeMessage) error {
	return s.publish.Publish(ctx, msg)
}

// Close tears the set down, receive side first so no message arrives on a
// closed handler path.
func (s *ScoreChannelSet) Close() error {
	var firstErr error
	if s.receive != nil {
		if err := s.receive.Close(); err != nil {
			firstErr = err
		}
		s.receive = nil
	}
	if s.publish != nil {
		if err := s.publish.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.publish = nil
	}
	return firstErr
}
