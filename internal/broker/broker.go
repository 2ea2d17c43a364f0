package broker

import (
	"context"

	"github.com/gradeflow/gradeflow-api/internal/dto"
)

// PublishChannel is one outbound message channel bound to a routing key.
type PublishChannel interface {
	Publish(ctx context.Context, message interface{}) error
	Close() error
}

// ReceiveChannel is one inbound subscription bound to a routing key. Closing
// it stops delivery.
type ReceiveChannel interface {
	Close() error
}

// ScoredHandler consumes one computed score from the scoring engine.
type ScoredHandler func(dto.ScoredMessage)

// OpenPublishFunc opens an outbound channel for a routing key.
type OpenPublishFunc func(ctx context.Context, routingKey string) (PublishChannel, error)

// OpenReceiveFunc opens an inbound channel for a routing key and dispatches
// every decoded message to the handler.
type OpenReceiveFunc func(ctx context.Context, routingKey string, onMessage ScoredHandler) (ReceiveChannel, error)
