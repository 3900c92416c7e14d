// Package eventbus decouples run progress publishing from its transports.
package eventbus

import (
	"context"

	"github.com/rectifyd/rectify/pkg/events"
)

// Publisher is the side the execution engine sees. Publish is best-effort:
// a slow or absent subscriber must never block or fail a step.
type Publisher interface {
	Publish(ctx context.Context, runID string, event events.RunProgress) error
}

// Subscriber yields the live event sequence of a single run. The returned
// channel preserves publish order and is closed after a terminal event or
// when ctx is cancelled. There is no replay: events published before the
// subscription are not delivered.
type Subscriber interface {
	SubscribeRun(ctx context.Context, runID string) (<-chan events.RunProgress, error)
}

type EventBus interface {
	Publisher
	Subscriber
	GenerateID() string
	Close() error
}
