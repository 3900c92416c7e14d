package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rectifyd/rectify/pkg/events"
)

const subscriptionBuffer = 16

// WatermillEventBus carries run progress events over any watermill
// publisher/subscriber pair (in-process gochannel by default, Kafka for
// multi-observer deployments).
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, runID string, event events.RunProgress) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.RunIDMetadataKey, runID)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.RunTopic(runID), msg)
}

func (eb *WatermillEventBus) SubscribeRun(ctx context.Context, runID string) (<-chan events.RunProgress, error) {
	messages, err := eb.subscriber.Subscribe(ctx, events.RunTopic(runID))
	if err != nil {
		return nil, err
	}

	out := make(chan events.RunProgress, subscriptionBuffer)

	go func() {
		defer close(out)

		for msg := range messages {
			var event events.RunProgress

			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()

			select {
			case out <- event:
			case <-ctx.Done():
				return
			}

			if event.Terminal() {
				return
			}
		}
	}()

	return out, nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
