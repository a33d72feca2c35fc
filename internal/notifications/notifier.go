package notifications

import (
	"context"
	"log"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes notification payloads into Redis channels. Channel
// names are the topic names, so subscribers and publishers share one
// vocabulary across processes.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends a payload to one topic channel.
func (n *Notifier) Publish(ctx context.Context, topic, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, topic, payload).Err()
}

// PublishAll sends a payload to every topic in order. The first error stops
// the loop; callers treat publish failures as non-fatal.
func (n *Notifier) PublishAll(ctx context.Context, topics []string, payload string) error {
	for _, topic := range topics {
		if err := n.Publish(ctx, topic, payload); err != nil {
			return err
		}
	}
	return nil
}

// StartPatternSubscriber subscribes to the notify:* pattern and calls
// onMessage for each incoming message with channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notify:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
