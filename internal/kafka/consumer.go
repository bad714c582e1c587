package kafka

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/vidmesh/realtime/internal/application"
	"github.com/vidmesh/realtime/internal/kafka/registry"

	// Blank imports trigger init() in each handler file,
	// registering all event handlers into the registry.
	_ "github.com/vidmesh/realtime/internal/kafka/handlers"
)

// Consumer wraps the franz-go Kafka client. Platform services publish their
// events to the subscribed topics; every record that maps to a notification
// goes through the delivery engine like any other send.
type Consumer struct {
	client   *kgo.Client
	delivery *application.DeliveryEngine
}

// New creates a Consumer with the given brokers, group ID, and topics.
func New(brokers []string, groupID string, topics []string, delivery *application.DeliveryEngine) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, delivery: delivery}, nil
}

// Start begins polling Kafka and processing records. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	log.Info().Msg("kafka consumer started")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		fetches.EachRecord(func(r *kgo.Record) {
			c.process(ctx, r)
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error().Err(err).Msg("kafka commit error")
		}
	}

	c.client.Close()
	log.Info().Msg("kafka consumer stopped")
}

// process dispatches a Kafka record to the registered handler via the registry,
// then sends the resulting notification through the delivery engine.
func (c *Consumer) process(ctx context.Context, r *kgo.Record) {
	log.Debug().
		Str("topic", r.Topic).
		Str("key", string(r.Key)).
		Msg("processing kafka record")

	// notification-commands doesn't use eventType routing
	input := registry.DispatchDirect(r.Topic, r.Value)
	if input == nil {
		input = registry.Dispatch(r.Topic, r.Value)
	}

	if input == nil {
		log.Debug().Str("topic", r.Topic).Msg("no handler matched, skipping")
		return
	}

	if _, err := c.delivery.Send(ctx, *input); err != nil {
		log.Error().Err(err).
			Str("topic", r.Topic).
			Str("recipient", input.RecipientID).
			Str("type", string(input.Type)).
			Str("source_event_id", input.SourceEventID).
			Msg("failed to send notification from kafka event")
	}
}
