package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/parts-exchange/pkg/logger"
)

// Publisher wraps Kafka producer
type Publisher struct {
	producer sarama.SyncProducer
	brokers  []string
}

// NewProducerConfig returns a producer config that gives up quickly when the
// cluster is unreachable
func NewProducerConfig(timeout time.Duration) *sarama.Config {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 1
	config.Producer.Retry.Backoff = 50 * time.Millisecond
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.MaxMessageBytes = 1000000
	config.Producer.Timeout = timeout
	config.Net.DialTimeout = timeout
	config.Net.ReadTimeout = timeout
	config.Net.WriteTimeout = timeout
	config.Metadata.Retry.Max = 1
	config.Metadata.Retry.Backoff = 50 * time.Millisecond
	return config
}

// NewPublisher creates a new Kafka publisher
func NewPublisher(brokers []string, timeout time.Duration) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Msg("Kafka publisher initialized")

	return NewPublisherWithProducer(producer, brokers), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(producer sarama.SyncProducer, brokers []string) *Publisher {
	return &Publisher{
		producer: producer,
		brokers:  brokers,
	}
}

// PublishValidationRequested publishes a validation e-mail request with
// tracing. It returns ctx.Err() if ctx ends before the broker acknowledges.
func (p *Publisher) PublishValidationRequested(ctx context.Context, event ValidationEmailRequestedEvent) error {
	ctx, span := otel.Tracer("kafka-publisher").Start(ctx, "kafka.publish "+TopicValidationEmail,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", TopicValidationEmail),
			attribute.Int64("listing.id", int64(event.ListingID)),
		),
	)
	defer span.End()

	msg, err := buildValidationMessage(ctx, event, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return err
	}

	partition, offset, err := p.send(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		logger.Error(ctx).
			Err(err).
			Uint("listing_id", event.ListingID).
			Msg("Failed to publish validation request")
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	logger.Debug(ctx).
		Uint("listing_id", event.ListingID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Validation request published")
	return nil
}

// send runs the blocking SendMessage so ctx can cut the wait short
func (p *Publisher) send(ctx context.Context, msg *sarama.ProducerMessage) (int32, int64, error) {
	type result struct {
		partition int32
		offset    int64
		err       error
	}
	done := make(chan result, 1)
	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		done <- result{partition, offset, err}
	}()

	select {
	case r := <-done:
		return r.partition, r.offset, r.err
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

// buildValidationMessage stamps the event and encodes it. Messages are keyed
// by listing so retries for one listing stay ordered on a partition; the
// trace context rides in headers next to event_type and event_id.
func buildValidationMessage(ctx context.Context, event ValidationEmailRequestedEvent, now time.Time) (*sarama.ProducerMessage, error) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.EventType = EventTypeValidationRequested
	event.Timestamp = now

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	carrier := propagation.MapCarrier{
		"event_type": event.EventType,
		"event_id":   event.EventID,
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]sarama.RecordHeader, 0, len(carrier))
	for _, key := range carrier.Keys() {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(carrier.Get(key))})
	}

	return &sarama.ProducerMessage{
		Topic:   TopicValidationEmail,
		Key:     sarama.StringEncoder(strconv.FormatUint(uint64(event.ListingID), 10)),
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	}, nil
}

// Close closes the Kafka producer
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
