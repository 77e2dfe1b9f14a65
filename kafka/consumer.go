package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/parts-exchange/pkg/logger"
)

const (
	// recentEvents bounds the duplicate filter
	recentEvents = 1024
	// rejoinDelay separates Consume calls after a group error
	rejoinDelay = time.Second
)

var eventsConsumed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "validation_events_consumed_total",
		Help: "Validation e-mail events taken off Kafka by outcome",
	},
	[]string{"outcome"},
)

// EventHandler processes one validation e-mail request
type EventHandler func(ctx context.Context, event ValidationEmailRequestedEvent) error

// Consumer reads validation e-mail requests from a consumer group
type Consumer struct {
	group   sarama.ConsumerGroup
	groupID string
	topics  []string

	mu       sync.RWMutex
	handlers map[string]EventHandler
	seen     *recentSet
}

// NewConsumer joins groupID on brokers. Offsets start at the oldest message
// so requests published while the mailer was down are still delivered.
func NewConsumer(brokers []string, groupID string, topics []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Strs("topics", topics).
		Msg("Kafka consumer initialized")

	return newConsumer(group, groupID, topics), nil
}

func newConsumer(group sarama.ConsumerGroup, groupID string, topics []string) *Consumer {
	return &Consumer{
		group:    group,
		groupID:  groupID,
		topics:   topics,
		handlers: make(map[string]EventHandler),
		seen:     newRecentSet(recentEvents),
	}
}

// RegisterHandler routes eventType to handler
func (c *Consumer) RegisterHandler(eventType string, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = handler
}

func (c *Consumer) handler(eventType string) (EventHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[eventType]
	return h, ok
}

// Run consumes until ctx is cancelled. Group errors are logged and the
// consumer rejoins after a short pause.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			logger.Logger.Error().Err(err).Str("group_id", c.groupID).Msg("Consumer group error")
		}
	}()

	logger.Logger.Info().
		Strs("topics", c.topics).
		Str("group_id", c.groupID).
		Msg("Kafka consumer started")

	for {
		err := c.group.Consume(ctx, c.topics, &groupHandler{consumer: c})
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Consume failed, rejoining")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(rejoinDelay):
			}
		}
	}
}

// Close leaves the group
func (c *Consumer) Close() error {
	if c.group == nil {
		return nil
	}
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message once it has been dispatched, whatever the
// outcome. Send retries belong to the handler.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		outcome := h.consumer.dispatch(session.Context(), message)
		eventsConsumed.WithLabelValues(outcome).Inc()
		session.MarkMessage(message, "")
	}
	return nil
}

// incoming is a decoded message with its routing headers
type incoming struct {
	eventType string
	eventID   string
	carrier   propagation.MapCarrier
	event     ValidationEmailRequestedEvent
}

func decodeMessage(message *sarama.ConsumerMessage) (incoming, error) {
	in := incoming{carrier: propagation.MapCarrier{}}
	for _, header := range message.Headers {
		switch key := string(header.Key); key {
		case "traceparent", "tracestate":
			in.carrier[key] = string(header.Value)
		case "event_type":
			in.eventType = string(header.Value)
		case "event_id":
			in.eventID = string(header.Value)
		}
	}

	if err := json.Unmarshal(message.Value, &in.event); err != nil {
		return in, fmt.Errorf("failed to decode event: %w", err)
	}
	if in.eventType == "" {
		in.eventType = in.event.EventType
	}
	if in.eventID == "" {
		in.eventID = in.event.EventID
	}
	return in, nil
}

// dispatch hands one message to its handler and reports the outcome label
func (c *Consumer) dispatch(ctx context.Context, message *sarama.ConsumerMessage) string {
	in, decodeErr := decodeMessage(message)

	ctx = otel.GetTextMapPropagator().Extract(ctx, in.carrier)
	ctx, span := otel.Tracer("kafka-consumer").Start(ctx, "kafka.consume "+message.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
			attribute.String("event.type", in.eventType),
			attribute.String("event.id", in.eventID),
		),
	)
	defer span.End()

	log := logger.WithContext(ctx).With().
		Str("topic", message.Topic).
		Int64("offset", message.Offset).
		Str("event_id", in.eventID).
		Logger()

	if decodeErr != nil {
		span.RecordError(decodeErr)
		span.SetStatus(codes.Error, "undecodable message")
		log.Error().Err(decodeErr).Msg("Dropping undecodable message")
		return "malformed"
	}

	handler, ok := c.handler(in.eventType)
	if !ok {
		span.SetStatus(codes.Error, "no handler")
		log.Warn().Str("event_type", in.eventType).Msg("No handler registered for event type")
		return "unhandled"
	}

	if in.eventID != "" && c.seen.contains(in.eventID) {
		log.Info().Msg("Duplicate event skipped")
		return "duplicate"
	}

	span.SetAttributes(attribute.Int64("listing.id", int64(in.event.ListingID)))
	if err := handler(ctx, in.event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		log.Error().Err(err).Uint("listing_id", in.event.ListingID).Msg("Failed to handle event")
		return "failed"
	}

	if in.eventID != "" {
		c.seen.add(in.eventID)
	}
	log.Info().Uint("listing_id", in.event.ListingID).Msg("Event handled")
	return "handled"
}

// recentSet remembers the last n keys
type recentSet struct {
	mu    sync.Mutex
	keys  map[string]struct{}
	order []string
	next  int
}

func newRecentSet(n int) *recentSet {
	return &recentSet{keys: make(map[string]struct{}, n), order: make([]string, n)}
}

func (s *recentSet) contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

func (s *recentSet) add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return
	}
	if old := s.order[s.next]; old != "" {
		delete(s.keys, old)
	}
	s.order[s.next] = key
	s.keys[key] = struct{}{}
	s.next = (s.next + 1) % len(s.order)
}
