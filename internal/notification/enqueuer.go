package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/listing/usecase/command"
	"github.com/tair/parts-exchange/kafka"
	"github.com/tair/parts-exchange/pkg/circuitbreaker"
	"github.com/tair/parts-exchange/pkg/logger"
)

// ValidationPublisher is the part of kafka.Publisher the enqueuer needs
type ValidationPublisher interface {
	PublishValidationRequested(ctx context.Context, event kafka.ValidationEmailRequestedEvent) error
}

// PublisherFactory connects to the broker
type PublisherFactory func() (ValidationPublisher, error)

// KafkaEnqueuer hands validation e-mail requests to Kafka. The publisher is
// built on first use and rebuilt after a failed connect, so a broker that
// comes up after the service is picked up without a restart. Consecutive
// failures open the breaker so a dead broker costs nothing per request.
type KafkaEnqueuer struct {
	connect PublisherFactory
	breaker *circuitbreaker.CircuitBreaker

	mu        sync.Mutex
	publisher ValidationPublisher
}

// NewKafkaEnqueuer creates an enqueuer over a connected publisher; breaker may be nil
func NewKafkaEnqueuer(publisher ValidationPublisher, breaker *circuitbreaker.CircuitBreaker) *KafkaEnqueuer {
	return &KafkaEnqueuer{publisher: publisher, breaker: breaker}
}

// NewLazyKafkaEnqueuer creates an enqueuer that calls connect until it succeeds
func NewLazyKafkaEnqueuer(connect PublisherFactory, breaker *circuitbreaker.CircuitBreaker) *KafkaEnqueuer {
	return &KafkaEnqueuer{connect: connect, breaker: breaker}
}

// Connect builds the publisher if there is none yet
func (e *KafkaEnqueuer) Connect() (ValidationPublisher, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.publisher != nil {
		return e.publisher, nil
	}
	if e.connect == nil {
		return nil, errors.New("no message broker configured")
	}

	publisher, err := e.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect publisher: %w", err)
	}
	e.publisher = publisher
	logger.Logger.Info().Msg("Validation e-mail publisher connected")
	return publisher, nil
}

// RequestValidationEmail implements command.ValidationDelivery
func (e *KafkaEnqueuer) RequestValidationEmail(ctx context.Context, req command.ValidationRequest) error {
	event := kafka.ValidationEmailRequestedEvent{
		Recipient: req.Recipient,
		ListingID: req.ListingID,
		Title:     req.Title,
		Token:     req.Token,
	}

	publish := func() error {
		publisher, err := e.Connect()
		if err != nil {
			return err
		}
		return publisher.PublishValidationRequested(ctx, event)
	}

	var err error
	if e.breaker != nil {
		err = e.breaker.Call(publish)
	} else {
		err = publish()
	}
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			logger.Debug(ctx).
				Uint("listing_id", req.ListingID).
				Msg("Validation enqueue skipped, breaker open")
		}
		return fmt.Errorf("%w: %v", domain.ErrDeliveryEnqueueFailed, err)
	}
	return nil
}

// Close releases the publisher if one was built
func (e *KafkaEnqueuer) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	closer, ok := e.publisher.(io.Closer)
	if !ok {
		return nil
	}
	e.publisher = nil
	return closer.Close()
}
