package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/listing/usecase/command"
	"github.com/tair/parts-exchange/kafka"
	"github.com/tair/parts-exchange/pkg/circuitbreaker"
)

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []kafka.ValidationEmailRequestedEvent
}

func (f *fakePublisher) PublishValidationRequested(ctx context.Context, event kafka.ValidationEmailRequestedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type countingPublisher struct {
	attempts int
	err      error
}

func (c *countingPublisher) PublishValidationRequested(ctx context.Context, event kafka.ValidationEmailRequestedEvent) error {
	c.attempts++
	return c.err
}

func TestKafkaEnqueuerPublishes(t *testing.T) {
	pub := &fakePublisher{}
	e := NewKafkaEnqueuer(pub, circuitbreaker.New("validation-email", 3, time.Minute))

	err := e.RequestValidationEmail(context.Background(), command.ValidationRequest{
		Recipient: "seller@example.com",
		ListingID: 5,
		Title:     "Bolt M6",
		Token:     "tok",
	})
	require.NoError(t, err)
	require.Equal(t, 1, pub.calls())
	assert.Equal(t, "seller@example.com", pub.events[0].Recipient)
	assert.Equal(t, uint(5), pub.events[0].ListingID)
	assert.Equal(t, "tok", pub.events[0].Token)
}

func TestKafkaEnqueuerFailsFastOnceBreakerOpens(t *testing.T) {
	pub := &countingPublisher{err: errors.New("kafka: client has run out of available brokers")}
	e := NewKafkaEnqueuer(pub, circuitbreaker.New("validation-email", 2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := e.RequestValidationEmail(ctx, command.ValidationRequest{ListingID: 1})
		assert.True(t, errors.Is(err, domain.ErrDeliveryEnqueueFailed))
	}
	assert.Equal(t, 2, pub.attempts)
}

func TestKafkaEnqueuerConnectsOnceBrokerIsUp(t *testing.T) {
	pub := &fakePublisher{}
	dials := 0
	connect := func() (ValidationPublisher, error) {
		dials++
		if dials == 1 {
			return nil, errors.New("kafka: client has run out of available brokers")
		}
		return pub, nil
	}
	e := NewLazyKafkaEnqueuer(connect, circuitbreaker.New("validation-email", 3, time.Minute))
	ctx := context.Background()

	err := e.RequestValidationEmail(ctx, command.ValidationRequest{ListingID: 1, Token: "a"})
	assert.True(t, errors.Is(err, domain.ErrDeliveryEnqueueFailed))
	assert.Equal(t, 0, pub.calls())

	require.NoError(t, e.RequestValidationEmail(ctx, command.ValidationRequest{ListingID: 2, Token: "b"}))
	require.NoError(t, e.RequestValidationEmail(ctx, command.ValidationRequest{ListingID: 3, Token: "c"}))
	assert.Equal(t, 2, dials)
	require.Equal(t, 2, pub.calls())
	assert.Equal(t, uint(2), pub.events[0].ListingID)
	assert.NoError(t, e.Close())
}

func TestKafkaEnqueuerConnectFailuresOpenBreaker(t *testing.T) {
	dials := 0
	connect := func() (ValidationPublisher, error) {
		dials++
		return nil, errors.New("dial tcp: connection refused")
	}
	e := NewLazyKafkaEnqueuer(connect, circuitbreaker.New("validation-email", 2, time.Minute))

	for i := 0; i < 5; i++ {
		err := e.RequestValidationEmail(context.Background(), command.ValidationRequest{ListingID: 1})
		assert.True(t, errors.Is(err, domain.ErrDeliveryEnqueueFailed))
	}
	assert.Equal(t, 2, dials)
}

func TestKafkaEnqueuerWithoutBroker(t *testing.T) {
	e := NewLazyKafkaEnqueuer(nil, nil)
	err := e.RequestValidationEmail(context.Background(), command.ValidationRequest{})
	assert.True(t, errors.Is(err, domain.ErrDeliveryEnqueueFailed))
	assert.NoError(t, e.Close())
}

type fakeSender struct {
	failures int
	calls    int
	to       string
	subject  string
	body     string
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("dial tcp mailhog:1025: connection refused")
	}
	f.to, f.subject, f.body = to, subject, body
	return nil
}

func newTestMailer(sender Sender, attempts int) (*ValidationMailer, *[]time.Duration) {
	m := NewValidationMailer(sender, MailerConfig{
		BaseURL:      "http://localhost:8080/",
		MaxAttempts:  attempts,
		RetryBackoff: 10 * time.Second,
	})
	var waits []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return m, &waits
}

func TestBuildValidationMessage(t *testing.T) {
	subject, body := BuildValidationMessage("http://localhost:8080", kafka.ValidationEmailRequestedEvent{
		ListingID: 1,
		Title:     "Bolt M6",
		Token:     "abc123",
	})

	assert.Equal(t, "Validation for your listing: Bolt M6", subject)
	assert.Equal(t,
		"Thank you. Your listing (id=1, title=Bolt M6) was received.\n\nPlease validate your listing by visiting: http://localhost:8080/validate/abc123\n",
		body)
}

func TestValidationMailerRetriesWithBackoff(t *testing.T) {
	sender := &fakeSender{failures: 2}
	m, waits := newTestMailer(sender, 4)

	err := m.Handle(context.Background(), kafka.ValidationEmailRequestedEvent{
		Recipient: "seller@example.com",
		ListingID: 9,
		Title:     "Clutch",
		Token:     "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, *waits)
	assert.Equal(t, "seller@example.com", sender.to)
	assert.Contains(t, sender.body, "http://localhost:8080/validate/tok")
}

func TestValidationMailerGivesUp(t *testing.T) {
	sender := &fakeSender{failures: 100}
	m, waits := newTestMailer(sender, 4)

	err := m.Handle(context.Background(), kafka.ValidationEmailRequestedEvent{
		Recipient: "seller@example.com",
		ListingID: 9,
		Token:     "tok",
	})
	assert.Error(t, err)
	assert.Equal(t, 4, sender.calls)
	assert.Len(t, *waits, 3)
}

func TestValidationMailerStopsWhenCancelled(t *testing.T) {
	sender := &fakeSender{failures: 100}
	m := NewValidationMailer(sender, MailerConfig{MaxAttempts: 4, RetryBackoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Handle(ctx, kafka.ValidationEmailRequestedEvent{Recipient: "a@b.c", Token: "tok"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, sender.calls)
}

func TestValidationMailerDropsIncompleteRequests(t *testing.T) {
	sender := &fakeSender{}
	m, _ := newTestMailer(sender, 4)

	require.NoError(t, m.Handle(context.Background(), kafka.ValidationEmailRequestedEvent{Token: "tok"}))
	assert.Zero(t, sender.calls)
}

func TestNewSMTPSenderValidatesConfig(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Port: 1025, From: "noreply@eea.com"})
	assert.Error(t, err)

	_, err = NewSMTPSender(SMTPConfig{Host: "mailhog", Port: 1025, From: "noreply@eea.com", Encryption: "rot13"})
	assert.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "mailhog", Port: 465, From: "noreply@eea.com", Encryption: "ssl"})
	require.NoError(t, err)
	assert.True(t, s.dialer.SSL)

	assert.Error(t, s.Send(context.Background(), "", "subject", "body"))
}
