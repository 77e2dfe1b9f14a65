package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tair/parts-exchange/kafka"
	"github.com/tair/parts-exchange/pkg/logger"
)

var emailsSent = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "validation_emails_sent_total",
		Help: "Total number of validation e-mail deliveries by result",
	},
	[]string{"result"},
)

// MailerConfig controls retries of the validation mailer
type MailerConfig struct {
	BaseURL      string
	MaxAttempts  int
	RetryBackoff time.Duration
	SendTimeout  time.Duration
}

// ValidationMailer turns validation requests into e-mails
type ValidationMailer struct {
	sender Sender
	cfg    MailerConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewValidationMailer creates a new validation mailer
func NewValidationMailer(sender Sender, cfg MailerConfig) *ValidationMailer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ValidationMailer{sender: sender, cfg: cfg, sleep: sleepContext}
}

// ValidationLink builds the redemption URL for token
func ValidationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/validate/" + token
}

// BuildValidationMessage returns the subject and body for event
func BuildValidationMessage(baseURL string, event kafka.ValidationEmailRequestedEvent) (string, string) {
	subject := fmt.Sprintf("Validation for your listing: %s", event.Title)
	body := fmt.Sprintf(
		"Thank you. Your listing (id=%d, title=%s) was received.\n\nPlease validate your listing by visiting: %s\n",
		event.ListingID, event.Title, ValidationLink(baseURL, event.Token),
	)
	return subject, body
}

// Handle sends the e-mail, retrying with exponential backoff. It returns the
// last error once every attempt has failed.
func (m *ValidationMailer) Handle(ctx context.Context, event kafka.ValidationEmailRequestedEvent) error {
	if event.Recipient == "" || event.Token == "" {
		emailsSent.WithLabelValues("skipped").Inc()
		logger.Warn(ctx).
			Uint("listing_id", event.ListingID).
			Msg("Validation request without recipient or token, dropping")
		return nil
	}

	subject, body := BuildValidationMessage(m.cfg.BaseURL, event)
	backoff := m.cfg.RetryBackoff

	var err error
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		err = m.send(ctx, event.Recipient, subject, body)
		if err == nil {
			emailsSent.WithLabelValues("sent").Inc()
			logger.Info(ctx).
				Uint("listing_id", event.ListingID).
				Int("attempt", attempt).
				Msg("Validation email sent")
			return nil
		}

		if attempt == m.cfg.MaxAttempts {
			break
		}

		emailsSent.WithLabelValues("retried").Inc()
		logger.Warn(ctx).
			Err(err).
			Uint("listing_id", event.ListingID).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Validation email failed, retrying")

		if serr := m.sleep(ctx, backoff); serr != nil {
			err = serr
			break
		}
		backoff *= 2
	}

	emailsSent.WithLabelValues("failed").Inc()
	logger.Error(ctx).
		Err(err).
		Uint("listing_id", event.ListingID).
		Int("max_attempts", m.cfg.MaxAttempts).
		Msg("Giving up on validation email")
	return fmt.Errorf("validation email for listing %d not sent: %w", event.ListingID, err)
}

func (m *ValidationMailer) send(ctx context.Context, to, subject, body string) error {
	if m.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.SendTimeout)
		defer cancel()
	}
	return m.sender.Send(ctx, to, subject, body)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
