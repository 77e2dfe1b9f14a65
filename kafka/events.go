package kafka

import "time"

// ValidationEmailRequestedEvent asks the mailer to send a listing's
// validation link
type ValidationEmailRequestedEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Recipient string    `json:"recipient"`
	ListingID uint      `json:"listing_id"`
	Title     string    `json:"title"`
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypeValidationRequested = "listing.validation_requested"
)

// Kafka topics
const (
	TopicValidationEmail = "listing-validation-email"
)
