package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/pkg/logger"
)

const maxTokenAttempts = 3

// ValidationRequest is the payload handed to the delivery collaborator
type ValidationRequest struct {
	Recipient string
	ListingID uint
	Title     string
	Token     string
}

// ValidationDelivery enqueues the confirmation e-mail for a new listing.
// Implementations return domain.ErrDeliveryEnqueueFailed when the request
// could not be handed off.
type ValidationDelivery interface {
	RequestValidationEmail(ctx context.Context, req ValidationRequest) error
}

// SubmitListingCommand represents the command to submit a new listing
type SubmitListingCommand struct {
	Title        string
	Description  string
	Price        *int64
	Location     string
	ImageURL     string
	ContactEmail string
	ContactPhone string
}

// SubmitListingResult reports the stored listing and whether the
// confirmation e-mail was queued
type SubmitListingResult struct {
	Listing        *domain.Listing
	DeliveryQueued bool
}

// SubmitListingHandler stores a listing as pending and requests its
// confirmation e-mail
type SubmitListingHandler struct {
	repo           domain.ListingRepository
	delivery       ValidationDelivery
	enqueueTimeout time.Duration
}

// NewSubmitListingHandler creates a new submit listing handler
func NewSubmitListingHandler(repo domain.ListingRepository, delivery ValidationDelivery, enqueueTimeout time.Duration) *SubmitListingHandler {
	return &SubmitListingHandler{
		repo:           repo,
		delivery:       delivery,
		enqueueTimeout: enqueueTimeout,
	}
}

// Handle executes the submit listing command. A failed e-mail enqueue never
// fails the submission.
func (h *SubmitListingHandler) Handle(ctx context.Context, cmd SubmitListingCommand) (*SubmitListingResult, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return nil, domain.InvalidInput("title is required")
	}

	listing := &domain.Listing{
		Title:        title,
		Description:  cmd.Description,
		Price:        cmd.Price,
		Location:     cmd.Location,
		ImageURL:     cmd.ImageURL,
		ContactEmail: strings.TrimSpace(cmd.ContactEmail),
		ContactPhone: cmd.ContactPhone,
	}

	if err := h.create(ctx, listing); err != nil {
		return nil, err
	}
	listingsSubmitted.Inc()

	logger.Info(ctx).
		Uint("listing_id", listing.ID).
		Str("title", listing.Title).
		Msg("Listing submitted, awaiting validation")

	result := &SubmitListingResult{Listing: listing}
	if listing.ContactEmail == "" {
		return result, nil
	}

	if err := h.requestEmail(ctx, listing); err != nil {
		validationEnqueueFailures.Inc()
		logger.Warn(ctx).
			Err(err).
			Uint("listing_id", listing.ID).
			Msg("Validation e-mail not queued")
		return result, nil
	}

	result.DeliveryQueued = true
	return result, nil
}

// create persists the listing, minting a fresh token when the unique index
// rejects the previous one
func (h *SubmitListingHandler) create(ctx context.Context, listing *domain.Listing) error {
	var err error
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token := domain.NewValidationToken()
		listing.ValidationToken = &token
		listing.IsValidated = false

		err = h.repo.Create(ctx, listing)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateToken) {
			return fmt.Errorf("failed to submit listing: %w", err)
		}

		logger.Warn(ctx).
			Int("attempt", attempt).
			Msg("Validation token collision, retrying")
	}
	return fmt.Errorf("failed to submit listing: %w", err)
}

func (h *SubmitListingHandler) requestEmail(ctx context.Context, listing *domain.Listing) error {
	if h.delivery == nil {
		return domain.ErrDeliveryEnqueueFailed
	}

	if h.enqueueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.enqueueTimeout)
		defer cancel()
	}

	err := h.delivery.RequestValidationEmail(ctx, ValidationRequest{
		Recipient: listing.ContactEmail,
		ListingID: listing.ID,
		Title:     listing.Title,
		Token:     listing.Token(),
	})
	if err != nil && !errors.Is(err, domain.ErrDeliveryEnqueueFailed) {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryEnqueueFailed, err)
	}
	return err
}
