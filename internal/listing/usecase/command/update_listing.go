package command

import (
	"context"
	"fmt"

	"github.com/tair/parts-exchange/internal/listing/domain"
)

// UpdateListingCommand represents a partial update of a listing
type UpdateListingCommand struct {
	ID    uint
	Patch domain.ListingPatch
}

// UpdateListingHandler handles listing update command
type UpdateListingHandler struct {
	repo domain.ListingRepository
}

// NewUpdateListingHandler creates a new update listing handler
func NewUpdateListingHandler(repo domain.ListingRepository) *UpdateListingHandler {
	return &UpdateListingHandler{repo: repo}
}

// Handle applies the patch and returns the updated listing
func (h *UpdateListingHandler) Handle(ctx context.Context, cmd UpdateListingCommand) (*domain.Listing, error) {
	if cmd.ID == 0 {
		return nil, domain.InvalidInput("invalid listing id")
	}
	if cmd.Patch.IsEmpty() {
		return nil, domain.InvalidInput("no updatable fields supplied")
	}
	if err := cmd.Patch.Validate(); err != nil {
		return nil, err
	}

	ok, err := h.repo.Update(ctx, cmd.ID, cmd.Patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("listing %d: %w", cmd.ID, domain.ErrNotFound)
	}

	listing, err := h.repo.FindByID(ctx, cmd.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload listing: %w", err)
	}
	return listing, nil
}
