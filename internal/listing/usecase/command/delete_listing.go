package command

import (
	"context"
	"fmt"

	"github.com/tair/parts-exchange/internal/listing/domain"
)

// DeleteListingCommand represents the command to delete a listing
type DeleteListingCommand struct {
	ID uint
}

// DeleteListingHandler handles listing deletion command
type DeleteListingHandler struct {
	repo domain.ListingRepository
}

// NewDeleteListingHandler creates a new delete listing handler
func NewDeleteListingHandler(repo domain.ListingRepository) *DeleteListingHandler {
	return &DeleteListingHandler{repo: repo}
}

// Handle executes the delete listing command
func (h *DeleteListingHandler) Handle(ctx context.Context, cmd DeleteListingCommand) error {
	if cmd.ID == 0 {
		return domain.InvalidInput("invalid listing id")
	}

	ok, err := h.repo.Delete(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if !ok {
		return fmt.Errorf("listing %d: %w", cmd.ID, domain.ErrNotFound)
	}
	return nil
}
