package query

import (
	"context"
	"fmt"

	"github.com/tair/parts-exchange/internal/listing/domain"
)

// GetListingQuery represents the query to get a listing by ID
type GetListingQuery struct {
	ID uint
}

// GetListingHandler handles get listing query
type GetListingHandler struct {
	repo domain.ListingRepository
}

// NewGetListingHandler creates a new get listing handler
func NewGetListingHandler(repo domain.ListingRepository) *GetListingHandler {
	return &GetListingHandler{repo: repo}
}

// Handle returns the listing whatever its validation state
func (h *GetListingHandler) Handle(ctx context.Context, query GetListingQuery) (*domain.Listing, error) {
	if query.ID == 0 {
		return nil, domain.InvalidInput("invalid listing id")
	}

	listing, err := h.repo.FindByID(ctx, query.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}
