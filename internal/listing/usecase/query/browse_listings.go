package query

import (
	"context"
	"fmt"

	"github.com/tair/parts-exchange/internal/listing/domain"
)

const (
	// BrowseLimit is the row cap when the caller asks for none
	BrowseLimit = 50
	// MaxBrowseLimit bounds caller-supplied limits
	MaxBrowseLimit = 100
)

// BrowseListingsQuery represents the query for the public listing page
type BrowseListingsQuery struct {
	Limit int
}

// BrowseListingsHandler handles browse listings query
type BrowseListingsHandler struct {
	repo domain.ListingRepository
}

// NewBrowseListingsHandler creates a new browse listings handler
func NewBrowseListingsHandler(repo domain.ListingRepository) *BrowseListingsHandler {
	return &BrowseListingsHandler{repo: repo}
}

// Handle returns validated listings, newest first
func (h *BrowseListingsHandler) Handle(ctx context.Context, query BrowseListingsQuery) ([]domain.ListingSummary, error) {
	if query.Limit <= 0 {
		query.Limit = BrowseLimit
	}
	if query.Limit > MaxBrowseLimit {
		query.Limit = MaxBrowseLimit
	}

	listings, err := h.repo.FindValidated(ctx, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to browse listings: %w", err)
	}

	summaries := make([]domain.ListingSummary, 0, len(listings))
	for i := range listings {
		summaries = append(summaries, listings[i].Summary())
	}
	return summaries, nil
}
