package query

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tair/parts-exchange/internal/listing/domain"
	wishlistdomain "github.com/tair/parts-exchange/internal/wishlist/domain"
	"github.com/tair/parts-exchange/pkg/logger"
)

// ResolveFavoritesQuery represents the query for a wishlist's listings
type ResolveFavoritesQuery struct {
	WishlistID string
}

// ResolveFavoritesHandler joins a wishlist with the listing store
type ResolveFavoritesHandler struct {
	listings  domain.ListingRepository
	favorites wishlistdomain.FavoritesRepository
}

// NewResolveFavoritesHandler creates a new resolve favorites handler
func NewResolveFavoritesHandler(listings domain.ListingRepository, favorites wishlistdomain.FavoritesRepository) *ResolveFavoritesHandler {
	return &ResolveFavoritesHandler{listings: listings, favorites: favorites}
}

// Handle returns the favorited listings ordered by id descending. Favorites
// pointing at deleted listings are skipped.
func (h *ResolveFavoritesHandler) Handle(ctx context.Context, query ResolveFavoritesQuery) ([]domain.ListingSummary, error) {
	result := []domain.ListingSummary{}
	if query.WishlistID == "" {
		return result, nil
	}

	ids, err := h.favorites.List(ctx, query.WishlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	for _, id := range ids {
		listing, err := h.listings.FindByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug(ctx).
				Uint("listing_id", id).
				Msg("Skipping stale favorite")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve favorite %d: %w", id, err)
		}
		result = append(result, listing.Summary())
	}
	return result, nil
}
