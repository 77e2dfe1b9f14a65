package command

import (
	"context"
	"fmt"

	listingdomain "github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/wishlist/domain"
)

// AddFavoriteCommand represents saving a listing to a wishlist
type AddFavoriteCommand struct {
	WishlistID string
	ListingID  uint
}

// AddFavoriteHandler handles add favorite command
type AddFavoriteHandler struct {
	repo domain.FavoritesRepository
}

// NewAddFavoriteHandler creates a new add favorite handler
func NewAddFavoriteHandler(repo domain.FavoritesRepository) *AddFavoriteHandler {
	return &AddFavoriteHandler{repo: repo}
}

// Handle reports whether the listing was newly added
func (h *AddFavoriteHandler) Handle(ctx context.Context, cmd AddFavoriteCommand) (bool, error) {
	if err := validate(cmd.WishlistID, cmd.ListingID); err != nil {
		return false, err
	}

	added, err := h.repo.Add(ctx, cmd.WishlistID, cmd.ListingID)
	if err != nil {
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}
	return added, nil
}

// RemoveFavoriteCommand represents dropping a listing from a wishlist
type RemoveFavoriteCommand struct {
	WishlistID string
	ListingID  uint
}

// RemoveFavoriteHandler handles remove favorite command
type RemoveFavoriteHandler struct {
	repo domain.FavoritesRepository
}

// NewRemoveFavoriteHandler creates a new remove favorite handler
func NewRemoveFavoriteHandler(repo domain.FavoritesRepository) *RemoveFavoriteHandler {
	return &RemoveFavoriteHandler{repo: repo}
}

// Handle reports whether the listing was present
func (h *RemoveFavoriteHandler) Handle(ctx context.Context, cmd RemoveFavoriteCommand) (bool, error) {
	if err := validate(cmd.WishlistID, cmd.ListingID); err != nil {
		return false, err
	}

	removed, err := h.repo.Remove(ctx, cmd.WishlistID, cmd.ListingID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}
	return removed, nil
}

func validate(wishlistID string, listingID uint) error {
	if wishlistID == "" {
		return listingdomain.InvalidInput("wishlist id is required")
	}
	if listingID == 0 {
		return listingdomain.InvalidInput("invalid listing id")
	}
	return nil
}
