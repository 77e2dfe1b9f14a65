package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/tair/parts-exchange/internal/wishlist/domain"
)

// ListFavoritesQuery represents the query for the raw ids of a wishlist
type ListFavoritesQuery struct {
	WishlistID string
}

// ListFavoritesHandler handles list favorites query
type ListFavoritesHandler struct {
	repo domain.FavoritesRepository
}

// NewListFavoritesHandler creates a new list favorites handler
func NewListFavoritesHandler(repo domain.FavoritesRepository) *ListFavoritesHandler {
	return &ListFavoritesHandler{repo: repo}
}

// Handle returns the saved ids in ascending order; an unknown or empty
// identity yields an empty slice
func (h *ListFavoritesHandler) Handle(ctx context.Context, query ListFavoritesQuery) ([]uint, error) {
	if query.WishlistID == "" {
		return []uint{}, nil
	}

	ids, err := h.repo.List(ctx, query.WishlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// IsFavoriteQuery asks whether a listing is saved in a wishlist
type IsFavoriteQuery struct {
	WishlistID string
	ListingID  uint
}

// IsFavoriteHandler handles is favorite query
type IsFavoriteHandler struct {
	repo domain.FavoritesRepository
}

// NewIsFavoriteHandler creates a new is favorite handler
func NewIsFavoriteHandler(repo domain.FavoritesRepository) *IsFavoriteHandler {
	return &IsFavoriteHandler{repo: repo}
}

// Handle reports membership; no identity means not favorited
func (h *IsFavoriteHandler) Handle(ctx context.Context, query IsFavoriteQuery) (bool, error) {
	if query.WishlistID == "" {
		return false, nil
	}

	ok, err := h.repo.Contains(ctx, query.WishlistID, query.ListingID)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return ok, nil
}
