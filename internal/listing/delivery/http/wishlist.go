package http

import (
	"net/http"
	"time"

	"github.com/tair/parts-exchange/internal/listing/usecase/query"
	"github.com/tair/parts-exchange/internal/wishlist/domain"
	wishlistcommand "github.com/tair/parts-exchange/internal/wishlist/usecase/command"
	wishlistquery "github.com/tair/parts-exchange/internal/wishlist/usecase/query"
)

// WishlistCookie carries the anonymous wishlist identity
const WishlistCookie = "wishlist_id"

// CookieConfig controls the wishlist cookie
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// DefaultCookieConfig keeps the cookie for a year
func DefaultCookieConfig(secure bool) CookieConfig {
	return CookieConfig{MaxAge: 365 * 24 * time.Hour, Secure: secure}
}

// readWishlistCookie returns the identity from the request cookie. Malformed
// values count as absent.
func readWishlistCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(WishlistCookie)
	if err != nil || !domain.ValidIdentity(c.Value) {
		return "", false
	}
	return c.Value, true
}

func (h *ListingHandler) wishlistID(r *http.Request) (string, bool) {
	return readWishlistCookie(r)
}

func (h *ListingHandler) setWishlistCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     WishlistCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cookies.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// AddFavorite godoc
// @Summary Add a listing to the wishlist
// @Description Issues a wishlist_id cookie when the caller has none
// @Tags Wishlist
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} object{success=bool,data=object{id=int,favorited=bool,added=bool}}
// @Failure 503 {object} object{success=bool,error=string}
// @Router /api/parts/{id}/favourite [post]
func (h *ListingHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	wid, ok := h.wishlistID(r)
	if !ok {
		wid = domain.NewIdentity()
	}

	added, err := h.uc.AddFavorite.Handle(r.Context(), wishlistcommand.AddFavoriteCommand{WishlistID: wid, ListingID: id})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if !ok {
		h.setWishlistCookie(w, wid)
	}
	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"id":        id,
			"favorited": true,
			"added":     added,
		},
	})
}

// RemoveFavorite godoc
// @Summary Remove a listing from the wishlist
// @Tags Wishlist
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} object{success=bool,data=object{id=int,favorited=bool,removed=bool}}
// @Router /api/parts/{id}/favourite [delete]
func (h *ListingHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	removed := false
	if wid, ok := h.wishlistID(r); ok {
		removed, err = h.uc.RemoveFavorite.Handle(r.Context(), wishlistcommand.RemoveFavoriteCommand{WishlistID: wid, ListingID: id})
		if err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"id":        id,
			"favorited": false,
			"removed":   removed,
		},
	})
}

// ListFavoriteIDs godoc
// @Summary List favourite listing ids
// @Tags Wishlist
// @Produce json
// @Success 200 {object} object{success=bool,data=array}
// @Router /api/wishlist [get]
func (h *ListingHandler) ListFavoriteIDs(w http.ResponseWriter, r *http.Request) {
	wid, _ := h.wishlistID(r)

	ids, err := h.uc.ListFavorites.Handle(r.Context(), wishlistquery.ListFavoritesQuery{WishlistID: wid})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    ids,
	})
}

// ListFavoriteItems godoc
// @Summary List favourite listings
// @Description Listings that no longer exist are left out
// @Tags Wishlist
// @Produce json
// @Success 200 {object} object{success=bool,data=array}
// @Router /api/wishlist/items [get]
func (h *ListingHandler) ListFavoriteItems(w http.ResponseWriter, r *http.Request) {
	wid, _ := h.wishlistID(r)

	items, err := h.uc.ResolveFavorites.Handle(r.Context(), query.ResolveFavoritesQuery{WishlistID: wid})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    items,
	})
}
