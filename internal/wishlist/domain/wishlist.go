package domain

import (
	"context"
	"strings"

	"github.com/google/uuid"

	listingdomain "github.com/tair/parts-exchange/internal/listing/domain"
)

// ErrStoreUnavailable is shared with the listing store so the HTTP edge maps
// both to the same status
var ErrStoreUnavailable = listingdomain.ErrStoreUnavailable

// IdentityLength is the length of a hex-encoded wishlist identity
const IdentityLength = 32

// NewIdentity mints an opaque wishlist identity (random UUIDv4, hex)
func NewIdentity() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidIdentity reports whether s has the shape produced by NewIdentity
func ValidIdentity(s string) bool {
	if len(s) != IdentityLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// FavoritesRepository stores the set of listing ids saved under a wishlist
// identity. Operations on an unknown identity behave as on an empty set.
type FavoritesRepository interface {
	Add(ctx context.Context, wishlistID string, listingID uint) (bool, error)
	Remove(ctx context.Context, wishlistID string, listingID uint) (bool, error)
	List(ctx context.Context, wishlistID string) ([]uint, error)
	Contains(ctx context.Context, wishlistID string, listingID uint) (bool, error)
}
