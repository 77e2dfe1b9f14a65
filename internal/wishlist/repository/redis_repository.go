package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tair/parts-exchange/internal/wishlist/domain"
	"github.com/tair/parts-exchange/pkg/logger"
)

const keyPrefix = "wishlist:"

// RedisFavoritesRepository implements domain.FavoritesRepository on Redis sets
type RedisFavoritesRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisFavoritesRepository creates a repository. A positive ttl refreshes
// the expiry of a wishlist on every add.
func NewRedisFavoritesRepository(client *redis.Client, ttl time.Duration) *RedisFavoritesRepository {
	return &RedisFavoritesRepository{client: client, ttl: ttl}
}

func key(wishlistID string) string {
	return keyPrefix + wishlistID
}

func member(listingID uint) string {
	return strconv.FormatUint(uint64(listingID), 10)
}

// Add saves listingID and reports whether it was not already present
func (r *RedisFavoritesRepository) Add(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	var added *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, key(wishlistID), member(listingID))
		if r.ttl > 0 {
			pipe.Expire(ctx, key(wishlistID), r.ttl)
		}
		return nil
	})
	if err != nil {
		return false, unavailable("add favorite", err)
	}
	return added.Val() == 1, nil
}

// Remove drops listingID and reports whether it was present
func (r *RedisFavoritesRepository) Remove(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	n, err := r.client.SRem(ctx, key(wishlistID), member(listingID)).Result()
	if err != nil {
		return false, unavailable("remove favorite", err)
	}
	return n == 1, nil
}

// List returns the saved listing ids in no particular order
func (r *RedisFavoritesRepository) List(ctx context.Context, wishlistID string) ([]uint, error) {
	members, err := r.client.SMembers(ctx, key(wishlistID)).Result()
	if err != nil {
		return nil, unavailable("list favorites", err)
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			logger.Logger.Warn().
				Str("wishlist_key", key(wishlistID)).
				Str("member", m).
				Msg("Skipping malformed wishlist member")
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// Contains reports whether listingID is saved
func (r *RedisFavoritesRepository) Contains(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	ok, err := r.client.SIsMember(ctx, key(wishlistID), member(listingID)).Result()
	if err != nil {
		return false, unavailable("check favorite", err)
	}
	return ok, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
