package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tair/parts-exchange/internal/listing/domain"
)

type mockListingRepository struct {
	mock.Mock
	domain.ListingRepository
}

func (m *mockListingRepository) FindByID(ctx context.Context, id uint) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if l := args.Get(0); l != nil {
		return l.(*domain.Listing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockListingRepository) FindValidated(ctx context.Context, limit int) ([]domain.Listing, error) {
	args := m.Called(ctx, limit)
	if l := args.Get(0); l != nil {
		return l.([]domain.Listing), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFavorites struct {
	mock.Mock
}

func (m *mockFavorites) Add(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	args := m.Called(ctx, wishlistID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockFavorites) Remove(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	args := m.Called(ctx, wishlistID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockFavorites) List(ctx context.Context, wishlistID string) ([]uint, error) {
	args := m.Called(ctx, wishlistID)
	if ids := args.Get(0); ids != nil {
		return ids.([]uint), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFavorites) Contains(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	args := m.Called(ctx, wishlistID, listingID)
	return args.Bool(0), args.Error(1)
}

func TestBrowseListingsLimits(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, BrowseLimit},
		{"negative", -5, BrowseLimit},
		{"explicit", 2, 2},
		{"capped", 1000, MaxBrowseLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockListingRepository)
			repo.On("FindValidated", mock.Anything, tt.want).Return([]domain.Listing{}, nil)

			got, err := NewBrowseListingsHandler(repo).Handle(context.Background(), BrowseListingsQuery{Limit: tt.limit})
			require.NoError(t, err)
			assert.NotNil(t, got)
			repo.AssertExpectations(t)
		})
	}
}

func TestBrowseListingsProjectsSummaries(t *testing.T) {
	repo := new(mockListingRepository)
	price := int64(150)
	repo.On("FindValidated", mock.Anything, BrowseLimit).
		Return([]domain.Listing{{ID: 1, Title: "Bolt M6", Price: &price, IsValidated: true}}, nil)

	got, err := NewBrowseListingsHandler(repo).Handle(context.Background(), BrowseListingsQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bolt M6", got[0].Title)
	assert.Equal(t, int64(150), *got[0].Price)
}

func TestBrowseListingsStoreUnavailable(t *testing.T) {
	repo := new(mockListingRepository)
	repo.On("FindValidated", mock.Anything, BrowseLimit).
		Return(nil, domain.StoreUnavailable(errors.New("dial tcp: connection refused")))

	_, err := NewBrowseListingsHandler(repo).Handle(context.Background(), BrowseListingsQuery{})
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestGetListing(t *testing.T) {
	repo := new(mockListingRepository)
	repo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Listing{ID: 1, Title: "Pending"}, nil)
	repo.On("FindByID", mock.Anything, uint(2)).Return(nil, fmt.Errorf("listing 2: %w", domain.ErrNotFound))

	h := NewGetListingHandler(repo)

	got, err := h.Handle(context.Background(), GetListingQuery{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "Pending", got.Title)

	_, err = h.Handle(context.Background(), GetListingQuery{ID: 2})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = h.Handle(context.Background(), GetListingQuery{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestResolveFavoritesSkipsDeleted(t *testing.T) {
	repo := new(mockListingRepository)
	favs := new(mockFavorites)

	favs.On("List", mock.Anything, "wid").Return([]uint{1, 3, 2}, nil)
	repo.On("FindByID", mock.Anything, uint(3)).Return(&domain.Listing{ID: 3, Title: "Three"}, nil)
	repo.On("FindByID", mock.Anything, uint(2)).Return(nil, fmt.Errorf("listing 2: %w", domain.ErrNotFound))
	repo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Listing{ID: 1, Title: "One"}, nil)

	got, err := NewResolveFavoritesHandler(repo, favs).Handle(context.Background(), ResolveFavoritesQuery{WishlistID: "wid"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint(3), got[0].ID)
	assert.Equal(t, uint(1), got[1].ID)
}

func TestResolveFavoritesPropagatesStoreErrors(t *testing.T) {
	repo := new(mockListingRepository)
	favs := new(mockFavorites)

	favs.On("List", mock.Anything, "wid").Return([]uint{1}, nil)
	repo.On("FindByID", mock.Anything, uint(1)).Return(nil, domain.StoreUnavailable(errors.New("timeout")))

	_, err := NewResolveFavoritesHandler(repo, favs).Handle(context.Background(), ResolveFavoritesQuery{WishlistID: "wid"})
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestResolveFavoritesWithoutIdentity(t *testing.T) {
	favs := new(mockFavorites)

	got, err := NewResolveFavoritesHandler(new(mockListingRepository), favs).Handle(context.Background(), ResolveFavoritesQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)
	favs.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}
