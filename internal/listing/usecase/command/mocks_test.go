package command

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tair/parts-exchange/internal/listing/domain"
)

type mockListingRepository struct {
	mock.Mock
}

func (m *mockListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
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
	return args.Get(0).([]domain.Listing), args.Error(1)
}

func (m *mockListingRepository) Update(ctx context.Context, id uint, patch domain.ListingPatch) (bool, error) {
	args := m.Called(ctx, id, patch)
	return args.Bool(0), args.Error(1)
}

func (m *mockListingRepository) Delete(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockListingRepository) RedeemToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

type mockDelivery struct {
	mock.Mock
}

func (m *mockDelivery) RequestValidationEmail(ctx context.Context, req ValidationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
