package repository

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/parts-exchange/internal/listing/domain"
)

var tracer = otel.Tracer("listing-repository")

// TracingListingRepository wraps a domain.ListingRepository with spans
type TracingListingRepository struct {
	next domain.ListingRepository
}

// NewTracingListingRepository creates a new repository with tracing
func NewTracingListingRepository(next domain.ListingRepository) *TracingListingRepository {
	return &TracingListingRepository{next: next}
}

func (r *TracingListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	ctx, span := tracer.Start(ctx, "repository.Create",
		trace.WithAttributes(
			attribute.String("listing.title", listing.Title),
			attribute.Bool("listing.has_contact_email", listing.ContactEmail != ""),
		),
	)
	defer span.End()

	if err := r.next.Create(ctx, listing); err != nil {
		recordError(span, err)
		return err
	}

	span.SetAttributes(attribute.Int64("listing.id", int64(listing.ID)))
	return nil
}

func (r *TracingListingRepository) FindByID(ctx context.Context, id uint) (*domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByID",
		trace.WithAttributes(attribute.Int64("listing.id", int64(id))),
	)
	defer span.End()

	listing, err := r.next.FindByID(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("listing.is_validated", listing.IsValidated))
	return listing, nil
}

func (r *TracingListingRepository) FindValidated(ctx context.Context, limit int) ([]domain.Listing, error) {
	ctx, span := tracer.Start(ctx, "repository.FindValidated",
		trace.WithAttributes(attribute.Int("query.limit", limit)),
	)
	defer span.End()

	listings, err := r.next.FindValidated(ctx, limit)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(listings)))
	return listings, nil
}

func (r *TracingListingRepository) Update(ctx context.Context, id uint, patch domain.ListingPatch) (bool, error) {
	ctx, span := tracer.Start(ctx, "repository.Update",
		trace.WithAttributes(
			attribute.Int64("listing.id", int64(id)),
			attribute.Int("patch.fields", len(patch.Columns())),
		),
	)
	defer span.End()

	ok, err := r.next.Update(ctx, id, patch)
	if err != nil {
		recordError(span, err)
		return false, err
	}

	span.SetAttributes(attribute.Bool("result.found", ok))
	return ok, nil
}

func (r *TracingListingRepository) Delete(ctx context.Context, id uint) (bool, error) {
	ctx, span := tracer.Start(ctx, "repository.Delete",
		trace.WithAttributes(attribute.Int64("listing.id", int64(id))),
	)
	defer span.End()

	ok, err := r.next.Delete(ctx, id)
	if err != nil {
		recordError(span, err)
		return false, err
	}

	span.SetAttributes(attribute.Bool("result.found", ok))
	return ok, nil
}

func (r *TracingListingRepository) RedeemToken(ctx context.Context, token string) (bool, error) {
	// The token itself never goes into span attributes
	ctx, span := tracer.Start(ctx, "repository.RedeemToken")
	defer span.End()

	ok, err := r.next.RedeemToken(ctx, token)
	if err != nil {
		recordError(span, err)
		return false, err
	}

	span.SetAttributes(attribute.Bool("result.redeemed", ok))
	return ok, nil
}

// recordError marks the span failed; a miss is not a failure
func recordError(span trace.Span, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		span.SetAttributes(attribute.Bool("result.found", false))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
