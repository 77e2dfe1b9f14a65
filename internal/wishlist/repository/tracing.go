package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/parts-exchange/internal/wishlist/domain"
)

var tracer = otel.Tracer("wishlist-repository")

// TracingFavoritesRepository wraps a domain.FavoritesRepository with spans.
// Wishlist ids act as bearer cookies and are kept out of span attributes.
type TracingFavoritesRepository struct {
	next domain.FavoritesRepository
}

// NewTracingFavoritesRepository creates a new repository with tracing
func NewTracingFavoritesRepository(next domain.FavoritesRepository) *TracingFavoritesRepository {
	return &TracingFavoritesRepository{next: next}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "redis"))
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (r *TracingFavoritesRepository) Add(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	ctx, span := startSpan(ctx, "wishlist.Add", attribute.Int64("listing.id", int64(listingID)))
	defer span.End()

	added, err := r.next.Add(ctx, wishlistID, listingID)
	if err != nil {
		fail(span, err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("result.added", added))
	return added, nil
}

func (r *TracingFavoritesRepository) Remove(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	ctx, span := startSpan(ctx, "wishlist.Remove", attribute.Int64("listing.id", int64(listingID)))
	defer span.End()

	removed, err := r.next.Remove(ctx, wishlistID, listingID)
	if err != nil {
		fail(span, err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("result.removed", removed))
	return removed, nil
}

func (r *TracingFavoritesRepository) List(ctx context.Context, wishlistID string) ([]uint, error) {
	ctx, span := startSpan(ctx, "wishlist.List")
	defer span.End()

	ids, err := r.next.List(ctx, wishlistID)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("result.count", len(ids)))
	return ids, nil
}

func (r *TracingFavoritesRepository) Contains(ctx context.Context, wishlistID string, listingID uint) (bool, error) {
	ctx, span := startSpan(ctx, "wishlist.Contains", attribute.Int64("listing.id", int64(listingID)))
	defer span.End()

	ok, err := r.next.Contains(ctx, wishlistID, listingID)
	if err != nil {
		fail(span, err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("result.contains", ok))
	return ok, nil
}
