package listing

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tair/parts-exchange/internal/config"
	"github.com/tair/parts-exchange/internal/listing/delivery/http"
	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/listing/repository"
	"github.com/tair/parts-exchange/internal/listing/usecase/command"
	"github.com/tair/parts-exchange/internal/listing/usecase/query"
	wishlistdomain "github.com/tair/parts-exchange/internal/wishlist/domain"
	wishlistrepo "github.com/tair/parts-exchange/internal/wishlist/repository"
	wishlistcommand "github.com/tair/parts-exchange/internal/wishlist/usecase/command"
	wishlistquery "github.com/tair/parts-exchange/internal/wishlist/usecase/query"
)

// ProvideListingRepository provides the traced listing repository
func ProvideListingRepository(db *gorm.DB, cfg *config.Config) domain.ListingRepository {
	return repository.NewTracingListingRepository(
		repository.NewGormListingRepository(db, cfg.Database.OperationTimeout),
	)
}

// ProvideFavoritesRepository provides the Redis-backed wishlist store with tracing
func ProvideFavoritesRepository(client *redis.Client, cfg *config.Config) wishlistdomain.FavoritesRepository {
	return wishlistrepo.NewTracingFavoritesRepository(
		wishlistrepo.NewRedisFavoritesRepository(client, cfg.Redis.WishlistTTL),
	)
}

// ProvideSubmitListingHandler provides the submit workflow with its enqueue timeout
func ProvideSubmitListingHandler(repo domain.ListingRepository, delivery command.ValidationDelivery, cfg *config.Config) *command.SubmitListingHandler {
	return command.NewSubmitListingHandler(repo, delivery, cfg.Validation.EnqueueTimeout)
}

// ProvideCookieConfig provides the wishlist cookie settings
func ProvideCookieConfig(cfg *config.Config) http.CookieConfig {
	return http.DefaultCookieConfig(cfg.HTTP.CookieSecure)
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideListingRepository,
	ProvideFavoritesRepository,
)

var CommandSet = wire.NewSet(
	ProvideSubmitListingHandler,
	command.NewUpdateListingHandler,
	command.NewDeleteListingHandler,
	command.NewRedeemTokenHandler,
	wishlistcommand.NewAddFavoriteHandler,
	wishlistcommand.NewRemoveFavoriteHandler,
)

var QuerySet = wire.NewSet(
	query.NewGetListingHandler,
	query.NewBrowseListingsHandler,
	query.NewResolveFavoritesHandler,
	wishlistquery.NewListFavoritesHandler,
	wishlistquery.NewIsFavoriteHandler,
)

var HTTPSet = wire.NewSet(
	wire.Struct(new(http.Handlers), "*"),
	ProvideCookieConfig,
	http.NewListingHandler,
)
