//go:build wireinject
// +build wireinject

package listing

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tair/parts-exchange/internal/config"
	"github.com/tair/parts-exchange/internal/listing/delivery/http"
	"github.com/tair/parts-exchange/internal/listing/usecase/command"
)

// InitializeHTTPHandler initializes HTTP handler with all dependencies
func InitializeHTTPHandler(
	db *gorm.DB,
	client *redis.Client,
	delivery command.ValidationDelivery,
	cfg *config.Config,
	reg prometheus.Registerer,
) (*http.ListingHandler, error) {
	wire.Build(
		RepositorySet,
		CommandSet,
		QuerySet,
		HTTPSet,
	)
	return nil, nil
}
