package command

import (
	"context"
	"fmt"

	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/pkg/logger"
)

// RedeemTokenCommand represents a click on a validation link
type RedeemTokenCommand struct {
	Token string
}

// RedeemTokenHandler turns a pending listing into a validated one
type RedeemTokenHandler struct {
	repo domain.ListingRepository
}

// NewRedeemTokenHandler creates a new redeem token handler
func NewRedeemTokenHandler(repo domain.ListingRepository) *RedeemTokenHandler {
	return &RedeemTokenHandler{repo: repo}
}

// Handle reports whether the token validated a listing. Unknown, empty and
// already used tokens all yield false.
func (h *RedeemTokenHandler) Handle(ctx context.Context, cmd RedeemTokenCommand) (bool, error) {
	if cmd.Token == "" {
		validationRedemptions.WithLabelValues("rejected").Inc()
		return false, nil
	}

	ok, err := h.repo.RedeemToken(ctx, cmd.Token)
	if err != nil {
		validationRedemptions.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to redeem validation token: %w", err)
	}

	if !ok {
		validationRedemptions.WithLabelValues("rejected").Inc()
		logger.Info(ctx).Msg("Validation token rejected")
		return false, nil
	}

	validationRedemptions.WithLabelValues("validated").Inc()
	logger.Info(ctx).Msg("Listing validated")
	return true, nil
}
