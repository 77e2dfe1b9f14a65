package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/listing/usecase/command"
	"github.com/tair/parts-exchange/internal/listing/usecase/query"
	wishlistcommand "github.com/tair/parts-exchange/internal/wishlist/usecase/command"
	wishlistquery "github.com/tair/parts-exchange/internal/wishlist/usecase/query"
	"github.com/tair/parts-exchange/pkg/logger"
)

// Handlers groups the use case handlers served over HTTP
type Handlers struct {
	Submit *command.SubmitListingHandler
	Update *command.UpdateListingHandler
	Delete *command.DeleteListingHandler
	Redeem *command.RedeemTokenHandler

	Get              *query.GetListingHandler
	Browse           *query.BrowseListingsHandler
	ResolveFavorites *query.ResolveFavoritesHandler

	AddFavorite    *wishlistcommand.AddFavoriteHandler
	RemoveFavorite *wishlistcommand.RemoveFavoriteHandler
	ListFavorites  *wishlistquery.ListFavoritesHandler
	IsFavorite     *wishlistquery.IsFavoriteHandler
}

// ListingHandler handles HTTP requests for listings and wishlists
type ListingHandler struct {
	uc Handlers

	cookies        CookieConfig
	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	requestSummary *prometheus.SummaryVec
}

// NewListingHandler creates a handler and registers its metrics with reg
func NewListingHandler(handlers Handlers, cookies CookieConfig, reg prometheus.Registerer) *ListingHandler {
	requestCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_service_requests_total",
			Help: "Total number of requests to listing service",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_service_request_duration_seconds",
			Help:    "Duration of listing service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Summary metric for percentile calculation (p50, p90, p95, p99)
	requestSummary := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "listing_service_request_duration_summary",
			Help: "Summary of request durations with percentiles (client-side quantiles)",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.95: 0.01,
				0.99: 0.001,
			},
			MaxAge: 10 * time.Minute,
		},
		[]string{"method", "endpoint"},
	)

	reg.MustRegister(requestCounter, requestLatency, requestSummary)

	return &ListingHandler{
		uc:             handlers,
		cookies:        cookies,
		requestCounter: requestCounter,
		requestLatency: requestLatency,
		requestSummary: requestSummary,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware wraps handlers with Prometheus metrics
func (h *ListingHandler) metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()

		h.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
		h.requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
		h.requestSummary.WithLabelValues(r.Method, endpoint).Observe(duration)
	}
}

func (h *ListingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/parts", h.metricsMiddleware("/api/parts", h.BrowseListings)).Methods("GET")
	router.HandleFunc("/api/parts", h.metricsMiddleware("/api/parts", h.SubmitListing)).Methods("POST")
	router.HandleFunc("/api/parts/{id:[0-9]+}", h.metricsMiddleware("/api/parts/{id}", h.GetListing)).Methods("GET")
	router.HandleFunc("/api/parts/{id:[0-9]+}", h.metricsMiddleware("/api/parts/{id}", h.UpdateListing)).Methods("PUT", "PATCH")
	router.HandleFunc("/api/parts/{id:[0-9]+}", h.metricsMiddleware("/api/parts/{id}", h.DeleteListing)).Methods("DELETE")
	router.HandleFunc("/parts/{id:[0-9]+}/edit", h.metricsMiddleware("/parts/{id}/edit", h.EditListingForm)).Methods("POST")

	router.HandleFunc("/api/parts/{id:[0-9]+}/favourite", h.metricsMiddleware("/api/parts/{id}/favourite", h.AddFavorite)).Methods("POST")
	router.HandleFunc("/api/parts/{id:[0-9]+}/favourite", h.metricsMiddleware("/api/parts/{id}/favourite", h.RemoveFavorite)).Methods("DELETE")
	router.HandleFunc("/api/wishlist", h.metricsMiddleware("/api/wishlist", h.ListFavoriteIDs)).Methods("GET")
	router.HandleFunc("/api/wishlist/items", h.metricsMiddleware("/api/wishlist/items", h.ListFavoriteItems)).Methods("GET")

	router.HandleFunc("/validate/{token}", h.metricsMiddleware("/validate/{token}", h.RedeemToken)).Methods("GET")
}

// SubmitListing godoc
// @Summary Submit a listing
// @Description Stores a pending listing and queues a validation e-mail. Form posts are redirected to /?pending=1.
// @Tags Listings
// @Accept json,x-www-form-urlencoded,mpfd
// @Produce json
// @Param request body object{title=string,description=string,price=int,location=string,image_url=string,contact_email=string,contact_phone=string} true "Listing data"
// @Success 201 {object} object{success=bool,message=string,data=object{id=int}}
// @Success 303 "Redirect after form submission"
// @Failure 400 {object} object{success=bool,error=string}
// @Failure 503 {object} object{success=bool,error=string}
// @Router /api/parts [post]
func (h *ListingHandler) SubmitListing(w http.ResponseWriter, r *http.Request) {
	req, err := decodeListingRequest(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.uc.Submit.Handle(r.Context(), req.submitCommand())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if !isJSON(r) {
		http.Redirect(w, r, "/?pending=1", http.StatusSeeOther)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Listing submitted, awaiting validation",
		Data:    map[string]interface{}{"id": result.Listing.ID},
	})
}

// BrowseListings godoc
// @Summary Browse validated listings
// @Description Newest validated listings first
// @Tags Listings
// @Produce json
// @Param limit query int false "Maximum number of listings (default 50, capped at 100)"
// @Success 200 {object} object{success=bool,data=array}
// @Failure 400 {object} object{success=bool,error=string}
// @Failure 503 {object} object{success=bool,error=string}
// @Router /api/parts [get]
func (h *ListingHandler) BrowseListings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(w, r, domain.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	listings, err := h.uc.Browse.Handle(r.Context(), query.BrowseListingsQuery{Limit: limit})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    listings,
	})
}

// listingView is a listing plus the caller's favourite flag
type listingView struct {
	*domain.Listing
	Favorited *bool `json:"favorited,omitempty"`
}

// GetListing godoc
// @Summary Get a listing
// @Tags Listings
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} object{success=bool,data=object}
// @Failure 404 {object} object{success=bool,error=string}
// @Router /api/parts/{id} [get]
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	listing, err := h.uc.Get.Handle(r.Context(), query.GetListingQuery{ID: id})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	view := listingView{Listing: listing}
	if wid, ok := h.wishlistID(r); ok {
		fav, err := h.uc.IsFavorite.Handle(r.Context(), wishlistquery.IsFavoriteQuery{WishlistID: wid, ListingID: id})
		if err != nil {
			logger.Warn(r.Context()).Err(err).Uint("listing_id", id).Msg("Favourite flag unavailable")
		} else {
			view.Favorited = &fav
		}
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

// UpdateListing godoc
// @Summary Update a listing
// @Description Only the supplied fields change
// @Tags Listings
// @Accept json
// @Produce json
// @Param id path int true "Listing ID"
// @Param request body object{title=string,description=string,price=int,location=string,image_url=string,contact_email=string,contact_phone=string} true "Fields to change"
// @Success 200 {object} object{success=bool,message=string,data=object}
// @Failure 400 {object} object{success=bool,error=string}
// @Failure 404 {object} object{success=bool,error=string}
// @Router /api/parts/{id} [put]
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	req, err := decodeListingRequest(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	listing, err := h.uc.Update.Handle(r.Context(), command.UpdateListingCommand{ID: id, Patch: req.patch()})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Listing updated",
		Data:    listing,
	})
}

// EditListingForm handles POST /parts/{id}/edit from the HTML edit page. Errors
// are answered in plain text.
func (h *ListingHandler) EditListingForm(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		h.respondFormError(w, r, err)
		return
	}

	req, err := decodeListingRequest(w, r)
	if err != nil {
		h.respondFormError(w, r, err)
		return
	}

	if _, err := h.uc.Update.Handle(r.Context(), command.UpdateListingCommand{ID: id, Patch: req.patch()}); err != nil {
		h.respondFormError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DeleteListing godoc
// @Summary Delete a listing
// @Tags Listings
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} object{success=bool,message=string,data=object{id=int}}
// @Failure 404 {object} object{success=bool,error=string}
// @Router /api/parts/{id} [delete]
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.uc.Delete.Handle(r.Context(), command.DeleteListingCommand{ID: id}); err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Listing deleted",
		Data:    map[string]interface{}{"id": id},
	})
}

// RedeemToken godoc
// @Summary Redeem a validation token
// @Description Publishes the listing and redirects to /
// @Tags Validation
// @Param token path string true "Validation token"
// @Success 302 "Listing validated"
// @Failure 404 {string} string "Invalid or expired validation token"
// @Router /validate/{token} [get]
func (h *ListingHandler) RedeemToken(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	ok, err := h.uc.Redeem.Handle(r.Context(), command.RedeemTokenCommand{Token: token})
	if err != nil {
		logger.Error(r.Context()).Err(err).Msg("Validation token redemption failed")
		http.Error(w, "Service temporarily unavailable", statusFor(err))
		return
	}
	if !ok {
		http.Error(w, "Invalid or expired validation token", http.StatusNotFound)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func listingID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, domain.InvalidInput("invalid listing id")
	}
	return uint(id), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates domain errors into the JSON envelope
func (h *ListingHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := h.describeError(r, err)
	respondJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// respondFormError answers HTML form posts in plain text
func (h *ListingHandler) respondFormError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := h.describeError(r, err)
	http.Error(w, message, status)
}

// describeError logs err and picks the status and client-facing message
func (h *ListingHandler) describeError(r *http.Request, err error) (int, string) {
	status := statusFor(err)

	message := err.Error()
	switch status {
	case http.StatusNotFound:
		message = "Listing not found"
	case http.StatusServiceUnavailable:
		message = "Storage temporarily unavailable"
	case http.StatusInternalServerError:
		message = "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		logger.Error(r.Context()).Err(err).Int("status", status).Msg("Request failed")
	} else {
		logger.Debug(r.Context()).Err(err).Int("status", status).Msg("Request rejected")
	}
	return status, message
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
