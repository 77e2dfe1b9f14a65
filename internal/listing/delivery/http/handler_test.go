package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/listing/repository"
	"github.com/tair/parts-exchange/internal/listing/usecase/command"
	"github.com/tair/parts-exchange/internal/listing/usecase/query"
	wishlistrepo "github.com/tair/parts-exchange/internal/wishlist/repository"
	wishlistcommand "github.com/tair/parts-exchange/internal/wishlist/usecase/command"
	wishlistquery "github.com/tair/parts-exchange/internal/wishlist/usecase/query"
)

type recordingDelivery struct {
	mu       sync.Mutex
	err      error
	requests []command.ValidationRequest
}

func (d *recordingDelivery) RequestValidationEmail(ctx context.Context, req command.ValidationRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.requests = append(d.requests, req)
	return nil
}

func (d *recordingDelivery) last(t *testing.T) command.ValidationRequest {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.requests)
	return d.requests[len(d.requests)-1]
}

type testServer struct {
	router   *mux.Router
	sqlDB    *sql.DB
	delivery *recordingDelivery
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(gormsqlite.New(gormsqlite.Config{
		DriverName: "sqlite",
		DSN:        dsn,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormRepo := repository.NewGormListingRepository(db, time.Second)
	require.NoError(t, gormRepo.AutoMigrate())
	listings := repository.NewTracingListingRepository(gormRepo)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	favorites := wishlistrepo.NewRedisFavoritesRepository(client, 0)

	delivery := &recordingDelivery{}

	h := NewListingHandler(Handlers{
		Submit:           command.NewSubmitListingHandler(listings, delivery, time.Second),
		Update:           command.NewUpdateListingHandler(listings),
		Delete:           command.NewDeleteListingHandler(listings),
		Redeem:           command.NewRedeemTokenHandler(listings),
		Get:              query.NewGetListingHandler(listings),
		Browse:           query.NewBrowseListingsHandler(listings),
		ResolveFavorites: query.NewResolveFavoritesHandler(listings, favorites),
		AddFavorite:      wishlistcommand.NewAddFavoriteHandler(favorites),
		RemoveFavorite:   wishlistcommand.NewRemoveFavoriteHandler(favorites),
		ListFavorites:    wishlistquery.NewListFavoritesHandler(favorites),
		IsFavorite:       wishlistquery.NewIsFavoriteHandler(favorites),
	}, DefaultCookieConfig(false), prometheus.NewRegistry())

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	h.RegisterHealthCheck(router, sqlDB, client)
	RegisterMiddlewares(router, DefaultMiddlewareConfig(5*time.Second))

	return &testServer{router: router, sqlDB: sqlDB, delivery: delivery}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := s.do(t, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func createListing(t *testing.T, s *testServer, body string) uint {
	t.Helper()
	rec, env := s.doJSON(t, http.MethodPost, "/api/parts", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotZero(t, data.ID)
	return data.ID
}

func browse(t *testing.T, s *testServer) []domain.ListingSummary {
	t.Helper()
	rec, env := s.doJSON(t, http.MethodGet, "/api/parts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listings []domain.ListingSummary
	require.NoError(t, json.Unmarshal(env.Data, &listings))
	return listings
}

func wishlistCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == WishlistCookie {
			return c
		}
	}
	return nil
}

func TestSubmitValidateBrowseScenario(t *testing.T) {
	s := newTestServer(t)

	id := createListing(t, s, `{"title":"Bolt M6","price":"150","contact_email":"seller@example.com"}`)
	assert.Empty(t, browse(t, s))

	req := s.delivery.last(t)
	assert.Equal(t, id, req.ListingID)
	assert.Equal(t, "seller@example.com", req.Recipient)
	assert.Equal(t, "Bolt M6", req.Title)
	require.Len(t, req.Token, 32)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/validate/"+req.Token, nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	listings := browse(t, s)
	require.Len(t, listings, 1)
	assert.Equal(t, id, listings[0].ID)
	require.NotNil(t, listings[0].Price)
	assert.Equal(t, int64(150), *listings[0].Price)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/validate/"+req.Token, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired validation token")
}

func TestGetListingNeverExposesToken(t *testing.T) {
	s := newTestServer(t)

	id := createListing(t, s, `{"title":"Spark plug","contact_email":"seller@example.com"}`)
	token := s.delivery.last(t).Token

	rec, env := s.doJSON(t, http.MethodGet, fmt.Sprintf("/api/parts/%d", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), token)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Spark plug", got["title"])
	assert.Equal(t, false, got["is_validated"])
	assert.NotContains(t, got, "favorited")
}

func TestSubmitRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.doJSON(t, http.MethodPost, "/api/parts", `{"title":"Bolt","price":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "price must be an integer")

	rec, _ = s.doJSON(t, http.MethodPost, "/api/parts", `{"title":"Bolt","price":12.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.doJSON(t, http.MethodPost, "/api/parts", `{"description":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.doJSON(t, http.MethodPost, "/api/parts", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.doJSON(t, http.MethodGet, "/api/parts/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitWithoutEmailOrWithFailingDelivery(t *testing.T) {
	s := newTestServer(t)

	createListing(t, s, `{"title":"Oil filter","price":1200}`)
	assert.Empty(t, s.delivery.requests)

	s.delivery.err = domain.ErrDeliveryEnqueueFailed
	createListing(t, s, `{"title":"Air filter","contact_email":"seller@example.com"}`)
}

func TestSubmitFormRedirects(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"title": {"Brake pad"}, "price": {""}, "location": {"Berlin"}}
	req := httptest.NewRequest(http.MethodPost, "/api/parts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := s.do(t, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?pending=1", rec.Header().Get("Location"))

	form.Set("price", "ten")
	req = httptest.NewRequest(http.MethodPost, "/api/parts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, s.do(t, req).Code)
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	id := createListing(t, s, `{"title":"Bolt M6","price":150,"location":"Berlin"}`)
	path := fmt.Sprintf("/api/parts/%d", id)

	rec, env := s.doJSON(t, http.MethodPatch, path, `{"title":"Bolt M8","is_validated":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got domain.Listing
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Bolt M8", got.Title)
	assert.Equal(t, "Berlin", got.Location)
	assert.Equal(t, int64(150), *got.Price)
	assert.False(t, got.IsValidated)

	rec, _ = s.doJSON(t, http.MethodPut, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.doJSON(t, http.MethodPut, path, `{"price":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.doJSON(t, http.MethodPut, "/api/parts/999", `{"title":"Ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	form := url.Values{"title": {"Bolt M10"}, "price": {"175"}}
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/parts/%d/edit", id), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = s.do(t, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec, env = s.doJSON(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Bolt M10", got.Title)
	assert.Equal(t, int64(175), *got.Price)

	rec, _ = s.doJSON(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.doJSON(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateClearsPrice(t *testing.T) {
	s := newTestServer(t)
	id := createListing(t, s, `{"title":"Bolt M6","price":150}`)
	path := fmt.Sprintf("/api/parts/%d", id)

	rec, env := s.doJSON(t, http.MethodPatch, path, `{"price":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched domain.Listing
	require.NoError(t, json.Unmarshal(env.Data, &patched))
	assert.Nil(t, patched.Price)
	assert.Equal(t, "Bolt M6", patched.Title)

	rec, _ = s.doJSON(t, http.MethodPatch, path, `{"price":"75"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	form := url.Values{"title": {"Bolt M6"}, "price": {""}}
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/parts/%d/edit", id), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = s.do(t, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec, env = s.doJSON(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Listing
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Nil(t, got.Price)

	form = url.Values{"location": {"Hamburg"}}
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/parts/%d/edit", id), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusSeeOther, s.do(t, req).Code)
}

func TestEditFormErrorsArePlainText(t *testing.T) {
	s := newTestServer(t)
	id := createListing(t, s, `{"title":"Bolt M6","price":150}`)

	post := func(path string, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return s.do(t, req)
	}

	rec := post(fmt.Sprintf("/parts/%d/edit", id), url.Values{"price": {"ten"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), "price must be an integer")

	rec = post("/parts/999/edit", url.Values{"title": {"Ghost"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), "Listing not found")
}

func TestFavouritesFlow(t *testing.T) {
	s := newTestServer(t)
	first := createListing(t, s, `{"title":"Clutch"}`)
	second := createListing(t, s, `{"title":"Gasket"}`)

	rec, _ := s.doJSON(t, http.MethodPost, fmt.Sprintf("/api/parts/%d/favourite", first), "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := wishlistCookie(t, rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 365*24*60*60, cookie.MaxAge)

	rec, _ = s.doJSON(t, http.MethodPost, fmt.Sprintf("/api/parts/%d/favourite", second), "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, wishlistCookie(t, rec))

	_, env := s.doJSON(t, http.MethodGet, "/api/wishlist", "", cookie)
	var ids []uint
	require.NoError(t, json.Unmarshal(env.Data, &ids))
	assert.Equal(t, []uint{first, second}, ids)

	_, env = s.doJSON(t, http.MethodGet, fmt.Sprintf("/api/parts/%d", first), "", cookie)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, true, view["favorited"])

	rec, _ = s.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/parts/%d", second), "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = s.doJSON(t, http.MethodGet, "/api/wishlist/items", "", cookie)
	var items []domain.ListingSummary
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, first, items[0].ID)

	rec, env = s.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/parts/%d/favourite", first), "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var removed map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &removed))
	assert.Equal(t, false, removed["favorited"])
	assert.Equal(t, true, removed["removed"])
}

func TestFavouritesWithoutOrWithMalformedCookie(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.doJSON(t, http.MethodDelete, "/api/parts/1/favourite", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, false, data["favorited"])

	_, env = s.doJSON(t, http.MethodGet, "/api/wishlist", "")
	assert.JSONEq(t, `[]`, string(env.Data))

	_, env = s.doJSON(t, http.MethodGet, "/api/wishlist/items", "")
	assert.JSONEq(t, `[]`, string(env.Data))

	bogus := &http.Cookie{Name: WishlistCookie, Value: "../../etc/passwd"}
	rec, _ = s.doJSON(t, http.MethodPost, "/api/parts/1/favourite", "", bogus)
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := wishlistCookie(t, rec)
	require.NotNil(t, fresh)
	assert.NotEqual(t, bogus.Value, fresh.Value)
}

func TestBrowseLimitParameter(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.doJSON(t, http.MethodGet, "/api/parts?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.doJSON(t, http.MethodGet, "/api/parts?limit=10", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndStoreOutage(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.doJSON(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, HealthStatus{Status: "ok", DB: "connected", Redis: "connected"}, status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.NoError(t, s.sqlDB.Close())

	rec, env = s.doJSON(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "unavailable", status.DB)

	rec, _ = s.doJSON(t, http.MethodGet, "/api/parts", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = s.doJSON(t, http.MethodGet, "/api/parts/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/validate/abc", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
