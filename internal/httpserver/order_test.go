package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/events"
	"github.com/Skotchmaster/bookstore/internal/metrics"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/internal/testutil"
	"github.com/Skotchmaster/bookstore/internal/transport"
	"github.com/Skotchmaster/bookstore/pkg/tokens"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	E  *echo.Echo
	DB *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	reg := prometheus.NewRegistry()
	svc := &service.OrderService{
		Repo:    &repo.GormRepo{DB: db},
		Events:  &events.Recorder{},
		Metrics: metrics.New(reg),
		Policy:  service.DefaultCommitPolicy(),
	}

	e := echo.New()
	Register(e, &Deps{
		OrderHandler:   &OrderHTTP{Svc: svc},
		JWTSecret:      testSecret,
		DB:             db,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Version:        "test",
	})
	return &testEnv{E: e, DB: db}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(testSecret, userID, role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return tok
}

func (env *testEnv) do(t *testing.T, method, path string, body any, accessToken string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if accessToken != "" {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken, Path: "/"})
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func createBody(p *models.Product, qty int64) transport.CreateOrderRequest {
	return transport.CreateOrderRequest{
		Items: []transport.CartLine{{Product: p.ID.String(), Quantity: qty}},
		ShippingAddress: transport.ShippingAddress{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Address:   "12 Analytical St",
			Country:   "UK",
			State:     "London",
			Zip:       "N1 9GU",
		},
	}
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	return o
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m transport.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m.Message
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	p := testutil.SeedProduct(t, env.DB, "Dune", "10.00", 5)

	rec := env.do(t, http.MethodPost, "/api/orders", createBody(p, 2), token(t, "u1", "user"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	o := decodeOrder(t, rec)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("20").Equal(o.TotalAmount))
	require.Len(t, o.Items, 1)
	require.NotNil(t, o.Items[0].Product)
	assert.Equal(t, "Dune", o.Items[0].Product.Title)
	assert.EqualValues(t, 3, testutil.ReloadProduct(t, env.DB, p).Stock)
}

func TestCreateOrderErrors(t *testing.T) {
	env := newTestEnv(t)
	p := testutil.SeedProduct(t, env.DB, "Dune", "10.00", 1)
	user := token(t, "u1", "user")

	t.Run("unauthenticated", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/orders", createBody(p, 1), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/orders", `{"items": [`, user)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidBody, decodeMessage(t, rec))
	})

	t.Run("field errors", func(t *testing.T) {
		body := createBody(p, 0)
		body.ShippingAddress.Email = "nope"
		rec := env.do(t, http.MethodPost, "/api/orders", body, user)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp transport.FieldErrorsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		fields := map[string]bool{}
		for _, f := range resp.Errors {
			fields[f.Field] = true
		}
		assert.True(t, fields["items[0].quantity"])
		assert.True(t, fields["shippingAddress.email"])
	})

	t.Run("wrong field types", func(t *testing.T) {
		addr := `"shippingAddress":{"firstName":"Ada","lastName":"L","email":"ada@example.com","address":"x","country":"UK","state":"L","zip":"1"}`
		cases := []struct {
			body, field, message string
		}{
			{`{"items":[{"product":"` + p.ID.String() + `","quantity":1.5}],` + addr + `}`, "quantity", "must be an integer"},
			{`{"items":[{"product":"` + p.ID.String() + `","quantity":"2"}],` + addr + `}`, "quantity", "must be an integer"},
			{`{"items":"nope",` + addr + `}`, "items", "must be an array"},
		}
		for _, tc := range cases {
			rec := env.do(t, http.MethodPost, "/api/orders", tc.body, user)
			require.Equal(t, http.StatusBadRequest, rec.Code, tc.body)

			var resp transport.FieldErrorsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
			require.Len(t, resp.Errors, 1)
			assert.Contains(t, resp.Errors[0].Field, tc.field)
			assert.Equal(t, tc.message, resp.Errors[0].Message)
		}
	})

	t.Run("product not found", func(t *testing.T) {
		missing := &models.Product{ID: uuid.New()}
		rec := env.do(t, http.MethodPost, "/api/orders", createBody(missing, 1), user)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Product "+missing.ID.String()+" not found", decodeMessage(t, rec))
	})

	t.Run("insufficient stock", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/orders", createBody(p, 3), user)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp stockErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Insufficient stock for Dune", resp.Message)
		assert.EqualValues(t, 1, resp.Available)
		assert.EqualValues(t, 3, resp.Requested)
	})

	t.Run("foreign user id", func(t *testing.T) {
		body := createBody(p, 1)
		body.UserID = "u2"
		rec := env.do(t, http.MethodPost, "/api/orders", body, user)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	assert.EqualValues(t, 1, testutil.ReloadProduct(t, env.DB, p).Stock)
	assert.Zero(t, testutil.CountOrders(t, env.DB))
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	p := testutil.SeedProduct(t, env.DB, "Dune", "10.00", 5)
	user := token(t, "u1", "user")

	first := env.do(t, http.MethodPost, "/api/orders", createBody(p, 2), user, headerIdempotencyKey, "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	again := env.do(t, http.MethodPost, "/api/orders", createBody(p, 2), user, headerIdempotencyKey, "abc")
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, decodeOrder(t, first).ID, decodeOrder(t, again).ID)

	mismatch := env.do(t, http.MethodPost, "/api/orders", createBody(p, 1), user, headerIdempotencyKey, "abc")
	assert.Equal(t, http.StatusConflict, mismatch.Code)

	assert.EqualValues(t, 3, testutil.ReloadProduct(t, env.DB, p).Stock)
}

func TestGetOrders(t *testing.T) {
	env := newTestEnv(t)
	p := testutil.SeedProduct(t, env.DB, "Dune", "10.00", 5)
	u1, u2 := token(t, "u1", "user"), token(t, "u2", "user")

	created := decodeOrder(t, env.do(t, http.MethodPost, "/api/orders", createBody(p, 1), u1))
	env.do(t, http.MethodPost, "/api/orders", createBody(p, 1), u2)

	rec := env.do(t, http.MethodGet, "/api/orders", nil, u1)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	rec = env.do(t, http.MethodGet, "/api/orders/"+created.ID.String(), nil, u1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeOrder(t, rec).ID)

	rec = env.do(t, http.MethodGet, "/api/orders/"+created.ID.String(), nil, u2)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgOrderNotFound, decodeMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/api/orders/not-a-uuid", nil, u1)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/orders", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	p := testutil.SeedProduct(t, env.DB, "Dune", "10.00", 5)
	user, admin := token(t, "u1", "user"), token(t, "root", tokens.RoleAdmin)

	created := decodeOrder(t, env.do(t, http.MethodPost, "/api/orders", createBody(p, 1), user))
	path := "/api/orders/" + created.ID.String() + "/status"

	rec := env.do(t, http.MethodPut, path, transport.UpdateStatusRequest{Status: "shipped"}, user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	got := decodeOrder(t, env.do(t, http.MethodGet, "/api/orders/"+created.ID.String(), nil, user))
	assert.Equal(t, models.OrderStatusPending, got.Status)

	rec = env.do(t, http.MethodPut, path, transport.UpdateStatusRequest{Status: "teleported"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/orders/"+uuid.NewString()+"/status", transport.UpdateStatusRequest{Status: "shipped"}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, path, transport.UpdateStatusRequest{Status: "shipped"}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.OrderStatusShipped, decodeOrder(t, rec).Status)
}

func TestGetAllOrders(t *testing.T) {
	env := newTestEnv(t)
	p := testutil.SeedProduct(t, env.DB, "Dune", "10.00", 5)
	admin := token(t, "root", tokens.RoleAdmin)

	for _, u := range []string{"u1", "u2", "u3"} {
		rec := env.do(t, http.MethodPost, "/api/orders", createBody(p, 1), token(t, u, "user"))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/orders/admin/all", nil, token(t, "u1", "user"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/orders/admin/all", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get(headerTotalCount))
	var all []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	rec = env.do(t, http.MethodGet, "/api/orders/admin/all?page=2&size=2", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}

func TestServiceRoutes(t *testing.T) {
	env := newTestEnv(t)
	p := testutil.SeedProduct(t, env.DB, "Dune", "10.00", 5)
	env.do(t, http.MethodPost, "/api/orders", createBody(p, 1), token(t, "u1", "user"))

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/api"} {
		rec := env.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `bookstore_order_commits_total{result="success"} 1`), rec.Body.String())
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", 0, 0},
		{"?page=1", defaultPageSize, 0},
		{"?page=3&size=10", 10, 20},
		{"?page=0&size=500", maxPageSize, 0},
		{"?size=x", defaultPageSize, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders/admin/all"+tt.query, nil)
			c := echo.New().NewContext(req, httptest.NewRecorder())
			limit, offset := pageParams(c)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}
