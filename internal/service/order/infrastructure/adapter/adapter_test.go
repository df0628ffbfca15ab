package adapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storefront/internal/pkg/constants"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// fakeCatalogServer 模拟 product-service 的内部接口：商品 1 有 2 件库存
func fakeCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/check-stock/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch {
		case req.ProductID != 1:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Product not found"}`))
		case req.Quantity > 2:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"available":false,"message":"Only 2 items available"}`))
		default:
			_, _ = w.Write([]byte(`{"available":true,"product_name":"iPhone 15","price":"999.99","stock_quantity":2}`))
		}
	})
	mux.HandleFunc("POST /api/update-stock/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProductID int64  `json:"product_id"`
			Quantity  int    `json:"quantity"`
			Operation string `json:"operation"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch {
		case req.ProductID == 500:
			w.WriteHeader(http.StatusInternalServerError)
		case req.Operation == "decrease" && req.Quantity > 2:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Insufficient stock"}`))
		case req.Operation == "decrease":
			_, _ = w.Write([]byte(`{"success":true,"new_stock":1}`))
		default:
			_, _ = w.Write([]byte(`{"success":true,"new_stock":3}`))
		}
	})
	mux.HandleFunc("GET /api/product/1/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"name":"iPhone 15","price":"999.99","stock_quantity":2}`))
	})
	mux.HandleFunc("GET /api/user/1/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":1,"username":"john_doe"},"phone":"+1234567890"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(base string) *httpclient.Client {
	return httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), httpclient.StaticResolver{
		constants.ProductService: base,
		constants.UserService:    base,
	}, time.Second)
}

func TestCatalogCheckStock(t *testing.T) {
	catalog := NewCatalogHTTPAdapter(newClient(fakeCatalogServer(t).URL))

	check, err := catalog.CheckStock(t.Context(), 1, 1)
	require.NoError(t, err)
	assert.True(t, check.Available)
	assert.Equal(t, "999.99", check.Price.StringFixed(2))
	assert.Equal(t, "iPhone 15", check.ProductName)

	check, err = catalog.CheckStock(t.Context(), 1, 5)
	require.NoError(t, err)
	assert.False(t, check.Available)
	assert.Equal(t, "Only 2 items available", check.Message)

	_, err = catalog.CheckStock(t.Context(), 2, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCatalogStockMutations(t *testing.T) {
	catalog := NewCatalogHTTPAdapter(newClient(fakeCatalogServer(t).URL))

	stock, err := catalog.DecreaseStock(t.Context(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stock)

	stock, err = catalog.IncreaseStock(t.Context(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stock)

	_, err = catalog.DecreaseStock(t.Context(), 1, 10)
	assert.ErrorIs(t, err, domain.ErrStockRejected)
	assert.Contains(t, err.Error(), "Insufficient stock")

	_, err = catalog.DecreaseStock(t.Context(), 500, 1)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestCatalogLookup(t *testing.T) {
	catalog := NewCatalogHTTPAdapter(newClient(fakeCatalogServer(t).URL))

	p, err := catalog.LookupProduct(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15", p.Name)

	_, err = catalog.LookupProduct(t.Context(), 2)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestUserLookup(t *testing.T) {
	users := NewUserHTTPAdapter(newClient(fakeCatalogServer(t).URL))

	u, err := users.LookupUser(t.Context(), 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"id":1,"username":"john_doe"},"phone":"+1234567890"}`, string(u.Raw))

	_, err = users.LookupUser(t.Context(), 2)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUnreachableUpstreamIsDistinctFromNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	users := NewUserHTTPAdapter(newClient(base))
	_, err := users.LookupUser(t.Context(), 1)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.False(t, errors.Is(err, domain.ErrUserNotFound))

	catalog := NewCatalogHTTPAdapter(newClient(base))
	_, err = catalog.CheckStock(t.Context(), 1, 1)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestCELAdmission(t *testing.T) {
	policy, err := NewCELAdmissionAdapter(`size(items) <= 2 && items.all(i, i.quantity <= 5) && shipping_address != ""`)
	require.NoError(t, err)

	in := port.AdmissionInput{
		UserID:          1,
		ShippingAddress: "123 Main St",
		Items:           []port.AdmissionItem{{ProductID: 1, Quantity: 1}, {ProductID: 4, Quantity: 5}},
	}
	require.NoError(t, policy.Admit(t.Context(), in))

	in.Items[1].Quantity = 6
	assert.ErrorIs(t, policy.Admit(t.Context(), in), domain.ErrPolicyRejected)

	in.Items = append(in.Items[:1], port.AdmissionItem{ProductID: 2, Quantity: 1}, port.AdmissionItem{ProductID: 3, Quantity: 1})
	assert.ErrorIs(t, policy.Admit(t.Context(), in), domain.ErrPolicyRejected)
}

func TestCELAdmissionRejectsBadExpressions(t *testing.T) {
	_, err := NewCELAdmissionAdapter(`user_id +`)
	assert.Error(t, err)

	_, err = NewCELAdmissionAdapter(`user_id + 1`)
	assert.Error(t, err)

	_, err = NewCELAdmissionAdapter(`unknown_var > 1`)
	assert.Error(t, err)
}
