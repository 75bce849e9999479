package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/suraj0258/ecommerce-backend/internal/auth"
	"github.com/suraj0258/ecommerce-backend/internal/orders"
)

type fakeOrderCatalog struct {
	products map[string]*orders.CatalogProduct
}

func (f *fakeOrderCatalog) ProductForOrder(_ context.Context, productID string) (*orders.CatalogProduct, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeOrderCatalog) ReserveStock(_ context.Context, productID string, quantity int) (bool, error) {
	p, ok := f.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	return true, nil
}

type fakeOrderStore struct {
	orders map[string]orders.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]orders.Order{}}
}

func (f *fakeOrderStore) Create(_ context.Context, order orders.Order) (orders.Order, error) {
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, orderID string) (*orders.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (f *fakeOrderStore) MarkPaid(_ context.Context, orderID string, result orders.PaymentResult, paidAt time.Time) (*orders.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.PaymentResult = result
	f.orders[orderID] = order
	return &order, nil
}

func (f *fakeOrderStore) SetStatus(_ context.Context, orderID string, status string, delivered bool, deliveredAt time.Time) (*orders.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	order.Status = status
	if delivered {
		order.IsDelivered = true
		order.DeliveredAt = &deliveredAt
	}
	f.orders[orderID] = order
	return &order, nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string, page, pageSize int) ([]orders.Order, int, error) {
	var result []orders.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			result = append(result, order)
		}
	}
	return result, len(result), nil
}

func (f *fakeOrderStore) List(_ context.Context, statusKeyword string, page, pageSize int) ([]orders.Order, int, error) {
	var result []orders.Order
	for _, order := range f.orders {
		result = append(result, order)
	}
	return result, len(result), nil
}

func (f *fakeOrderStore) Stats(_ context.Context) (*orders.Stats, error) {
	return &orders.Stats{TotalOrders: len(f.orders)}, nil
}

type testApp struct {
	router  *gin.Engine
	keys    *auth.Keys
	store   *fakeOrderStore
	catalog *fakeOrderCatalog
}

func newTestApp(t *testing.T, products ...orders.CatalogProduct) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys, err := auth.NewKeys(privateKey, &privateKey.PublicKey)
	require.NoError(t, err)

	catalog := &fakeOrderCatalog{products: map[string]*orders.CatalogProduct{}}
	for i := range products {
		p := products[i]
		catalog.products[p.ID] = &p
	}
	store := newFakeOrderStore()

	o, err := orders.NewConf(store, catalog)
	require.NoError(t, err)

	h := NewHandler(nil, nil, nil, o, nil, keys)
	return &testApp{router: API(h), keys: keys, store: store, catalog: catalog}
}

func (a *testApp) tokenFor(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	token, err := a.keys.GenerateToken(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	})
	require.NoError(t, err)
	return token
}

func (a *testApp) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func checkoutBody(items ...orders.NewOrderItem) orders.NewOrder {
	return orders.NewOrder{
		Items: items,
		ShippingAddress: orders.Address{
			Street: "1 Main St", City: "Pune", State: "MH", ZipCode: "411001", Country: "IN",
		},
		PaymentMethod: "stripe",
		ItemsPrice:    100,
		TaxPrice:      10,
		ShippingPrice: 5,
		TotalPrice:    115,
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestCreateOrderRequiresToken(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/orders", "", checkoutBody())
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Not authorized, no token", errorMessage(t, w))
}

func TestCreateOrderEmptyItems(t *testing.T) {
	app := newTestApp(t)
	token := app.tokenFor(t, "user-1", auth.RoleUser)

	w := app.do(t, http.MethodPost, "/orders", token, checkoutBody())
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "No order items", errorMessage(t, w))
}

func TestCreateOrderProductNotFound(t *testing.T) {
	app := newTestApp(t)
	token := app.tokenFor(t, "user-1", auth.RoleUser)

	body := checkoutBody(orders.NewOrderItem{ProductID: "missing", Quantity: 1, Price: 100})
	w := app.do(t, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "Product not found: missing", errorMessage(t, w))
}

func TestCreateOrderOutOfStock(t *testing.T) {
	app := newTestApp(t, orders.CatalogProduct{ID: "p1", Name: "Keyboard", Price: 100, Stock: 1})
	token := app.tokenFor(t, "user-1", auth.RoleUser)

	body := checkoutBody(orders.NewOrderItem{ProductID: "p1", Quantity: 3, Price: 100})
	w := app.do(t, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Product Keyboard is out of stock", errorMessage(t, w))
}

func TestCreateOrderSucceeds(t *testing.T) {
	app := newTestApp(t, orders.CatalogProduct{ID: "p1", Name: "Keyboard", Price: 90, Stock: 5})
	token := app.tokenFor(t, "user-1", auth.RoleUser)

	body := checkoutBody(orders.NewOrderItem{ProductID: "p1", Quantity: 2, Price: 100})
	w := app.do(t, http.MethodPost, "/orders", token, body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "user-1", created.UserID)
	require.Equal(t, orders.StatusPlaced, created.Status)
	require.Equal(t, int64(115), created.TotalPrice)
	require.Len(t, created.Items, 1)
	require.Equal(t, int64(100), created.Items[0].Price)
	require.Equal(t, 3, app.catalog.products["p1"].Stock)
}

func TestGetOrderOwnerOrAdminOnly(t *testing.T) {
	app := newTestApp(t, orders.CatalogProduct{ID: "p1", Name: "Keyboard", Price: 100, Stock: 5})
	owner := app.tokenFor(t, "user-1", auth.RoleUser)

	body := checkoutBody(orders.NewOrderItem{ProductID: "p1", Quantity: 1, Price: 100})
	w := app.do(t, http.MethodPost, "/orders", owner, body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = app.do(t, http.MethodGet, "/orders/"+created.ID, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	stranger := app.tokenFor(t, "user-2", auth.RoleUser)
	w = app.do(t, http.MethodGet, "/orders/"+created.ID, stranger, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Not authorized to view this order", errorMessage(t, w))

	admin := app.tokenFor(t, "admin-1", auth.RoleAdmin)
	w = app.do(t, http.MethodGet, "/orders/"+created.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSetOrderStatusAdminOnly(t *testing.T) {
	app := newTestApp(t)
	customer := app.tokenFor(t, "user-1", auth.RoleUser)

	w := app.do(t, http.MethodPut, "/orders/some-id/status", customer, gin.H{"status": "shipped"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Not authorized as an admin", errorMessage(t, w))
}

func TestSetOrderStatusRejectsUnknownValue(t *testing.T) {
	app := newTestApp(t, orders.CatalogProduct{ID: "p1", Name: "Keyboard", Price: 100, Stock: 5})
	owner := app.tokenFor(t, "user-1", auth.RoleUser)
	admin := app.tokenFor(t, "admin-1", auth.RoleAdmin)

	body := checkoutBody(orders.NewOrderItem{ProductID: "p1", Quantity: 1, Price: 100})
	w := app.do(t, http.MethodPost, "/orders", owner, body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = app.do(t, http.MethodPut, "/orders/"+created.ID+"/status", admin, gin.H{"status": "teleported"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid order status", errorMessage(t, w))

	w = app.do(t, http.MethodPut, "/orders/"+created.ID+"/status", admin, gin.H{"status": "delivered"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.True(t, updated.IsDelivered)
	require.NotNil(t, updated.DeliveredAt)
}

func TestPayOrderStoresGatewayPayload(t *testing.T) {
	app := newTestApp(t, orders.CatalogProduct{ID: "p1", Name: "Keyboard", Price: 100, Stock: 5})
	owner := app.tokenFor(t, "user-1", auth.RoleUser)

	body := checkoutBody(orders.NewOrderItem{ProductID: "p1", Quantity: 1, Price: 100})
	w := app.do(t, http.MethodPost, "/orders", owner, body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	payload := gin.H{
		"id":          "pay-1",
		"status":      "COMPLETED",
		"update_time": "2026-08-27T10:00:00Z",
		"payer":       gin.H{"email_address": "buyer@example.com"},
	}
	w = app.do(t, http.MethodPut, "/orders/"+created.ID+"/pay", owner, payload)
	require.Equal(t, http.StatusOK, w.Code)

	var paid orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paid))
	require.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	require.Equal(t, "pay-1", paid.PaymentResult.ID)
	require.Equal(t, "buyer@example.com", paid.PaymentResult.EmailAddress)
}

func TestMyOrdersEnvelope(t *testing.T) {
	app := newTestApp(t, orders.CatalogProduct{ID: "p1", Name: "Keyboard", Price: 100, Stock: 50})
	owner := app.tokenFor(t, "user-1", auth.RoleUser)

	for i := 0; i < 3; i++ {
		body := checkoutBody(orders.NewOrderItem{ProductID: "p1", Quantity: 1, Price: 100})
		w := app.do(t, http.MethodPost, "/orders", owner, body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := app.do(t, http.MethodGet, "/orders/myorders?page=1&pageSize=2", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Orders      []orders.Order `json:"orders"`
		Page        int            `json:"page"`
		Pages       int            `json:"pages"`
		TotalOrders int            `json:"totalOrders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 1, envelope.Page)
	require.Equal(t, 2, envelope.Pages)
	require.Equal(t, 3, envelope.TotalOrders)
}

func TestListOrdersAdminOnly(t *testing.T) {
	app := newTestApp(t)
	customer := app.tokenFor(t, "user-1", auth.RoleUser)

	w := app.do(t, http.MethodGet, "/orders", customer, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}
