package httptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/corray333/frameshop/order/internal/dal/memory"
	"github.com/corray333/frameshop/order/internal/events"
	"github.com/corray333/frameshop/order/internal/service/models/event"
	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/service/services/authsvc"
	"github.com/corray333/frameshop/order/internal/service/services/ordersvc"
)

type fixture struct {
	handler http.Handler
	broker  *events.Broker
	tokens  map[string]string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	broker := events.NewBroker()
	orders := ordersvc.MustNewOrderService(ordersvc.WithMemoryStore(store), ordersvc.WithRetryPolicy(2, time.Millisecond))
	auth := authsvc.MustNewAuthService(
		authsvc.WithMemoryStore(store),
		authsvc.WithSigningSecret("http-test-secret"),
		authsvc.WithHashCost(bcrypt.MinCost),
		authsvc.WithLoginLimit(3, time.Minute),
	)

	transport := NewHTTPTransport(orders, auth, broker, store)
	transport.RegisterRoutes()

	f := &fixture{handler: transport.Handler(), broker: broker, tokens: map[string]string{}}
	for _, role := range []string{"admin", "manager", "support"} {
		email := role + "@frameshop.test"
		_, err := auth.CreateEmployee(context.Background(), strings.ToUpper(role[:1])+role[1:], email, role, "long-enough-pw")
		require.NoError(t, err)

		rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "long-enough-pw"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var session authsvc.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
		f.tokens[role] = session.Token
	}

	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return body.Error.Kind
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) order.Order {
	t.Helper()

	var o order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o), rec.Body.String())

	return o
}

func (f *fixture) checkout(t *testing.T) order.Order {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/orders", "", map[string]any{
		"customer_name":     "Grace Hopper",
		"customer_email":    "grace@example.com",
		"product_name":      "Oak frame A4",
		"quantity":          2,
		"total_price":       "59.90",
		"shipping_address":  "1 Compiler Way, Arlington",
		"payment_reference": "pi_http_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return decodeOrder(t, rec)
}

func TestCheckoutAndFulfilment(t *testing.T) {
	f := setup(t)
	o := f.checkout(t)
	assert.Equal(t, order.StatusPending, o.Status)

	path := "/api/v1/orders/" + o.ID.String()

	rec := f.do(t, http.MethodPost, path+"/status", f.tokens["manager"], map[string]string{"status": "processing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, order.StatusProcessing, decodeOrder(t, rec).Status)

	rec = f.do(t, http.MethodPost, path+"/tracking", f.tokens["manager"], map[string]string{
		"carrier":         "DHL",
		"tracking_number": "JD014600003",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shipped := decodeOrder(t, rec)
	assert.Equal(t, order.StatusShipped, shipped.Status)
	require.NotNil(t, shipped.TrackingNumber)
	assert.Equal(t, "JD014600003", *shipped.TrackingNumber)

	rec = f.do(t, http.MethodGet, path+"/history", f.tokens["support"], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Items []struct {
			Status string  `json:"status"`
			Notes  *string `json:"notes"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Items, 2)
	assert.Equal(t, "shipped", hist.Items[0].Status)
	require.NotNil(t, hist.Items[0].Notes)
	assert.Equal(t, "Shipped via DHL, tracking number JD014600003", *hist.Items[0].Notes)
	assert.Equal(t, "processing", hist.Items[1].Status)
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	f := setup(t)
	o := f.checkout(t)
	path := "/api/v1/orders/" + o.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"missing token", http.MethodGet, path, "", nil, http.StatusUnauthorized, "unauthenticated"},
		{"garbage token", http.MethodGet, path, "not-a-jwt", nil, http.StatusUnauthorized, "unauthenticated"},
		{"support cannot mutate", http.MethodPost, path + "/status", f.tokens["support"], map[string]string{"status": "processing"}, http.StatusForbidden, "forbidden"},
		{"unknown order", http.MethodGet, "/api/v1/orders/" + uuid.NewString(), f.tokens["manager"], nil, http.StatusNotFound, "not_found"},
		{"bad id", http.MethodGet, "/api/v1/orders/42", f.tokens["manager"], nil, http.StatusBadRequest, "validation"},
		{"unknown status", http.MethodPost, path + "/status", f.tokens["manager"], map[string]string{"status": "lost"}, http.StatusBadRequest, "validation"},
		{"skip ahead", http.MethodPost, path + "/status", f.tokens["manager"], map[string]string{"status": "delivered"}, http.StatusConflict, "invalid_transition"},
		{"warnings need admin", http.MethodGet, "/api/v1/admin/consistency-warnings", f.tokens["manager"], nil, http.StatusForbidden, "forbidden"},
		{"invalid checkout", http.MethodPost, "/api/v1/orders", "", map[string]any{"customer_name": "x"}, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, errorKind(t, rec))
		})
	}
}

func TestIdempotencyKeyReplaysOnce(t *testing.T) {
	f := setup(t)
	o := f.checkout(t)
	path := "/api/v1/orders/" + o.ID.String()
	key := uuid.NewString()

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, path+"/status", f.tokens["admin"], map[string]string{"status": "processing"}, "Idempotency-Key", key)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, int64(2), decodeOrder(t, rec).Version)
	}

	rec := f.do(t, http.MethodPost, path+"/tracking", f.tokens["admin"], map[string]string{
		"carrier":         "UPS",
		"tracking_number": "1Z999",
	}, "Idempotency-Key", key)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "conflict", errorKind(t, rec))

	rec = f.do(t, http.MethodPost, path+"/status", f.tokens["admin"], map[string]string{"status": "processing"}, "Idempotency-Key", "nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrdersQuery(t *testing.T) {
	f := setup(t)
	f.checkout(t)
	f.checkout(t)

	rec := f.do(t, http.MethodGet, "/api/v1/orders?status=pending&limit=1&search=grace", f.tokens["support"], nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page order.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Limit)
	assert.Len(t, page.Items, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/orders?status=bogus", f.tokens["support"], nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	f := setup(t)
	creds := map[string]string{"email": "support@frameshop.test", "password": "wrong-password"}

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorKind(t, rec))
}

func TestHealthzAndSwagger(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/orders/{id}/status"`)
}

func TestEventStream(t *testing.T) {
	f := setup(t)
	server := httptest.NewServer(f.handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/events/orders?table=orders", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.tokens["support"])

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	orderID := uuid.New()
	f.broker.Publish(event.Event{ID: uuid.New(), Table: event.TableOrderHistory, Type: event.TypeInsert, OrderID: orderID})
	e := event.Event{ID: uuid.New(), Table: event.TableOrders, Type: event.TypeUpdate, RecordID: orderID, OrderID: orderID}
	f.broker.Publish(e)

	var lines []string
	for len(lines) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			continue
		}
		lines = append(lines, strings.TrimSuffix(line, "\n"))
	}
	assert.Equal(t, "id: "+e.ID.String(), lines[0])
	assert.Equal(t, "event: orders.update", lines[1])
	assert.Contains(t, lines[2], orderID.String())
}
