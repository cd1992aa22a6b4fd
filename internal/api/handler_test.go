package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/m/domain"
	"storepos/m/internal/activity"
	"storepos/m/internal/catalog"
	"storepos/m/internal/reports"
	"storepos/m/internal/sales"
	"storepos/m/internal/testutil"
	"storepos/m/internal/users"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	users  *users.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := testutil.NewStore(t)
	logger := zerolog.Nop()
	log := activity.New(s, logger)
	userSvc := users.NewService(s, log, logger, users.Options{})
	_, err := userSvc.EnsureDefaultAdmin(context.Background(), "admin123")
	require.NoError(t, err)

	h := New(Services{
		Users:    userSvc,
		Catalog:  catalog.NewService(s, log, logger),
		Sales:    sales.NewService(s, log, logger),
		Reports:  reports.NewService(s),
		Activity: log,
	}, Options{Secret: "test-secret", TokenTTL: time.Hour}, logger)
	return &testServer{t: t, router: h.Router(), users: userSvc}
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(username, password string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authResponse
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(ts.t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["error"]
}

func TestHealthAndAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, users.MsgInvalidCredentials, errorOf(t, rec))

	rec = ts.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password is required", errorOf(t, rec))

	token := ts.login("admin", "admin123")
	rec = ts.do(http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me domain.User
	decode(t, rec, &me)
	assert.Equal(t, "admin", me.Username)
	assert.Equal(t, domain.RoleAdmin, me.Role)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRoleEnforcement(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login("admin", "admin123")

	rec := ts.do(http.MethodPost, "/users", admin, map[string]string{
		"name": "Clerk", "username": "clerk", "password": "pw", "role": "employee",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	clerk := ts.login("clerk", "pw")
	rec = ts.do(http.MethodGet, "/users", clerk, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/products", clerk, map[string]interface{}{"name": "X", "price": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/products", clerk, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/users", admin, map[string]string{
		"name": "Dup", "username": "clerk", "password": "pw",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSaleLifecycle(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login("admin", "admin123")

	rec := ts.do(http.MethodPost, "/products", admin, map[string]interface{}{"name": "Chair", "price": "100.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product domain.Product
	decode(t, rec, &product)

	rec = ts.do(http.MethodPost, "/sales", admin, map[string]interface{}{"product_id": product.ID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, sales.MsgInvalidQuantity, errorOf(t, rec))

	rec = ts.do(http.MethodPost, "/sales", admin, map[string]interface{}{
		"product_id":       product.ID,
		"quantity":         1,
		"payment_method":   "card",
		"num_installments": 3,
		"due_dates":        []string{"01/04/2025", "01/05/2025", "01/06/2025"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var detail domain.SaleDetail
	decode(t, rec, &detail)
	require.Len(t, detail.Installments, 3)
	assert.Equal(t, "33.34", detail.Installments[2].Amount.StringFixed(2))
	assert.Equal(t, "2025-04-01", detail.Installments[0].DueDate)

	path := fmt.Sprintf("/installments/%d/paid", detail.Installments[0].ID)
	rec = ts.do(http.MethodPut, path, admin, map[string]interface{}{"paid": true, "payment_method": "pix"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var inst domain.Installment
	decode(t, rec, &inst)
	assert.True(t, inst.Paid)

	rec = ts.do(http.MethodPut, path, admin, map[string]interface{}{"payment_method": "pix"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, fmt.Sprintf("/sales/%d/status", detail.ID), admin, map[string]string{"status": "paid", "payment_method": "cash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &detail)
	assert.Equal(t, domain.PaymentPaid, detail.PaymentStatus)
	for _, i := range detail.Installments {
		assert.True(t, i.Paid)
	}

	rec = ts.do(http.MethodGet, "/reports/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash reports.Dashboard
	decode(t, rec, &dash)
	assert.Equal(t, int64(1), dash.Sales)
	assert.True(t, dash.OpenBalance.IsZero())

	rec = ts.do(http.MethodDelete, fmt.Sprintf("/sales/%d", detail.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(http.MethodGet, fmt.Sprintf("/sales/%d", detail.ID), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/activity?limit=5", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []domain.Activity
	decode(t, rec, &entries)
	require.NotEmpty(t, entries)
	assert.Equal(t, activity.SaleDeleted, entries[0].Action)
}

func TestCheckoutEndpoint(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login("admin", "admin123")

	ids := make([]int64, 0, 2)
	for _, p := range []map[string]interface{}{{"name": "A", "price": 10}, {"name": "B", "price": 5}} {
		rec := ts.do(http.MethodPost, "/products", admin, p)
		require.Equal(t, http.StatusCreated, rec.Code)
		var product domain.Product
		decode(t, rec, &product)
		ids = append(ids, product.ID)
	}

	rec := ts.do(http.MethodPost, "/sales/checkout", admin, map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": ids[0], "quantity": 3},
			{"product_id": ids[1], "quantity": 2},
		},
		"discount": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result sales.CheckoutResult
	decode(t, rec, &result)
	require.Len(t, result.SaleIDs, 2)
	assert.Equal(t, "26.25", result.Allocation.Items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "8.75", result.Allocation.Items[1].TotalPrice.StringFixed(2))

	rec = ts.do(http.MethodPost, "/sales/checkout", admin, map[string]interface{}{"items": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/sales", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.SaleSummary
	decode(t, rec, &list)
	assert.Len(t, list, 2)
}

func TestProductImportExport(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login("admin", "admin123")

	req := httptest.NewRequest(http.MethodPost, "/products/import", strings.NewReader("name,price,category\nSoap,2.50,home\nTowel,\"9,90\",home\n"))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result catalog.ImportResult
	decode(t, rec, &result)
	assert.Equal(t, 2, result.Imported)

	rec = ts.do(http.MethodGet, "/products/export", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "name,price,category\nSoap,2.50,home\nTowel,9.90,home\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
}

func TestUnknownFieldsRejected(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login("admin", "admin123")

	rec := ts.do(http.MethodPost, "/products", admin, map[string]interface{}{"name": "X", "price": 1, "stock": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown field", errorOf(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", errorOf(t, rec))
	assert.NotContains(t, rec.Body.String(), "EOF")
}
