package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupServerDB(t *testing.T) {
	t.Helper()
	config.ResetSettings()
	t.Cleanup(config.ResetSettings)
	db, err := config.OpenDatabase(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.AutoMigrateAll(db); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	config.SetDB(db)
	utils.SetEntityLocker(utils.NewLocalEntityLocker(5 * time.Second))
	t.Cleanup(func() {
		config.SetDB(nil)
		utils.SetEntityLocker(nil)
	})
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := utils.JwtGenerate(utils.Actor{Id: "u-1", Name: "Clerk"})
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, r http.Handler, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error.Kind
}

func TestRouterReadinessAndAuth(t *testing.T) {
	ready := false
	r := setupRouter(testLogger(), func() bool { return ready }, nil)

	if w := doJSON(t, r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("healthz: expected 204, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/purchases", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", w.Code)
	}

	ready = true
	w := doJSON(t, r, http.MethodGet, "/purchases", "", nil)
	if w.Code != http.StatusUnauthorized || errorKind(t, w) != "Unauthorized" {
		t.Fatalf("expected 401 without actor, got %d %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodGet, "/purchases", "Bearer not-a-token", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/no-such-route", "", nil)
	if w.Code != http.StatusNotFound || errorKind(t, w) != "NotFoundError" {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRouterCorrelationHeader(t *testing.T) {
	r := setupRouter(testLogger(), func() bool { return true }, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("x-correlation-id", "corr-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("x-correlation-id"); got != "corr-1" {
		t.Fatalf("expected echoed correlation id, got %q", got)
	}
}

func TestReceiveOverHTTP(t *testing.T) {
	setupServerDB(t)
	r := setupRouter(testLogger(), func() bool { return true }, nil)
	auth := bearer(t)

	w := doJSON(t, r, http.MethodPost, "/inventory-items", auth, map[string]interface{}{
		"sku": "FAB-900", "name": "Cotton", "item_type": "MATERIAL", "unit": "m",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create item: %d %s", w.Code, w.Body.String())
	}
	var item models.InventoryItem
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/purchases", auth, map[string]interface{}{
		"supplier_id": "sup-1",
		"items":       []map[string]interface{}{{"inventory_item_id": item.ID, "quantity": "100", "unit_price": "500"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create purchase: %d %s", w.Code, w.Body.String())
	}
	var purchase models.Purchase
	if err := json.Unmarshal(w.Body.Bytes(), &purchase); err != nil {
		t.Fatalf("decode purchase: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/purchases/"+purchase.ID+"/receive", auth, map[string]interface{}{
		"lines": []map[string]interface{}{{"purchase_item_id": purchase.Items[0].ID, "quantity": "101"}},
	})
	if w.Code != http.StatusUnprocessableEntity || errorKind(t, w) != string(utils.KindBusinessRule) {
		t.Fatalf("expected 422 on over-receipt, got %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/purchases/"+purchase.ID+"/receive", auth, map[string]interface{}{
		"lines": []map[string]interface{}{{"purchase_item_id": purchase.Items[0].ID, "quantity": "100"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("receive: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/inventory-items/"+item.ID, auth, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(100)) || !item.AverageCost.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected 100 @ 500, got %s @ %s", item.Quantity, item.AverageCost)
	}

	w = doJSON(t, r, http.MethodGet, "/purchases/missing", auth, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown purchase, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/advances", auth, map[string]interface{}{"supplier_id": "sup-1", "amount": "-5", "payment_method": "CASH"})
	if w.Code != http.StatusBadRequest || errorKind(t, w) != string(utils.KindValidation) {
		t.Fatalf("expected 400 for a negative advance, got %d %s", w.Code, w.Body.String())
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryRateLimitStore(), 2, time.Minute)
	r := setupRouter(testLogger(), func() bool { return true }, limiter)

	for i := 0; i < 2; i++ {
		if w := doJSON(t, r, http.MethodGet, "/no-such-route", "", nil); w.Code != http.StatusNotFound {
			t.Fatalf("request %d: expected 404, got %d", i, w.Code)
		}
	}
	w := doJSON(t, r, http.MethodGet, "/no-such-route", "", nil)
	if w.Code != http.StatusTooManyRequests || errorKind(t, w) != "RateLimited" {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestMemoryRateLimitStoreWindow(t *testing.T) {
	store := NewMemoryRateLimitStore()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		if got, _ := store.Hit(ctx, "10.0.0.1", time.Minute); got != want {
			t.Fatalf("hit %d: got %d", want, got)
		}
	}
	if got, _ := store.Hit(ctx, "10.0.0.2", time.Minute); got != 1 {
		t.Fatalf("keys must count separately, got %d", got)
	}
	clock = clock.Add(time.Minute)
	if got, _ := store.Hit(ctx, "10.0.0.1", time.Minute); got != 1 {
		t.Fatalf("expected a fresh window, got %d", got)
	}
}

func TestRateLimitFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	if rateLimitFromEnv(NewMemoryRateLimitStore()) != nil {
		t.Fatalf("expected no limiter when disabled")
	}
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "bogus")
	rl := rateLimitFromEnv(NewMemoryRateLimitStore())
	if rl == nil || rl.limit != 5 || rl.window != time.Minute {
		t.Fatalf("unexpected limiter %+v", rl)
	}
}
