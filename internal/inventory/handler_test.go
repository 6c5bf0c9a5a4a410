package inventory_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/inventory"
)

type fakeEnqueuer struct {
	texts []string
	err   error
}

func (f *fakeEnqueuer) EnqueueStockImport(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.texts = append(f.texts, text)
	return "task-1", nil
}

func newTestRouter(t *testing.T, imports inventory.StockImportEnqueuer) (http.Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := inventory.NewHandler(logger, f.ledger, f.orders, imports)
	r := chi.NewRouter()
	r.Route("/api", h.MountRoutes)
	return r, f
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var decoded map[string]any
	if rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &decoded)
	}
	return rr, decoded
}

func TestHandlerStockLifecycle(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr, body := do(t, h, http.MethodPost, "/api/stock/increment", "application/json", `{"lot_no":"14016","product_description":"SAFAWI","quantity":5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 5, body["quantity"])

	rr, body = do(t, h, http.MethodPut, "/api/stock/14016", "application/json", `{"product_description":"SAFAWI A-1","quantity":9}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 9, body["quantity"])

	rr, body = do(t, h, http.MethodPost, "/api/stock/reserve", "application/json", `{"lot_no":"14016","quantity":10}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.EqualValues(t, 9, body["available"])

	rr, body = do(t, h, http.MethodGet, "/api/stock/14016", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "SAFAWI A-1", body["product_description"])

	rr, _ = do(t, h, http.MethodGet, "/api/stock/nope", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr, body = do(t, h, http.MethodGet, "/api/stock", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["stock"], 1)
}

func TestHandlerValidation(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr, body := do(t, h, http.MethodPost, "/api/stock/increment", "application/json", `{"lot_no":"","quantity":0}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, body["errors"], "incrementRequest.LotNo")

	rr, _ = do(t, h, http.MethodPut, "/api/stock/L1", "application/json", `{"quantity":-1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, _ = do(t, h, http.MethodPut, "/api/stock/L1", "application/json", `{"product_description":"x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, _ = do(t, h, http.MethodPost, "/api/orders", "application/json", `{"items":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, _ = do(t, h, http.MethodGet, "/api/stock/entries?limit=abc", "", "")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, _ = do(t, h, http.MethodPost, "/api/orders/paste", "text/plain", "   ")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, _ = do(t, h, http.MethodPost, "/api/stock/reserve", "application/json", `{"lot_no":"   ","quantity":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandlerSubmitOrderRejectionListsFailures(t *testing.T) {
	h, f := newTestRouter(t, nil)
	_, err := f.ledger.SetBalance(context.Background(), "A", "dates", 5)
	require.NoError(t, err)

	rr, body := do(t, h, http.MethodPost, "/api/orders", "application/json",
		`{"party_name":"NS","items":[{"lot_no":"A","quantity":2},{"lot_no":"B","quantity":1}]}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	failures, ok := body["failures"].([]any)
	require.True(t, ok, rr.Body.String())
	require.Len(t, failures, 1)
	assert.Equal(t, "B", failures[0].(map[string]any)["lot_no"])

	rec, err := f.ledger.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Quantity)
}

func TestHandlerOrderFlow(t *testing.T) {
	h, f := newTestRouter(t, nil)
	_, err := f.ledger.SetBalance(context.Background(), "14016", "SAFAWI", 5)
	require.NoError(t, err)

	text := "Party Name : NS\nGadi No : MH 05 EA 9834\nLot no : 14016 (2 bxs SAFAWI A-1 QUALITY)\nTotal : 2 bxs"
	rr, body := do(t, h, http.MethodPost, "/api/orders/paste?order_date=2025-02-15+10:00", "text/plain", text, inventory.IdempotencyHeader, "abc")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, true, body["total_matches"])
	order := body["order"].(map[string]any)
	id := order["id"].(string)

	rr, _ = do(t, h, http.MethodPost, "/api/orders/paste", "text/plain", text, inventory.IdempotencyHeader, "abc")
	require.Equal(t, http.StatusConflict, rr.Code)

	rr, body = do(t, h, http.MethodGet, "/api/orders", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["orders"], 1)

	rr, body = do(t, h, http.MethodGet, "/api/orders/"+id, "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MH 05 EA 9834", body["gadi_no"])

	rr, body = do(t, h, http.MethodGet, "/api/orders/"+id+"/items", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["items"], 1)

	rr, _ = do(t, h, http.MethodGet, "/api/orders/unknown/items", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerParsePreviews(t *testing.T) {
	h, f := newTestRouter(t, nil)

	rr, body := do(t, h, http.MethodPost, "/api/orders/parse", "application/json",
		`{"text":"Party Name : NS\nLot no : 1 (2 bxs X)\nTotal : 3 bxs"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, body["total_matches"])
	assert.EqualValues(t, 2, body["items_total"])

	rr, body = do(t, h, http.MethodPost, "/api/stock/parse", "text/plain", "a\tb\tc\n")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["skipped"], 1)

	all, err := f.ledger.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHandlerStockPaste(t *testing.T) {
	imports := &fakeEnqueuer{}
	h, _ := newTestRouter(t, imports)
	line := "15/02/2025\tCS-20\t14393\tWET DATES BOX 5 KG (imp)\tAJWA (PREMIUM)\t494\t282\t212"

	rr, body := do(t, h, http.MethodPost, "/api/stock/paste", "text/plain", line)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, body["entries"])

	rr, body = do(t, h, http.MethodGet, "/api/stock/entries?limit=5", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["entries"], 1)

	rr, body = do(t, h, http.MethodPost, "/api/stock/paste?async=1", "text/plain", line)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "task-1", body["task_id"])
	require.Equal(t, []string{line}, imports.texts)

	imports.err = errors.New("redis down")
	rr, _ = do(t, h, http.MethodPost, "/api/stock/paste?async=true", "text/plain", line)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandlerAsyncPasteWithoutQueue(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rr, _ := do(t, h, http.MethodPost, "/api/stock/paste?async=1", "text/plain", "x")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
