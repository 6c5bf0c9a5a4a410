package inventory

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lotledger/lotledger/internal/paste"
	"github.com/lotledger/lotledger/internal/platform/httpx"
)

// IdempotencyHeader carries the client supplied idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// StockImportEnqueuer queues a pasted stock report for background import.
type StockImportEnqueuer interface {
	EnqueueStockImport(ctx context.Context, text string) (string, error)
}

// Handler wires HTTP endpoints for the ledger and the order log.
type Handler struct {
	logger    *slog.Logger
	ledger    *LedgerService
	orders    *OrderService
	imports   StockImportEnqueuer
	validator *validator.Validate
}

// NewHandler constructs the inventory handler. imports may be nil, which
// disables asynchronous stock imports.
func NewHandler(logger *slog.Logger, ledger *LedgerService, orders *OrderService, imports StockImportEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, ledger: ledger, orders: orders, imports: imports, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Get("/", h.listStock)
		r.Get("/entries", h.listStockEntries)
		r.Post("/increment", h.incrementStock)
		r.Post("/reserve", h.reserveStock)
		r.Post("/paste", h.pasteStock)
		r.Post("/parse", h.parseStock)
		r.Get("/{lot}", h.getStock)
		r.Put("/{lot}", h.setBalance)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.submitOrder)
		r.Post("/paste", h.pasteOrder)
		r.Post("/parse", h.parseOrder)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/items", h.listItems)
	})
}

type incrementRequest struct {
	LotNo              string `json:"lot_no" validate:"required,max=64"`
	ProductDescription string `json:"product_description" validate:"max=255"`
	Quantity           int64  `json:"quantity" validate:"required,gt=0"`
}

type setBalanceRequest struct {
	ProductDescription string `json:"product_description" validate:"max=255"`
	Quantity           *int64 `json:"quantity" validate:"required,gte=0"`
}

type reserveRequest struct {
	LotNo    string `json:"lot_no" validate:"required,max=64"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

type pasteRequest struct {
	Text      string `json:"text"`
	OrderDate string `json:"order_date"`
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock": records})
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ledger.Get(r.Context(), chi.URLParam(r, "lot"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) listStockEntries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.fail(w, r, httpx.Kinded(httpx.ErrValidation, errors.New("limit must be a positive integer")))
			return
		}
		limit = v
	}
	entries, err := h.ledger.ListStockEntries(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) incrementStock(w http.ResponseWriter, r *http.Request) {
	var req incrementRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.ledger.Increment(r.Context(), req.LotNo, req.ProductDescription, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) setBalance(w http.ResponseWriter, r *http.Request) {
	var req setBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.ledger.SetBalance(r.Context(), chi.URLParam(r, "lot"), req.ProductDescription, *req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) reserveStock(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.ledger.Reserve(r.Context(), req.LotNo, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) pasteStock(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readPaste(w, r)
	if !ok {
		return
	}
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if h.imports == nil {
			h.fail(w, r, httpx.Kinded(httpx.ErrUnavailable, errors.New("background imports are not configured")))
			return
		}
		taskID, err := h.imports.EnqueueStockImport(r.Context(), req.Text)
		if err != nil {
			h.fail(w, r, httpx.Kinded(httpx.ErrUnavailable, err))
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
		return
	}
	result, err := h.ledger.ImportStockText(r.Context(), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) parseStock(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readPaste(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, paste.ParseStock(req.Text))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	headers, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": headers})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.orders.ListItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	var input SubmitInput
	if !h.decode(w, r, &input) {
		return
	}
	input.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	order, err := h.orders.SubmitOrder(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) pasteOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readPaste(w, r)
	if !ok {
		return
	}
	result, err := h.orders.SubmitPastedOrder(r.Context(), req.Text, req.OrderDate, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) parseOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readPaste(w, r)
	if !ok {
		return
	}
	parsed := paste.ParseOrder(req.Text)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order":         parsed,
		"items_total":   parsed.ItemsTotal(),
		"total_matches": parsed.TotalMatches(),
	})
}

// decode reads and validates a JSON body, responding on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		h.fail(w, r, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			h.fail(w, r, httpx.Kinded(httpx.ErrValidation, err))
			return false
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			fields[fieldErr.Namespace()] = fieldErr.Tag()
		}
		httpx.RespondErrorWith(w, httpx.Kinded(httpx.ErrValidation, errors.New("request failed validation")), map[string]any{"errors": fields})
		return false
	}
	return true
}

// readPaste accepts either a JSON body {"text", "order_date"} or the raw pasted
// text, with order_date taken from the query string.
func (h *Handler) readPaste(w http.ResponseWriter, r *http.Request) (pasteRequest, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var req pasteRequest
	if mediaType == "application/json" {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			h.fail(w, r, err)
			return req, false
		}
	} else {
		text, err := httpx.ReadText(w, r)
		if err != nil {
			h.fail(w, r, err)
			return req, false
		}
		req = pasteRequest{Text: text, OrderDate: r.URL.Query().Get("order_date")}
	}
	if strings.TrimSpace(req.Text) == "" {
		h.fail(w, r, httpx.Kinded(httpx.ErrValidation, errors.New("pasted text is empty")))
		return req, false
	}
	return req, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ext, classified := classify(err)
	if errors.Is(classified, httpx.ErrUnavailable) || !isKinded(classified) {
		h.logger.Error("inventory request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondErrorWith(w, classified, ext)
}

// classify maps domain errors onto httpx error kinds.
func classify(err error) (map[string]any, error) {
	var subErr *SubmissionError
	var shortErr *InsufficientStockError
	var storeErr *StoreError
	switch {
	case isKinded(err):
		return nil, err
	case errors.As(err, &subErr):
		return map[string]any{"failures": subErr.Failures}, httpx.Kinded(httpx.ErrConflict, err)
	case errors.As(err, &shortErr):
		return map[string]any{
			"lot_no":    shortErr.LotNo,
			"requested": shortErr.Requested,
			"available": shortErr.Available,
		}, httpx.Kinded(httpx.ErrConflict, err)
	case errors.As(err, &storeErr):
		return nil, httpx.Kinded(httpx.ErrUnavailable, err)
	case errors.Is(err, ErrLotNotFound), errors.Is(err, ErrOrderNotFound):
		return nil, httpx.Kinded(httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicateSubmission), errors.Is(err, ErrNegativeStock):
		return nil, httpx.Kinded(httpx.ErrConflict, err)
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrLotRequired),
		errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidOrderDate):
		return nil, httpx.Kinded(httpx.ErrValidation, err)
	}
	return nil, err
}

func isKinded(err error) bool {
	return errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrConflict) ||
		errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrUnavailable)
}
