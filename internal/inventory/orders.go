package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lotledger/lotledger/internal/paste"
	"github.com/lotledger/lotledger/internal/shared"
)

const idempotencyModule = "orders"

// OrderService records orders and reserves their stock.
type OrderService struct {
	store       Store
	cache       ReportCache
	idempotency IdempotencyPort
	metrics     MetricsRecorder
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewOrderService builds OrderService. idem may be nil.
func NewOrderService(store Store, idem IdempotencyPort, cfg ServiceConfig) *OrderService {
	cfg = cfg.withDefaults()
	return &OrderService{
		store:       store,
		cache:       cfg.Cache,
		idempotency: idem,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
		newID:       func() string { return uuid.NewString() },
	}
}

// SubmitInput describes a complete order submission.
type SubmitInput struct {
	PartyName      string        `json:"party_name" validate:"max=255"`
	GadiNo         string        `json:"gadi_no" validate:"max=64"`
	OrderDate      string        `json:"order_date"`
	Items          []LineRequest `json:"items" validate:"required,min=1,dive"`
	IdempotencyKey string        `json:"-"`
}

// PastedOrderResult reports a submission made from pasted text.
type PastedOrderResult struct {
	Order         Order  `json:"order"`
	ParsedTotal   *int64 `json:"parsed_total,omitempty"`
	TotalMatches  bool   `json:"total_matches"`
	ItemsParsed   int    `json:"items_parsed"`
	PartyDetected bool   `json:"party_detected"`
}

// CreateOrder persists a bare order header and returns its id.
func (s *OrderService) CreateOrder(ctx context.Context, partyName, gadiNo, orderDate string) (string, error) {
	date, err := ParseOrderDate(orderDate, s.now())
	if err != nil {
		return "", err
	}
	header := OrderHeader{ID: s.newID(), PartyName: strings.TrimSpace(partyName), GadiNo: strings.TrimSpace(gadiNo), OrderDate: date}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return tx.InsertOrder(ctx, header)
	})
	if err != nil {
		return "", wrapStore("create order", err)
	}
	return header.ID, nil
}

// AddItem appends one line to an existing order. Stock must already be reserved.
func (s *OrderService) AddItem(ctx context.Context, orderID, lotNo string, quantity int64, description string) (OrderItem, error) {
	lotNo = normaliseLot(lotNo)
	if lotNo == "" {
		return OrderItem{}, ErrLotRequired
	}
	if quantity <= 0 {
		return OrderItem{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	var item OrderItem
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		lineNo, err := tx.NextLineNo(ctx, orderID)
		if err != nil {
			return err
		}
		item = OrderItem{OrderID: orderID, LineNo: lineNo, LotNo: lotNo, Quantity: quantity, ProductDescription: strings.TrimSpace(description)}
		return tx.InsertOrderItems(ctx, []OrderItem{item})
	})
	if err != nil {
		return OrderItem{}, wrapStore("add order item", err)
	}
	return item, nil
}

// SubmitOrder validates every line against the ledger and, only when all of
// them can be served, deducts stock and records the order in one unit of work.
// A rejected submission returns *SubmissionError listing every failing line and
// leaves the ledger untouched.
func (s *OrderService) SubmitOrder(ctx context.Context, input SubmitInput) (Order, error) {
	if len(input.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	date, err := ParseOrderDate(input.OrderDate, s.now())
	if err != nil {
		return Order{}, err
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	insertedKey := false
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.observe("duplicate")
				return Order{}, ErrDuplicateSubmission
			}
			return Order{}, wrapStore("idempotency check", err)
		}
		insertedKey = true
	}

	order := Order{OrderHeader: OrderHeader{
		ID:        s.newID(),
		PartyName: strings.TrimSpace(input.PartyName),
		GadiNo:    strings.TrimSpace(input.GadiNo),
		OrderDate: date,
	}}
	for i, line := range input.Items {
		order.Items = append(order.Items, OrderItem{
			OrderID:            order.ID,
			LineNo:             i + 1,
			LotNo:              normaliseLot(line.LotNo),
			Quantity:           line.Quantity,
			ProductDescription: strings.TrimSpace(line.ProductDescription),
		})
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		plan, err := planReservation(ctx, tx, input.Items)
		if err != nil {
			return err
		}
		if _, err := plan.apply(ctx, tx, s.now().UTC()); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, order.OrderHeader); err != nil {
			return err
		}
		return tx.InsertOrderItems(ctx, order.Items)
	})
	if err != nil {
		if insertedKey {
			if delErr := s.idempotency.Delete(ctx, key); delErr != nil {
				s.logger.Warn("idempotency rollback", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		var subErr *SubmissionError
		if errors.As(err, &subErr) {
			s.observe("rejected")
			s.logger.Info("order rejected", slog.String("party", order.PartyName), slog.Int("failures", len(subErr.Failures)))
			return Order{}, err
		}
		s.observe("error")
		return Order{}, wrapStore("submit order", err)
	}
	invalidate(ctx, s.cache, s.logger)
	s.observe("accepted")
	s.logger.Info("order submitted",
		slog.String("order_id", order.ID),
		slog.String("party", order.PartyName),
		slog.String("gadi_no", order.GadiNo),
		slog.Int("items", len(order.Items)))
	return order, nil
}

// SubmitPastedOrder parses a pasted order message and submits it.
func (s *OrderService) SubmitPastedOrder(ctx context.Context, text, orderDate, idempotencyKey string) (PastedOrderResult, error) {
	parsed := paste.ParseOrder(text)
	result := PastedOrderResult{ParsedTotal: parsed.Total, ItemsParsed: len(parsed.Items), PartyDetected: parsed.PartyName != ""}
	if len(parsed.Rejected) > 0 {
		bad := parsed.Rejected[0]
		return result, fmt.Errorf("%w: lot %s quantity %s out of range", ErrInvalidQuantity, bad.LotNo, bad.Quantity)
	}
	if len(parsed.Items) == 0 {
		return result, ErrEmptyOrder
	}
	input := SubmitInput{
		PartyName:      parsed.PartyName,
		GadiNo:         parsed.GadiNo,
		OrderDate:      orderDate,
		IdempotencyKey: idempotencyKey,
	}
	for _, item := range parsed.Items {
		input.Items = append(input.Items, LineRequest{LotNo: item.LotNo, Quantity: item.Quantity, ProductDescription: item.ProductDescription})
	}
	order, err := s.SubmitOrder(ctx, input)
	if err != nil {
		return result, err
	}
	result.Order = order
	result.TotalMatches = parsed.TotalMatches()
	if !result.TotalMatches {
		s.logger.Warn("pasted order total mismatch", slog.String("order_id", order.ID), slog.Int64("items_total", parsed.ItemsTotal()))
	}
	return result, nil
}

// ListOrders returns every order header, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]OrderHeader, error) {
	headers, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, wrapStore("list orders", err)
	}
	sort.SliceStable(headers, func(i, j int) bool {
		if !headers[i].OrderDate.Equal(headers[j].OrderDate) {
			return headers[i].OrderDate.After(headers[j].OrderDate)
		}
		return headers[i].ID > headers[j].ID
	})
	return headers, nil
}

// ListItems returns the items of an order in insertion order.
func (s *OrderService) ListItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, wrapStore("get order", err)
	}
	items, err := s.store.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, wrapStore("list order items", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].LineNo < items[j].LineNo })
	return items, nil
}

// GetOrder returns a header together with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	header, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, wrapStore("get order", err)
	}
	items, err := s.ListItems(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	return Order{OrderHeader: header, Items: items}, nil
}

func (s *OrderService) observe(result string) {
	if s.metrics != nil {
		s.metrics.OrderSubmission(result)
	}
}
