package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StockRecord is the current balance of a single lot.
type StockRecord struct {
	LotNo              string    `json:"lot_no"`
	ProductDescription string    `json:"product_description"`
	Quantity           int64     `json:"quantity"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// OrderHeader identifies a submitted order.
type OrderHeader struct {
	ID        string    `json:"id"`
	PartyName string    `json:"party_name"`
	GadiNo    string    `json:"gadi_no"`
	OrderDate time.Time `json:"order_date"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	OrderID            string `json:"order_id"`
	LineNo             int    `json:"line_no"`
	LotNo              string `json:"lot_no"`
	Quantity           int64  `json:"quantity"`
	ProductDescription string `json:"product_description"`
}

// Order bundles a header with its items.
type Order struct {
	OrderHeader
	Items []OrderItem `json:"items"`
}

// TotalQuantity sums the quantity of every item.
func (o Order) TotalQuantity() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// StockEntry is one line of a pasted stock report, kept verbatim.
type StockEntry struct {
	ID              int64     `json:"id"`
	InwardDate      string    `json:"inward_date"`
	StorageArea     string    `json:"storage_area"`
	LotNo           string    `json:"lot_no"`
	ProductName     string    `json:"product_name"`
	BrandName       string    `json:"brand_name"`
	InQuantity      int64     `json:"in_quantity"`
	OutQuantity     int64     `json:"out_quantity"`
	BalanceQuantity int64     `json:"balance_quantity"`
	ImportedAt      time.Time `json:"imported_at"`
}

// Description builds the ledger description derived from a stock entry.
func (e StockEntry) Description() string {
	product := strings.TrimSpace(e.ProductName)
	brand := strings.TrimSpace(e.BrandName)
	switch {
	case brand == "":
		return product
	case product == "":
		return brand
	}
	return product + " - " + brand
}

// LineRequest is an order line awaiting stock reservation.
type LineRequest struct {
	LotNo              string `json:"lot_no" validate:"required,max=64"`
	Quantity           int64  `json:"quantity" validate:"required,gt=0"`
	ProductDescription string `json:"product_description" validate:"max=255"`
}

// OrderDateLayout is the layout accepted for manually entered order dates.
const OrderDateLayout = "2006-01-02 15:04"

// ParseOrderDate accepts OrderDateLayout, RFC3339 or a plain date. Empty input yields now.
func ParseOrderDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now.UTC().Truncate(time.Minute), nil
	}
	for _, layout := range []string{OrderDateLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidOrderDate, value)
}

var (
	// ErrLotNotFound indicates no stock record exists for the lot.
	ErrLotNotFound = errors.New("inventory: lot not found")
	// ErrOrderNotFound indicates the order id is unknown.
	ErrOrderNotFound = errors.New("inventory: order not found")
	// ErrInvalidQuantity indicates a non-positive movement or a negative balance.
	ErrInvalidQuantity = errors.New("inventory: invalid quantity")
	// ErrLotRequired indicates an empty lot number.
	ErrLotRequired = errors.New("inventory: lot number required")
	// ErrEmptyOrder indicates an order without items.
	ErrEmptyOrder = errors.New("inventory: order has no items")
	// ErrInvalidOrderDate indicates an unparseable order date.
	ErrInvalidOrderDate = errors.New("inventory: invalid order date")
	// ErrDuplicateSubmission indicates an idempotency key was already used.
	ErrDuplicateSubmission = errors.New("inventory: submission already processed")
	// ErrNegativeStock is the invariant guard used by store adapters.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
)

// InsufficientStockError reports a reservation larger than the available quantity.
type InsufficientStockError struct {
	LotNo     string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for lot %s: requested %d, available %d", e.LotNo, e.Requested, e.Available)
}

// LineFailure describes why one order line could not be reserved.
type LineFailure struct {
	Line      int    `json:"line"`
	LotNo     string `json:"lot_no"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

// SubmissionError aggregates every failing line of a rejected order.
type SubmissionError struct {
	Failures []LineFailure
}

func (e *SubmissionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("line %d (lot %s): %s", f.Line, f.LotNo, f.Reason))
	}
	return "inventory: order rejected: " + strings.Join(parts, "; ")
}

// Unwrap exposes the per-line causes to errors.Is and errors.As.
func (e *SubmissionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// StoreError wraps a failure reported by the backing store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("inventory: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// wrapStore tags non-domain errors as store failures.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *StoreError
	var shortErr *InsufficientStockError
	var subErr *SubmissionError
	switch {
	case errors.As(err, &storeErr), errors.As(err, &shortErr), errors.As(err, &subErr):
		return err
	case errors.Is(err, ErrLotNotFound), errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrNegativeStock), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrLotRequired), errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInvalidOrderDate), errors.Is(err, ErrDuplicateSubmission):
		return err
	}
	return &StoreError{Op: op, Err: err}
}
