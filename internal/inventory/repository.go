package inventory

import "context"

// Store is the storage capability shared by every backend adapter.
// Reads outside a transaction see committed state only.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetStock(ctx context.Context, lotNo string) (StockRecord, error)
	ListStock(ctx context.Context) ([]StockRecord, error)
	GetOrder(ctx context.Context, id string) (OrderHeader, error)
	ListOrders(ctx context.Context) ([]OrderHeader, error)
	ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	ListStockEntries(ctx context.Context, limit int) ([]StockEntry, error)
}

// TxStore exposes the operations available inside a unit of work.
// GetStockForUpdate must lock (or watch) the lot until commit.
type TxStore interface {
	GetStockForUpdate(ctx context.Context, lotNo string) (StockRecord, error)
	PutStock(ctx context.Context, rec StockRecord) error
	InsertOrder(ctx context.Context, header OrderHeader) error
	NextLineNo(ctx context.Context, orderID string) (int, error)
	InsertOrderItems(ctx context.Context, items []OrderItem) error
	InsertStockEntries(ctx context.Context, entries []StockEntry) error
}

// ReportCache caches the stock report between ledger mutations.
type ReportCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// IdempotencyPort guards against replayed order submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsRecorder receives domain counters.
type MetricsRecorder interface {
	LedgerMutation(op string)
	OrderSubmission(result string)
}
