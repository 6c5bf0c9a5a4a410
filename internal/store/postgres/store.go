// Package postgres persists the ledger and order log in PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotledger/lotledger/internal/inventory"
	"github.com/lotledger/lotledger/internal/platform/db"
)

// Store implements inventory.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type txStore struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.TxStore) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

const stockColumns = `lot_no, product_description, quantity, updated_at`

func (s *Store) GetStock(ctx context.Context, lotNo string) (inventory.StockRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock WHERE lot_no = $1`, lotNo)
	return scanStock(row, lotNo)
}

func (s *Store) ListStock(ctx context.Context) ([]inventory.StockRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+stockColumns+` FROM stock ORDER BY lot_no`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.StockRecord, error) {
		var rec inventory.StockRecord
		err := row.Scan(&rec.LotNo, &rec.ProductDescription, &rec.Quantity, &rec.UpdatedAt)
		return rec, err
	})
}

func (s *Store) GetOrder(ctx context.Context, id string) (inventory.OrderHeader, error) {
	if _, err := uuid.Parse(id); err != nil {
		return inventory.OrderHeader{}, fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, id)
	}
	var h inventory.OrderHeader
	err := s.pool.QueryRow(ctx, `SELECT id::text, party_name, gadi_no, order_date FROM orders WHERE id = $1`, id).
		Scan(&h.ID, &h.PartyName, &h.GadiNo, &h.OrderDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.OrderHeader{}, fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, id)
	}
	if err != nil {
		return inventory.OrderHeader{}, err
	}
	h.OrderDate = h.OrderDate.UTC()
	return h, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]inventory.OrderHeader, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, party_name, gadi_no, order_date FROM orders ORDER BY order_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.OrderHeader, error) {
		var h inventory.OrderHeader
		err := row.Scan(&h.ID, &h.PartyName, &h.GadiNo, &h.OrderDate)
		h.OrderDate = h.OrderDate.UTC()
		return h, err
	})
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]inventory.OrderItem, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT order_id::text, line_no, lot_no, quantity, product_description
		FROM order_items WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.OrderItem, error) {
		var item inventory.OrderItem
		err := row.Scan(&item.OrderID, &item.LineNo, &item.LotNo, &item.Quantity, &item.ProductDescription)
		return item, err
	})
}

func (s *Store) ListStockEntries(ctx context.Context, limit int) ([]inventory.StockEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `SELECT id, inward_date, storage_area, lot_no, product_name, brand_name,
		in_quantity, out_quantity, balance_quantity, imported_at
		FROM stock_entries ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.StockEntry, error) {
		var e inventory.StockEntry
		err := row.Scan(&e.ID, &e.InwardDate, &e.StorageArea, &e.LotNo, &e.ProductName, &e.BrandName,
			&e.InQuantity, &e.OutQuantity, &e.BalanceQuantity, &e.ImportedAt)
		e.ImportedAt = e.ImportedAt.UTC()
		return e, err
	})
}

func (r *txStore) GetStockForUpdate(ctx context.Context, lotNo string) (inventory.StockRecord, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock WHERE lot_no = $1 FOR UPDATE`, lotNo)
	return scanStock(row, lotNo)
}

func (r *txStore) PutStock(ctx context.Context, rec inventory.StockRecord) error {
	if rec.Quantity < 0 {
		return inventory.ErrNegativeStock
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO stock (lot_no, product_description, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lot_no) DO UPDATE SET
			product_description = EXCLUDED.product_description,
			quantity = EXCLUDED.quantity,
			updated_at = EXCLUDED.updated_at`,
		rec.LotNo, rec.ProductDescription, rec.Quantity, rec.UpdatedAt)
	return err
}

func (r *txStore) InsertOrder(ctx context.Context, h inventory.OrderHeader) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO orders (id, party_name, gadi_no, order_date) VALUES ($1, $2, $3, $4)`,
		h.ID, h.PartyName, h.GadiNo, h.OrderDate)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("store/postgres: order %s already exists: %w", h.ID, err)
	}
	return err
}

func (r *txStore) NextLineNo(ctx context.Context, orderID string) (int, error) {
	notFound := fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, orderID)
	if _, err := uuid.Parse(orderID); err != nil {
		return 0, notFound
	}
	// lock the header so concurrent AddItem calls serialise on line numbers
	var id string
	err := r.tx.QueryRow(ctx, `SELECT id::text FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, notFound
	}
	if err != nil {
		return 0, err
	}
	var next int
	err = r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(line_no), 0) + 1 FROM order_items WHERE order_id = $1`, orderID).Scan(&next)
	return next, err
}

func (r *txStore) InsertOrderItems(ctx context.Context, items []inventory.OrderItem) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO order_items (order_id, line_no, lot_no, quantity, product_description)
			VALUES ($1, $2, $3, $4, $5)`, item.OrderID, item.LineNo, item.LotNo, item.Quantity, item.ProductDescription)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txStore) InsertStockEntries(ctx context.Context, entries []inventory.StockEntry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.InwardDate, e.StorageArea, e.LotNo, e.ProductName, e.BrandName,
			e.InQuantity, e.OutQuantity, e.BalanceQuantity, e.ImportedAt})
	}
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"stock_entries"},
		[]string{"inward_date", "storage_area", "lot_no", "product_name", "brand_name",
			"in_quantity", "out_quantity", "balance_quantity", "imported_at"},
		pgx.CopyFromRows(rows))
	return err
}

func scanStock(row pgx.Row, lotNo string) (inventory.StockRecord, error) {
	var rec inventory.StockRecord
	err := row.Scan(&rec.LotNo, &rec.ProductDescription, &rec.Quantity, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.StockRecord{}, fmt.Errorf("%w: %s", inventory.ErrLotNotFound, lotNo)
	}
	if err != nil {
		return inventory.StockRecord{}, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
