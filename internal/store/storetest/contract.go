// Package storetest holds the behaviour every inventory.Store adapter must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/inventory"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) inventory.Store

var errAbort = errors.New("abort")

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	t.Run("absent lot", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetStock(ctx, "missing")
		require.ErrorIs(t, err, inventory.ErrLotNotFound)

		err = store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			_, err := tx.GetStockForUpdate(ctx, "missing")
			return err
		})
		require.ErrorIs(t, err, inventory.ErrLotNotFound)
	})

	t.Run("put and list stock", func(t *testing.T) {
		store := newStore(t)
		err := store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			for _, rec := range []inventory.StockRecord{
				{LotNo: "B2", ProductDescription: "dates", Quantity: 5, UpdatedAt: base},
				{LotNo: "A1", ProductDescription: "figs", Quantity: 7, UpdatedAt: base},
			} {
				if err := tx.PutStock(ctx, rec); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)

		err = store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			rec, err := tx.GetStockForUpdate(ctx, "A1")
			if err != nil {
				return err
			}
			rec.Quantity = 3
			rec.ProductDescription = "figs dried"
			return tx.PutStock(ctx, rec)
		})
		require.NoError(t, err)

		rec, err := store.GetStock(ctx, "A1")
		require.NoError(t, err)
		require.Equal(t, int64(3), rec.Quantity)
		require.Equal(t, "figs dried", rec.ProductDescription)
		require.WithinDuration(t, base, rec.UpdatedAt, time.Second)

		all, err := store.ListStock(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, "A1", all[0].LotNo)
		require.Equal(t, "B2", all[1].LotNo)
	})

	t.Run("failed unit of work persists nothing", func(t *testing.T) {
		store := newStore(t)
		err := store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			if err := tx.PutStock(ctx, inventory.StockRecord{LotNo: "X", Quantity: 1, UpdatedAt: base}); err != nil {
				return err
			}
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)
		_, err = store.GetStock(ctx, "X")
		require.ErrorIs(t, err, inventory.ErrLotNotFound)
	})

	t.Run("negative stock rejected", func(t *testing.T) {
		store := newStore(t)
		err := store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			return tx.PutStock(ctx, inventory.StockRecord{LotNo: "N", Quantity: -1, UpdatedAt: base})
		})
		require.ErrorIs(t, err, inventory.ErrNegativeStock)
	})

	t.Run("orders and items", func(t *testing.T) {
		store := newStore(t)
		older := inventory.OrderHeader{ID: uuid.NewString(), PartyName: "NS", GadiNo: "1234", OrderDate: base}
		newer := inventory.OrderHeader{ID: uuid.NewString(), PartyName: "KT", GadiNo: "99", OrderDate: base.Add(time.Hour)}
		err := store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			if err := tx.InsertOrder(ctx, older); err != nil {
				return err
			}
			if err := tx.InsertOrder(ctx, newer); err != nil {
				return err
			}
			return tx.InsertOrderItems(ctx, []inventory.OrderItem{
				{OrderID: older.ID, LineNo: 1, LotNo: "L1", Quantity: 2, ProductDescription: "first"},
				{OrderID: older.ID, LineNo: 2, LotNo: "L2", Quantity: 4, ProductDescription: "second"},
			})
		})
		require.NoError(t, err)

		got, err := store.GetOrder(ctx, older.ID)
		require.NoError(t, err)
		require.Equal(t, "NS", got.PartyName)
		require.Equal(t, "1234", got.GadiNo)
		require.True(t, base.Equal(got.OrderDate), "order date %s", got.OrderDate)

		headers, err := store.ListOrders(ctx)
		require.NoError(t, err)
		require.Len(t, headers, 2)
		require.Equal(t, newer.ID, headers[0].ID)
		require.Equal(t, older.ID, headers[1].ID)

		items, err := store.ListOrderItems(ctx, older.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.Equal(t, "L1", items[0].LotNo)
		require.Equal(t, 2, items[1].LineNo)
		require.Equal(t, int64(4), items[1].Quantity)

		empty, err := store.ListOrderItems(ctx, newer.ID)
		require.NoError(t, err)
		require.Empty(t, empty)

		err = store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			next, err := tx.NextLineNo(ctx, older.ID)
			if err != nil {
				return err
			}
			require.Equal(t, 3, next)
			first, err := tx.NextLineNo(ctx, newer.ID)
			if err != nil {
				return err
			}
			require.Equal(t, 1, first)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("unknown order", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		_, err := store.GetOrder(ctx, id)
		require.ErrorIs(t, err, inventory.ErrOrderNotFound)
		err = store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			_, err := tx.NextLineNo(ctx, id)
			return err
		})
		require.ErrorIs(t, err, inventory.ErrOrderNotFound)
	})

	t.Run("stock entries newest first", func(t *testing.T) {
		store := newStore(t)
		err := store.WithTx(ctx, func(ctx context.Context, tx inventory.TxStore) error {
			return tx.InsertStockEntries(ctx, []inventory.StockEntry{
				{InwardDate: "01-01-2024", StorageArea: "A", LotNo: "1", ProductName: "p1", BalanceQuantity: 1, ImportedAt: base},
				{InwardDate: "02-01-2024", StorageArea: "B", LotNo: "2", ProductName: "p2", BrandName: "b2", InQuantity: 9, OutQuantity: 7, BalanceQuantity: 2, ImportedAt: base},
				{InwardDate: "03-01-2024", StorageArea: "C", LotNo: "3", ProductName: "p3", BalanceQuantity: 3, ImportedAt: base},
			})
		})
		require.NoError(t, err)

		entries, err := store.ListStockEntries(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, "3", entries[0].LotNo)
		require.Equal(t, "2", entries[1].LotNo)
		require.Equal(t, "b2", entries[1].BrandName)
		require.Equal(t, int64(9), entries[1].InQuantity)
		require.Equal(t, int64(7), entries[1].OutQuantity)
		require.NotZero(t, entries[0].ID)
		require.NotEqual(t, entries[0].ID, entries[1].ID)
	})

	t.Run("rejected submission leaves ledger untouched", func(t *testing.T) {
		store := newStore(t)
		ledger := inventory.NewLedgerService(store, inventory.ServiceConfig{})
		orders := inventory.NewOrderService(store, nil, inventory.ServiceConfig{})

		_, err := ledger.SetBalance(ctx, "A", "dates", 10)
		require.NoError(t, err)
		_, err = ledger.SetBalance(ctx, "B", "figs", 1)
		require.NoError(t, err)

		_, err = orders.SubmitOrder(ctx, inventory.SubmitInput{
			PartyName: "NS",
			Items: []inventory.LineRequest{
				{LotNo: "A", Quantity: 4},
				{LotNo: "B", Quantity: 2},
			},
		})
		var subErr *inventory.SubmissionError
		require.ErrorAs(t, err, &subErr)

		a, err := ledger.Get(ctx, "A")
		require.NoError(t, err)
		require.Equal(t, int64(10), a.Quantity)
		headers, err := orders.ListOrders(ctx)
		require.NoError(t, err)
		require.Empty(t, headers)

		order, err := orders.SubmitOrder(ctx, inventory.SubmitInput{
			PartyName: "NS",
			Items: []inventory.LineRequest{
				{LotNo: "A", Quantity: 4},
				{LotNo: "A", Quantity: 6},
				{LotNo: "B", Quantity: 1},
			},
		})
		require.NoError(t, err)
		a, err = ledger.Get(ctx, "A")
		require.NoError(t, err)
		require.Zero(t, a.Quantity)

		items, err := orders.ListItems(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, items, 3)
	})
}
