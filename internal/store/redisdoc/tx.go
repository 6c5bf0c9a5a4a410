package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lotledger/lotledger/internal/inventory"
)

// txStore buffers writes until commit. Reads consult the buffer first, then
// Redis, watching every key they touch.
type txStore struct {
	store   *Store
	rtx     *redis.Tx
	stock   map[string]inventory.StockRecord
	lots    []string
	orders  map[string]*orderDoc
	ids     []string
	entries []inventory.StockEntry
	watched map[string]bool
}

func newTxStore(s *Store, rtx *redis.Tx) *txStore {
	return &txStore{
		store:   s,
		rtx:     rtx,
		stock:   make(map[string]inventory.StockRecord),
		orders:  make(map[string]*orderDoc),
		watched: make(map[string]bool),
	}
}

func (t *txStore) watch(ctx context.Context, key string) error {
	if t.watched[key] {
		return nil
	}
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return err
	}
	t.watched[key] = true
	return nil
}

func (t *txStore) GetStockForUpdate(ctx context.Context, lotNo string) (inventory.StockRecord, error) {
	if rec, ok := t.stock[lotNo]; ok {
		return rec, nil
	}
	key := t.store.stockKey(lotNo)
	if err := t.watch(ctx, key); err != nil {
		return inventory.StockRecord{}, err
	}
	return getStock(ctx, t.rtx, key, lotNo)
}

func (t *txStore) PutStock(ctx context.Context, rec inventory.StockRecord) error {
	if rec.Quantity < 0 {
		return inventory.ErrNegativeStock
	}
	if err := t.watch(ctx, t.store.stockKey(rec.LotNo)); err != nil {
		return err
	}
	if _, ok := t.stock[rec.LotNo]; !ok {
		t.lots = append(t.lots, rec.LotNo)
	}
	t.stock[rec.LotNo] = rec
	return nil
}

func (t *txStore) loadOrder(ctx context.Context, id string) (*orderDoc, error) {
	if doc, ok := t.orders[id]; ok {
		return doc, nil
	}
	key := t.store.orderKey(id)
	if err := t.watch(ctx, key); err != nil {
		return nil, err
	}
	doc, err := getOrder(ctx, t.rtx, key, id)
	if err != nil {
		return nil, err
	}
	t.orders[id] = &doc
	t.ids = append(t.ids, id)
	return &doc, nil
}

func (t *txStore) InsertOrder(ctx context.Context, h inventory.OrderHeader) error {
	_, err := t.loadOrder(ctx, h.ID)
	if err == nil {
		return fmt.Errorf("store/redisdoc: order %s already exists", h.ID)
	}
	if !errors.Is(err, inventory.ErrOrderNotFound) {
		return err
	}
	t.orders[h.ID] = &orderDoc{OrderHeader: h, Items: []inventory.OrderItem{}}
	t.ids = append(t.ids, h.ID)
	return nil
}

func (t *txStore) NextLineNo(ctx context.Context, orderID string) (int, error) {
	doc, err := t.loadOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	next := 1
	for _, item := range doc.Items {
		if item.LineNo >= next {
			next = item.LineNo + 1
		}
	}
	return next, nil
}

func (t *txStore) InsertOrderItems(ctx context.Context, items []inventory.OrderItem) error {
	for _, item := range items {
		doc, err := t.loadOrder(ctx, item.OrderID)
		if err != nil {
			return err
		}
		doc.Items = append(doc.Items, item)
	}
	return nil
}

func (t *txStore) InsertStockEntries(ctx context.Context, entries []inventory.StockEntry) error {
	if err := t.watch(ctx, t.store.entriesSeq()); err != nil {
		return err
	}
	t.entries = append(t.entries, entries...)
	return nil
}

func (t *txStore) commit(ctx context.Context) error {
	var seq int64
	if len(t.entries) > 0 {
		current, err := t.rtx.Get(ctx, t.store.entriesSeq()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		seq = current
	}

	stock := make([][]byte, 0, len(t.lots))
	for _, lot := range t.lots {
		raw, err := json.Marshal(t.stock[lot])
		if err != nil {
			return err
		}
		stock = append(stock, raw)
	}
	orders := make([][]byte, 0, len(t.ids))
	for _, id := range t.ids {
		raw, err := json.Marshal(t.orders[id])
		if err != nil {
			return err
		}
		orders = append(orders, raw)
	}
	entries := make([]any, 0, len(t.entries))
	for _, e := range t.entries {
		seq++
		e.ID = seq
		raw, err := json.Marshal(e)
		if err != nil {
			return err
		}
		entries = append(entries, raw)
	}

	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, lot := range t.lots {
			pipe.Set(ctx, t.store.stockKey(lot), stock[i], 0)
			pipe.ZAdd(ctx, t.store.stockIndex(), redis.Z{Score: 0, Member: lot})
		}
		for i, id := range t.ids {
			pipe.Set(ctx, t.store.orderKey(id), orders[i], 0)
			pipe.ZAdd(ctx, t.store.orderIndex(), redis.Z{Score: orderScore(t.orders[id].OrderDate), Member: id})
		}
		if len(entries) > 0 {
			pipe.RPush(ctx, t.store.entriesKey(), entries...)
			pipe.Set(ctx, t.store.entriesSeq(), seq, 0)
		}
		return nil
	})
	return err
}
