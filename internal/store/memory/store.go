// Package memory keeps the ledger and order log in process memory.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/lotledger/lotledger/internal/inventory"
)

type state struct {
	stock   map[string]inventory.StockRecord
	orders  map[string]inventory.OrderHeader
	items   map[string][]inventory.OrderItem
	entries []inventory.StockEntry
	entryID int64
}

func (s *state) clone() *state {
	out := &state{
		stock:   maps.Clone(s.stock),
		orders:  maps.Clone(s.orders),
		items:   make(map[string][]inventory.OrderItem, len(s.items)),
		entries: append([]inventory.StockEntry(nil), s.entries...),
		entryID: s.entryID,
	}
	for id, items := range s.items {
		out.items[id] = append([]inventory.OrderItem(nil), items...)
	}
	return out
}

// Store implements inventory.Store. Units of work run one at a time against a
// private copy that replaces the committed state only when fn succeeds.
type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *state
}

// New constructs an empty Store.
func New() *Store {
	return &Store{state: &state{
		stock:  make(map[string]inventory.StockRecord),
		orders: make(map[string]inventory.OrderHeader),
		items:  make(map[string][]inventory.OrderItem),
	}}
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.TxStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &txStore{state: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

func (s *Store) GetStock(_ context.Context, lotNo string) (inventory.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.stock[lotNo]
	if !ok {
		return inventory.StockRecord{}, fmt.Errorf("%w: %s", inventory.ErrLotNotFound, lotNo)
	}
	return rec, nil
}

func (s *Store) ListStock(_ context.Context) ([]inventory.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inventory.StockRecord, 0, len(s.state.stock))
	for _, rec := range s.state.stock {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotNo < out[j].LotNo })
	return out, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (inventory.OrderHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.state.orders[id]
	if !ok {
		return inventory.OrderHeader{}, fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, id)
	}
	return h, nil
}

func (s *Store) ListOrders(_ context.Context) ([]inventory.OrderHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inventory.OrderHeader, 0, len(s.state.orders))
	for _, h := range s.state.orders {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.After(out[j].OrderDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListOrderItems(_ context.Context, orderID string) ([]inventory.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]inventory.OrderItem(nil), s.state.items[orderID]...), nil
}

func (s *Store) ListStockEntries(_ context.Context, limit int) ([]inventory.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.state.entries
	out := make([]inventory.StockEntry, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

type txStore struct {
	state *state
}

func (t *txStore) GetStockForUpdate(_ context.Context, lotNo string) (inventory.StockRecord, error) {
	rec, ok := t.state.stock[lotNo]
	if !ok {
		return inventory.StockRecord{}, fmt.Errorf("%w: %s", inventory.ErrLotNotFound, lotNo)
	}
	return rec, nil
}

func (t *txStore) PutStock(_ context.Context, rec inventory.StockRecord) error {
	if rec.Quantity < 0 {
		return inventory.ErrNegativeStock
	}
	t.state.stock[rec.LotNo] = rec
	return nil
}

func (t *txStore) InsertOrder(_ context.Context, h inventory.OrderHeader) error {
	if _, exists := t.state.orders[h.ID]; exists {
		return fmt.Errorf("memory: order %s already exists", h.ID)
	}
	t.state.orders[h.ID] = h
	return nil
}

func (t *txStore) NextLineNo(_ context.Context, orderID string) (int, error) {
	if _, ok := t.state.orders[orderID]; !ok {
		return 0, fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, orderID)
	}
	next := 1
	for _, item := range t.state.items[orderID] {
		if item.LineNo >= next {
			next = item.LineNo + 1
		}
	}
	return next, nil
}

func (t *txStore) InsertOrderItems(_ context.Context, items []inventory.OrderItem) error {
	for _, item := range items {
		if _, ok := t.state.orders[item.OrderID]; !ok {
			return fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, item.OrderID)
		}
		t.state.items[item.OrderID] = append(t.state.items[item.OrderID], item)
	}
	return nil
}

func (t *txStore) InsertStockEntries(_ context.Context, entries []inventory.StockEntry) error {
	for _, e := range entries {
		t.state.entryID++
		e.ID = t.state.entryID
		t.state.entries = append(t.state.entries, e)
	}
	return nil
}
