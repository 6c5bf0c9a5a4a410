// Package redisdoc stores the ledger and order log as JSON documents in Redis.
//
// Layout, with <ns> the configured namespace:
//
//	<ns>:stock:<lot>          stock record
//	<ns>:stock:index          zset of lot numbers (score 0, lexical order)
//	<ns>:orders:<id>          order header with embedded items
//	<ns>:orders:index         zset of order ids scored by order date
//	<ns>:stock_entries        list of imported stock report lines, oldest first
//	<ns>:stock_entries:seq    last assigned stock entry id
//
// Units of work use optimistic concurrency: every key read is WATCHed and the
// buffered writes are sent in MULTI/EXEC. A conflicting commit replays fn.
package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lotledger/lotledger/internal/inventory"
)

const defaultMaxRetries = 10

// ErrConflict is returned when a unit of work keeps losing optimistic races.
var ErrConflict = errors.New("store/redisdoc: too many concurrent modifications")

// Store implements inventory.Store on a Redis client.
type Store struct {
	client     *redis.Client
	ns         string
	maxRetries int
}

// Option customises Store.
type Option func(*Store)

// WithMaxRetries bounds the replays of a conflicting unit of work.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New constructs Store. An empty namespace defaults to "lotledger".
func New(client *redis.Client, namespace string, opts ...Option) *Store {
	if namespace == "" {
		namespace = "lotledger"
	}
	s := &Store{client: client, ns: namespace, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// orderDoc is the persisted form of an order.
type orderDoc struct {
	inventory.OrderHeader
	Items []inventory.OrderItem `json:"items"`
}

func (s *Store) stockKey(lot string) string { return s.ns + ":stock:" + lot }
func (s *Store) stockIndex() string        { return s.ns + ":stock:index" }
func (s *Store) orderKey(id string) string  { return s.ns + ":orders:" + id }
func (s *Store) orderIndex() string         { return s.ns + ":orders:index" }
func (s *Store) entriesKey() string         { return s.ns + ":stock_entries" }
func (s *Store) entriesSeq() string         { return s.ns + ":stock_entries:seq" }

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.TxStore) error) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := newTxStore(s, rtx)
			if err := fn(ctx, tx); err != nil {
				return err
			}
			return tx.commit(ctx)
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *Store) GetStock(ctx context.Context, lotNo string) (inventory.StockRecord, error) {
	return getStock(ctx, s.client, s.stockKey(lotNo), lotNo)
}

func (s *Store) ListStock(ctx context.Context) ([]inventory.StockRecord, error) {
	lots, err := s.client.ZRange(ctx, s.stockIndex(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return []inventory.StockRecord{}, nil
	}
	keys := make([]string, len(lots))
	for i, lot := range lots {
		keys[i] = s.stockKey(lot)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]inventory.StockRecord, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec inventory.StockRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("store/redisdoc: decode stock: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (inventory.OrderHeader, error) {
	doc, err := getOrder(ctx, s.client, s.orderKey(id), id)
	if err != nil {
		return inventory.OrderHeader{}, err
	}
	return doc.OrderHeader, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]inventory.OrderHeader, error) {
	ids, err := s.client.ZRevRange(ctx, s.orderIndex(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]inventory.OrderHeader, 0, len(ids))
	for _, id := range ids {
		doc, err := getOrder(ctx, s.client, s.orderKey(id), id)
		if errors.Is(err, inventory.ErrOrderNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc.OrderHeader)
	}
	return out, nil
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]inventory.OrderItem, error) {
	doc, err := getOrder(ctx, s.client, s.orderKey(orderID), orderID)
	if errors.Is(err, inventory.ErrOrderNotFound) {
		return []inventory.OrderItem{}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

func (s *Store) ListStockEntries(ctx context.Context, limit int) ([]inventory.StockEntry, error) {
	raws, err := s.client.LRange(ctx, s.entriesKey(), int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]inventory.StockEntry, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var e inventory.StockEntry
		if err := json.Unmarshal([]byte(raws[i]), &e); err != nil {
			return nil, fmt.Errorf("store/redisdoc: decode stock entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getStock(ctx context.Context, c getter, key, lotNo string) (inventory.StockRecord, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return inventory.StockRecord{}, fmt.Errorf("%w: %s", inventory.ErrLotNotFound, lotNo)
	}
	if err != nil {
		return inventory.StockRecord{}, err
	}
	var rec inventory.StockRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return inventory.StockRecord{}, fmt.Errorf("store/redisdoc: decode stock %s: %w", lotNo, err)
	}
	return rec, nil
}

func getOrder(ctx context.Context, c getter, key, id string) (orderDoc, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return orderDoc{}, fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, id)
	}
	if err != nil {
		return orderDoc{}, err
	}
	var doc orderDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return orderDoc{}, fmt.Errorf("store/redisdoc: decode order %s: %w", id, err)
	}
	return doc, nil
}

func orderScore(t time.Time) float64 {
	return float64(t.Unix())
}
