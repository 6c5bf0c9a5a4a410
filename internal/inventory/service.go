package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ServiceConfig groups optional collaborators shared by the ledger and order services.
type ServiceConfig struct {
	Logger  *slog.Logger
	Cache   ReportCache
	Metrics MetricsRecorder
	Now     func() time.Time
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// LedgerService maintains stock balances per lot.
type LedgerService struct {
	store   Store
	cache   ReportCache
	metrics MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
	reports singleflight.Group
}

// NewLedgerService builds LedgerService.
func NewLedgerService(store Store, cfg ServiceConfig) *LedgerService {
	cfg = cfg.withDefaults()
	return &LedgerService{store: store, cache: cfg.Cache, metrics: cfg.Metrics, logger: cfg.Logger, now: cfg.Now}
}

// Get returns the stock record for lotNo.
func (s *LedgerService) Get(ctx context.Context, lotNo string) (StockRecord, error) {
	lotNo = normaliseLot(lotNo)
	if lotNo == "" {
		return StockRecord{}, ErrLotRequired
	}
	rec, err := s.store.GetStock(ctx, lotNo)
	if err != nil {
		return StockRecord{}, wrapStore("get stock", err)
	}
	return rec, nil
}

// Increment adds delta to a lot, creating it when absent. The description is overwritten.
func (s *LedgerService) Increment(ctx context.Context, lotNo, description string, delta int64) (StockRecord, error) {
	lotNo = normaliseLot(lotNo)
	if lotNo == "" {
		return StockRecord{}, ErrLotRequired
	}
	if delta <= 0 {
		return StockRecord{}, fmt.Errorf("%w: increment must be positive, got %d", ErrInvalidQuantity, delta)
	}
	var out StockRecord
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		rec, err := tx.GetStockForUpdate(ctx, lotNo)
		if err != nil && !errors.Is(err, ErrLotNotFound) {
			return err
		}
		if errors.Is(err, ErrLotNotFound) {
			rec = StockRecord{LotNo: lotNo}
		}
		rec.Quantity += delta
		rec.ProductDescription = strings.TrimSpace(description)
		rec.UpdatedAt = s.now().UTC()
		if err := tx.PutStock(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return StockRecord{}, wrapStore("increment stock", err)
	}
	s.afterMutation(ctx, "increment")
	s.logger.Info("stock incremented", slog.String("lot_no", lotNo), slog.Int64("delta", delta), slog.Int64("quantity", out.Quantity))
	return out, nil
}

// SetBalance overwrites the quantity and description of a lot, creating it when absent.
func (s *LedgerService) SetBalance(ctx context.Context, lotNo, description string, quantity int64) (StockRecord, error) {
	lotNo = normaliseLot(lotNo)
	if lotNo == "" {
		return StockRecord{}, ErrLotRequired
	}
	if quantity < 0 {
		return StockRecord{}, fmt.Errorf("%w: balance must be >= 0, got %d", ErrInvalidQuantity, quantity)
	}
	rec := StockRecord{LotNo: lotNo, ProductDescription: strings.TrimSpace(description), Quantity: quantity, UpdatedAt: s.now().UTC()}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		if _, err := tx.GetStockForUpdate(ctx, lotNo); err != nil && !errors.Is(err, ErrLotNotFound) {
			return err
		}
		return tx.PutStock(ctx, rec)
	})
	if err != nil {
		return StockRecord{}, wrapStore("set balance", err)
	}
	s.afterMutation(ctx, "set_balance")
	return rec, nil
}

// Reserve deducts quantity from a lot. It fails with ErrLotNotFound or
// *InsufficientStockError without touching the ledger.
func (s *LedgerService) Reserve(ctx context.Context, lotNo string, quantity int64) (StockRecord, error) {
	lotNo = normaliseLot(lotNo)
	if lotNo == "" {
		return StockRecord{}, ErrLotRequired
	}
	if quantity <= 0 {
		return StockRecord{}, fmt.Errorf("%w: reservation must be positive, got %d", ErrInvalidQuantity, quantity)
	}
	var out StockRecord
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		plan, err := planReservation(ctx, tx, []LineRequest{{LotNo: lotNo, Quantity: quantity}})
		if err != nil {
			var subErr *SubmissionError
			if errors.As(err, &subErr) && len(subErr.Failures) == 1 {
				return subErr.Failures[0].Err
			}
			return err
		}
		records, err := plan.apply(ctx, tx, s.now().UTC())
		if err != nil {
			return err
		}
		out = records[0]
		return nil
	})
	if err != nil {
		return StockRecord{}, wrapStore("reserve stock", err)
	}
	s.afterMutation(ctx, "reserve")
	return out, nil
}

// ListAll returns every stock record ordered by lot number.
func (s *LedgerService) ListAll(ctx context.Context) ([]StockRecord, error) {
	load := func(ctx context.Context) (any, error) {
		records, err := s.store.ListStock(ctx)
		if err != nil {
			return nil, err
		}
		sortStock(records)
		return records, nil
	}
	if s.cache == nil {
		v, err := load(ctx)
		if err != nil {
			return nil, wrapStore("list stock", err)
		}
		return v.([]StockRecord), nil
	}
	key, err := s.cache.BuildKey(ctx, "inventory", "stock_report")
	if err != nil {
		s.logger.Warn("stock report cache key", slog.Any("error", err))
		v, err := load(ctx)
		if err != nil {
			return nil, wrapStore("list stock", err)
		}
		return v.([]StockRecord), nil
	}
	v, err, _ := s.reports.Do(key, func() (any, error) {
		var records []StockRecord
		if err := s.cache.FetchJSON(ctx, key, &records, load); err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		return nil, wrapStore("list stock", err)
	}
	records := v.([]StockRecord)
	out := make([]StockRecord, len(records))
	copy(out, records)
	return out, nil
}

// ApplyStockDump records every entry and sets the derived balance of its lot.
func (s *LedgerService) ApplyStockDump(ctx context.Context, entries []StockEntry) ([]StockRecord, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	now := s.now().UTC()
	prepared := make([]StockEntry, 0, len(entries))
	for i, e := range entries {
		e.LotNo = normaliseLot(e.LotNo)
		if e.LotNo == "" {
			return nil, fmt.Errorf("entry %d: %w", i+1, ErrLotRequired)
		}
		if e.BalanceQuantity < 0 {
			return nil, fmt.Errorf("entry %d (lot %s): %w: balance %d", i+1, e.LotNo, ErrInvalidQuantity, e.BalanceQuantity)
		}
		e.ImportedAt = now
		prepared = append(prepared, e)
	}
	// later lines for the same lot win, matching the order the dump was pasted in
	byLot := make(map[string]StockRecord, len(prepared))
	order := make([]string, 0, len(prepared))
	for _, e := range prepared {
		if _, seen := byLot[e.LotNo]; !seen {
			order = append(order, e.LotNo)
		}
		byLot[e.LotNo] = StockRecord{LotNo: e.LotNo, ProductDescription: e.Description(), Quantity: e.BalanceQuantity, UpdatedAt: now}
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		if err := tx.InsertStockEntries(ctx, prepared); err != nil {
			return err
		}
		for _, lot := range order {
			if _, err := tx.GetStockForUpdate(ctx, lot); err != nil && !errors.Is(err, ErrLotNotFound) {
				return err
			}
			if err := tx.PutStock(ctx, byLot[lot]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStore("apply stock dump", err)
	}
	s.afterMutation(ctx, "stock_dump")
	s.logger.Info("stock dump applied", slog.Int("entries", len(prepared)), slog.Int("lots", len(order)))
	records := make([]StockRecord, 0, len(order))
	for _, lot := range order {
		records = append(records, byLot[lot])
	}
	return records, nil
}

// ListStockEntries returns the most recent imported stock entries.
func (s *LedgerService) ListStockEntries(ctx context.Context, limit int) ([]StockEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	entries, err := s.store.ListStockEntries(ctx, limit)
	if err != nil {
		return nil, wrapStore("list stock entries", err)
	}
	return entries, nil
}

// WarmReport rebuilds the cached stock report.
func (s *LedgerService) WarmReport(ctx context.Context) (int, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *LedgerService) afterMutation(ctx context.Context, op string) {
	invalidate(ctx, s.cache, s.logger)
	if s.metrics != nil {
		s.metrics.LedgerMutation(op)
	}
}

func invalidate(ctx context.Context, cache ReportCache, logger *slog.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Bump(ctx); err != nil {
		logger.Warn("stock report cache bump", slog.Any("error", err))
	}
}

// reservation is the outcome of the check phase: new balances for every touched lot.
type reservation struct {
	lots     []string
	balances map[string]StockRecord
}

// planReservation checks every line against a locked snapshot of the ledger
// without mutating it. Lines for the same lot draw from the same balance.
// All failures are collected into a *SubmissionError.
func planReservation(ctx context.Context, tx TxStore, lines []LineRequest) (*reservation, error) {
	plan := &reservation{balances: make(map[string]StockRecord)}
	missing := make(map[string]bool)
	var failures []LineFailure
	for i, line := range lines {
		lot := normaliseLot(line.LotNo)
		failure := LineFailure{Line: i + 1, LotNo: lot, Requested: line.Quantity}
		if lot == "" {
			failure.Err = ErrLotRequired
			failure.Reason = "lot number required"
			failures = append(failures, failure)
			continue
		}
		if line.Quantity <= 0 {
			failure.Err = fmt.Errorf("%w: %d", ErrInvalidQuantity, line.Quantity)
			failure.Reason = "quantity must be positive"
			failures = append(failures, failure)
			continue
		}
		rec, known := plan.balances[lot]
		if !known && !missing[lot] {
			got, err := tx.GetStockForUpdate(ctx, lot)
			switch {
			case errors.Is(err, ErrLotNotFound):
				missing[lot] = true
			case err != nil:
				return nil, err
			default:
				rec, known = got, true
				plan.balances[lot] = rec
				plan.lots = append(plan.lots, lot)
			}
		}
		if !known {
			failure.Err = fmt.Errorf("%w: %s", ErrLotNotFound, lot)
			failure.Reason = "lot not found"
			failures = append(failures, failure)
			continue
		}
		if rec.Quantity < line.Quantity {
			failure.Available = rec.Quantity
			failure.Err = &InsufficientStockError{LotNo: lot, Requested: line.Quantity, Available: rec.Quantity}
			failure.Reason = fmt.Sprintf("insufficient stock, available %d", rec.Quantity)
			failures = append(failures, failure)
			continue
		}
		rec.Quantity -= line.Quantity
		plan.balances[lot] = rec
	}
	if len(failures) > 0 {
		return nil, &SubmissionError{Failures: failures}
	}
	return plan, nil
}

// apply writes the planned balances and returns them in first-seen lot order.
func (p *reservation) apply(ctx context.Context, tx TxStore, now time.Time) ([]StockRecord, error) {
	out := make([]StockRecord, 0, len(p.lots))
	for _, lot := range p.lots {
		rec := p.balances[lot]
		if rec.Quantity < 0 {
			return nil, ErrNegativeStock
		}
		rec.UpdatedAt = now
		if err := tx.PutStock(ctx, rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func normaliseLot(lotNo string) string {
	return strings.TrimSpace(lotNo)
}

func sortStock(records []StockRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].LotNo < records[j].LotNo })
}
