package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/inventory"
	"github.com/lotledger/lotledger/internal/platform/cache"
	"github.com/lotledger/lotledger/internal/shared"
	"github.com/lotledger/lotledger/internal/store/memory"
)

var fixedNow = time.Date(2025, 2, 15, 9, 30, 0, 0, time.UTC)

type countingMetrics struct {
	mutations   map[string]int
	submissions map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{mutations: map[string]int{}, submissions: map[string]int{}}
}

func (m *countingMetrics) LedgerMutation(op string)      { m.mutations[op]++ }
func (m *countingMetrics) OrderSubmission(result string) { m.submissions[result]++ }

type fixture struct {
	store   *memory.Store
	ledger  *inventory.LedgerService
	orders  *inventory.OrderService
	metrics *countingMetrics
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.New()
	metrics := newCountingMetrics()
	cfg := inventory.ServiceConfig{
		Cache:   cache.NewReportCache(client, "test", time.Minute),
		Metrics: metrics,
		Now:     func() time.Time { return fixedNow },
	}
	return &fixture{
		store:   store,
		ledger:  inventory.NewLedgerService(store, cfg),
		orders:  inventory.NewOrderService(store, shared.NewIdempotencyStore(client, "test", time.Hour), cfg),
		metrics: metrics,
		redis:   mr,
	}
}

func TestIncrementCreatesAndAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.ledger.Increment(ctx, " 14016 ", "SAFAWI", 5)
	require.NoError(t, err)
	assert.Equal(t, "14016", rec.LotNo)
	assert.Equal(t, int64(5), rec.Quantity)
	assert.Equal(t, fixedNow, rec.UpdatedAt)

	rec, err = f.ledger.Increment(ctx, "14016", "SAFAWI A-1", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(8), rec.Quantity)
	assert.Equal(t, "SAFAWI A-1", rec.ProductDescription)
	assert.Equal(t, 2, f.metrics.mutations["increment"])
}

func TestIncrementRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Increment(ctx, "L1", "", 0)
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	_, err = f.ledger.Increment(ctx, "L1", "", -4)
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	_, err = f.ledger.Increment(ctx, "  ", "", 1)
	require.ErrorIs(t, err, inventory.ErrLotRequired)

	_, err = f.ledger.Get(ctx, "L1")
	require.ErrorIs(t, err, inventory.ErrLotNotFound)
}

func TestSetBalanceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.SetBalance(ctx, "L1", "figs", 40)
	require.NoError(t, err)
	second, err := f.ledger.SetBalance(ctx, "L1", "figs", 40)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	all, err := f.ledger.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(40), all[0].Quantity)

	_, err = f.ledger.SetBalance(ctx, "L1", "figs", -1)
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.SetBalance(ctx, "L1", "dates", 10)
	require.NoError(t, err)

	rec, err := f.ledger.Reserve(ctx, "L1", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), rec.Quantity)

	_, err = f.ledger.Reserve(ctx, "L1", 7)
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, int64(7), short.Requested)
	assert.Equal(t, int64(6), short.Available)

	rec, err = f.ledger.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), rec.Quantity)

	rec, err = f.ledger.Reserve(ctx, "L1", 6)
	require.NoError(t, err)
	assert.Zero(t, rec.Quantity)
}

func TestReserveAbsentLotCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, "ghost", 1)
	require.ErrorIs(t, err, inventory.ErrLotNotFound)
	_, err = f.ledger.Get(ctx, "ghost")
	require.ErrorIs(t, err, inventory.ErrLotNotFound)

	_, err = f.ledger.Reserve(ctx, "ghost", 0)
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestReserveRejectsBlankLot(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Reserve(context.Background(), "   ", 1)
	require.ErrorIs(t, err, inventory.ErrLotRequired)
	var storeErr *inventory.StoreError
	assert.False(t, errors.As(err, &storeErr))
}

func TestQuantityNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ops := []func() error{
		func() error { _, err := f.ledger.Increment(ctx, "A", "", 3); return err },
		func() error { _, err := f.ledger.Reserve(ctx, "A", 5); return err },
		func() error { _, err := f.ledger.Reserve(ctx, "A", 2); return err },
		func() error { _, err := f.ledger.SetBalance(ctx, "A", "", -2); return err },
		func() error { _, err := f.ledger.Reserve(ctx, "A", 2); return err },
		func() error { _, err := f.ledger.SetBalance(ctx, "A", "", 1); return err },
		func() error { _, err := f.ledger.Reserve(ctx, "A", 1); return err },
		func() error { _, err := f.ledger.Reserve(ctx, "A", 1); return err },
	}
	for _, op := range ops {
		_ = op()
		rec, err := f.ledger.Get(ctx, "A")
		require.NoError(t, err)
		require.GreaterOrEqual(t, rec.Quantity, int64(0))
	}
}

func TestListAllSortedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, lot := range []string{"C", "A", "B"} {
		_, err := f.ledger.Increment(ctx, lot, "x", 1)
		require.NoError(t, err)
	}

	all, err := f.ledger.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{all[0].LotNo, all[1].LotNo, all[2].LotNo})

	_, err = f.ledger.Reserve(ctx, "B", 1)
	require.NoError(t, err)
	all, err = f.ledger.ListAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, all[1].Quantity)

	count, err := f.ledger.WarmReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestImportStockTextDerivesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := "InwardDate\tStorageArea\tLotNo\tProductName\tBrandName\tInQuantity\tOutQuantity\tBalanceQuantity\n" +
		"15/02/2025\tCS-20\t14393\tWET DATES BOX 5 KG (imp)\tAJWA (PREMIUM)\t494\t282\t212\n" +
		"15/02/2025\tCS-21\t14394\tDATES\t\t10\tten\t0\n"

	result, err := f.ledger.ImportStockText(ctx, text)
	require.NoError(t, err)
	assert.True(t, result.HeaderSkipped)
	assert.Equal(t, 1, result.Entries)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 3, result.Skipped[0].Line)

	rec, err := f.ledger.Get(ctx, "14393")
	require.NoError(t, err)
	assert.Equal(t, int64(212), rec.Quantity)
	assert.Equal(t, "WET DATES BOX 5 KG (imp) - AJWA (PREMIUM)", rec.ProductDescription)

	entries, err := f.ledger.ListStockEntries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(494), entries[0].InQuantity)
	assert.Equal(t, fixedNow, entries[0].ImportedAt)
}

func TestApplyStockDumpLastLineWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.SetBalance(ctx, "7", "old", 99)
	require.NoError(t, err)

	records, err := f.ledger.ApplyStockDump(ctx, []inventory.StockEntry{
		{LotNo: "7", ProductName: "figs", BalanceQuantity: 5},
		{LotNo: "8", BrandName: "brand only", BalanceQuantity: 1},
		{LotNo: "7", ProductName: "figs", BrandName: "TURKISH", BalanceQuantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec, err := f.ledger.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Quantity)
	assert.Equal(t, "figs - TURKISH", rec.ProductDescription)
	rec, err = f.ledger.Get(ctx, "8")
	require.NoError(t, err)
	assert.Equal(t, "brand only", rec.ProductDescription)

	_, err = f.ledger.ApplyStockDump(ctx, []inventory.StockEntry{{LotNo: "9", BalanceQuantity: -1}})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestSubmitOrderTwoPhaseRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.SetBalance(ctx, "14016", "SAFAWI", 5)
	require.NoError(t, err)
	_, err = f.ledger.SetBalance(ctx, "14391", "SAFAWI SUPER", 1)
	require.NoError(t, err)

	_, err = f.orders.SubmitOrder(ctx, inventory.SubmitInput{
		PartyName: "NS",
		GadiNo:    "MH 05 EA 9834",
		Items: []inventory.LineRequest{
			{LotNo: "14016", Quantity: 2},
			{LotNo: "14391", Quantity: 3},
			{LotNo: "99999", Quantity: 1},
		},
	})
	var subErr *inventory.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Len(t, subErr.Failures, 2)
	assert.Equal(t, 2, subErr.Failures[0].Line)
	assert.Equal(t, int64(1), subErr.Failures[0].Available)
	assert.Equal(t, 3, subErr.Failures[1].Line)

	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.ErrorIs(t, err, inventory.ErrLotNotFound)

	first, err := f.ledger.Get(ctx, "14016")
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.Quantity)
	second, err := f.ledger.Get(ctx, "14391")
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Quantity)

	headers, err := f.orders.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, headers)
	assert.Equal(t, 1, f.metrics.submissions["rejected"])
}

func TestSubmitOrderSumsLinesForSameLot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.SetBalance(ctx, "L1", "dates", 5)
	require.NoError(t, err)

	_, err = f.orders.SubmitOrder(ctx, inventory.SubmitInput{Items: []inventory.LineRequest{
		{LotNo: "L1", Quantity: 3},
		{LotNo: "L1", Quantity: 3},
	}})
	var subErr *inventory.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Len(t, subErr.Failures, 1)
	assert.Equal(t, 2, subErr.Failures[0].Line)
	assert.Equal(t, int64(2), subErr.Failures[0].Available)
}

func TestSubmitOrderAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.SetBalance(ctx, "14016", "SAFAWI", 5)
	require.NoError(t, err)

	order, err := f.orders.SubmitOrder(ctx, inventory.SubmitInput{
		PartyName: " NS ",
		GadiNo:    "MH 05 EA 9834",
		OrderDate: "2025-02-15 10:45",
		Items:     []inventory.LineRequest{{LotNo: "14016", Quantity: 2, ProductDescription: "SAFAWI A-1 QUALITY"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "NS", order.PartyName)
	assert.Equal(t, time.Date(2025, 2, 15, 10, 45, 0, 0, time.UTC), order.OrderDate)
	assert.Equal(t, int64(2), order.TotalQuantity())

	rec, err := f.ledger.Get(ctx, "14016")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Quantity)

	got, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "SAFAWI A-1 QUALITY", got.Items[0].ProductDescription)
	assert.Equal(t, 1, f.metrics.submissions["accepted"])
}

func TestSubmitOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.SubmitOrder(ctx, inventory.SubmitInput{})
	require.ErrorIs(t, err, inventory.ErrEmptyOrder)

	_, err = f.orders.SubmitOrder(ctx, inventory.SubmitInput{
		OrderDate: "yesterday",
		Items:     []inventory.LineRequest{{LotNo: "L", Quantity: 1}},
	})
	require.ErrorIs(t, err, inventory.ErrInvalidOrderDate)

	_, err = f.orders.SubmitOrder(ctx, inventory.SubmitInput{Items: []inventory.LineRequest{{LotNo: "L", Quantity: 0}}})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestSubmitOrderIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.SetBalance(ctx, "L1", "dates", 10)
	require.NoError(t, err)
	input := inventory.SubmitInput{IdempotencyKey: "k-1", Items: []inventory.LineRequest{{LotNo: "L1", Quantity: 1}}}

	_, err = f.orders.SubmitOrder(ctx, input)
	require.NoError(t, err)
	_, err = f.orders.SubmitOrder(ctx, input)
	require.ErrorIs(t, err, inventory.ErrDuplicateSubmission)

	rec, err := f.ledger.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), rec.Quantity)

	// a rejected submission releases its key
	rejected := inventory.SubmitInput{IdempotencyKey: "k-2", Items: []inventory.LineRequest{{LotNo: "L1", Quantity: 100}}}
	_, err = f.orders.SubmitOrder(ctx, rejected)
	require.Error(t, err)
	require.False(t, f.redis.Exists("test:idempotency:k-2"))
}

func TestSubmitPastedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.SetBalance(ctx, "14016", "SAFAWI", 4)
	require.NoError(t, err)
	_, err = f.ledger.SetBalance(ctx, "14391", "SAFAWI SUPER", 4)
	require.NoError(t, err)

	text := "Party Name : NS\nGadi No : MH 05 EA 9834\n" +
		"Lot no : 14016 (2 bxs SAFAWI A-1 QUALITY)\n" +
		"Lot no : 14391 (2 bxs\nSAFAWI SUPER QUALITY)\n" +
		"Total : 5 bxs"
	result, err := f.orders.SubmitPastedOrder(ctx, text, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ItemsParsed)
	assert.True(t, result.PartyDetected)
	require.NotNil(t, result.ParsedTotal)
	assert.Equal(t, int64(5), *result.ParsedTotal)
	assert.False(t, result.TotalMatches)
	assert.Equal(t, "SAFAWI SUPER QUALITY", result.Order.Items[1].ProductDescription)
	assert.Equal(t, fixedNow, result.Order.OrderDate)

	_, err = f.orders.SubmitPastedOrder(ctx, "Party Name : NS", "", "")
	require.ErrorIs(t, err, inventory.ErrEmptyOrder)
}

func TestSubmitPastedOrderRejectsOverflowingQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.SetBalance(ctx, "14016", "SAFAWI", 4)
	require.NoError(t, err)
	_, err = f.ledger.SetBalance(ctx, "14017", "AJWA", 4)
	require.NoError(t, err)

	text := "Party Name : NS\n" +
		"Lot no : 14016 (99999999999999999999 bxs SAFAWI)\n" +
		"Lot no : 14017 (3 bxs AJWA)"
	_, err = f.orders.SubmitPastedOrder(ctx, text, "", "")
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	assert.Contains(t, err.Error(), "14016")

	orders, err := f.orders.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	rec, err := f.ledger.Get(ctx, "14017")
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Quantity)
}

func TestCreateOrderAndAddItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.orders.CreateOrder(ctx, "KT", "GJ 01", "2025-01-02")
	require.NoError(t, err)
	first, err := f.orders.AddItem(ctx, id, "L1", 2, "dates")
	require.NoError(t, err)
	second, err := f.orders.AddItem(ctx, id, "L2", 1, "figs")
	require.NoError(t, err)
	assert.Equal(t, 1, first.LineNo)
	assert.Equal(t, 2, second.LineNo)

	items, err := f.orders.ListItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "L1", items[0].LotNo)

	_, err = f.orders.AddItem(ctx, "missing", "L1", 1, "")
	require.ErrorIs(t, err, inventory.ErrOrderNotFound)
	_, err = f.orders.ListItems(ctx, "missing")
	require.ErrorIs(t, err, inventory.ErrOrderNotFound)
	_, err = f.orders.AddItem(ctx, id, "L1", 0, "")
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	older, err := f.orders.CreateOrder(ctx, "A", "", "2025-01-01 08:00")
	require.NoError(t, err)
	newer, err := f.orders.CreateOrder(ctx, "B", "", "2025-01-03 08:00")
	require.NoError(t, err)

	headers, err := f.orders.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, newer, headers[0].ID)
	assert.Equal(t, older, headers[1].ID)
}

type failingStore struct {
	inventory.Store
}

func (failingStore) GetStock(context.Context, string) (inventory.StockRecord, error) {
	return inventory.StockRecord{}, errors.New("connection refused")
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	ledger := inventory.NewLedgerService(failingStore{Store: memory.New()}, inventory.ServiceConfig{})
	_, err := ledger.Get(context.Background(), "L1")
	var storeErr *inventory.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get stock", storeErr.Op)
}
