package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/inventory"
	"github.com/lotledger/lotledger/internal/paste"
)

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_DSN", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOG_FORMAT", "json")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStockCommands(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "", "stock", "add", "14016", "10", "-d", "SAFAWI A-1 QUALITY")
	require.NoError(t, err)
	require.Contains(t, out, "14016")
	require.Contains(t, out, "10")

	_, err = run(t, "", "stock", "set", "212", "5", "--description", "AJWA")
	require.NoError(t, err)

	_, err = run(t, "", "stock", "reserve", "212", "2")
	require.NoError(t, err)

	out, err = run(t, "", "stock", "list", "--json")
	require.NoError(t, err)
	var records []inventory.StockRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	require.Equal(t, "14016", records[0].LotNo)
	require.Equal(t, int64(3), records[1].Quantity)

	_, err = run(t, "", "stock", "reserve", "212", "9")
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, int64(3), short.Available)

	_, err = run(t, "", "stock", "add", "1", "many")
	require.Error(t, err)

	_, err = run(t, "", "stock", "get", "nope")
	require.ErrorIs(t, err, inventory.ErrLotNotFound)
}

func TestOrdersPasteCommand(t *testing.T) {
	useSQLite(t)
	_, err := run(t, "", "stock", "add", "14016", "10", "-d", "SAFAWI")
	require.NoError(t, err)

	message := "Party Name : NS\nGadi No : MH 05 EA 9834\nLot no : 14016 (2 bxs SAFAWI A-1 QUALITY)\nTotal : 2 bxs\n"
	out, err := run(t, message, "orders", "paste", "--date", "2025-02-15 09:30")
	require.NoError(t, err)
	require.Contains(t, out, "party: NS")
	require.Contains(t, out, "TOTAL")

	out, err = run(t, "", "stock", "get", "14016")
	require.NoError(t, err)
	var rec inventory.StockRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.Equal(t, int64(8), rec.Quantity)

	out, err = run(t, "", "orders", "list")
	require.NoError(t, err)
	require.Contains(t, out, "2025-02-15 09:30")

	_, err = run(t, "Lot no : 14016 (20 bxs SAFAWI)\n", "orders", "paste")
	var subErr *inventory.SubmissionError
	require.ErrorAs(t, err, &subErr)
}

func TestPasteDryRunSkipsStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "nonsense")

	out, err := run(t, "Lot no : 7 (3 bxs figs)\n", "orders", "paste", "--dry-run")
	require.NoError(t, err)
	var order paste.Order
	require.NoError(t, json.Unmarshal([]byte(out), &order))
	require.Len(t, order.Items, 1)
	require.Equal(t, int64(3), order.Items[0].Quantity)

	_, err = run(t, "", "stock", "list")
	require.Error(t, err)
}

func TestMigrateSQLite(t *testing.T) {
	useSQLite(t)
	out, err := run(t, "", "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "sqlite schema synchronised")

	t.Setenv("STORE_DRIVER", "memory")
	out, err = run(t, "", "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "memory store has no schema")
}
