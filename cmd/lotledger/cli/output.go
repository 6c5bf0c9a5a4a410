package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lotledger/lotledger/internal/inventory"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStock(w io.Writer, records []inventory.StockRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOT\tQTY\tDESCRIPTION")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", rec.LotNo, rec.Quantity, rec.ProductDescription)
	}
	return tw.Flush()
}

func printOrder(w io.Writer, order inventory.Order) error {
	fmt.Fprintf(w, "order %s\nparty: %s\ngadi:  %s\ndate:  %s\n", order.ID, order.PartyName, order.GadiNo, order.OrderDate.Format(inventory.OrderDateLayout))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tLOT\tQTY\tDESCRIPTION")
	for _, item := range order.Items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", item.LineNo, item.LotNo, item.Quantity, item.ProductDescription)
	}
	fmt.Fprintf(tw, "\tTOTAL\t%d\t\n", order.TotalQuantity())
	return tw.Flush()
}

// readInput returns the contents of path, or stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseQuantity(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a whole number", raw)
	}
	return n, nil
}
