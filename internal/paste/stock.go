package paste

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// stockColumns is the column count of a stock report line.
const stockColumns = 8

var multiSpace = regexp.MustCompile(` {2,}`)

// StockRow is one parsed line of a stock report.
type StockRow struct {
	InwardDate      string `json:"inward_date"`
	StorageArea     string `json:"storage_area"`
	LotNo           string `json:"lot_no"`
	ProductName     string `json:"product_name"`
	BrandName       string `json:"brand_name"`
	InQuantity      int64  `json:"in_quantity"`
	OutQuantity     int64  `json:"out_quantity"`
	BalanceQuantity int64  `json:"balance_quantity"`
}

// SkippedLine explains why a non-empty line produced no row.
type SkippedLine struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// StockDump is the result of parsing a pasted stock report.
type StockDump struct {
	Rows          []StockRow    `json:"rows"`
	Skipped       []SkippedLine `json:"skipped,omitempty"`
	HeaderSkipped bool          `json:"header_skipped"`
}

// ParseStock parses a tab or multi-space separated report with the columns
// InwardDate, StorageArea, LotNo, ProductName, BrandName, InQuantity,
// OutQuantity, BalanceQuantity. A leading header line is ignored.
func ParseStock(text string) StockDump {
	lines := strings.Split(normalise(text), "\n")
	var out StockDump
	headerChecked := false
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !headerChecked {
			headerChecked = true
			if isStockHeader(line) {
				out.HeaderSkipped = true
				continue
			}
		}
		row, reason := parseStockLine(strings.TrimRight(raw, "\r\n"), line)
		if reason != "" {
			out.Skipped = append(out.Skipped, SkippedLine{Line: i + 1, Text: line, Reason: reason})
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func isStockHeader(line string) bool {
	folded := strings.ToLower(strings.Join(strings.Fields(line), ""))
	return strings.Contains(folded, "inwarddate") || strings.Contains(folded, "storagearea")
}

// parseStockLine splits the untrimmed line on tabs so an empty leading
// column keeps its position. The space-aligned fallback uses the trimmed form.
func parseStockLine(raw, trimmed string) (StockRow, string) {
	fields := strings.Split(raw, "\t")
	if len(fields) < stockColumns {
		fields = multiSpace.Split(trimmed, -1)
	}
	if len(fields) < stockColumns {
		return StockRow{}, fmt.Sprintf("expected %d columns, found %d", stockColumns, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if fields[2] == "" {
		return StockRow{}, "missing lot number"
	}
	var qty [3]int64
	for i, name := range []string{"in quantity", "out quantity", "balance quantity"} {
		v, err := parseQuantity(fields[5+i])
		if err != nil {
			return StockRow{}, fmt.Sprintf("invalid %s %q", name, fields[5+i])
		}
		qty[i] = v
	}
	if qty[2] < 0 {
		return StockRow{}, fmt.Sprintf("negative balance quantity %d", qty[2])
	}
	return StockRow{
		InwardDate:      fields[0],
		StorageArea:     fields[1],
		LotNo:           fields[2],
		ProductName:     fields[3],
		BrandName:       fields[4],
		InQuantity:      qty[0],
		OutQuantity:     qty[1],
		BalanceQuantity: qty[2],
	}, ""
}

func parseQuantity(s string) (int64, error) {
	return strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
}
