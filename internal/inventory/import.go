package inventory

import (
	"context"

	"github.com/lotledger/lotledger/internal/paste"
)

// StockImportResult summarises a pasted stock report that was applied to the ledger.
type StockImportResult struct {
	Applied       []StockRecord       `json:"applied"`
	Entries       int                 `json:"entries"`
	Skipped       []paste.SkippedLine `json:"skipped,omitempty"`
	HeaderSkipped bool                `json:"header_skipped"`
}

// EntriesFromDump converts parsed report rows into stock entries.
func EntriesFromDump(dump paste.StockDump) []StockEntry {
	entries := make([]StockEntry, 0, len(dump.Rows))
	for _, row := range dump.Rows {
		entries = append(entries, StockEntry{
			InwardDate:      row.InwardDate,
			StorageArea:     row.StorageArea,
			LotNo:           row.LotNo,
			ProductName:     row.ProductName,
			BrandName:       row.BrandName,
			InQuantity:      row.InQuantity,
			OutQuantity:     row.OutQuantity,
			BalanceQuantity: row.BalanceQuantity,
		})
	}
	return entries
}

// ImportStockText parses a pasted stock report and applies every valid line.
// Lines that could not be parsed are returned in Skipped and never reach the ledger.
func (s *LedgerService) ImportStockText(ctx context.Context, text string) (StockImportResult, error) {
	dump := paste.ParseStock(text)
	result := StockImportResult{Skipped: dump.Skipped, HeaderSkipped: dump.HeaderSkipped}
	entries := EntriesFromDump(dump)
	applied, err := s.ApplyStockDump(ctx, entries)
	if err != nil {
		return result, err
	}
	result.Applied = applied
	result.Entries = len(entries)
	return result, nil
}
