package paste

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ajwaLine = "15/02/2025\tCS-20\t14393\tWET DATES BOX 5 KG (imp)\tAJWA (PREMIUM)\t494\t282\t212"

func TestParseStockTabSeparated(t *testing.T) {
	got := ParseStock(ajwaLine)

	require.Len(t, got.Rows, 1)
	require.Empty(t, got.Skipped)
	assert.False(t, got.HeaderSkipped)
	assert.Equal(t, StockRow{
		InwardDate:      "15/02/2025",
		StorageArea:     "CS-20",
		LotNo:           "14393",
		ProductName:     "WET DATES BOX 5 KG (imp)",
		BrandName:       "AJWA (PREMIUM)",
		InQuantity:      494,
		OutQuantity:     282,
		BalanceQuantity: 212,
	}, got.Rows[0])
}

func TestParseStockSkipsHeader(t *testing.T) {
	text := "\n\nInwardDate\tStorageArea\tLotNo\tProductName\tBrandName\tInQuantity\tOutQuantity\tBalanceQuantity\n" + ajwaLine + "\n"
	got := ParseStock(text)

	require.True(t, got.HeaderSkipped)
	require.Len(t, got.Rows, 1)
	require.Empty(t, got.Skipped)
}

func TestParseStockSpacedHeader(t *testing.T) {
	got := ParseStock("Inward Date   Storage Area   Lot No\n" + ajwaLine)

	require.True(t, got.HeaderSkipped)
	require.Len(t, got.Rows, 1)
}

func TestParseStockMultiSpaceFallback(t *testing.T) {
	line := "15/02/2025  CS-21  14394  WET DATES BOX 5 KG  KALMI  1,200  200  1,000"
	got := ParseStock(line)

	require.Len(t, got.Rows, 1)
	row := got.Rows[0]
	assert.Equal(t, "14394", row.LotNo)
	assert.Equal(t, "WET DATES BOX 5 KG", row.ProductName)
	assert.Equal(t, "KALMI", row.BrandName)
	assert.EqualValues(t, 1200, row.InQuantity)
	assert.EqualValues(t, 1000, row.BalanceQuantity)
}

func TestParseStockDropsNonNumericQuantity(t *testing.T) {
	bad := "15/02/2025\tCS-20\t14395\tDATES\tMEDJOOL\tmany\t1\t2"
	got := ParseStock(ajwaLine + "\n" + bad)

	require.Len(t, got.Rows, 1)
	require.Equal(t, "14393", got.Rows[0].LotNo)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, 2, got.Skipped[0].Line)
	assert.Contains(t, got.Skipped[0].Reason, "in quantity")
}

func TestParseStockDropsShortLines(t *testing.T) {
	got := ParseStock("15/02/2025\tCS-20\t14393\tDATES\n" + ajwaLine)

	require.Len(t, got.Rows, 1)
	require.Len(t, got.Skipped, 1)
	assert.Contains(t, got.Skipped[0].Reason, "expected 8 columns")
}

func TestParseStockBlankLeadingColumn(t *testing.T) {
	got := ParseStock("\tCS-20\t14393\tWET DATES BOX 5 KG (imp)\tAJWA (PREMIUM)\t494\t282\t212\r\n")

	require.Empty(t, got.Skipped)
	require.Len(t, got.Rows, 1)
	row := got.Rows[0]
	assert.Empty(t, row.InwardDate)
	assert.Equal(t, "CS-20", row.StorageArea)
	assert.Equal(t, "14393", row.LotNo)
	assert.Equal(t, "AJWA (PREMIUM)", row.BrandName)
	assert.Equal(t, int64(212), row.BalanceQuantity)
}

func TestParseStockMissingLot(t *testing.T) {
	got := ParseStock("15/02/2025\tCS-20\t\tDATES\tAJWA\t1\t1\t0")

	require.Empty(t, got.Rows)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, "missing lot number", got.Skipped[0].Reason)
}

func TestParseStockEmptyInput(t *testing.T) {
	got := ParseStock("   \n\n")

	require.Empty(t, got.Rows)
	require.Empty(t, got.Skipped)
	require.False(t, got.HeaderSkipped)
}
