// Package gormdb persists the ledger and order log through GORM, backing the
// embedded SQLite deployment and the MySQL / PostgreSQL alternatives.
package gormdb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lotledger/lotledger/internal/inventory"
)

// Store implements inventory.Store on a *gorm.DB.
type Store struct {
	db *gorm.DB
}

// New constructs Store. The schema must already be migrated (see Open).
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.TxStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &txStore{db: tx})
	})
}

func (s *Store) GetStock(ctx context.Context, lotNo string) (inventory.StockRecord, error) {
	return findStock(s.db.WithContext(ctx), lotNo)
}

func (s *Store) ListStock(ctx context.Context) ([]inventory.StockRecord, error) {
	var rows []Stock
	if err := s.db.WithContext(ctx).Order("lot_no").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.StockRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (inventory.OrderHeader, error) {
	var row Order
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return inventory.OrderHeader{}, fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, id)
	}
	if err != nil {
		return inventory.OrderHeader{}, err
	}
	return row.header(), nil
}

func (s *Store) ListOrders(ctx context.Context) ([]inventory.OrderHeader, error) {
	var rows []Order
	if err := s.db.WithContext(ctx).Order("order_date DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.OrderHeader, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.header())
	}
	return out, nil
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]inventory.OrderItem, error) {
	var rows []OrderItem
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("line_no").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.OrderItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, inventory.OrderItem{
			OrderID:            row.OrderID,
			LineNo:             row.LineNo,
			LotNo:              row.LotNo,
			Quantity:           row.Quantity,
			ProductDescription: row.ProductDescription,
		})
	}
	return out, nil
}

func (s *Store) ListStockEntries(ctx context.Context, limit int) ([]inventory.StockEntry, error) {
	var rows []StockEntry
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.StockEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, inventory.StockEntry{
			ID:              row.ID,
			InwardDate:      row.InwardDate,
			StorageArea:     row.StorageArea,
			LotNo:           row.LotNo,
			ProductName:     row.ProductName,
			BrandName:       row.BrandName,
			InQuantity:      row.InQuantity,
			OutQuantity:     row.OutQuantity,
			BalanceQuantity: row.BalanceQuantity,
			ImportedAt:      row.ImportedAt.UTC(),
		})
	}
	return out, nil
}

type txStore struct {
	db *gorm.DB
}

func (t *txStore) GetStockForUpdate(ctx context.Context, lotNo string) (inventory.StockRecord, error) {
	return findStock(t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), lotNo)
}

func (t *txStore) PutStock(ctx context.Context, rec inventory.StockRecord) error {
	if rec.Quantity < 0 {
		return inventory.ErrNegativeStock
	}
	row := Stock{
		LotNo:              rec.LotNo,
		ProductDescription: rec.ProductDescription,
		Quantity:           rec.Quantity,
		UpdatedAt:          rec.UpdatedAt,
	}
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lot_no"}},
		DoUpdates: clause.AssignmentColumns([]string{"product_description", "quantity", "updated_at"}),
	}).Create(&row).Error
}

func (t *txStore) InsertOrder(ctx context.Context, h inventory.OrderHeader) error {
	return t.db.WithContext(ctx).Create(&Order{
		ID:        h.ID,
		PartyName: h.PartyName,
		GadiNo:    h.GadiNo,
		OrderDate: h.OrderDate,
	}).Error
}

func (t *txStore) NextLineNo(ctx context.Context, orderID string) (int, error) {
	var header Order
	err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).Take(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: %s", inventory.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return 0, err
	}
	var last int
	err = t.db.WithContext(ctx).Model(&OrderItem{}).
		Where("order_id = ?", orderID).
		Select("COALESCE(MAX(line_no), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (t *txStore) InsertOrderItems(ctx context.Context, items []inventory.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]OrderItem, 0, len(items))
	for _, item := range items {
		rows = append(rows, OrderItem{
			OrderID:            item.OrderID,
			LineNo:             item.LineNo,
			LotNo:              item.LotNo,
			Quantity:           item.Quantity,
			ProductDescription: item.ProductDescription,
		})
	}
	return t.db.WithContext(ctx).Create(&rows).Error
}

func (t *txStore) InsertStockEntries(ctx context.Context, entries []inventory.StockEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]StockEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, StockEntry{
			InwardDate:      e.InwardDate,
			StorageArea:     e.StorageArea,
			LotNo:           e.LotNo,
			ProductName:     e.ProductName,
			BrandName:       e.BrandName,
			InQuantity:      e.InQuantity,
			OutQuantity:     e.OutQuantity,
			BalanceQuantity: e.BalanceQuantity,
			ImportedAt:      e.ImportedAt,
		})
	}
	return t.db.WithContext(ctx).CreateInBatches(&rows, 200).Error
}

func findStock(db *gorm.DB, lotNo string) (inventory.StockRecord, error) {
	var row Stock
	err := db.Where("lot_no = ?", lotNo).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return inventory.StockRecord{}, fmt.Errorf("%w: %s", inventory.ErrLotNotFound, lotNo)
	}
	if err != nil {
		return inventory.StockRecord{}, err
	}
	return row.record(), nil
}

func (s Stock) record() inventory.StockRecord {
	return inventory.StockRecord{
		LotNo:              s.LotNo,
		ProductDescription: s.ProductDescription,
		Quantity:           s.Quantity,
		UpdatedAt:          s.UpdatedAt.UTC(),
	}
}

func (o Order) header() inventory.OrderHeader {
	return inventory.OrderHeader{
		ID:        o.ID,
		PartyName: o.PartyName,
		GadiNo:    o.GadiNo,
		OrderDate: o.OrderDate.UTC(),
	}
}
