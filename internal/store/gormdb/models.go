package gormdb

import "time"

// Stock is the current balance row of a lot.
type Stock struct {
	ID                 uint   `gorm:"primaryKey"`
	LotNo              string `gorm:"size:64;not null;uniqueIndex"`
	ProductDescription string `gorm:"size:255;not null;default:''"`
	Quantity           int64  `gorm:"not null;default:0;check:quantity >= 0"`
	UpdatedAt          time.Time
}

// Order is a submitted order header.
type Order struct {
	ID        string    `gorm:"primaryKey;size:36"`
	PartyName string    `gorm:"size:255;not null;default:''"`
	GadiNo    string    `gorm:"size:64;not null;default:''"`
	OrderDate time.Time `gorm:"index;not null"`
	Items     []OrderItem
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID                 uint   `gorm:"primaryKey"`
	OrderID            string `gorm:"size:36;not null;uniqueIndex:idx_order_line"`
	LineNo             int    `gorm:"not null;uniqueIndex:idx_order_line"`
	LotNo              string `gorm:"size:64;not null"`
	Quantity           int64  `gorm:"not null"`
	ProductDescription string `gorm:"size:255;not null;default:''"`
}

// StockEntry is a raw line from an imported stock report.
type StockEntry struct {
	ID              int64  `gorm:"primaryKey"`
	InwardDate      string `gorm:"size:32"`
	StorageArea     string `gorm:"size:64"`
	LotNo           string `gorm:"size:64;index;not null"`
	ProductName     string `gorm:"size:255"`
	BrandName       string `gorm:"size:255"`
	InQuantity      int64
	OutQuantity     int64
	BalanceQuantity int64
	ImportedAt      time.Time `gorm:"index;not null"`
}

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{&Stock{}, &Order{}, &OrderItem{}, &StockEntry{}}
}
