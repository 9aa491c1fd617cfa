package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warepulse/stockwatch_backend/config"
	"gorm.io/gorm/clause"
)

// InventoryRecord is the current stock position of one product in one
// warehouse. Rows are upserted per ETL run; the analysis engine reads them.
type InventoryRecord struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ProductId        int64           `gorm:"uniqueIndex:idx_inventory_key;not null" json:"product_id"`
	Sku              string          `gorm:"size:100;index" json:"sku"`
	WarehouseName    string          `gorm:"size:200;uniqueIndex:idx_inventory_key;not null" json:"warehouse_name"`
	StockType        StockType       `gorm:"size:20;uniqueIndex:idx_inventory_key;not null" json:"stock_type"`
	QuantityPresent  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity_present"`
	QuantityReserved decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity_reserved"`
	Source           string          `gorm:"size:50;uniqueIndex:idx_inventory_key;not null" json:"source"`
	ReportCode       string          `gorm:"size:100;index" json:"report_code"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// StockMovement is one day's net stock change for a product/warehouse.
// Negative quantities attributable to sales feed the velocity computation.
type StockMovement struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ProductId     int64           `gorm:"index:idx_movement_product;not null" json:"product_id"`
	WarehouseName string          `gorm:"size:200;index:idx_movement_product;not null" json:"warehouse_name"`
	MovementDate  time.Time       `gorm:"index;not null" json:"movement_date"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Reason        string          `gorm:"size:50" json:"reason"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// UpsertInventoryRecords writes parsed report rows, keyed by
// (product_id, warehouse_name, stock_type, source). Returns the row count.
func UpsertInventoryRecords(ctx context.Context, records []*InventoryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "product_id"},
			{Name: "warehouse_name"},
			{Name: "stock_type"},
			{Name: "source"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"sku", "quantity_present", "quantity_reserved", "report_code", "updated_at",
		}),
	}).Create(&records).Error
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func GetInventoryRecords(ctx context.Context, warehouseName string, skus []string) ([]*InventoryRecord, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&InventoryRecord{})
	if warehouseName != "" {
		dbCtx = dbCtx.Where("warehouse_name = ?", warehouseName)
	}
	if len(skus) > 0 {
		dbCtx = dbCtx.Where("sku IN ?", skus)
	}
	var records []*InventoryRecord
	if err := dbCtx.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetSalesMovements returns negative (sales/order) movements in the trailing
// window for velocity computation, grouped client-side per product/warehouse.
func GetSalesMovements(ctx context.Context, since time.Time) ([]*StockMovement, error) {
	db := config.GetDB()
	var moves []*StockMovement
	if err := db.WithContext(ctx).
		Where("movement_date >= ? AND quantity < 0 AND reason IN ?", since, []string{"sale", "order"}).
		Find(&moves).Error; err != nil {
		return nil, err
	}
	return moves, nil
}

// RecordStockMovements derives movement rows by diffing fresh report rows
// against the previous inventory snapshot. Called by the updater before the
// upsert so history stays continuous across ETL runs.
func RecordStockMovements(ctx context.Context, movements []*StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&movements).Error
}
