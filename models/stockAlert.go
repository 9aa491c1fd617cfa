package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warepulse/stockwatch_backend/config"
	"gorm.io/gorm"
)

// StockAlert is one actionable low-stock condition. Lifecycle:
// NEW -> ACKNOWLEDGED -> RESOLVED, or -> IGNORED, driven by operator actions.
type StockAlert struct {
	ID                int              `gorm:"primary_key" json:"id"`
	ProductId         int64            `gorm:"index:idx_alert_product;not null" json:"product_id"`
	Sku               string           `gorm:"size:100;index" json:"sku"`
	WarehouseName     string           `gorm:"size:200;index:idx_alert_product;not null" json:"warehouse_name"`
	AlertType         AlertType        `gorm:"size:30;index:idx_alert_product;not null" json:"alert_type"`
	AlertLevel        AlertLevel       `gorm:"size:10;not null" json:"alert_level"`
	Message           string           `gorm:"type:text" json:"message"`
	CurrentStock      decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"current_stock"`
	DaysUntilStockout *decimal.Decimal `gorm:"type:decimal(10,2)" json:"days_until_stockout"`
	RecommendedAction string           `gorm:"type:text" json:"recommended_action"`
	Status            AlertStatus      `gorm:"size:15;index;not null" json:"status"`
	AcknowledgedBy    string           `gorm:"size:100" json:"acknowledged_by"`
	AcknowledgedAt    *time.Time       `json:"acknowledged_at"`
	ResolutionNotes   string           `gorm:"type:text" json:"resolution_notes"`
	CreatedAt         time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// DedupWindow is how long an active alert suppresses duplicates for the same
// (product, alert_type, warehouse).
const DedupWindow = 24 * time.Hour

// HasActiveDuplicateAlert reports whether an active (NEW/ACKNOWLEDGED) alert
// for the same triple was created within the dedup window. Must run on the tx
// holding the alert advisory lock so two concurrent analysis passes cannot
// both observe "no duplicate".
func HasActiveDuplicateAlert(tx *gorm.DB, ctx context.Context, productId int64, alertType AlertType, warehouseName string, now time.Time) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&StockAlert{}).
		Where("product_id = ? AND alert_type = ? AND warehouse_name = ?", productId, alertType, warehouseName).
		Where("status IN ?", []AlertStatus{AlertStatusNew, AlertStatusAcknowledged}).
		Where("created_at > ?", now.Add(-DedupWindow)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AcknowledgeAlert is idempotent: it returns false (no error) when the alert
// is not in NEW, and never resets an already-acknowledged alert.
func AcknowledgeAlert(ctx context.Context, id int, user string, notes string) (bool, error) {
	now := time.Now().UTC()
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&StockAlert{}).
		Where("id = ? AND status = ?", id, AlertStatusNew).
		Updates(map[string]interface{}{
			"status":           AlertStatusAcknowledged,
			"acknowledged_by":  user,
			"acknowledged_at":  &now,
			"resolution_notes": notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResolveAlert accepts NEW or ACKNOWLEDGED alerts; anything else is a no-op.
func ResolveAlert(ctx context.Context, id int, user string, notes string) (bool, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&StockAlert{}).
		Where("id = ? AND status IN ?", id, []AlertStatus{AlertStatusNew, AlertStatusAcknowledged}).
		Updates(map[string]interface{}{
			"status":           AlertStatusResolved,
			"acknowledged_by":  user,
			"resolution_notes": notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IgnoreAlert marks a NEW or ACKNOWLEDGED alert as not worth tracking.
func IgnoreAlert(ctx context.Context, id int, user string, notes string) (bool, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&StockAlert{}).
		Where("id = ? AND status IN ?", id, []AlertStatus{AlertStatusNew, AlertStatusAcknowledged}).
		Updates(map[string]interface{}{
			"status":           AlertStatusIgnored,
			"acknowledged_by":  user,
			"resolution_notes": notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func GetActiveAlerts(ctx context.Context, warehouseName string) ([]*StockAlert, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&StockAlert{}).
		Where("status IN ?", []AlertStatus{AlertStatusNew, AlertStatusAcknowledged})
	if warehouseName != "" {
		dbCtx = dbCtx.Where("warehouse_name = ?", warehouseName)
	}
	var alerts []*StockAlert
	if err := dbCtx.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
