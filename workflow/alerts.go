package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/notify"
	"gorm.io/gorm"
)

// AlertCandidate is a derived alert before the dedup check.
type AlertCandidate struct {
	ProductId         int64
	Sku               string
	WarehouseName     string
	AlertType         models.AlertType
	AlertLevel        models.AlertLevel
	Message           string
	CurrentStock      decimal.Decimal
	DaysUntilStockout *decimal.Decimal
	RecommendedAction string
}

// DeriveAlert applies the fixed decision table to one classified item.
// Returns nil for positions that don't warrant an alert (NORMAL, LOW).
func DeriveAlert(item *ItemAnalysis) *AlertCandidate {
	rec := item.Record
	base := AlertCandidate{
		ProductId:         rec.ProductId,
		Sku:               rec.Sku,
		WarehouseName:     rec.WarehouseName,
		AlertLevel:        item.Level,
		CurrentStock:      rec.QuantityPresent,
		DaysUntilStockout: item.DaysUntilStockout,
	}

	switch item.Level {
	case models.AlertLevelCritical:
		base.AlertType = models.AlertTypeStockoutCritical
		if rec.QuantityPresent.IsZero() {
			base.Message = fmt.Sprintf("SKU %s is out of stock in %s", rec.Sku, rec.WarehouseName)
			base.RecommendedAction = "Replenish immediately; listing is losing sales now"
		} else {
			base.Message = fmt.Sprintf("SKU %s in %s will stock out in ~%s days at current velocity",
				rec.Sku, rec.WarehouseName, item.DaysUntilStockout)
			base.RecommendedAction = "Ship replenishment today; stockout imminent"
		}
		return &base
	case models.AlertLevelHigh:
		base.AlertType = models.AlertTypeStockoutWarning
		base.Message = fmt.Sprintf("SKU %s in %s has ~%s days of stock left",
			rec.Sku, rec.WarehouseName, item.DaysUntilStockout)
		base.RecommendedAction = "Plan replenishment within the week"
		return &base
	case models.AlertLevelMedium:
		base.AlertType = models.AlertTypeNoSales
		base.Message = fmt.Sprintf("SKU %s in %s has had no sales in %d days", rec.Sku, rec.WarehouseName, velocityWindowDays)
		base.RecommendedAction = "Review pricing or consider withdrawing stock"
		return &base
	default:
		return nil
	}
}

func alertLockName(c *AlertCandidate) string {
	return fmt.Sprintf("alert:%d:%s:%s", c.ProductId, c.AlertType, c.WarehouseName)
}

// GenerateAlerts derives alerts from the analysis, deduplicates against active
// alerts in the 24h window, persists survivors and raises one batch
// notification per warehouse. Returns the number of alerts created.
//
// The dedup check and insert run under an advisory lock per (product, type,
// warehouse) so two concurrent analysis passes cannot both create the alert.
func GenerateAlerts(ctx context.Context, notifier *notify.Engine, items []*ItemAnalysis) (int, error) {
	logger := config.GetLogger()
	db := config.GetDB()
	now := time.Now().UTC()

	created := 0
	byWarehouse := map[string][]*models.StockAlert{}

	for _, item := range items {
		candidate := DeriveAlert(item)
		if candidate == nil {
			continue
		}

		var alert *models.StockAlert
		err := db.Transaction(func(tx *gorm.DB) error {
			lockName := alertLockName(candidate)
			if err := models.AcquireNamedLock(tx, lockName, 10); err != nil {
				return err
			}
			defer models.ReleaseNamedLock(tx, lockName)

			dup, err := models.HasActiveDuplicateAlert(tx, ctx, candidate.ProductId, candidate.AlertType, candidate.WarehouseName, now)
			if err != nil {
				return err
			}
			if dup {
				// Condition already tracked by an active alert.
				return nil
			}

			alert = &models.StockAlert{
				ProductId:         candidate.ProductId,
				Sku:               candidate.Sku,
				WarehouseName:     candidate.WarehouseName,
				AlertType:         candidate.AlertType,
				AlertLevel:        candidate.AlertLevel,
				Message:           candidate.Message,
				CurrentStock:      candidate.CurrentStock,
				DaysUntilStockout: candidate.DaysUntilStockout,
				RecommendedAction: candidate.RecommendedAction,
				Status:            models.AlertStatusNew,
			}
			return tx.WithContext(ctx).Create(alert).Error
		})
		if err != nil {
			return created, err
		}
		if alert == nil {
			continue
		}
		created++
		byWarehouse[alert.WarehouseName] = append(byWarehouse[alert.WarehouseName], alert)
	}

	if notifier == nil {
		return created, nil
	}

	// One batch notification per warehouse; delivery failures are recorded by
	// the engine and never abort alert creation.
	for warehouse, alerts := range byWarehouse {
		title := fmt.Sprintf("%d new stock alerts for %s", len(alerts), warehouse)
		message := ""
		for _, a := range alerts {
			message += fmt.Sprintf("[%s] %s\n", a.AlertLevel, a.Message)
		}
		if _, err := notifier.Notify(ctx, "alerts:"+warehouse, models.CategoryStockAlert, title, message, ""); err != nil {
			config.LogError(logger, "workflow", "GenerateAlerts", "notify warehouse batch", warehouse, err)
		}
	}

	return created, nil
}
