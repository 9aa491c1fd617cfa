package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
)

// Thresholds are the classification knobs, in days. Overridable per-setting
// from the settings store; env and compiled defaults below them.
type Thresholds struct {
	CriticalDays   float64
	HighDays       float64
	SlowMovingDays float64
	OverstockDays  float64
}

const velocityWindowDays = 30

func LoadThresholds(ctx context.Context) Thresholds {
	return Thresholds{
		CriticalDays:   models.GetSettingFloat(ctx, "critical_threshold_days", float64(config.IntFromEnv("ALERT_CRITICAL_DAYS", 3))),
		HighDays:       models.GetSettingFloat(ctx, "high_threshold_days", float64(config.IntFromEnv("ALERT_HIGH_DAYS", 7))),
		SlowMovingDays: models.GetSettingFloat(ctx, "slow_moving_threshold_days", float64(config.IntFromEnv("ALERT_SLOW_MOVING_DAYS", 30))),
		OverstockDays:  models.GetSettingFloat(ctx, "overstocked_threshold_days", float64(config.IntFromEnv("ALERT_OVERSTOCK_DAYS", 90))),
	}
}

type AnalysisFilters struct {
	Warehouses []string `json:"warehouses"`
	Skus       []string `json:"skus"`
}

// ItemAnalysis is one classified inventory position.
type ItemAnalysis struct {
	Record            *models.InventoryRecord
	AvgDailySales     decimal.Decimal
	DaysUntilStockout *decimal.Decimal
	Level             models.AlertLevel
}

type AnalysisResult struct {
	Items      []*ItemAnalysis
	LevelCount map[models.AlertLevel]int
	AnalyzedAt time.Time
}

// ClassifyItem assigns the alert level for one position. Evaluation order
// matters: zero stock and the critical ratio win over the no-sales and
// overstock checks.
func ClassifyItem(qty decimal.Decimal, avgDailySales decimal.Decimal, lastUpdated time.Time, now time.Time, th Thresholds) (models.AlertLevel, *decimal.Decimal) {
	if qty.IsZero() {
		zero := decimal.Zero
		return models.AlertLevelCritical, &zero
	}

	if avgDailySales.IsPositive() {
		days := qty.DivRound(avgDailySales, 2)
		if days.LessThanOrEqual(decimal.NewFromFloat(th.CriticalDays)) {
			return models.AlertLevelCritical, &days
		}
		if days.LessThanOrEqual(decimal.NewFromFloat(th.HighDays)) {
			return models.AlertLevelHigh, &days
		}
		if days.GreaterThan(decimal.NewFromFloat(th.OverstockDays)) {
			return models.AlertLevelLow, &days
		}
		return models.AlertLevelNormal, &days
	}

	// No sales in the velocity window at all.
	staleCutoff := now.Add(-time.Duration(th.SlowMovingDays*24) * time.Hour)
	if lastUpdated.Before(staleCutoff) {
		return models.AlertLevelMedium, nil
	}
	return models.AlertLevelNormal, nil
}

// SortAnalysis orders results by severity rank, then ascending
// days-until-stockout with nulls last, then ascending stock.
func SortAnalysis(items []*ItemAnalysis) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := a.Level.SeverityRank(), b.Level.SeverityRank(); ra != rb {
			return ra < rb
		}
		switch {
		case a.DaysUntilStockout != nil && b.DaysUntilStockout == nil:
			return true
		case a.DaysUntilStockout == nil && b.DaysUntilStockout != nil:
			return false
		case a.DaysUntilStockout != nil && b.DaysUntilStockout != nil:
			if !a.DaysUntilStockout.Equal(*b.DaysUntilStockout) {
				return a.DaysUntilStockout.LessThan(*b.DaysUntilStockout)
			}
		}
		return a.Record.QuantityPresent.LessThan(b.Record.QuantityPresent)
	})
}

// AnalyzeStock computes the 30-day sales velocity for every matching inventory
// position and classifies it.
func AnalyzeStock(ctx context.Context, filters AnalysisFilters) (*AnalysisResult, error) {
	now := time.Now().UTC()
	th := LoadThresholds(ctx)

	warehouse := ""
	if len(filters.Warehouses) == 1 {
		warehouse = filters.Warehouses[0]
	}
	records, err := models.GetInventoryRecords(ctx, warehouse, filters.Skus)
	if err != nil {
		return nil, err
	}

	moves, err := models.GetSalesMovements(ctx, now.AddDate(0, 0, -velocityWindowDays))
	if err != nil {
		return nil, err
	}

	type velKey struct {
		productId int64
		warehouse string
	}
	soldByKey := map[velKey]decimal.Decimal{}
	for _, m := range moves {
		k := velKey{m.ProductId, m.WarehouseName}
		// Movements are negative for sales; accumulate units sold.
		soldByKey[k] = soldByKey[k].Add(m.Quantity.Neg())
	}
	windowDays := decimal.NewFromInt(velocityWindowDays)

	result := &AnalysisResult{
		LevelCount: map[models.AlertLevel]int{},
		AnalyzedAt: now,
	}
	for _, rec := range records {
		sold := soldByKey[velKey{rec.ProductId, rec.WarehouseName}]
		avg := decimal.Zero
		if sold.IsPositive() {
			avg = sold.DivRound(windowDays, 4)
		}

		level, days := ClassifyItem(rec.QuantityPresent, avg, rec.UpdatedAt, now, th)
		result.Items = append(result.Items, &ItemAnalysis{
			Record:            rec,
			AvgDailySales:     avg,
			DaysUntilStockout: days,
			Level:             level,
		})
		result.LevelCount[level]++
	}

	SortAnalysis(result.Items)
	return result, nil
}
