package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warepulse/stockwatch_backend/models"
)

func testThresholds() Thresholds {
	return Thresholds{CriticalDays: 3, HighDays: 7, SlowMovingDays: 30, OverstockDays: 90}
}

func TestClassifyItem(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Hour)
	stale := now.AddDate(0, 0, -45)

	cases := []struct {
		name    string
		qty     string
		avg     string
		updated time.Time
		level   models.AlertLevel
		days    string // "" means nil
	}{
		{"zero stock is critical regardless of velocity", "0", "0", stale, models.AlertLevelCritical, "0"},
		{"under critical ratio", "5", "2", fresh, models.AlertLevelCritical, "2.5"},
		{"exactly the critical boundary", "6", "2", fresh, models.AlertLevelCritical, "3"},
		{"between critical and high", "12", "2", fresh, models.AlertLevelHigh, "6"},
		{"exactly the high boundary", "14", "2", fresh, models.AlertLevelHigh, "7"},
		{"healthy range", "40", "2", fresh, models.AlertLevelNormal, "20"},
		{"over the overstock boundary", "200", "2", fresh, models.AlertLevelLow, "100"},
		{"no sales, recently updated", "10", "0", fresh, models.AlertLevelNormal, ""},
		{"no sales, stale", "10", "0", stale, models.AlertLevelMedium, ""},
	}
	for _, tc := range cases {
		qty := decimal.RequireFromString(tc.qty)
		avg := decimal.RequireFromString(tc.avg)
		level, days := ClassifyItem(qty, avg, tc.updated, now, testThresholds())
		if level != tc.level {
			t.Fatalf("%s: expected level %s, got %s", tc.name, tc.level, level)
		}
		if tc.days == "" {
			if days != nil {
				t.Fatalf("%s: expected nil days, got %s", tc.name, days)
			}
			continue
		}
		if days == nil {
			t.Fatalf("%s: expected days %s, got nil", tc.name, tc.days)
		}
		if !days.Equal(decimal.RequireFromString(tc.days)) {
			t.Fatalf("%s: expected days %s, got %s", tc.name, tc.days, days)
		}
	}
}

func TestClassifyItemRoundsDaysToTwoPlaces(t *testing.T) {
	now := time.Now().UTC()
	level, days := ClassifyItem(decimal.RequireFromString("10"), decimal.RequireFromString("3"), now, now, testThresholds())
	if level != models.AlertLevelHigh {
		t.Fatalf("expected HIGH, got %s", level)
	}
	if days == nil || days.String() != "3.33" {
		t.Fatalf("expected 3.33 days, got %v", days)
	}
}

func analysisItem(sku string, level models.AlertLevel, days *decimal.Decimal, qty string) *ItemAnalysis {
	return &ItemAnalysis{
		Record: &models.InventoryRecord{
			Sku:             sku,
			QuantityPresent: decimal.RequireFromString(qty),
		},
		DaysUntilStockout: days,
		Level:             level,
	}
}

func daysPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSortAnalysisOrdersBySeverityThenUrgency(t *testing.T) {
	items := []*ItemAnalysis{
		analysisItem("normal", models.AlertLevelNormal, daysPtr("20"), "40"),
		analysisItem("medium-no-days", models.AlertLevelMedium, nil, "10"),
		analysisItem("high-6d", models.AlertLevelHigh, daysPtr("6"), "12"),
		analysisItem("critical-2.5d", models.AlertLevelCritical, daysPtr("2.5"), "5"),
		analysisItem("critical-0d", models.AlertLevelCritical, daysPtr("0"), "0"),
		analysisItem("high-5d", models.AlertLevelHigh, daysPtr("5"), "10"),
	}
	SortAnalysis(items)

	expected := []string{"critical-0d", "critical-2.5d", "high-5d", "high-6d", "medium-no-days", "normal"}
	for i, sku := range expected {
		if items[i].Record.Sku != sku {
			t.Fatalf("position %d: expected %s, got %s", i, sku, items[i].Record.Sku)
		}
	}
}

func TestSortAnalysisPutsNilDaysLast(t *testing.T) {
	items := []*ItemAnalysis{
		analysisItem("no-days", models.AlertLevelMedium, nil, "5"),
		analysisItem("with-days", models.AlertLevelMedium, daysPtr("4"), "8"),
	}
	SortAnalysis(items)
	if items[0].Record.Sku != "with-days" {
		t.Fatalf("expected item with days first, got %s", items[0].Record.Sku)
	}
}
