package workflow

import (
	"strings"
	"testing"

	"github.com/warepulse/stockwatch_backend/models"
)

func TestDeriveAlertZeroStock(t *testing.T) {
	item := analysisItem("SKU-1", models.AlertLevelCritical, daysPtr("0"), "0")
	item.Record.ProductId = 42
	item.Record.WarehouseName = "Dallas"

	c := DeriveAlert(item)
	if c == nil {
		t.Fatal("expected a candidate for a CRITICAL item")
	}
	if c.AlertType != models.AlertTypeStockoutCritical {
		t.Fatalf("expected STOCKOUT_CRITICAL, got %s", c.AlertType)
	}
	if !strings.Contains(c.Message, "out of stock") {
		t.Fatalf("zero-stock message should say out of stock, got %q", c.Message)
	}
}

func TestDeriveAlertCriticalWithDays(t *testing.T) {
	item := analysisItem("SKU-2", models.AlertLevelCritical, daysPtr("2.5"), "5")
	c := DeriveAlert(item)
	if c == nil || c.AlertType != models.AlertTypeStockoutCritical {
		t.Fatalf("expected STOCKOUT_CRITICAL candidate, got %+v", c)
	}
	if !strings.Contains(c.Message, "2.5") {
		t.Fatalf("message should carry days until stockout, got %q", c.Message)
	}
}

func TestDeriveAlertHighAndMedium(t *testing.T) {
	high := DeriveAlert(analysisItem("SKU-3", models.AlertLevelHigh, daysPtr("6"), "12"))
	if high == nil || high.AlertType != models.AlertTypeStockoutWarning {
		t.Fatalf("expected STOCKOUT_WARNING, got %+v", high)
	}

	medium := DeriveAlert(analysisItem("SKU-4", models.AlertLevelMedium, nil, "10"))
	if medium == nil || medium.AlertType != models.AlertTypeNoSales {
		t.Fatalf("expected NO_SALES, got %+v", medium)
	}
}

func TestDeriveAlertSkipsNormalAndLow(t *testing.T) {
	if c := DeriveAlert(analysisItem("SKU-5", models.AlertLevelNormal, daysPtr("20"), "40")); c != nil {
		t.Fatalf("NORMAL must not raise an alert, got %+v", c)
	}
	if c := DeriveAlert(analysisItem("SKU-6", models.AlertLevelLow, daysPtr("100"), "200")); c != nil {
		t.Fatalf("LOW (overstock) must not raise an alert, got %+v", c)
	}
}
