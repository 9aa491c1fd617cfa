package marketsync

import (
	"strings"
	"testing"
	"time"
)

const stockHeader = "SKU,Warehouse_Name,Current_Stock,Reserved_Stock,Available_Stock,Last_Updated\n"

func parse(t *testing.T, body string) ([]*StockRow, int) {
	t.Helper()
	rows, skipped, err := ParseStockCSV([]byte(stockHeader+body), "test")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return rows, skipped
}

func TestParseStockCSVHappyPath(t *testing.T) {
	rows, skipped := parse(t, "1001,Dallas,25,5,20,2026-03-01 10:30:00\n1002,Austin,0,0,0,2026-03-01\n")
	if skipped != 0 {
		t.Fatalf("expected no skips, got %d", skipped)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ProductId != 1001 || rows[0].WarehouseName != "Dallas" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[0].QuantityPresent.String() != "25" || rows[0].QuantityReserved.String() != "5" {
		t.Fatalf("unexpected quantities: %s / %s", rows[0].QuantityPresent, rows[0].QuantityReserved)
	}
	if rows[0].LastUpdated != time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC) {
		t.Fatalf("unexpected date: %s", rows[0].LastUpdated)
	}
}

func TestParseStockCSVMissingColumnIsFatal(t *testing.T) {
	body := "SKU,Warehouse_Name,Current_Stock,Reserved_Stock,Last_Updated\n1001,Dallas,25,5,2026-03-01\n"
	_, _, err := ParseStockCSV([]byte(body), "test")
	if err == nil || !strings.Contains(err.Error(), "Available_Stock") {
		t.Fatalf("expected missing-column error, got %v", err)
	}
}

func TestParseStockCSVRecoversFromMalformedLine(t *testing.T) {
	body := "1001,Dallas,25,5,20,2026-03-01\n" +
		"1002,\"Aus\"tin,10,0,10,2026-03-01\n" + // bare quote inside a field
		"1003,Houston,7,1,6,2026-03-01\n"

	rows, skipped := parse(t, body)
	if skipped != 1 {
		t.Fatalf("expected 1 skipped row, got %d", skipped)
	}
	if len(rows) != 2 {
		t.Fatalf("malformed line must not drop the rest of the file, got %d rows", len(rows))
	}
	if rows[1].ProductId != 1003 {
		t.Fatalf("expected row after malformed line to survive, got %+v", rows[1])
	}
}

func TestParseStockCSVSkipsBadRows(t *testing.T) {
	body := strings.Join([]string{
		"ABC,Dallas,25,5,20,2026-03-01",   // non-numeric SKU
		"1002,Dallas,-3,0,0,2026-03-01",   // negative stock
		"1003,Dallas,xx,0,0,2026-03-01",   // non-numeric stock
		"1004,,10,0,10,2026-03-01",        // empty warehouse
		"1005,Dallas,10,0",                // short row
		"1006,Dallas,10,2,8,2026-03-01",   // good
	}, "\n") + "\n"

	rows, skipped := parse(t, body)
	if skipped != 5 {
		t.Fatalf("expected 5 skipped rows, got %d", skipped)
	}
	if len(rows) != 1 || rows[0].ProductId != 1006 {
		t.Fatalf("expected only row 1006 to survive, got %+v", rows)
	}
}

func TestParseStockCSVInvalidDateFallsBack(t *testing.T) {
	before := time.Now().UTC()
	rows, skipped := parse(t, "1001,Dallas,25,5,20,not-a-date\n")
	if skipped != 0 || len(rows) != 1 {
		t.Fatalf("bad date must not skip the row: rows=%d skipped=%d", len(rows), skipped)
	}
	if rows[0].LastUpdated.Before(before) {
		t.Fatalf("expected fallback to ingestion time, got %s", rows[0].LastUpdated)
	}
}

func TestParseStockCSVEmptyPayload(t *testing.T) {
	_, _, err := ParseStockCSV(nil, "test")
	if err == nil {
		t.Fatal("empty payload must fail on the header read")
	}
}
