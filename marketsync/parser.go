package marketsync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warepulse/stockwatch_backend/config"
)

// StockRow is one accepted row from a warehouse stock report.
type StockRow struct {
	ProductId        int64
	Sku              string
	WarehouseName    string
	QuantityPresent  decimal.Decimal
	QuantityReserved decimal.Decimal
	LastUpdated      time.Time
}

var requiredColumns = []string{
	"SKU", "Warehouse_Name", "Current_Stock", "Reserved_Stock", "Available_Stock", "Last_Updated",
}

// ParseStockCSV parses a downloaded report payload. Row-level problems
// (non-numeric SKU, negative or non-numeric stock, wrong column count) are
// logged and skipped, never fatal. A missing required column IS fatal: the
// whole payload is unusable. Invalid dates fall back to ingestion time.
func ParseStockCSV(payload []byte, source string) ([]*StockRow, int, error) {
	logger := config.GetLogger()

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1 // validate per row so one bad row doesn't abort

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}

	colIndex := map[string]int{}
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, 0, fmt.Errorf("missing required column %q", col)
		}
	}

	now := time.Now().UTC()
	var rows []*StockRow
	skipped := 0
	lineNo := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed line (e.g. a bare quote) rejects that row only;
			// the reader resumes on the next line.
			lineNo++
			skipped++
			logger.WithFields(logrus.Fields{
				"module": "marketsync",
				"line":   lineNo,
				"source": source,
			}).Warn("skipping row: " + err.Error())
			continue
		}
		lineNo++

		if len(record) != len(header) {
			skipped++
			logger.WithFields(logrus.Fields{
				"module": "marketsync",
				"line":   lineNo,
				"source": source,
			}).Warn("skipping row: column count mismatch")
			continue
		}

		sku := strings.TrimSpace(record[colIndex["SKU"]])
		productId, err := strconv.ParseInt(sku, 10, 64)
		if err != nil {
			skipped++
			logger.WithFields(logrus.Fields{
				"module": "marketsync",
				"line":   lineNo,
				"sku":    sku,
			}).Warn("skipping row: non-numeric SKU")
			continue
		}

		present, err := parseNonNegativeDecimal(record[colIndex["Current_Stock"]])
		if err != nil {
			skipped++
			logger.WithFields(logrus.Fields{
				"module": "marketsync",
				"line":   lineNo,
				"sku":    sku,
			}).Warn("skipping row: bad current stock: " + err.Error())
			continue
		}
		reserved, err := parseNonNegativeDecimal(record[colIndex["Reserved_Stock"]])
		if err != nil {
			skipped++
			logger.WithFields(logrus.Fields{
				"module": "marketsync",
				"line":   lineNo,
				"sku":    sku,
			}).Warn("skipping row: bad reserved stock: " + err.Error())
			continue
		}
		if _, err := parseNonNegativeDecimal(record[colIndex["Available_Stock"]]); err != nil {
			skipped++
			logger.WithFields(logrus.Fields{
				"module": "marketsync",
				"line":   lineNo,
				"sku":    sku,
			}).Warn("skipping row: bad available stock: " + err.Error())
			continue
		}

		warehouse := strings.TrimSpace(record[colIndex["Warehouse_Name"]])
		if warehouse == "" {
			skipped++
			logger.WithFields(logrus.Fields{
				"module": "marketsync",
				"line":   lineNo,
				"sku":    sku,
			}).Warn("skipping row: empty warehouse name")
			continue
		}

		updated := parseReportDate(record[colIndex["Last_Updated"]], now)

		rows = append(rows, &StockRow{
			ProductId:        productId,
			Sku:              sku,
			WarehouseName:    warehouse,
			QuantityPresent:  present,
			QuantityReserved: reserved,
			LastUpdated:      updated,
		})
	}

	return rows, skipped, nil
}

func parseNonNegativeDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative quantity %s", d)
	}
	return d, nil
}

var reportDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseReportDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range reportDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
