package marketsync

import (
	"context"
	"time"

	"github.com/warepulse/stockwatch_backend/models"
)

// UpdateInventory persists parsed report rows. Before the upsert it diffs the
// fresh quantities against the previous snapshot and records the deltas as
// stock movements, so the velocity window stays continuous across runs.
// Returns the number of inventory rows written.
func UpdateInventory(ctx context.Context, rows []*StockRow, source string, reportCode string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	previous, err := models.GetInventoryRecords(ctx, "", nil)
	if err != nil {
		return 0, err
	}
	type invKey struct {
		productId int64
		warehouse string
	}
	prevByKey := make(map[invKey]*models.InventoryRecord, len(previous))
	for _, rec := range previous {
		if rec.Source == source && rec.StockType == models.StockTypeFBO {
			prevByKey[invKey{rec.ProductId, rec.WarehouseName}] = rec
		}
	}

	now := time.Now().UTC()
	records := make([]*models.InventoryRecord, 0, len(rows))
	var movements []*models.StockMovement

	for _, row := range rows {
		records = append(records, &models.InventoryRecord{
			ProductId:        row.ProductId,
			Sku:              row.Sku,
			WarehouseName:    row.WarehouseName,
			StockType:        models.StockTypeFBO,
			QuantityPresent:  row.QuantityPresent,
			QuantityReserved: row.QuantityReserved,
			Source:           source,
			ReportCode:       reportCode,
		})

		prev, ok := prevByKey[invKey{row.ProductId, row.WarehouseName}]
		if !ok {
			continue
		}
		delta := row.QuantityPresent.Sub(prev.QuantityPresent)
		if delta.IsZero() {
			continue
		}
		reason := "restock"
		if delta.IsNegative() {
			// Stock that left an FBO warehouse between reports is attributed
			// to sales; returns and write-offs are indistinguishable here.
			reason = "sale"
		}
		movements = append(movements, &models.StockMovement{
			ProductId:     row.ProductId,
			WarehouseName: row.WarehouseName,
			MovementDate:  now,
			Quantity:      delta,
			Reason:        reason,
		})
	}

	if err := models.RecordStockMovements(ctx, movements); err != nil {
		return 0, err
	}
	return models.UpsertInventoryRecords(ctx, records)
}
