package models

import (
	"log"

	"github.com/warepulse/stockwatch_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ReportRequest{}, &ETLRunLog{},
		&InventoryRecord{}, &StockMovement{},
		&StockAlert{},
		&Notification{}, &NotificationDelivery{}, &NotificationRule{}, &Recipient{},
		&RateLimitCounter{}, &AccessGrant{}, &AccessAuditLog{},
		&AlertSetting{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
