package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/utils"
	"gorm.io/gorm"
)

// Seeds the default notification rules, an administrators recipient group and
// the stock-analysis thresholds. Idempotent: existing rows are left alone.
func main() {
	adminEmail := flag.String("admin-email", "", "Required: email of the initial administrator recipient")
	adminUser := flag.String("admin-user", "", "Optional: user id to grant ADMIN access")
	flag.Parse()

	if *adminEmail == "" {
		fmt.Fprintln(os.Stderr, "usage: seed-defaults -admin-email ops@example.com [-admin-user <user-id>]")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	recipient := models.Recipient{
		Name:            "Administrators",
		Group:           "administrators",
		Email:           *adminEmail,
		EscalationLevel: 0,
		IsActive:        utils.NewTrue(),
	}
	if err := db.WithContext(ctx).
		Where("recipient_group = ? AND email = ?", recipient.Group, recipient.Email).
		FirstOrCreate(&recipient).Error; err != nil {
		fmt.Fprintf(os.Stderr, "seed recipient: %v\n", err)
		os.Exit(1)
	}

	rules := []models.NotificationRule{
		{Category: models.CategoryStockAlert, MinPriority: models.PriorityLow, Channels: "email", RecipientGroup: "administrators", IsActive: utils.NewTrue()},
		{Category: models.CategoryETLError, MinPriority: models.PriorityLow, Channels: "email", RecipientGroup: "administrators", IsActive: utils.NewTrue()},
		{Category: models.CategoryDatabaseError, MinPriority: models.PriorityLow, Channels: "email", RecipientGroup: "administrators", IsActive: utils.NewTrue()},
	}
	for i := range rules {
		rule := rules[i]
		if err := db.WithContext(ctx).
			Where("category = ? AND recipient_group = ?", rule.Category, rule.RecipientGroup).
			FirstOrCreate(&rule).Error; err != nil {
			fmt.Fprintf(os.Stderr, "seed rule %s: %v\n", rule.Category, err)
			os.Exit(1)
		}
	}

	settings := map[string]string{
		"critical_threshold_days":    "3",
		"high_threshold_days":        "7",
		"slow_moving_threshold_days": "30",
		"overstocked_threshold_days": "90",
	}
	for name, value := range settings {
		if err := seedSetting(ctx, db, name, value); err != nil {
			fmt.Fprintf(os.Stderr, "seed setting %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	if *adminUser != "" {
		if _, err := models.UpsertAccessGrant(ctx, *adminUser, models.AccessLevelAdmin, "SeedDefaults"); err != nil {
			fmt.Fprintf(os.Stderr, "grant admin: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("defaults seeded")
}

func seedSetting(ctx context.Context, db *gorm.DB, name string, value string) error {
	setting := models.AlertSetting{Name: name, Value: value, UpdatedBy: "SeedDefaults"}
	return db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&setting).Error
}
