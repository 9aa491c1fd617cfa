package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/notify"
)

// Runs the escalation sweep and pending-notification delivery on an interval.
// Safe to run multiple replicas; the sweep lease keeps them from overlapping.
func main() {
	intervalSec := flag.Int("interval", 60, "Seconds between sweeps. 0 runs one sweep and exits.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	notifier := notify.NewEngine(notify.NewSenderRegistry(), notify.DefaultEngineConfig())
	logger := config.GetLogger()

	sweep := func() {
		escalated, err := notifier.ProcessEscalations(ctx)
		if err != nil {
			config.LogError(logger, "sweeper", "main", "escalation sweep", "", err)
		}
		delivered, err := notifier.ProcessPendingNotifications(ctx)
		if err != nil {
			config.LogError(logger, "sweeper", "main", "pending delivery", "", err)
		}
		if escalated > 0 || delivered > 0 {
			logger.Infof("sweep done: escalated=%d delivered=%d", escalated, delivered)
		}
	}

	sweep()
	if *intervalSec <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(*intervalSec) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		sweep()
	}
}
