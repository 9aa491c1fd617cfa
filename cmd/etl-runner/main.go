package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/marketsync"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/notify"
	"github.com/warepulse/stockwatch_backend/workflow"
)

func main() {
	reportType := flag.String("report-type", "stock_levels", "Report type to request from the marketplace API")
	warehouses := flag.String("warehouses", "", "Optional: comma-separated warehouse names to limit the report to")
	skus := flag.String("skus", "", "Optional: comma-separated SKUs to limit the report to")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	client, err := marketsync.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "marketplace client: %v\n", err)
		os.Exit(1)
	}
	notifier := notify.NewEngine(notify.NewSenderRegistry(), notify.DefaultEngineConfig())

	params := marketsync.ReportParams{
		ReportType: *reportType,
		Warehouses: splitList(*warehouses),
		Skus:       splitList(*skus),
	}
	runId := uuid.New().String()

	result, err := workflow.ExecuteETL(ctx, client, notifier, params, runId, "EtlRunner")
	if err != nil {
		fmt.Fprintf(os.Stderr, "run %s failed: %v\n", runId, err)
		os.Exit(1)
	}
	fmt.Printf("run %s done: report=%s rows=%d skipped=%d processed=%d alerts=%d\n",
		runId, result.ReportCode, result.Stats["rows_parsed"], result.Stats["rows_skipped"], result.RecordsProcessed, result.AlertsCreated)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
