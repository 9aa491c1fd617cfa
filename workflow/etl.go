package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/marketsync"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/notify"
)

type ETLConfig struct {
	PollTimeout        time.Duration
	PollInterval       time.Duration
	MaxTransientErrors int
	Source             string
}

func DefaultETLConfig() ETLConfig {
	return ETLConfig{
		PollTimeout:        time.Duration(config.IntFromEnv("ETL_POLL_TIMEOUT_SECONDS", 300)) * time.Second,
		PollInterval:       time.Duration(config.IntFromEnv("ETL_POLL_INTERVAL_SECONDS", 5)) * time.Second,
		MaxTransientErrors: config.IntFromEnv("ETL_POLL_MAX_TRANSIENT_ERRORS", 3),
		Source:             "marketplace",
	}
}

// ETLResult is the run summary, persisted whether the run succeeded or not.
type ETLResult struct {
	RunId            string         `json:"run_id"`
	ReportCode       string         `json:"report_code"`
	Status           string         `json:"status"`
	Steps            []string       `json:"steps"`
	Stats            map[string]int `json:"stats"`
	RecordsProcessed int            `json:"records_processed"`
	AlertsCreated    int            `json:"alerts_created"`
	Duration         time.Duration  `json:"duration"`
	ErrorMessage     string         `json:"error_message"`
}

// pollOutcome is the terminal result of the poll loop. DB-free so the loop is
// testable against a fake client.
type pollOutcome struct {
	status      models.ReportStatus // SUCCESS, ERROR or TIMEOUT
	downloadURL string
	errMessage  string
	sawProgress bool // remote moved past PENDING at least once
}

// pollUntilTerminal polls the report status with a bounded deadline. Transient
// errors (network blips) are retried up to cfg.MaxTransientErrors consecutive
// times before the run is escalated to ERROR. Deadline expiry is its own
// terminal state, TIMEOUT, never a silent abort.
func pollUntilTerminal(ctx context.Context, client marketsync.Client, code string, cfg ETLConfig) pollOutcome {
	deadline := time.Now().Add(cfg.PollTimeout)
	transient := 0
	sawProgress := false

	for {
		if err := ctx.Err(); err != nil {
			return pollOutcome{status: models.ReportStatusTimeout, errMessage: "cancelled: " + err.Error(), sawProgress: sawProgress}
		}
		if time.Now().After(deadline) {
			return pollOutcome{
				status:      models.ReportStatusTimeout,
				errMessage:  fmt.Sprintf("report %s not ready within %s", code, cfg.PollTimeout),
				sawProgress: sawProgress,
			}
		}

		status, err := client.GetReportStatus(ctx, code)
		if err != nil {
			transient++
			if transient > cfg.MaxTransientErrors {
				return pollOutcome{
					status:      models.ReportStatusError,
					errMessage:  fmt.Sprintf("polling failed after %d attempts: %v", transient, err),
					sawProgress: sawProgress,
				}
			}
		} else {
			transient = 0
			switch status.Status {
			case marketsync.RemoteStatusSuccess:
				if status.DownloadURL == "" {
					return pollOutcome{status: models.ReportStatusError, errMessage: "report ready but download url missing", sawProgress: true}
				}
				return pollOutcome{status: models.ReportStatusSuccess, downloadURL: status.DownloadURL, sawProgress: true}
			case marketsync.RemoteStatusError:
				return pollOutcome{status: models.ReportStatusError, errMessage: status.Error, sawProgress: true}
			case marketsync.RemoteStatusProcessing:
				sawProgress = true
			}
		}

		select {
		case <-ctx.Done():
			return pollOutcome{status: models.ReportStatusTimeout, errMessage: "cancelled while polling", sawProgress: sawProgress}
		case <-time.After(cfg.PollInterval):
		}
	}
}

// ExecuteETL drives one run end to end: request -> poll -> download -> parse ->
// persist -> analyze. The run summary is always recorded so failures stay
// auditable; analysis only runs after a processed report.
func ExecuteETL(ctx context.Context, client marketsync.Client, notifier *notify.Engine, params marketsync.ReportParams, runId string, triggeredBy string) (*ETLResult, error) {
	cfg := DefaultETLConfig()
	logger := config.GetLogger()

	if runId == "" {
		runId = uuid.NewString()
	}
	if params.ReportType == "" {
		params.ReportType = "warehouse_stock"
	}

	started := time.Now().UTC()
	result := &ETLResult{
		RunId:  runId,
		Status: models.ETLRunStatusFailed,
		Stats:  map[string]int{},
	}

	finish := func(runErr error) (*ETLResult, error) {
		result.Duration = time.Since(started)
		if runErr != nil {
			result.ErrorMessage = runErr.Error()
		}
		persistRunLog(ctx, result, started, triggeredBy)
		if runErr != nil && notifier != nil {
			// Best effort; a notification failure never changes the run outcome.
			details := fmt.Sprintf(`{"run_id":%q,"report_code":%q}`, runId, result.ReportCode)
			_, nerr := notifier.Notify(ctx, "etl:"+runId, models.CategoryETLError,
				"Stock ETL run failed", runErr.Error(), details)
			if nerr != nil {
				config.LogError(logger, "workflow", "ExecuteETL", "notify failure", runId, nerr)
			}
		}
		return result, runErr
	}

	// Step 1: request report generation. A rejection here is fatal.
	code, err := client.CreateReport(ctx, params)
	if err != nil {
		result.Steps = append(result.Steps, "request_report:failed")
		return finish(fmt.Errorf("request report: %w", err))
	}
	result.ReportCode = code
	result.Steps = append(result.Steps, "request_report:ok")

	paramsJSON, _ := json.Marshal(params)
	req, err := models.CreateReportRequest(ctx, code, params.ReportType, string(paramsJSON))
	if err != nil {
		result.Steps = append(result.Steps, "create_request:failed")
		return finish(fmt.Errorf("create report request: %w", err))
	}

	// Step 2: poll to a terminal state.
	outcome := pollUntilTerminal(ctx, client, code, cfg)
	if outcome.sawProgress && req.Status == models.ReportStatusRequested {
		if terr := models.TransitionReportRequest(ctx, req, models.ReportStatusProcessing, ""); terr != nil {
			config.LogError(logger, "workflow", "ExecuteETL", "transition to PROCESSING", code, terr)
		}
	}
	if outcome.status != models.ReportStatusSuccess {
		result.Steps = append(result.Steps, "poll:"+string(outcome.status))
		if terr := models.TransitionReportRequest(ctx, req, outcome.status, outcome.errMessage); terr != nil {
			config.LogError(logger, "workflow", "ExecuteETL", "transition to terminal failure", code, terr)
		}
		return finish(fmt.Errorf("report %s terminal state %s: %s", code, outcome.status, outcome.errMessage))
	}
	result.Steps = append(result.Steps, "poll:SUCCESS")
	if terr := models.TransitionReportRequest(ctx, req, models.ReportStatusSuccess, ""); terr != nil {
		return finish(fmt.Errorf("record report success: %w", terr))
	}

	// Step 3: download, parse, persist.
	payload, err := client.Download(ctx, outcome.downloadURL)
	if err != nil {
		result.Steps = append(result.Steps, "download:failed")
		return finish(fmt.Errorf("download report %s: %w", code, err))
	}
	result.Steps = append(result.Steps, "download:ok")
	result.Stats["payload_bytes"] = len(payload)

	if uri, aerr := marketsync.ArchiveReportPayload(ctx, code, payload); aerr != nil {
		config.LogError(logger, "workflow", "ExecuteETL", "archive payload", code, aerr)
	} else {
		result.Steps = append(result.Steps, "archive:"+uri)
	}

	rows, skipped, err := marketsync.ParseStockCSV(payload, cfg.Source)
	if err != nil {
		result.Steps = append(result.Steps, "parse:failed")
		return finish(fmt.Errorf("parse report %s: %w", code, err))
	}
	result.Steps = append(result.Steps, "parse:ok")
	result.Stats["rows_parsed"] = len(rows)
	result.Stats["rows_skipped"] = skipped

	count, err := marketsync.UpdateInventory(ctx, rows, cfg.Source, code)
	if err != nil {
		result.Steps = append(result.Steps, "persist:failed")
		return finish(fmt.Errorf("persist inventory: %w", err))
	}
	result.Steps = append(result.Steps, "persist:ok")
	result.RecordsProcessed = count

	if err := models.MarkReportProcessed(ctx, req, count); err != nil {
		return finish(fmt.Errorf("mark report processed: %w", err))
	}
	result.Steps = append(result.Steps, "mark_processed:ok")

	// Step 4: analyze fresh inventory and raise alerts.
	analysis, err := AnalyzeStock(ctx, AnalysisFilters{Warehouses: params.Warehouses})
	if err != nil {
		result.Steps = append(result.Steps, "analyze:failed")
		return finish(fmt.Errorf("stock analysis: %w", err))
	}
	result.Steps = append(result.Steps, "analyze:ok")
	result.Stats["items_analyzed"] = len(analysis.Items)

	created, err := GenerateAlerts(ctx, notifier, analysis.Items)
	if err != nil {
		result.Steps = append(result.Steps, "alerts:failed")
		return finish(fmt.Errorf("generate alerts: %w", err))
	}
	result.Steps = append(result.Steps, "alerts:ok")
	result.AlertsCreated = created

	result.Status = models.ETLRunStatusCompleted
	return finish(nil)
}

func persistRunLog(ctx context.Context, result *ETLResult, started time.Time, triggeredBy string) {
	logger := config.GetLogger()
	entry := &models.ETLRunLog{
		RunId:            result.RunId,
		ReportCode:       result.ReportCode,
		Status:           result.Status,
		StepsJSON:        models.EncodeRunSteps(result.Steps),
		StatsJSON:        models.EncodeRunStats(result.Stats),
		ErrorMessage:     result.ErrorMessage,
		RecordsProcessed: result.RecordsProcessed,
		AlertsCreated:    result.AlertsCreated,
		DurationMs:       result.Duration.Milliseconds(),
		StartedAt:        started,
		FinishedAt:       started.Add(result.Duration),
		TriggeredBy:      triggeredBy,
	}
	if err := models.CreateETLRunLog(ctx, entry); err != nil {
		config.LogError(logger, "workflow", "persistRunLog", "create run log", result.RunId, err)
	}
}
