package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/warepulse/stockwatch_backend/config"
)

// ETLRunLog is the audit row written for every ETL run, success or failure.
type ETLRunLog struct {
	ID               int       `gorm:"primary_key" json:"id"`
	RunId            string    `gorm:"size:100;uniqueIndex;not null" json:"run_id"`
	ReportCode       string    `gorm:"size:100;index" json:"report_code"`
	Status           string    `gorm:"size:20;index;not null" json:"status"` // completed | failed
	StepsJSON        []byte    `gorm:"type:json" json:"steps_json"`
	StatsJSON        []byte    `gorm:"type:json" json:"stats_json"`
	ErrorMessage     string    `gorm:"type:text" json:"error_message"`
	RecordsProcessed int       `json:"records_processed"`
	AlertsCreated    int       `json:"alerts_created"`
	DurationMs       int64     `gorm:"not null" json:"duration_ms"`
	StartedAt        time.Time `gorm:"not null" json:"started_at"`
	FinishedAt       time.Time `gorm:"not null" json:"finished_at"`
	TriggeredBy      string    `gorm:"size:100" json:"triggered_by"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	ETLRunStatusCompleted = "completed"
	ETLRunStatusFailed    = "failed"
)

func CreateETLRunLog(ctx context.Context, log *ETLRunLog) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(log).Error
}

func EncodeRunSteps(steps []string) []byte {
	b, _ := json.Marshal(steps)
	return b
}

func EncodeRunStats(stats map[string]int) []byte {
	b, _ := json.Marshal(stats)
	return b
}
