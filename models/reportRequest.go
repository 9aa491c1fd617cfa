package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/warepulse/stockwatch_backend/config"
)

// ReportRequest tracks one marketplace report generation request for its whole
// lifetime. A request is created once per ETL run and never reused.
type ReportRequest struct {
	ID               int          `gorm:"primary_key" json:"id"`
	Code             string       `gorm:"size:100;uniqueIndex;not null" json:"code"`
	Type             string       `gorm:"size:50;not null" json:"type"`
	Status           ReportStatus `gorm:"size:20;index;not null" json:"status"`
	Parameters       string       `gorm:"type:text" json:"parameters"`
	RequestedAt      time.Time    `gorm:"not null" json:"requested_at"`
	CompletedAt      *time.Time   `json:"completed_at"`
	ProcessedAt      *time.Time   `json:"processed_at"`
	RecordsProcessed int          `json:"records_processed"`
	ErrorMessage     string       `gorm:"type:text" json:"error_message"`
	CreatedAt        time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	ErrInvalidReportTransition = errors.New("invalid report status transition")
	ErrDuplicateReportCode     = errors.New("report code already tracked")
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// CreateReportRequest tracks a new report. The marketplace hands out unique
// codes, so a duplicate insert means a redelivered trigger reused a run.
func CreateReportRequest(ctx context.Context, code string, reportType string, parameters string) (*ReportRequest, error) {
	req := ReportRequest{
		Code:        code,
		Type:        reportType,
		Status:      ReportStatusRequested,
		Parameters:  parameters,
		RequestedAt: time.Now().UTC(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&req).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrDuplicateReportCode
		}
		return nil, err
	}
	return &req, nil
}

// TransitionReportRequest moves the request to the next status, enforcing the
// one-directional transition table. Terminal failures carry an error message,
// SUCCESS/TIMEOUT/ERROR stamp completed_at.
func TransitionReportRequest(ctx context.Context, req *ReportRequest, next ReportStatus, errorMessage string) error {
	if !req.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidReportTransition, req.Status, next)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status": next,
	}
	if next.IsCompletion() {
		updates["completed_at"] = &now
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&ReportRequest{}).
		Where("id = ? AND status = ?", req.ID, req.Status).
		Updates(updates).Error; err != nil {
		return err
	}

	req.Status = next
	if next.IsCompletion() {
		req.CompletedAt = &now
	}
	if errorMessage != "" {
		req.ErrorMessage = errorMessage
	}
	return nil
}

// MarkReportProcessed is the only path to PROCESSED and requires SUCCESS first.
func MarkReportProcessed(ctx context.Context, req *ReportRequest, recordsProcessed int) error {
	if !req.Status.CanTransitionTo(ReportStatusProcessed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidReportTransition, req.Status, ReportStatusProcessed)
	}

	now := time.Now().UTC()
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&ReportRequest{}).
		Where("id = ? AND status = ?", req.ID, ReportStatusSuccess).
		Updates(map[string]interface{}{
			"status":            ReportStatusProcessed,
			"processed_at":      &now,
			"records_processed": recordsProcessed,
		}).Error; err != nil {
		return err
	}

	req.Status = ReportStatusProcessed
	req.ProcessedAt = &now
	req.RecordsProcessed = recordsProcessed
	return nil
}

func GetReportRequestByCode(ctx context.Context, code string) (*ReportRequest, error) {
	var req ReportRequest
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("code = ?", code).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}
