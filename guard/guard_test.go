package guard

import (
	"testing"
	"time"

	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/utils"
)

func TestRequiredLevel(t *testing.T) {
	cases := []struct {
		operation string
		level     models.AccessLevel
	}{
		{OpExportAlerts, models.AccessLevelExport},
		{OpGrantAccess, models.AccessLevelAdmin},
		{OpRunETL, models.AccessLevelAdmin},
		{OpAcknowledgeAlert, models.AccessLevelRead},
		{OpListAlerts, models.AccessLevelRead},
		{"some_future_operation", models.AccessLevelRead},
	}
	for _, tc := range cases {
		if got := RequiredLevel(tc.operation); got != tc.level {
			t.Fatalf("%s: expected %s, got %s", tc.operation, tc.level, got)
		}
	}
}

func TestDecideLevel(t *testing.T) {
	d := DecideLevel(models.AccessLevelRead, OpExportAlerts)
	if d.Allowed {
		t.Fatal("READ must not export")
	}
	if d.Outcome != models.AccessOutcomeDenied || d.Err != utils.ErrAccessDenied {
		t.Fatalf("expected denied outcome, got %+v", d)
	}

	d = DecideLevel(models.AccessLevelAdmin, OpExportAlerts)
	if !d.Allowed || d.Outcome != models.AccessOutcomeGranted {
		t.Fatalf("ADMIN covers EXPORT, got %+v", d)
	}

	d = DecideLevel(models.AccessLevelNone, OpListAlerts)
	if d.Allowed {
		t.Fatal("anonymous users have no READ access")
	}
}

func TestDecideRateBoundary(t *testing.T) {
	limit := OperationLimit(OpExportAlerts)

	// The request that brings the window to the limit is still allowed.
	if d := DecideRate(limit-1, OpExportAlerts); !d.Allowed {
		t.Fatalf("request #%d must pass, got %+v", limit, d)
	}
	// The next one is not.
	d := DecideRate(limit, OpExportAlerts)
	if d.Allowed {
		t.Fatalf("request #%d must be limited", limit+1)
	}
	if d.Outcome != models.AccessOutcomeLimited || d.Err != utils.ErrRateLimitExceeded {
		t.Fatalf("expected limited outcome, got %+v", d)
	}
}

func TestOperationLimits(t *testing.T) {
	if got := OperationLimit(OpExportAlerts); got != 10 {
		t.Fatalf("export limit: expected 10, got %d", got)
	}
	if got := OperationLimit(OpGrantAccess); got != 50 {
		t.Fatalf("admin op limit: expected 50, got %d", got)
	}
	if got := OperationLimit(OpListAlerts); got != 100 {
		t.Fatalf("default limit: expected 100, got %d", got)
	}
}

func TestWindowStartIsFixedHourly(t *testing.T) {
	at := time.Date(2026, 3, 10, 14, 37, 22, 0, time.UTC)
	ws := WindowStart(at)
	if ws != time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC) {
		t.Fatalf("expected truncation to the hour, got %s", ws)
	}
	// A request one second before the boundary and one after land in
	// different windows.
	before := WindowStart(time.Date(2026, 3, 10, 14, 59, 59, 0, time.UTC))
	after := WindowStart(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	if before.Equal(after) {
		t.Fatal("boundary requests must fall into distinct windows")
	}
}
