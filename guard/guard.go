package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/utils"
	"gorm.io/gorm"
)

// Operation names checked by the guard. Handlers pass these verbatim so the
// audit log and rate counters share one vocabulary.
const (
	OpRunETL           = "run_etl"
	OpAcknowledgeAlert = "acknowledge_alert"
	OpResolveAlert     = "resolve_alert"
	OpListAlerts       = "list_alerts"
	OpExportAlerts     = "export_alerts"
	OpGrantAccess      = "grant_access"
	OpSweepEscalations = "sweep_escalations"
)

const windowSeconds = 3600

// requiredLevels maps operations to the minimum access level. Unlisted
// operations require READ.
var requiredLevels = map[string]models.AccessLevel{
	OpExportAlerts:     models.AccessLevelExport,
	OpGrantAccess:      models.AccessLevelAdmin,
	OpRunETL:           models.AccessLevelAdmin,
	OpSweepEscalations: models.AccessLevelAdmin,
}

// operationLimits caps requests per hour per user. Unlisted operations get the
// default limit.
var operationLimits = map[string]int{
	OpExportAlerts:     10,
	OpGrantAccess:      50,
	OpRunETL:           50,
	OpSweepEscalations: 50,
}

const defaultLimit = 100

// Decision carries the guard's verdict plus the audit fields derived from it.
type Decision struct {
	Allowed bool
	Outcome models.AccessOutcome
	Reason  string
	Err     error
}

func RequiredLevel(operation string) models.AccessLevel {
	if lvl, ok := requiredLevels[operation]; ok {
		return lvl
	}
	return models.AccessLevelRead
}

func OperationLimit(operation string) int {
	if limit, ok := operationLimits[operation]; ok {
		return limit
	}
	return defaultLimit
}

// WindowStart truncates now to the fixed rate-limit window.
func WindowStart(now time.Time) time.Time {
	return now.UTC().Truncate(windowSeconds * time.Second)
}

// DecideLevel is the pure access-level check.
func DecideLevel(have models.AccessLevel, operation string) Decision {
	required := RequiredLevel(operation)
	if !have.Covers(required) {
		return Decision{
			Allowed: false,
			Outcome: models.AccessOutcomeDenied,
			Reason:  fmt.Sprintf("requires %s, user has %s", required, have),
			Err:     utils.ErrAccessDenied,
		}
	}
	return Decision{Allowed: true, Outcome: models.AccessOutcomeGranted}
}

// DecideRate is the pure rate check: priorCount is the number of requests
// already counted in this window before the current one.
func DecideRate(priorCount int, operation string) Decision {
	limit := OperationLimit(operation)
	if priorCount >= limit {
		return Decision{
			Allowed: false,
			Outcome: models.AccessOutcomeLimited,
			Reason:  fmt.Sprintf("rate limit %d/hour exceeded", limit),
			Err:     utils.ErrRateLimitExceeded,
		}
	}
	return Decision{Allowed: true, Outcome: models.AccessOutcomeGranted}
}

func rateLockName(userId, operation string) string {
	return fmt.Sprintf("rate:%s:%s", userId, operation)
}

// CheckAccess is the single entry point guarding user-triggered operations:
// access level first (fail closed on lookup errors), then the fixed-window
// rate counter (fail open on counter errors), audit log last (best-effort).
func CheckAccess(ctx context.Context, userId string, operation string) Decision {
	logger := config.GetLogger()
	now := time.Now().UTC()

	decision := func() Decision {
		level, err := models.GetAccessLevel(ctx, userId)
		if err != nil {
			return Decision{
				Allowed: false,
				Outcome: models.AccessOutcomeError,
				Reason:  "access level lookup failed",
				Err:     utils.ErrAccessDenied,
			}
		}
		if d := DecideLevel(level, operation); !d.Allowed {
			return d
		}

		prior, err := countRequest(ctx, userId, operation, now)
		if err != nil {
			// Counter persistence trouble must not take the feature down.
			config.LogError(logger, "guard", "CheckAccess", "rate counter", userId+"/"+operation, err)
			return Decision{Allowed: true, Outcome: models.AccessOutcomeGranted, Reason: "rate counter unavailable"}
		}
		return DecideRate(prior, operation)
	}()

	clientIP, _ := utils.GetClientIPFromContext(ctx)
	audit := &models.AccessAuditLog{
		UserId:    userId,
		Operation: operation,
		Outcome:   decision.Outcome,
		Reason:    decision.Reason,
		ClientIP:  clientIP,
	}
	if err := models.CreateAccessAuditLog(ctx, audit); err != nil {
		config.LogError(logger, "guard", "CheckAccess", "audit log", userId+"/"+operation, err)
	}
	return decision
}

// countRequest serializes the read-then-write counter update behind an
// advisory lock so concurrent requests from one user cannot both see the
// pre-limit count.
func countRequest(ctx context.Context, userId string, operation string, now time.Time) (int, error) {
	db := config.GetDB()
	prior := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockName := rateLockName(userId, operation)
		if err := models.AcquireNamedLock(tx, lockName, 3); err != nil {
			return err
		}
		defer models.ReleaseNamedLock(tx, lockName)

		var err error
		prior, err = models.IncrementRateCounter(tx, ctx, userId, operation, WindowStart(now), now)
		return err
	})
	return prior, err
}

// GrantAccess sets a user's explicit access level. The caller must already
// have passed CheckAccess for grant_access.
func GrantAccess(ctx context.Context, userId string, level models.AccessLevel, grantedBy string) (*models.AccessGrant, error) {
	switch level {
	case models.AccessLevelNone, models.AccessLevelRead, models.AccessLevelExport, models.AccessLevelAdmin:
	default:
		return nil, fmt.Errorf("unknown access level %q", level)
	}
	return models.UpsertAccessGrant(ctx, userId, level, grantedBy)
}
