package notify_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/notify"
)

// Requires a reachable MySQL configured via the usual DB_* env vars.
func integrationSetup(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires MySQL)")
	}
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	return context.Background()
}

// Concurrent Notify calls for the same (sourceId, category) must collapse to
// a single notification row: the cooldown check and insert are serialized
// under an advisory lock.
func TestNotifyCooldownSerializedIntegration(t *testing.T) {
	ctx := integrationSetup(t)
	db := config.GetDB()

	engine := notify.NewEngine(nil, notify.DefaultEngineConfig())
	sourceId := "itest-source-" + uuid.NewString()[:8]

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Notify(ctx, sourceId, models.CategorySystem, "disk space low", "under 10% free", "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: Notify: %v", i, err)
		}
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.Notification{}).
		Where("source_id = ? AND category = ?", sourceId, models.CategorySystem).
		Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one notification, got %d", count)
	}

	// A repeat inside the cooldown window is absorbed and reported as success.
	ok, err := engine.Notify(ctx, sourceId, models.CategorySystem, "disk space low", "still low", "")
	if err != nil {
		t.Fatalf("repeat Notify: %v", err)
	}
	if !ok {
		t.Fatal("suppressed repeat must still report success")
	}
}
