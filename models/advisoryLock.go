package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireNamedLock serializes read-then-write sequences across instances using
// MySQL advisory locks. GET_LOCK is connection-scoped, so this must be called
// on the same *gorm.DB (transaction) that does the guarded work.
func AcquireNamedLock(tx *gorm.DB, name string, timeoutSeconds int) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, ?)", name, timeoutSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire lock %q", name)
	}
	return nil
}

func ReleaseNamedLock(tx *gorm.DB, name string) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", name).Scan(&_ok).Error
}
