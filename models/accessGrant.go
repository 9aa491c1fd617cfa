package models

import (
	"context"
	"errors"
	"time"

	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/utils"
	"gorm.io/gorm"
)

// AccessGrant is the explicit access level of a user. Absence of a grant means
// READ for authenticated users and NONE otherwise.
type AccessGrant struct {
	ID          int         `gorm:"primary_key" json:"id"`
	UserId      string      `gorm:"size:100;uniqueIndex;not null" json:"user_id"`
	AccessLevel AccessLevel `gorm:"size:10;not null" json:"access_level"`
	GrantedBy   string      `gorm:"size:100" json:"granted_by"`
	GrantedAt   time.Time   `gorm:"not null" json:"granted_at"`
	IsActive    *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// RateLimitCounter is a fixed-window request counter. The window resets
// implicitly when a new window_start is observed.
type RateLimitCounter struct {
	ID           int       `gorm:"primary_key" json:"id"`
	UserId       string    `gorm:"size:100;uniqueIndex:idx_rate_key;not null" json:"user_id"`
	Operation    string    `gorm:"size:100;uniqueIndex:idx_rate_key;not null" json:"operation"`
	WindowStart  time.Time `gorm:"uniqueIndex:idx_rate_key;not null" json:"window_start"`
	RequestCount int       `gorm:"not null;default:0" json:"request_count"`
	LastRequest  time.Time `gorm:"not null" json:"last_request"`
}

// AccessAuditLog records every access-check outcome for audit. Writes here are
// best-effort: an audit failure never blocks the checked operation.
type AccessAuditLog struct {
	ID        int           `gorm:"primary_key" json:"id"`
	UserId    string        `gorm:"size:100;index;not null" json:"user_id"`
	Operation string        `gorm:"size:100;index;not null" json:"operation"`
	Outcome   AccessOutcome `gorm:"size:10;not null" json:"outcome"`
	Reason    string        `gorm:"size:200" json:"reason"`
	ClientIP  string        `gorm:"size:50" json:"client_ip"`
	CreatedAt time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
}

// GetAccessLevel resolves the effective access level of a user. Lookup errors
// other than not-found propagate so the guard can fail closed.
func GetAccessLevel(ctx context.Context, userId string) (AccessLevel, error) {
	if userId == "" {
		return AccessLevelNone, nil
	}
	db := config.GetDB()
	var grant AccessGrant
	err := db.WithContext(ctx).Where("user_id = ? AND is_active = true", userId).First(&grant).Error
	if err == gorm.ErrRecordNotFound {
		// Any authenticated user may read.
		return AccessLevelRead, nil
	}
	if err != nil {
		return AccessLevelNone, err
	}
	return grant.AccessLevel, nil
}

// UpsertAccessGrant creates or replaces a user's grant. Caller is responsible
// for admin gating (guard.CheckAccess on the grant_access operation).
func UpsertAccessGrant(ctx context.Context, userId string, level AccessLevel, grantedBy string) (*AccessGrant, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()

	grant := AccessGrant{
		UserId:      userId,
		AccessLevel: level,
		GrantedBy:   grantedBy,
		GrantedAt:   time.Now().UTC(),
		IsActive:    utils.NewTrue(),
	}

	var existing AccessGrant
	err := db.WithContext(ctx).Where("user_id = ?", userId).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := db.WithContext(ctx).Create(&grant).Error; err != nil {
			return nil, err
		}
		return &grant, nil
	}
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&AccessGrant{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"access_level": level,
			"granted_by":   grantedBy,
			"granted_at":   grant.GrantedAt,
			"is_active":    true,
		}).Error; err != nil {
		return nil, err
	}
	grant.ID = existing.ID
	return &grant, nil
}

// IncrementRateCounter performs the read-then-write counter update for the
// current window and returns the count BEFORE this request. Must be called on
// a tx serialized by the rate-limit advisory lock.
func IncrementRateCounter(tx *gorm.DB, ctx context.Context, userId string, operation string, windowStart time.Time, now time.Time) (int, error) {
	var counter RateLimitCounter
	err := tx.WithContext(ctx).
		Where("user_id = ? AND operation = ? AND window_start = ?", userId, operation, windowStart).
		First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		counter = RateLimitCounter{
			UserId:       userId,
			Operation:    operation,
			WindowStart:  windowStart,
			RequestCount: 1,
			LastRequest:  now,
		}
		if err := tx.WithContext(ctx).Create(&counter).Error; err != nil {
			return 0, err
		}
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	prior := counter.RequestCount
	if err := tx.WithContext(ctx).Model(&RateLimitCounter{}).
		Where("id = ?", counter.ID).
		Updates(map[string]interface{}{
			"request_count": prior + 1,
			"last_request":  now,
		}).Error; err != nil {
		return prior, err
	}
	return prior, nil
}

func CreateAccessAuditLog(ctx context.Context, entry *AccessAuditLog) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(entry).Error
}
