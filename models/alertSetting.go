package models

import (
	"context"
	"strconv"
	"time"

	"github.com/warepulse/stockwatch_backend/config"
)

// AlertSetting is a named numeric override for analysis thresholds. Values are
// stored as strings so the table can also carry non-numeric settings later.
type AlertSetting struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Value     string    `gorm:"size:200;not null" json:"value"`
	UpdatedBy string    `gorm:"size:100" json:"updated_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const settingsCacheKey = "alertSettings"

// GetSettingFloat reads a numeric setting, preferring the redis cache, then
// the DB, then the provided default. Failures fall back to the default: a
// missing settings store must never break an analysis pass.
func GetSettingFloat(ctx context.Context, name string, def float64) float64 {
	values := map[string]string{}
	exists, err := config.GetRedisObject(settingsCacheKey, &values)
	if err != nil || !exists {
		values = map[string]string{}
		db := config.GetDB()
		if db == nil {
			return def
		}
		var rows []AlertSetting
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			return def
		}
		for _, row := range rows {
			values[row.Name] = row.Value
		}
		_ = config.SetRedisObject(settingsCacheKey, &values, 5*time.Minute)
	}

	raw, ok := values[name]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

// SetSetting writes an override and invalidates the cache.
func SetSetting(ctx context.Context, name string, value string, updatedBy string) error {
	db := config.GetDB()
	setting := AlertSetting{Name: name, Value: value, UpdatedBy: updatedBy}
	err := db.WithContext(ctx).
		Where("name = ?", name).
		Assign(map[string]interface{}{"value": value, "updated_by": updatedBy}).
		FirstOrCreate(&setting).Error
	if err != nil {
		return err
	}
	return config.RemoveRedisKey(settingsCacheKey)
}
