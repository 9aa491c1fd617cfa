package models

import (
	"context"
	"time"

	"github.com/warepulse/stockwatch_backend/config"
	"gorm.io/gorm"
)

// Notification is one outbound message. Escalations are new rows linking to
// the original via ParentNotificationId, forming a linear chain.
type Notification struct {
	ID                   int                  `gorm:"primary_key" json:"id"`
	SourceId             string               `gorm:"size:100;index:idx_notification_source" json:"source_id"`
	Category             NotificationCategory `gorm:"size:40;index:idx_notification_source;not null" json:"category"`
	Priority             NotificationPriority `gorm:"not null" json:"priority"`
	Title                string               `gorm:"size:300;not null" json:"title"`
	Message              string               `gorm:"type:text" json:"message"`
	Details              string               `gorm:"type:text" json:"details"`
	Channels             string               `gorm:"size:200;not null" json:"channels"` // comma-joined ChannelType list
	Recipients           string               `gorm:"type:text" json:"recipients"`       // comma-joined recipient ids
	Status               NotificationStatus   `gorm:"size:15;index;not null" json:"status"`
	Attempts             int                  `gorm:"not null;default:0" json:"attempts"`
	ScheduledAt          time.Time            `gorm:"not null" json:"scheduled_at"`
	SentAt               *time.Time           `json:"sent_at"`
	EscalationLevel      int                  `gorm:"not null;default:0" json:"escalation_level"`
	NextEscalationAt     *time.Time           `gorm:"index" json:"next_escalation_at"`
	ParentNotificationId *int                 `gorm:"index" json:"parent_notification_id"`
	CorrelationId        string               `gorm:"size:100" json:"correlation_id"`
	CreatedAt            time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// NotificationDelivery is the per-channel, per-recipient delivery log.
type NotificationDelivery struct {
	ID             int         `gorm:"primary_key" json:"id"`
	NotificationId int         `gorm:"index;not null" json:"notification_id"`
	Channel        ChannelType `gorm:"size:20;not null" json:"channel"`
	Recipient      string      `gorm:"size:300;not null" json:"recipient"`
	Success        bool        `gorm:"not null" json:"success"`
	DeliveryTimeMs int64       `gorm:"not null" json:"delivery_time_ms"`
	Error          string      `gorm:"type:text" json:"error"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// NotificationRule maps a category (and minimum priority) to channels and a
// recipient group. The engine falls back to a default rule when none matches.
type NotificationRule struct {
	ID             int                  `gorm:"primary_key" json:"id"`
	Category       NotificationCategory `gorm:"size:40;index;not null" json:"category"`
	MinPriority    NotificationPriority `gorm:"not null;default:1" json:"min_priority"`
	Channels       string               `gorm:"size:200;not null" json:"channels"`
	RecipientGroup string               `gorm:"size:100;not null" json:"recipient_group"`
	IsActive       *bool                `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// Recipient is a notification target. EscalationLevel is the first escalation
// tier at which this recipient is pulled in (0 = always).
type Recipient struct {
	ID              int       `gorm:"primary_key" json:"id"`
	Name            string    `gorm:"size:200;not null" json:"name"`
	Group           string    `gorm:"size:100;index;column:recipient_group;not null" json:"group"`
	Email           string    `gorm:"size:300" json:"email"`
	Phone           string    `gorm:"size:30" json:"phone"`
	WebhookURL      string    `gorm:"size:500" json:"webhook_url"`
	EscalationLevel int       `gorm:"not null;default:0" json:"escalation_level"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// LastNotificationSince returns the most recent non-cancelled notification for
// (sourceId, category) newer than the cutoff, or nil. Drives the cooldown
// check, so it runs on the caller's transaction.
func LastNotificationSince(tx *gorm.DB, ctx context.Context, sourceId string, category NotificationCategory, cutoff time.Time) (*Notification, error) {
	var n Notification
	err := tx.WithContext(ctx).
		Where("source_id = ? AND category = ? AND status <> ?", sourceId, category, NotificationStatusCancelled).
		Where("created_at > ?", cutoff).
		Order("created_at DESC").
		First(&n).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func CreateNotification(ctx context.Context, n *Notification) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(n).Error
}

func RecordDeliveries(ctx context.Context, deliveries []*NotificationDelivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&deliveries).Error
}

// EscalationCandidates selects sent notifications that are due for escalation.
// The level cap is enforced by the sweep, which also clears schedules left
// over from a lowered cap.
func EscalationCandidates(ctx context.Context, now time.Time, limit int) ([]*Notification, error) {
	db := config.GetDB()
	var due []*Notification
	err := db.WithContext(ctx).
		Where("status = ? AND next_escalation_at IS NOT NULL AND next_escalation_at <= ?",
			NotificationStatusSent, now).
		Order("next_escalation_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

// PendingNotifications selects non-critical notifications awaiting batch delivery.
func PendingNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	db := config.GetDB()
	var pending []*Notification
	err := db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", NotificationStatusPending, time.Now().UTC()).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// MatchNotificationRule finds the most specific active rule for the category
// whose min_priority the notification meets.
func MatchNotificationRule(ctx context.Context, category NotificationCategory, priority NotificationPriority) (*NotificationRule, error) {
	db := config.GetDB()
	var rule NotificationRule
	err := db.WithContext(ctx).
		Where("category = ? AND min_priority <= ? AND is_active = true", category, priority).
		Order("min_priority DESC").
		First(&rule).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func GetRecipientsByIds(ctx context.Context, ids []int) ([]*Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := config.GetDB()
	var recipients []*Recipient
	if err := db.WithContext(ctx).Where("id IN ? AND is_active = true", ids).Find(&recipients).Error; err != nil {
		return nil, err
	}
	return recipients, nil
}

// RecipientsForEscalation returns active group members whose configured
// escalation level has been reached.
func RecipientsForEscalation(ctx context.Context, group string, level int) ([]*Recipient, error) {
	db := config.GetDB()
	var recipients []*Recipient
	err := db.WithContext(ctx).
		Where("recipient_group = ? AND escalation_level <= ? AND is_active = true", group, level).
		Find(&recipients).Error
	if err != nil {
		return nil, err
	}
	return recipients, nil
}
