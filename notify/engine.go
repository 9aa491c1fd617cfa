package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/utils"
	"gorm.io/gorm"
)

// CategoryRoute is the priority and escalation cadence of one category.
type CategoryRoute struct {
	Priority           models.NotificationPriority
	EscalationInterval time.Duration
}

// DefaultCategoryRoutes maps categories to routing defaults. Passed into the
// engine as immutable configuration so tests and deployments can override it.
func DefaultCategoryRoutes() map[models.NotificationCategory]CategoryRoute {
	return map[models.NotificationCategory]CategoryRoute{
		models.CategoryAuthenticationError: {Priority: models.PriorityCritical, EscalationInterval: 10 * time.Minute},
		models.CategoryDatabaseError:       {Priority: models.PriorityCritical, EscalationInterval: 10 * time.Minute},
		models.CategoryETLError:            {Priority: models.PriorityCritical, EscalationInterval: 15 * time.Minute},
		models.CategoryParsingError:        {Priority: models.PriorityHigh, EscalationInterval: 30 * time.Minute},
		models.CategoryStockAlert:          {Priority: models.PriorityHigh, EscalationInterval: 30 * time.Minute},
		models.CategoryNetworkError:        {Priority: models.PriorityMedium, EscalationInterval: 45 * time.Minute},
		models.CategorySystem:              {Priority: models.PriorityLow, EscalationInterval: time.Hour},
	}
}

type EngineConfig struct {
	Cooldown             time.Duration
	EscalationEnabled    bool
	MaxEscalationLevel   int
	EscalationMultiplier float64
	BatchSize            int
	DefaultGroup         string
	Routes               map[models.NotificationCategory]CategoryRoute
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Cooldown:             time.Duration(config.IntFromEnv("NOTIFY_COOLDOWN_MINUTES", 15)) * time.Minute,
		EscalationEnabled:    config.BoolFromEnv("NOTIFY_ESCALATION_ENABLED", true),
		MaxEscalationLevel:   config.IntFromEnv("NOTIFY_MAX_ESCALATION_LEVEL", 3),
		EscalationMultiplier: 2,
		BatchSize:            config.IntFromEnv("NOTIFY_BATCH_SIZE", 50),
		DefaultGroup:         "administrators",
		Routes:               DefaultCategoryRoutes(),
	}
}

// Engine fans notifications out across channels and drives escalation.
type Engine struct {
	senders map[models.ChannelType]ChannelSender
	cfg     EngineConfig
}

func NewEngine(senders map[models.ChannelType]ChannelSender, cfg EngineConfig) *Engine {
	if cfg.Routes == nil {
		cfg.Routes = DefaultCategoryRoutes()
	}
	return &Engine{senders: senders, cfg: cfg}
}

func (e *Engine) route(category models.NotificationCategory) CategoryRoute {
	if r, ok := e.cfg.Routes[category]; ok {
		return r
	}
	return CategoryRoute{Priority: models.PriorityMedium, EscalationInterval: 30 * time.Minute}
}

// channelSet resolves the channels for a priority: the rule's channels when a
// rule matches, otherwise email, widened with SMS/webhook for CRITICAL and up.
// Channels without an enabled sender are dropped.
func (e *Engine) channelSet(ruleChannels string, priority models.NotificationPriority) []models.ChannelType {
	var wanted []models.ChannelType
	if ruleChannels != "" {
		for _, raw := range strings.Split(ruleChannels, ",") {
			wanted = append(wanted, models.ChannelType(strings.TrimSpace(raw)))
		}
	} else {
		wanted = []models.ChannelType{models.ChannelEmail}
	}
	if priority >= models.PriorityCritical {
		wanted = append(wanted, models.ChannelSMS, models.ChannelWebhook)
	}

	var enabled []models.ChannelType
	for _, ch := range utils.UniqueSlice(wanted) {
		if _, ok := e.senders[ch]; ok {
			enabled = append(enabled, ch)
		}
	}
	return enabled
}

func cooldownCacheKey(sourceId string, category models.NotificationCategory) string {
	return fmt.Sprintf("notifyCooldown:%s:%s", sourceId, category)
}

func cooldownLockName(sourceId string, category models.NotificationCategory) string {
	return fmt.Sprintf("notify:%s:%s", sourceId, category)
}

// Notify creates (and for CRITICAL+ immediately delivers) a notification.
// A repeat within the cooldown window is silently absorbed and reported as
// success: the condition is already on someone's screen.
//
// The cooldown check and insert run under an advisory lock per
// (sourceId, category) so two concurrent callers cannot both create one.
func (e *Engine) Notify(ctx context.Context, sourceId string, category models.NotificationCategory, title string, message string, details string) (bool, error) {
	logger := config.GetLogger()
	db := config.GetDB()
	now := time.Now().UTC()

	// Cooldown: redis is the fast path, the DB is authoritative.
	if _, hit, err := config.GetRedisValue(cooldownCacheKey(sourceId, category)); err == nil && hit {
		return true, nil
	}

	route := e.route(category)
	group := e.cfg.DefaultGroup
	ruleChannels := ""
	rule, err := models.MatchNotificationRule(ctx, category, route.Priority)
	if err != nil {
		config.LogError(logger, "notify", "Notify", "match rule", string(category), err)
	} else if rule != nil {
		group = rule.RecipientGroup
		ruleChannels = rule.Channels
	}

	channels := e.channelSet(ruleChannels, route.Priority)
	recipients, err := models.RecipientsForEscalation(ctx, group, 0)
	if err != nil {
		return false, err
	}

	var n *models.Notification
	err = db.Transaction(func(tx *gorm.DB) error {
		lockName := cooldownLockName(sourceId, category)
		if err := models.AcquireNamedLock(tx, lockName, 10); err != nil {
			return err
		}
		defer models.ReleaseNamedLock(tx, lockName)

		recent, err := models.LastNotificationSince(tx, ctx, sourceId, category, now.Add(-e.cfg.Cooldown))
		if err != nil {
			return err
		}
		if recent != nil {
			// Within cooldown, absorb the repeat.
			return nil
		}

		n = &models.Notification{
			SourceId:      sourceId,
			Category:      category,
			Priority:      route.Priority,
			Title:         title,
			Message:       message,
			Details:       details,
			Channels:      joinChannels(channels),
			Recipients:    joinRecipientIds(recipients),
			Status:        models.NotificationStatusPending,
			ScheduledAt:   now,
			CorrelationId: correlationId(ctx),
		}
		if e.cfg.EscalationEnabled {
			next := now.Add(route.EscalationInterval)
			n.NextEscalationAt = &next
		}
		return tx.WithContext(ctx).Create(n).Error
	})
	if err != nil {
		return false, err
	}
	if n == nil {
		return true, nil
	}

	if err := config.SetRedisValue(cooldownCacheKey(sourceId, category), "1", e.cfg.Cooldown); err != nil {
		config.LogError(logger, "notify", "Notify", "set cooldown cache", sourceId, err)
	}

	if route.Priority >= models.PriorityCritical {
		e.deliver(ctx, n, channels, recipients)
	}
	return true, nil
}

// deliver fans out to every (channel, recipient) pair concurrently. The pairs
// are independent I/O calls; outcomes are merged into one delivery log, and
// the notification is sent iff every pair succeeded.
func (e *Engine) deliver(ctx context.Context, n *models.Notification, channels []models.ChannelType, recipients []*models.Recipient) {
	logger := config.GetLogger()
	payload := Payload{
		Title:    n.Title,
		Message:  n.Message,
		Details:  n.Details,
		Priority: n.Priority,
		Category: n.Category,
	}

	type target struct {
		channel models.ChannelType
		address string
	}
	var targets []target
	for _, ch := range channels {
		sender, ok := e.senders[ch]
		if !ok {
			continue
		}
		for _, r := range recipients {
			address := recipientAddress(sender.Name(), r)
			if address == "" {
				continue
			}
			targets = append(targets, target{channel: ch, address: address})
		}
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		deliveries []*models.NotificationDelivery
		allOK      = true
	)
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			res := e.senders[t.channel].Send(ctx, t.address, payload)
			mu.Lock()
			defer mu.Unlock()
			deliveries = append(deliveries, &models.NotificationDelivery{
				NotificationId: n.ID,
				Channel:        t.channel,
				Recipient:      t.address,
				Success:        res.Success,
				DeliveryTimeMs: res.DeliveryTimeMs,
				Error:          res.Error,
			})
			if !res.Success {
				allOK = false
			}
		}(t)
	}
	wg.Wait()

	if err := models.RecordDeliveries(ctx, deliveries); err != nil {
		config.LogError(logger, "notify", "deliver", "record deliveries", n.ID, err)
	}

	status := models.NotificationStatusSent
	if len(targets) == 0 || !allOK {
		status = models.NotificationStatusFailed
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":   status,
		"attempts": n.Attempts + 1,
	}
	if status == models.NotificationStatusSent {
		updates["sent_at"] = &now
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", n.ID).Updates(updates).Error; err != nil {
		config.LogError(logger, "notify", "deliver", "update status", n.ID, err)
		return
	}
	n.Status = status
	n.Attempts++
	if status == models.NotificationStatusSent {
		n.SentAt = &now
	}
}

// ProcessPendingNotifications batch-delivers non-critical notifications left
// pending by Notify. Returns how many were attempted.
func (e *Engine) ProcessPendingNotifications(ctx context.Context) (int, error) {
	pending, err := models.PendingNotifications(ctx, e.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, n := range pending {
		recipients, err := models.GetRecipientsByIds(ctx, splitRecipientIds(n.Recipients))
		if err != nil {
			return 0, err
		}
		e.deliver(ctx, n, splitChannels(n.Channels), recipients)
	}
	return len(pending), nil
}

func recipientAddress(channel models.ChannelType, r *models.Recipient) string {
	switch channel {
	case models.ChannelEmail:
		return r.Email
	case models.ChannelSMS:
		return r.Phone
	case models.ChannelWebhook:
		return r.WebhookURL
	default:
		return ""
	}
}

func joinChannels(channels []models.ChannelType) string {
	parts := make([]string, 0, len(channels))
	for _, ch := range channels {
		parts = append(parts, string(ch))
	}
	return strings.Join(parts, ",")
}

func splitChannels(raw string) []models.ChannelType {
	var channels []models.ChannelType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			channels = append(channels, models.ChannelType(part))
		}
	}
	return channels
}

func joinRecipientIds(recipients []*models.Recipient) string {
	parts := make([]string, 0, len(recipients))
	for _, r := range recipients {
		parts = append(parts, strconv.Itoa(r.ID))
	}
	return strings.Join(parts, ",")
}

func splitRecipientIds(raw string) []int {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			if id, err := strconv.Atoi(part); err == nil {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func correlationId(ctx context.Context) string {
	if v, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		return v
	}
	return ""
}
