package notify

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
	"gorm.io/gorm"
)

const escalationLockName = "lock:escalation-sweep"

// EscalationPlan is the pure outcome of evaluating one overdue notification.
type EscalationPlan struct {
	Escalate     bool
	NewLevel     int
	NewPriority  models.NotificationPriority
	NextInterval time.Duration
	AtCap        bool
}

// PlanEscalation decides what the next escalation step for a notification is.
// Intervals double at each level; at the cap no further escalation is
// scheduled and NextEscalationAt on the parent gets cleared.
func PlanEscalation(n *models.Notification, base time.Duration, maxLevel int, multiplier float64) EscalationPlan {
	if n.EscalationLevel >= maxLevel {
		return EscalationPlan{Escalate: false, AtCap: true}
	}
	newLevel := n.EscalationLevel + 1
	interval := base
	for i := 0; i < newLevel; i++ {
		interval = time.Duration(float64(interval) * multiplier)
	}
	return EscalationPlan{
		Escalate:     true,
		NewLevel:     newLevel,
		NewPriority:  n.Priority.Bump(),
		NextInterval: interval,
		AtCap:        newLevel >= maxLevel,
	}
}

// ProcessEscalations finds notifications whose NextEscalationAt has passed and
// raises each one a level: a child notification with bumped priority and the
// recipients of the next escalation tier, delivered immediately. At most one
// instance runs the sweep at a time.
func (e *Engine) ProcessEscalations(ctx context.Context) (int, error) {
	if !e.cfg.EscalationEnabled {
		return 0, nil
	}
	logger := config.GetLogger()
	now := time.Now().UTC()

	escalated := 0
	sweep := func() error {
		candidates, err := models.EscalationCandidates(ctx, now, e.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, n := range candidates {
			route := e.route(n.Category)
			plan := PlanEscalation(n, route.EscalationInterval, e.cfg.MaxEscalationLevel, e.cfg.EscalationMultiplier)
			if !plan.Escalate {
				// Already at cap, e.g. after the cap was lowered; stop
				// scheduling it.
				if err := clearEscalation(ctx, n.ID); err != nil {
					config.LogError(logger, "notify", "ProcessEscalations", "clear schedule", n.ID, err)
				}
				continue
			}
			if err := e.escalateOne(ctx, n, plan); err != nil {
				config.LogError(logger, "notify", "ProcessEscalations", "escalate", n.ID, err)
				continue
			}
			escalated++
		}
		return nil
	}

	held, err := withSweepLease(ctx, sweep)
	if err != nil {
		return 0, err
	}
	if !held {
		return 0, nil
	}
	return escalated, nil
}

func (e *Engine) escalateOne(ctx context.Context, parent *models.Notification, plan EscalationPlan) error {
	now := time.Now().UTC()

	group := e.cfg.DefaultGroup
	if rule, err := models.MatchNotificationRule(ctx, parent.Category, parent.Priority); err == nil && rule != nil {
		group = rule.RecipientGroup
	}
	recipients, err := models.RecipientsForEscalation(ctx, group, plan.NewLevel)
	if err != nil {
		return err
	}

	// Escalations always widen to every enabled channel.
	channels := e.channelSet("", models.PriorityEmergency)

	parentId := parent.ID
	child := &models.Notification{
		SourceId:             parent.SourceId,
		Category:             parent.Category,
		Priority:             plan.NewPriority,
		Title:                "[ESCALATED] " + parent.Title,
		Message:              parent.Message,
		Details:              parent.Details,
		Channels:             joinChannels(channels),
		Recipients:           joinRecipientIds(recipients),
		Status:               models.NotificationStatusPending,
		ScheduledAt:          now,
		EscalationLevel:      plan.NewLevel,
		ParentNotificationId: &parentId,
		CorrelationId:        parent.CorrelationId,
	}
	if err := models.CreateNotification(ctx, child); err != nil {
		return err
	}
	e.deliver(ctx, child, channels, recipients)

	updates := map[string]interface{}{
		"escalation_level": plan.NewLevel,
	}
	if plan.AtCap {
		updates["next_escalation_at"] = nil
	} else {
		updates["next_escalation_at"] = now.Add(plan.NextInterval)
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", parent.ID).Updates(updates).Error
}

func clearEscalation(ctx context.Context, id int) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).Update("next_escalation_at", nil).Error
}

// withSweepLease runs fn under the cross-instance sweep lease: redislock when
// Redis is available, otherwise a MySQL advisory lock pinned to one
// connection. Returns false without error when another instance holds it.
func withSweepLease(ctx context.Context, fn func() error) (bool, error) {
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, escalationLockName, 2*time.Minute, nil)
		if err != nil {
			if err == redislock.ErrNotObtained {
				return false, nil
			}
			return false, err
		}
		defer lock.Release(context.Background())
		return true, fn()
	}

	db := config.GetDB()
	held := false
	err := db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := models.AcquireNamedLock(conn, escalationLockName, 0); err != nil {
			return nil
		}
		defer models.ReleaseNamedLock(conn, escalationLockName)
		held = true
		return fn()
	})
	return held, err
}
