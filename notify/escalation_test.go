package notify

import (
	"testing"
	"time"

	"github.com/warepulse/stockwatch_backend/models"
)

func TestPlanEscalationBumpsLevelAndPriority(t *testing.T) {
	n := &models.Notification{Priority: models.PriorityHigh, EscalationLevel: 0}
	plan := PlanEscalation(n, 30*time.Minute, 3, 2)

	if !plan.Escalate {
		t.Fatal("level 0 of 3 must escalate")
	}
	if plan.NewLevel != 1 {
		t.Fatalf("expected level 1, got %d", plan.NewLevel)
	}
	if plan.NewPriority != models.PriorityCritical {
		t.Fatalf("expected CRITICAL, got %s", plan.NewPriority)
	}
	if plan.NextInterval != time.Hour {
		t.Fatalf("expected interval doubled to 1h, got %s", plan.NextInterval)
	}
	if plan.AtCap {
		t.Fatal("level 1 of 3 is not the cap")
	}
}

func TestPlanEscalationIntervalCompounds(t *testing.T) {
	n := &models.Notification{Priority: models.PriorityMedium, EscalationLevel: 1}
	plan := PlanEscalation(n, 30*time.Minute, 3, 2)

	if plan.NewLevel != 2 {
		t.Fatalf("expected level 2, got %d", plan.NewLevel)
	}
	if plan.NextInterval != 2*time.Hour {
		t.Fatalf("expected 30m doubled twice to 2h, got %s", plan.NextInterval)
	}
}

func TestPlanEscalationStopsAtCap(t *testing.T) {
	n := &models.Notification{Priority: models.PriorityEmergency, EscalationLevel: 3}
	plan := PlanEscalation(n, 30*time.Minute, 3, 2)

	if plan.Escalate {
		t.Fatal("a notification at max level must not escalate again")
	}
	if !plan.AtCap {
		t.Fatal("expected AtCap at max level")
	}
}

func TestPlanEscalationMarksFinalStep(t *testing.T) {
	n := &models.Notification{Priority: models.PriorityCritical, EscalationLevel: 2}
	plan := PlanEscalation(n, 30*time.Minute, 3, 2)

	if !plan.Escalate {
		t.Fatal("level 2 of 3 must still escalate")
	}
	if !plan.AtCap {
		t.Fatal("the step onto the max level is the final one")
	}
	if plan.NewPriority != models.PriorityEmergency {
		t.Fatalf("expected EMERGENCY, got %s", plan.NewPriority)
	}
}

func TestPlanEscalationPriorityCappedAtEmergency(t *testing.T) {
	n := &models.Notification{Priority: models.PriorityEmergency, EscalationLevel: 1}
	plan := PlanEscalation(n, 10*time.Minute, 3, 2)

	if plan.NewPriority != models.PriorityEmergency {
		t.Fatalf("priority must not exceed EMERGENCY, got %s", plan.NewPriority)
	}
}
