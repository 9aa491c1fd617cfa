package models

import "testing"

func TestReportStatusTransitions(t *testing.T) {
	cases := []struct {
		from    ReportStatus
		to      ReportStatus
		allowed bool
	}{
		{ReportStatusRequested, ReportStatusProcessing, true},
		{ReportStatusRequested, ReportStatusError, true},
		{ReportStatusRequested, ReportStatusTimeout, true},
		{ReportStatusRequested, ReportStatusSuccess, true},
		{ReportStatusRequested, ReportStatusProcessed, false},
		{ReportStatusProcessing, ReportStatusSuccess, true},
		{ReportStatusProcessing, ReportStatusError, true},
		{ReportStatusProcessing, ReportStatusTimeout, true},
		{ReportStatusProcessing, ReportStatusRequested, false},
		{ReportStatusSuccess, ReportStatusProcessed, true},
		{ReportStatusSuccess, ReportStatusError, false},
		{ReportStatusError, ReportStatusProcessing, false},
		{ReportStatusError, ReportStatusSuccess, false},
		{ReportStatusTimeout, ReportStatusSuccess, false},
		{ReportStatusProcessed, ReportStatusSuccess, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestReportStatusIsTerminal(t *testing.T) {
	terminal := []ReportStatus{ReportStatusSuccess, ReportStatusError, ReportStatusTimeout, ReportStatusProcessed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if ReportStatusRequested.IsTerminal() || ReportStatusProcessing.IsTerminal() {
		t.Fatal("REQUESTED and PROCESSING are not terminal")
	}
}

func TestReportStatusIsCompletion(t *testing.T) {
	completion := []ReportStatus{ReportStatusSuccess, ReportStatusError, ReportStatusTimeout}
	for _, s := range completion {
		if !s.IsCompletion() {
			t.Fatalf("%s should stamp completed_at", s)
		}
	}
	if ReportStatusProcessed.IsCompletion() {
		t.Fatal("PROCESSED is a local post-step, not a completion")
	}
	if ReportStatusRequested.IsCompletion() || ReportStatusProcessing.IsCompletion() {
		t.Fatal("in-flight statuses are not completions")
	}
}

func TestNotificationPriorityBumpCapsAtEmergency(t *testing.T) {
	if got := PriorityLow.Bump(); got != PriorityMedium {
		t.Fatalf("expected MEDIUM, got %s", got)
	}
	if got := PriorityCritical.Bump(); got != PriorityEmergency {
		t.Fatalf("expected EMERGENCY, got %s", got)
	}
	if got := PriorityEmergency.Bump(); got != PriorityEmergency {
		t.Fatalf("bump at cap must stay EMERGENCY, got %s", got)
	}
}

func TestAccessLevelCovers(t *testing.T) {
	cases := []struct {
		have     AccessLevel
		required AccessLevel
		covers   bool
	}{
		{AccessLevelAdmin, AccessLevelExport, true},
		{AccessLevelAdmin, AccessLevelAdmin, true},
		{AccessLevelExport, AccessLevelRead, true},
		{AccessLevelExport, AccessLevelAdmin, false},
		{AccessLevelRead, AccessLevelExport, false},
		{AccessLevelNone, AccessLevelRead, false},
		{AccessLevelRead, AccessLevelRead, true},
	}
	for _, tc := range cases {
		if got := tc.have.Covers(tc.required); got != tc.covers {
			t.Fatalf("%s covers %s: expected %v, got %v", tc.have, tc.required, tc.covers, got)
		}
	}
}

func TestAlertStatusIsActive(t *testing.T) {
	if !AlertStatusNew.IsActive() || !AlertStatusAcknowledged.IsActive() {
		t.Fatal("NEW and ACKNOWLEDGED are active")
	}
	if AlertStatusResolved.IsActive() || AlertStatusIgnored.IsActive() {
		t.Fatal("RESOLVED and IGNORED are not active")
	}
}
