package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadReminderDefaults(t *testing.T) {
	t.Setenv("REMINDER_LEAD_DAYS", "")
	t.Setenv("ESCALATION_OVERDUE_DAYS", "")
	t.Setenv("RISK_OUTSTANDING_MULTIPLE", "")

	cfg := Load()
	if cfg.ReminderLeadDays != 3 {
		t.Fatalf("expected lead days 3, got %d", cfg.ReminderLeadDays)
	}
	if cfg.EscalationOverdueDays != 14 {
		t.Fatalf("expected escalation days 14, got %d", cfg.EscalationOverdueDays)
	}
	if cfg.RiskOutstandingMultiple != 2.0 {
		t.Fatalf("expected outstanding multiple 2.0, got %v", cfg.RiskOutstandingMultiple)
	}
}

func TestLoadRejectsInvalidReminderValues(t *testing.T) {
	t.Setenv("REMINDER_LEAD_DAYS", "-1")
	t.Setenv("ESCALATION_OVERDUE_DAYS", "abc")
	t.Setenv("RISK_CACHE_TTL_SECONDS", "0")

	cfg := Load()
	if cfg.ReminderLeadDays != 3 {
		t.Fatalf("expected fallback lead days 3, got %d", cfg.ReminderLeadDays)
	}
	if cfg.EscalationOverdueDays != 14 {
		t.Fatalf("expected fallback escalation days 14, got %d", cfg.EscalationOverdueDays)
	}
	if cfg.RiskCacheTTLSeconds != 300 {
		t.Fatalf("expected fallback risk cache TTL 300, got %d", cfg.RiskCacheTTLSeconds)
	}
}
