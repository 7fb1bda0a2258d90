package activation

import "testing"

func TestScheduleActivationAppliesAtBlock(t *testing.T) {
	s := New()
	s.ScheduleActivation(7, 100, 1)

	if s.IsActive(7) {
		t.Fatalf("feature should not be active before ApplyDue runs")
	}
	if applied := s.ApplyDue(99); len(applied) != 0 {
		t.Fatalf("expected nothing due at 99, got %+v", applied)
	}
	if s.IsActive(7) {
		t.Fatalf("feature activated early")
	}

	applied := s.ApplyDue(100)
	if len(applied) != 1 || applied[0].FeatureID != 7 {
		t.Fatalf("expected feature 7 to apply at its activation block, got %+v", applied)
	}
	if !s.IsActive(7) {
		t.Fatalf("feature should be active once its block arrives")
	}

	// A later call with nothing new scheduled must not re-apply.
	if applied := s.ApplyDue(101); len(applied) != 0 {
		t.Fatalf("expected no re-application, got %+v", applied)
	}
}

func TestScheduleActivationZeroBlockAppliesImmediately(t *testing.T) {
	s := New()
	s.ScheduleActivation(1, 0, 0)
	applied := s.ApplyDue(1)
	if len(applied) != 1 || applied[0].FeatureID != 1 {
		t.Fatalf("expected feature with activation_block=0 to apply on the next call, got %+v", applied)
	}
}

func TestApplyDueSortsByFeatureID(t *testing.T) {
	s := New()
	s.ScheduleActivation(30, 5, 0)
	s.ScheduleActivation(10, 5, 0)
	s.ScheduleActivation(20, 5, 0)

	applied := s.ApplyDue(5)
	if len(applied) != 3 {
		t.Fatalf("expected all three to apply, got %+v", applied)
	}
	for i := 1; i < len(applied); i++ {
		if applied[i-1].FeatureID >= applied[i].FeatureID {
			t.Fatalf("expected ascending feature ids, got %+v", applied)
		}
	}
}

func TestDeactivateRemovesScheduledAndActive(t *testing.T) {
	s := New()
	s.ScheduleActivation(1, 10, 0)
	s.ApplyDue(10)
	if !s.IsActive(1) {
		t.Fatalf("feature 1 should be active")
	}

	s.Deactivate(1)
	if s.IsActive(1) {
		t.Fatalf("deactivate should clear the active set")
	}

	s.ScheduleActivation(2, 10, 0)
	s.Deactivate(2)
	if applied := s.ApplyDue(10); len(applied) != 0 {
		t.Fatalf("deactivating a scheduled (not-yet-active) feature should remove it from the queue, got %+v", applied)
	}
}

func TestAlertsAgeOutByExpiryHeight(t *testing.T) {
	s := New()
	s.RecordAlert("issuer", 3, 200, "network upgrade pending")

	s.AgeAlerts(199)
	if alerts := s.Alerts(); len(alerts) != 1 {
		t.Fatalf("expected the alert to still be active at 199, got %+v", alerts)
	}

	s.AgeAlerts(200)
	if alerts := s.Alerts(); len(alerts) != 0 {
		t.Fatalf("expected the alert to have aged out at its expiry height, got %+v", alerts)
	}
}

func TestAlertTypeZeroClearsAlert(t *testing.T) {
	s := New()
	s.RecordAlert("issuer", 5, 1000, "notice")
	if len(s.Alerts()) != 1 {
		t.Fatalf("expected one alert recorded")
	}
	s.RecordAlert("issuer", 0, 0, "")
	if alerts := s.Alerts(); len(alerts) != 1 {
		t.Fatalf("alert_type=0 should only clear the type-0 slot, got %+v", alerts)
	}
}

func TestAlertsSortedByType(t *testing.T) {
	s := New()
	s.RecordAlert("a", 30, 1000, "")
	s.RecordAlert("b", 10, 1000, "")
	s.RecordAlert("c", 20, 1000, "")

	alerts := s.Alerts()
	if len(alerts) != 3 {
		t.Fatalf("expected three alerts, got %d", len(alerts))
	}
	for i := 1; i < len(alerts); i++ {
		if alerts[i-1].AlertType >= alerts[i].AlertType {
			t.Fatalf("expected ascending alert types, got %+v", alerts)
		}
	}
}

func TestActiveFeaturesSortedForConsensusHash(t *testing.T) {
	s := New()
	s.ScheduleActivation(99, 1, 0)
	s.ScheduleActivation(1, 1, 0)
	s.ApplyDue(1)

	active := s.ActiveFeatures()
	if len(active) != 2 {
		t.Fatalf("expected two active features, got %+v", active)
	}
	if active[0].FeatureID != 1 || active[1].FeatureID != 99 {
		t.Fatalf("expected ascending order, got %+v", active)
	}
}
