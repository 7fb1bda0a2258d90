// Package activation implements the feature-flag state machine: pending
// and active feature activations, and alerts. The per-(address,asset)
// freeze set lives in pkg/tally, not here.
// Grounded on the teacher's core.MarketRegistry for the "RWMutex-guarded
// map keyed by an id, validated at creation" shape.
package activation

import (
	"sort"
	"sync"
)

// Record is one scheduled or active feature flag.
type Record struct {
	FeatureID        uint16
	ActivationBlock  int64
	MinClientVersion uint32
}

// Alert is one active network alert or informational notice.
type Alert struct {
	Sender      string
	AlertType   uint16
	ExpiryValue uint32 // interpretation (block height or unix time) is alert_type-specific
	Message     string
}

// Set is the thread-safe activation/alert store.
type Set struct {
	mu           sync.Mutex
	scheduled    map[uint16]Record
	active       map[uint16]Record
	alerts       map[uint16]Alert
}

func New() *Set {
	return &Set{
		scheduled: make(map[uint16]Record),
		active:    make(map[uint16]Record),
		alerts:    make(map[uint16]Alert),
	}
}

// ScheduleActivation implements the Activation tx (type 65534): records
// a feature to flip on at activation_block. A block height of zero or in
// the past activates it immediately on the next ApplyDue call.
func (s *Set) ScheduleActivation(featureID uint16, activationBlock int64, minClientVersion uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[featureID] = Record{FeatureID: featureID, ActivationBlock: activationBlock, MinClientVersion: minClientVersion}
}

// Deactivate implements the Deactivation tx (type 65533): immediately
// removes a feature from both the scheduled and active sets.
func (s *Set) Deactivate(featureID uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, featureID)
	delete(s.active, featureID)
}

// ApplyDue implements on_block_begin step 2 (§4.7): promotes every
// scheduled activation whose activation_block has arrived into the
// active set.
func (s *Set) ApplyDue(height int64) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var applied []Record
	for id, rec := range s.scheduled {
		if rec.ActivationBlock <= height {
			s.active[id] = rec
			applied = append(applied, rec)
			delete(s.scheduled, id)
		}
	}
	sort.Slice(applied, func(i, j int) bool { return applied[i].FeatureID < applied[j].FeatureID })
	return applied
}

// IsActive reports whether featureID is active at the current height —
// callers pass the engine's current height implicitly by only calling
// this after ApplyDue has run for that height.
func (s *Set) IsActive(featureID uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[featureID]
	return ok
}

// RecordAlert implements the Alert tx (type 65535).
func (s *Set) RecordAlert(sender string, alertType uint16, expiryValue uint32, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alertType == 0 {
		delete(s.alerts, 0)
		return
	}
	s.alerts[alertType] = Alert{Sender: sender, AlertType: alertType, ExpiryValue: expiryValue, Message: message}
}

// AgeAlerts implements on_block_end step 2 (§4.7): drops alerts whose
// expiry_value (interpreted as a block height) has passed.
func (s *Set) AgeAlerts(height int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.alerts {
		if int64(a.ExpiryValue) <= height {
			delete(s.alerts, id)
		}
	}
}

// Alerts returns every active alert sorted by alert_type.
func (s *Set) Alerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlertType < out[j].AlertType })
	return out
}

// ActiveFeatures returns every currently active feature id, sorted, for
// the consensus hash.
func (s *Set) ActiveFeatures() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.active))
	for _, rec := range s.active {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureID < out[j].FeatureID })
	return out
}

// Scheduled returns every feature not yet promoted to active, sorted by
// feature id — the not-yet-due half of the activation set a full engine
// snapshot must also capture, or a reorg rewinding to a point before the
// feature's activation block would silently lose the pending schedule.
func (s *Set) Scheduled() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.scheduled))
	for _, rec := range s.scheduled {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureID < out[j].FeatureID })
	return out
}

// Restore replaces the scheduled, active, and alert sets wholesale — the
// activation half of engine.ImportSnapshot.
func (s *Set) Restore(scheduled, active []Record, alerts []Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduled = make(map[uint16]Record, len(scheduled))
	for _, rec := range scheduled {
		s.scheduled[rec.FeatureID] = rec
	}
	s.active = make(map[uint16]Record, len(active))
	for _, rec := range active {
		s.active[rec.FeatureID] = rec
	}
	s.alerts = make(map[uint16]Alert, len(alerts))
	for _, a := range alerts {
		s.alerts[a.AlertType] = a
	}
}
