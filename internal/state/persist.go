package state

import (
	"encoding/json"

	"go.uber.org/zap"
)

// persistLocked writes the full snapshot. Failures are logged; the
// in-memory state stays authoritative.
func (s *Store) persistLocked() {
	data, err := json.Marshal(s.state)
	if err != nil {
		s.logger.Warn("encode state", zap.Error(err))
		return
	}
	if err := s.storage.SetItem(StorageKey, string(data)); err != nil {
		s.logger.Warn("persist state", zap.Error(err))
	}
}

// restore overlays the persisted snapshot onto the defaults key by key. A
// key that fails to decode keeps its default.
func (s *Store) restore() {
	raw, ok, err := s.storage.GetItem(StorageKey)
	if err != nil {
		s.logger.Warn("load persisted state", zap.Error(err))
	}
	if ok && raw != "" {
		for _, key := range mergeSnapshot(&s.state, []byte(raw)) {
			s.logger.Warn("discarding malformed persisted field", zap.String("key", key))
		}
	}
	s.state.normalize()
	s.rearmNotificationsLocked()
}

// mergeSnapshot decodes data over st and returns the keys it had to
// discard. Unknown keys are ignored.
func mergeSnapshot(st *State, data []byte) []string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return []string{StorageKey}
	}

	decoders := map[string]func(json.RawMessage) error{
		"patient":           field(&st.Patient),
		"currentScreen":     field(&st.CurrentScreen),
		"calibrationPoints": field(&st.CalibrationPoints),
		"currentTest":       field(&st.CurrentTest),
		"testResults":       field(&st.TestResults),
		"statistics":        field(&st.Statistics),
		"patients":          field(&st.Patients),
		"currentPatientId":  field(&st.CurrentPatientID),
		"notifications":     field(&st.Notifications),
	}

	var discarded []string
	for key, value := range fields {
		decode, ok := decoders[key]
		if !ok {
			continue
		}
		if err := decode(value); err != nil {
			discarded = append(discarded, key)
		}
	}
	return discarded
}

// field returns a decoder that only assigns *dst when value decodes
// cleanly.
func field[T any](dst *T) func(json.RawMessage) error {
	return func(value json.RawMessage) error {
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

// rearmNotificationsLocked schedules expiry for restored notifications and
// drops the ones whose lifetime already elapsed.
func (s *Store) rearmNotificationsLocked() {
	now := s.clock.Now()
	kept := s.state.Notifications[:0]
	for _, n := range s.state.Notifications {
		remaining := n.Timestamp.Add(NotificationTTL).Sub(now)
		if remaining <= 0 {
			continue
		}
		kept = append(kept, n)
		s.scheduleExpiry(n.ID, remaining)
	}
	s.state.Notifications = kept
}
