package state

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/regardlab/regard/internal/api"
	"github.com/regardlab/regard/internal/localstore"
)

// StorageKey is the key the state snapshot is persisted under.
const StorageKey = "app_state"

// Listener receives a copy of the state after every transition.
type Listener func(State)

type subscription struct {
	id uint64
	fn Listener
}

// Store owns the application state. All methods are safe for concurrent
// use. Listeners run synchronously on the goroutine that caused the change,
// after the store's lock is released, so they may call back into the store.
type Store struct {
	mu      sync.Mutex
	state   State
	storage localstore.Storage
	clock   Clock
	logger  *zap.Logger

	subs   []subscription
	nextID uint64
	timers map[string]Timer
	closed bool
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for persistence and listener failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Store over storage and restores any persisted snapshot.
// A nil storage keeps state in memory only.
func New(storage localstore.Storage, opts ...Option) *Store {
	if storage == nil {
		storage = localstore.NewMemory()
	}
	s := &Store{
		state:   defaultState(),
		storage: storage,
		clock:   realClock{},
		logger:  zap.NewNop(),
		timers:  make(map[string]Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore()
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.id == id })
		})
	}
}

// SetPatient records the logged-in patient. nil logs out.
func (s *Store) SetPatient(p *Patient) {
	s.update(func(st *State) {
		if p == nil {
			st.Patient = nil
			return
		}
		dup := *p
		st.Patient = &dup
	})
}

// ClearPatient is SetPatient(nil).
func (s *Store) ClearPatient() {
	s.SetPatient(nil)
}

// SetScreen switches the active screen. The name is not validated.
func (s *Store) SetScreen(screen Screen) {
	s.update(func(st *State) { st.CurrentScreen = screen })
}

// SetCalibrationPoints replaces the calibration samples.
func (s *Store) SetCalibrationPoints(points []Point) {
	s.update(func(st *State) { st.CalibrationPoints = slices.Clone(points) })
}

// AddCalibrationPoint appends one calibration sample.
func (s *Store) AddCalibrationPoint(p Point) {
	s.update(func(st *State) { st.CalibrationPoints = append(st.CalibrationPoints, p) })
}

// UpdateCalibration replaces the calibration samples with count
// placeholder points. Only the count is meaningful afterwards.
func (s *Store) UpdateCalibration(count int) {
	s.update(func(st *State) {
		st.CalibrationPoints = make([]Point, max(count, 0))
	})
}

// UpdateGazeData records a raw gaze sample on the current test, creating an
// unstarted test when none exists. Samples are keyed by the current unix
// millisecond; a second sample within the same millisecond overwrites the
// first. Gaze samples arrive at tracker rate, so this neither persists nor
// notifies; the next transition carries them.
func (s *Store) UpdateGazeData(sample GazeSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentTest == nil {
		s.state.CurrentTest = &TestSession{RawData: map[string]GazeSample{}}
	}
	if s.state.CurrentTest.RawData == nil {
		s.state.CurrentTest.RawData = map[string]GazeSample{}
	}
	key := strconv.FormatInt(s.clock.Now().UnixMilli(), 10)
	s.state.CurrentTest.RawData[key] = sample
}

// SetDistance records the latest eye-screen reading. Listeners are only
// notified when the reading changes; it is never persisted.
func (s *Store) SetDistance(mm float64, measured bool) {
	next := ViewingDistance{Measured: measured}
	if measured {
		next.MM = mm
	}
	s.mutate(false, func(st *State) bool {
		if st.Distance != nil && *st.Distance == next {
			return false
		}
		st.Distance = &next
		return true
	})
}

// StartTest opens a new test session, discarding any current one.
func (s *Store) StartTest() {
	s.update(func(st *State) {
		now := s.clock.Now()
		st.CurrentTest = &TestSession{StartTime: &now, RawData: map[string]GazeSample{}}
	})
}

// FinishTest closes the current session and returns it with EndTime and
// TotalTime filled in. It returns nil, without notifying, when no test is
// active. A session that was never started reports a TotalTime of zero.
func (s *Store) FinishTest() *TestSession {
	var finished *TestSession
	s.mutate(true, func(st *State) bool {
		if st.CurrentTest == nil {
			return false
		}
		finished = st.CurrentTest
		now := s.clock.Now()
		finished.EndTime = &now
		finished.TotalTime = 0
		if finished.StartTime != nil {
			finished.TotalTime = now.Sub(*finished.StartTime).Seconds()
		}
		st.CurrentTest = nil
		return true
	})
	return finished
}

// UpdateCurrentTest merges patch into the current test. It does nothing
// when no test is active.
func (s *Store) UpdateCurrentTest(patch TestPatch) {
	s.mutate(true, func(st *State) bool {
		if st.CurrentTest == nil {
			return false
		}
		patch.apply(st.CurrentTest)
		return true
	})
}

// UpdateTestData merges metric updates into the current test. It does
// nothing when no test is active.
func (s *Store) UpdateTestData(patch MetricsPatch) {
	s.mutate(true, func(st *State) bool {
		if st.CurrentTest == nil {
			return false
		}
		patch.apply(st.CurrentTest)
		return true
	})
}

// AddTestResult prepends a completed test.
func (s *Store) AddTestResult(r api.TestResult) {
	s.update(func(st *State) {
		st.TestResults = append([]api.TestResult{cloneResult(r)}, st.TestResults...)
	})
}

// SetStatistics replaces the aggregate statistics.
func (s *Store) SetStatistics(stats *api.Statistics) {
	s.update(func(st *State) { st.Statistics = cloneStatistics(stats) })
}

// SetTests replaces the test results.
func (s *Store) SetTests(tests []api.TestResult) {
	s.update(func(st *State) { st.TestResults = cloneResults(tests) })
}

// SetTestsPage replaces the test results with the items of page.
func (s *Store) SetTestsPage(page api.Page[api.TestResult]) {
	s.SetTests(page.Results)
}

// SetPatients replaces the patient list.
func (s *Store) SetPatients(patients []api.PatientProfile) {
	s.update(func(st *State) { st.Patients = cloneProfiles(patients) })
}

// SetPatientsPage replaces the patient list with the items of page.
func (s *Store) SetPatientsPage(page api.Page[api.PatientProfile]) {
	s.SetPatients(page.Results)
}

// SetCurrentPatient selects a patient by id.
func (s *Store) SetCurrentPatient(id int64) {
	s.update(func(st *State) { st.CurrentPatientID = &id })
}

// AddNotification shows message and returns its id. An empty kind means
// KindInfo. The notification is removed after NotificationTTL unless it is
// dismissed first.
func (s *Store) AddNotification(message string, kind NotificationKind) string {
	if kind == "" {
		kind = KindInfo
	}
	id := newNotificationID()
	s.update(func(st *State) {
		st.Notifications = append(st.Notifications, Notification{
			ID:        id,
			Kind:      kind,
			Message:   message,
			Timestamp: s.clock.Now(),
		})
		s.scheduleExpiry(id, NotificationTTL)
	})
	return id
}

// DismissNotification removes a notification before it expires.
func (s *Store) DismissNotification(id string) {
	s.removeNotification(id)
}

// RecordSync records the outcome of a background refresh. A nil err resets
// the failure streak.
func (s *Store) RecordSync(err error) {
	s.mutate(false, func(st *State) bool {
		st.Sync.LastUpdated = s.clock.Now()
		if err != nil {
			st.Sync.LastError = err
			st.Sync.ConsecutiveFailures++
			return true
		}
		st.Sync.LastError = nil
		st.Sync.ConsecutiveFailures = 0
		return true
	})
}

// Reset cancels pending notification expiries, restores the default state
// and erases the persisted snapshot.
func (s *Store) Reset() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.state = defaultState()
	s.state.normalize()
	if err := s.storage.RemoveItem(StorageKey); err != nil {
		s.logger.Warn("erase persisted state", zap.Error(err))
	}
	snap, subs := s.state.clone(), slices.Clone(s.subs)
	s.mu.Unlock()

	s.notify(snap, subs)
}

// Close cancels pending notification expiries. The store stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimersLocked()
}

func (s *Store) update(fn func(*State)) {
	s.mutate(true, func(st *State) bool {
		fn(st)
		return true
	})
}

// mutate runs fn under the lock. When fn reports a change the state is
// normalized, optionally persisted, and listeners are notified.
func (s *Store) mutate(persist bool, fn func(*State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	s.state.normalize()
	if persist {
		s.persistLocked()
	}
	snap, subs := s.state.clone(), slices.Clone(s.subs)
	s.mu.Unlock()

	s.notify(snap, subs)
}

func (s *Store) notify(snap State, subs []subscription) {
	for i, sub := range subs {
		view := snap
		if i > 0 {
			view = snap.clone()
		}
		s.call(sub, view)
	}
}

func (s *Store) call(sub subscription, view State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("state listener panicked",
				zap.Uint64("listener", sub.id),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	sub.fn(view)
}

// scheduleExpiry must be called with s.mu held.
func (s *Store) scheduleExpiry(id string, after time.Duration) {
	if s.closed {
		return
	}
	s.timers[id] = s.clock.AfterFunc(after, func() { s.expire(id) })
}

func (s *Store) expire(id string) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.removeNotification(id)
}

func (s *Store) removeNotification(id string) {
	s.mutate(true, func(st *State) bool {
		if t, ok := s.timers[id]; ok {
			t.Stop()
			delete(s.timers, id)
		}
		n := len(st.Notifications)
		st.Notifications = slices.DeleteFunc(st.Notifications, func(n Notification) bool { return n.ID == id })
		return len(st.Notifications) != n
	})
}

func (s *Store) stopTimersLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
}

// PendingExpiries reports how many notification timers are armed.
func (s *Store) PendingExpiries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func newNotificationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "notif-" + id.String()
}
