package state

import (
	"fmt"
	"slices"
	"time"

	"github.com/regardlab/regard/internal/api"
)

// Screen names a view of the client.
type Screen string

// Known screens.
const (
	ScreenHome        Screen = "home-screen"
	ScreenLogin       Screen = "login-screen"
	ScreenRegister    Screen = "register-screen"
	ScreenCalibration Screen = "calibration-screen"
	ScreenTest        Screen = "test-screen"
	ScreenResults     Screen = "results-screen"
	ScreenStatistics  Screen = "statistics-screen"
)

// Screens lists every known screen in navigation order.
var Screens = []Screen{
	ScreenHome,
	ScreenLogin,
	ScreenRegister,
	ScreenCalibration,
	ScreenTest,
	ScreenResults,
	ScreenStatistics,
}

// Known reports whether s is one of the defined screens.
func (s Screen) Known() bool {
	return slices.Contains(Screens, s)
}

// CalibrationTarget is the number of calibration points after which the
// tracker counts as calibrated.
const CalibrationTarget = 5

// Patient identifies the logged-in subject.
type Patient struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
}

// PatientFromProfile converts a backend profile.
func PatientFromProfile(p api.PatientProfile) *Patient {
	patient := &Patient{
		ID:        p.ID,
		Username:  p.User.Username,
		Email:     p.User.Email,
		FirstName: p.User.FirstName,
		LastName:  p.User.LastName,
	}
	if p.Age != nil {
		patient.Age = *p.Age
	}
	return patient
}

// Point is a calibration sample in screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GazeSample is one raw estimate from the gaze tracker.
type GazeSample struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// TestSession is the in-progress test record.
type TestSession struct {
	StartTime           *time.Time            `json:"startTime"`
	EndTime             *time.Time            `json:"endTime"`
	TotalTime           float64               `json:"totalTime"`
	GazeTime            float64               `json:"gazeTime"`
	TrackingPercentage  float64               `json:"trackingPercentage"`
	FixationCount       int                   `json:"fixationCount"`
	AvgFixationDuration float64               `json:"avgFixationDuration"`
	MaxFixationDuration float64               `json:"maxFixationDuration,omitempty"`
	MinFixationDuration float64               `json:"minFixationDuration,omitempty"`
	GazeStability       float64               `json:"gazeStability"`
	GazeConsistency     float64               `json:"gazeConsistency"`
	RawData             map[string]GazeSample `json:"rawData"`
}

// Elapsed returns the time since StartTime, or zero when the session has
// not been started.
func (t *TestSession) Elapsed(now time.Time) time.Duration {
	if t == nil || t.StartTime == nil {
		return 0
	}
	end := now
	if t.EndTime != nil {
		end = *t.EndTime
	}
	return end.Sub(*t.StartTime)
}

// MetricsPatch carries optional metric updates for the current test.
type MetricsPatch struct {
	TotalTime           *float64
	GazeTime            *float64
	TrackingPercentage  *float64
	FixationCount       *int
	AvgFixationDuration *float64
	MaxFixationDuration *float64
	MinFixationDuration *float64
	GazeStability       *float64
	GazeConsistency     *float64
}

func (p MetricsPatch) apply(t *TestSession) {
	setIf(&t.TotalTime, p.TotalTime)
	setIf(&t.GazeTime, p.GazeTime)
	setIf(&t.TrackingPercentage, p.TrackingPercentage)
	setIf(&t.FixationCount, p.FixationCount)
	setIf(&t.AvgFixationDuration, p.AvgFixationDuration)
	setIf(&t.MaxFixationDuration, p.MaxFixationDuration)
	setIf(&t.MinFixationDuration, p.MinFixationDuration)
	setIf(&t.GazeStability, p.GazeStability)
	setIf(&t.GazeConsistency, p.GazeConsistency)
}

// TestPatch carries optional updates for any field of the current test.
// A non-nil RawData replaces the recorded samples.
type TestPatch struct {
	MetricsPatch
	StartTime *time.Time
	EndTime   *time.Time
	RawData   map[string]GazeSample
}

func (p TestPatch) apply(t *TestSession) {
	p.MetricsPatch.apply(t)
	if p.StartTime != nil {
		ts := *p.StartTime
		t.StartTime = &ts
	}
	if p.EndTime != nil {
		ts := *p.EndTime
		t.EndTime = &ts
	}
	if p.RawData != nil {
		t.RawData = cloneMap(p.RawData)
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// NotificationKind classifies a notification.
type NotificationKind string

// Notification kinds.
const (
	KindInfo    NotificationKind = "info"
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
	KindWarning NotificationKind = "warning"
)

// NotificationTTL is how long a notification stays visible.
const NotificationTTL = 5 * time.Second

// Notification is a transient user-facing message.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// SyncStatus records the outcome of background refreshes. It is not
// persisted.
type SyncStatus struct {
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the backend has been unreachable for
// multiple refreshes.
func (s SyncStatus) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// ViewingDistance is one eye-screen reading. Measured is false when the
// tracker saw no face.
type ViewingDistance struct {
	MM       float64
	Measured bool
}

// State is the application state. Values returned by Store.State are
// copies; mutating them has no effect on the store.
type State struct {
	IsAuthenticated   bool                 `json:"isAuthenticated"`
	Patient           *Patient             `json:"patient"`
	CurrentScreen     Screen               `json:"currentScreen"`
	CalibrationPoints []Point              `json:"calibrationPoints"`
	IsCalibrated      bool                 `json:"isCalibrated"`
	CurrentTest       *TestSession         `json:"currentTest"`
	TestResults       []api.TestResult     `json:"testResults"`
	Statistics        *api.Statistics      `json:"statistics"`
	Patients          []api.PatientProfile `json:"patients"`
	CurrentPatientID  *int64               `json:"currentPatientId"`
	Notifications     []Notification       `json:"notifications"`

	// Distance is the latest eye-screen reading from the gaze feed; nil
	// until the first sample arrives. It is not persisted.
	Distance *ViewingDistance `json:"-"`

	// TestData aliases CurrentTest and Tests aliases TestResults.
	TestData *TestSession     `json:"-"`
	Tests    []api.TestResult `json:"-"`

	Sync SyncStatus `json:"-"`
}

func defaultState() State {
	return State{
		CurrentScreen:     ScreenHome,
		CalibrationPoints: []Point{},
		TestResults:       []api.TestResult{},
		Patients:          []api.PatientProfile{},
		Notifications:     []Notification{},
	}
}

// normalize recomputes derived flags and replaces nil collections.
func (s *State) normalize() {
	if s.CalibrationPoints == nil {
		s.CalibrationPoints = []Point{}
	}
	if s.TestResults == nil {
		s.TestResults = []api.TestResult{}
	}
	if s.Patients == nil {
		s.Patients = []api.PatientProfile{}
	}
	if s.Notifications == nil {
		s.Notifications = []Notification{}
	}
	if s.CurrentScreen == "" {
		s.CurrentScreen = ScreenHome
	}
	if s.CurrentTest != nil && s.CurrentTest.RawData == nil {
		s.CurrentTest.RawData = map[string]GazeSample{}
	}
	s.IsAuthenticated = s.Patient != nil
	s.IsCalibrated = len(s.CalibrationPoints) >= CalibrationTarget
}

// clone returns a deep copy with the aliases pointing at the copy's own
// fields.
func (s State) clone() State {
	out := s
	if s.Patient != nil {
		p := *s.Patient
		out.Patient = &p
	}
	out.CalibrationPoints = slices.Clone(s.CalibrationPoints)
	out.CurrentTest = cloneSession(s.CurrentTest)
	if s.Distance != nil {
		d := *s.Distance
		out.Distance = &d
	}
	out.TestResults = cloneResults(s.TestResults)
	out.Statistics = cloneStatistics(s.Statistics)
	out.Patients = cloneProfiles(s.Patients)
	if s.CurrentPatientID != nil {
		id := *s.CurrentPatientID
		out.CurrentPatientID = &id
	}
	out.Notifications = slices.Clone(s.Notifications)
	if s.Sync.LastError != nil {
		out.Sync.LastError = fmt.Errorf("%w", s.Sync.LastError)
	}
	out.TestData = out.CurrentTest
	out.Tests = out.TestResults
	return out
}

func cloneSession(t *TestSession) *TestSession {
	if t == nil {
		return nil
	}
	dup := *t
	if t.StartTime != nil {
		ts := *t.StartTime
		dup.StartTime = &ts
	}
	if t.EndTime != nil {
		ts := *t.EndTime
		dup.EndTime = &ts
	}
	dup.RawData = cloneMap(t.RawData)
	return &dup
}

func cloneMap(m map[string]GazeSample) map[string]GazeSample {
	if m == nil {
		return nil
	}
	dup := make(map[string]GazeSample, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}

func cloneResults(items []api.TestResult) []api.TestResult {
	if items == nil {
		return nil
	}
	dup := make([]api.TestResult, len(items))
	for i, r := range items {
		dup[i] = cloneResult(r)
	}
	return dup
}

func cloneResult(r api.TestResult) api.TestResult {
	if r.AvgEyeScreenDistance != nil {
		v := *r.AvgEyeScreenDistance
		r.AvgEyeScreenDistance = &v
	}
	if r.LeftEyeOpen != nil {
		v := *r.LeftEyeOpen
		r.LeftEyeOpen = &v
	}
	if r.RightEyeOpen != nil {
		v := *r.RightEyeOpen
		r.RightEyeOpen = &v
	}
	if r.MLPrediction != nil {
		v := *r.MLPrediction
		r.MLPrediction = &v
	}
	r.RawData = slices.Clone(r.RawData)
	return r
}

func cloneStatistics(s *api.Statistics) *api.Statistics {
	if s == nil {
		return nil
	}
	dup := *s
	if s.Results != nil {
		v := *s.Results
		dup.Results = &v
	}
	if s.Averages != nil {
		v := *s.Averages
		dup.Averages = &v
	}
	return &dup
}

func cloneProfiles(items []api.PatientProfile) []api.PatientProfile {
	if items == nil {
		return nil
	}
	dup := make([]api.PatientProfile, len(items))
	for i, p := range items {
		if p.Age != nil {
			age := *p.Age
			p.Age = &age
		}
		dup[i] = p
	}
	return dup
}
