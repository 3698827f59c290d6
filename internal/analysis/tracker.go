package analysis

import (
	"time"

	"github.com/regardlab/regard/internal/state"
)

// MinFixation is the shortest on-target run counted as a fixation.
const MinFixation = 100 * time.Millisecond

// Observation is one live sample fed to a Tracker.
type Observation struct {
	X          float64
	Y          float64
	Confidence float64
	OnTarget   bool
	// LeftEyeOpen and RightEyeOpen are nil when the tracker did not report
	// eye state.
	LeftEyeOpen  *bool
	RightEyeOpen *bool
	// DistanceMM is the eye-screen estimate; zero when unknown.
	DistanceMM float64
}

// Metrics are the running figures of a test in progress.
type Metrics struct {
	TotalTime          time.Duration
	GazeTime           time.Duration
	TrackingPercentage float64
	FixationCount      int
	AvgFixation        time.Duration
	MaxFixation        time.Duration
	MinFixation        time.Duration
	GazeStability      float64
	GazeConsistency    float64
}

// Patch converts m into a store update. Times are seconds, fixation
// durations milliseconds.
func (m Metrics) Patch() state.MetricsPatch {
	total := m.TotalTime.Seconds()
	gaze := m.GazeTime.Seconds()
	tracking := m.TrackingPercentage
	count := m.FixationCount
	avg := millis(m.AvgFixation)
	longest := millis(m.MaxFixation)
	shortest := millis(m.MinFixation)
	stability := m.GazeStability
	consistency := m.GazeConsistency
	return state.MetricsPatch{
		TotalTime:           &total,
		GazeTime:            &gaze,
		TrackingPercentage:  &tracking,
		FixationCount:       &count,
		AvgFixationDuration: &avg,
		MaxFixationDuration: &longest,
		MinFixationDuration: &shortest,
		GazeStability:       &stability,
		GazeConsistency:     &consistency,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Tracker accumulates live observations. It is not safe for concurrent
// use.
type Tracker struct {
	start time.Time

	history   []GazePoint
	fixations []Fixation
	distances []float64
	eyes      *EyeStatus

	gazeTime     time.Duration
	last         time.Time
	lastOnTarget bool
	hasLast      bool

	inRun    bool
	runStart time.Time
	runSumX  float64
	runSumY  float64
	runN     int
}

// NewTracker starts tracking a test that began at start.
func NewTracker(start time.Time) *Tracker {
	return &Tracker{start: start}
}

// Start returns the test start time.
func (t *Tracker) Start() time.Time {
	return t.start
}

// Add records an observation taken at at. Observations must arrive in time
// order.
func (t *Tracker) Add(at time.Time, o Observation) {
	if t.hasLast && t.lastOnTarget && at.After(t.last) {
		t.gazeTime += at.Sub(t.last)
	}

	if o.OnTarget {
		if !t.inRun {
			t.inRun = true
			t.runStart = at
			t.runSumX, t.runSumY, t.runN = 0, 0, 0
		}
		t.runSumX += o.X
		t.runSumY += o.Y
		t.runN++
	} else {
		t.closeRun(at)
	}

	t.history = append(t.history, GazePoint{
		X:          o.X,
		Y:          o.Y,
		OnTarget:   o.OnTarget,
		Timestamp:  at.Sub(t.start),
		Confidence: o.Confidence,
	})
	if o.DistanceMM > 0 {
		t.distances = append(t.distances, o.DistanceMM)
	}
	if o.LeftEyeOpen != nil || o.RightEyeOpen != nil {
		t.eyes = &EyeStatus{
			LeftOpen:  o.LeftEyeOpen != nil && *o.LeftEyeOpen,
			RightOpen: o.RightEyeOpen != nil && *o.RightEyeOpen,
		}
	}

	t.last = at
	t.lastOnTarget = o.OnTarget
	t.hasLast = true
}

func (t *Tracker) closeRun(end time.Time) {
	if !t.inRun {
		return
	}
	t.inRun = false
	if f, ok := t.runFixation(end); ok {
		t.fixations = append(t.fixations, f)
	}
}

func (t *Tracker) runFixation(end time.Time) (Fixation, bool) {
	if t.runN == 0 || end.Sub(t.runStart) < MinFixation {
		return Fixation{}, false
	}
	return Fixation{
		Start: t.runStart.Sub(t.start),
		End:   end.Sub(t.start),
		X:     t.runSumX / float64(t.runN),
		Y:     t.runSumY / float64(t.runN),
	}, true
}

// fixationsAt returns completed fixations plus the open run when it
// already qualifies.
func (t *Tracker) fixationsAt(now time.Time) []Fixation {
	out := append([]Fixation(nil), t.fixations...)
	if t.inRun {
		if f, ok := t.runFixation(now); ok {
			out = append(out, f)
		}
	}
	return out
}

func (t *Tracker) gazeAt(now time.Time) time.Duration {
	gaze := t.gazeTime
	if t.hasLast && t.lastOnTarget && now.After(t.last) {
		gaze += now.Sub(t.last)
	}
	return gaze
}

// Metrics reports the running figures as of now.
func (t *Tracker) Metrics(now time.Time) Metrics {
	total := now.Sub(t.start)
	if total < 0 {
		total = 0
	}
	gaze := min(t.gazeAt(now), total)
	fixations := t.fixationsAt(now)
	avg, longest, shortest := FixationDurations(fixations)

	var tracking float64
	if total > 0 {
		tracking = float64(gaze) * 100 / float64(total)
	}
	return Metrics{
		TotalTime:          total,
		GazeTime:           gaze,
		TrackingPercentage: tracking,
		FixationCount:      len(fixations),
		AvgFixation:        avg,
		MaxFixation:        longest,
		MinFixation:        shortest,
		GazeStability:      Stability(t.history),
		GazeConsistency:    Consistency(t.history),
	}
}

// Recording snapshots everything captured so far for Analyze.
func (t *Tracker) Recording(now time.Time, patientName string) Recording {
	total := max(now.Sub(t.start), 0)
	fixations := t.fixationsAt(now)
	return Recording{
		TotalTime:   total,
		GazeTime:    min(t.gazeAt(now), total),
		PatientName: patientName,
		TestDate:    t.start,
		Fixations:   fixations,
		Saccades:    Saccades(fixations),
		GazeHistory: append([]GazePoint(nil), t.history...),
		Distances:   append([]float64(nil), t.distances...),
		EyeStatus:   t.eyes,
	}
}

// RawData is the raw_data payload uploaded with a finished test.
type RawData struct {
	GazeHistory []RawGazePoint              `json:"gazeHistory"`
	EyeStatus   *EyeStatus                  `json:"eyeStatus,omitempty"`
	Samples     map[string]state.GazeSample `json:"samples,omitempty"`
	Distances   []float64                   `json:"distances,omitempty"`
}

// RawGazePoint is a GazePoint with its timestamp in milliseconds.
type RawGazePoint struct {
	GazePoint
	TimestampMS int64 `json:"timestamp"`
}

// RawData builds the upload payload; samples are the store's raw gaze map.
func (t *Tracker) RawData(samples map[string]state.GazeSample) RawData {
	history := make([]RawGazePoint, len(t.history))
	for i, g := range t.history {
		history[i] = RawGazePoint{GazePoint: g, TimestampMS: g.Timestamp.Milliseconds()}
	}
	return RawData{
		GazeHistory: history,
		EyeStatus:   t.eyes,
		Samples:     samples,
		Distances:   append([]float64(nil), t.distances...),
	}
}
