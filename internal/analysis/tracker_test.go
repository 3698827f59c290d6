package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/regardlab/regard/internal/state"
)

func TestTracker_Metrics(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start)
	at := func(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }

	// 0-300ms on target (fixation), 300-400 off, 400-450 on (too short),
	// 450-600 off, 600-1000 on and still open.
	samples := []struct {
		ms int
		on bool
	}{
		{0, true}, {100, true}, {200, true}, {300, false},
		{400, true}, {450, false}, {600, true}, {800, true},
	}
	for _, s := range samples {
		tr.Add(at(s.ms), Observation{X: 100, Y: 100, Confidence: 0.9, OnTarget: s.on})
	}

	m := tr.Metrics(at(1000))
	if m.TotalTime != time.Second {
		t.Fatalf("TotalTime = %v, want 1s", m.TotalTime)
	}
	// 300 + 50 + 400
	if m.GazeTime != 750*time.Millisecond {
		t.Fatalf("GazeTime = %v, want 750ms", m.GazeTime)
	}
	if m.TrackingPercentage != 75 {
		t.Fatalf("TrackingPercentage = %v, want 75", m.TrackingPercentage)
	}
	if m.FixationCount != 2 {
		t.Fatalf("FixationCount = %d, want 2", m.FixationCount)
	}
	if m.MaxFixation != 400*time.Millisecond || m.MinFixation != 300*time.Millisecond || m.AvgFixation != 350*time.Millisecond {
		t.Fatalf("fixations = avg %v max %v min %v", m.AvgFixation, m.MaxFixation, m.MinFixation)
	}

	patch := m.Patch()
	if *patch.TotalTime != 1 || *patch.GazeTime != 0.75 || *patch.AvgFixationDuration != 350 || *patch.FixationCount != 2 {
		t.Fatalf("patch = total %v gaze %v avg %v count %v", *patch.TotalTime, *patch.GazeTime, *patch.AvgFixationDuration, *patch.FixationCount)
	}
}

func TestTracker_RecordingAndRawData(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start)
	open := true
	closed := false
	tr.Add(start.Add(10*time.Millisecond), Observation{X: 1, Y: 2, OnTarget: true, DistanceMM: 480, LeftEyeOpen: &open, RightEyeOpen: &closed})
	tr.Add(start.Add(20*time.Millisecond), Observation{X: 3, Y: 4})

	rec := tr.Recording(start.Add(time.Second), "Bob")
	if rec.TotalTime != time.Second || rec.GazeTime != 10*time.Millisecond {
		t.Fatalf("recording times = %v/%v", rec.TotalTime, rec.GazeTime)
	}
	if rec.EyeStatus == nil || !rec.EyeStatus.LeftOpen || rec.EyeStatus.RightOpen {
		t.Fatalf("EyeStatus = %#v", rec.EyeStatus)
	}
	if len(rec.Distances) != 1 || len(rec.GazeHistory) != 2 || rec.PatientName != "Bob" {
		t.Fatalf("recording = %#v", rec)
	}

	raw := tr.RawData(map[string]state.GazeSample{"1": {X: 1}})
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		GazeHistory []map[string]any `json:"gazeHistory"`
		EyeStatus   map[string]bool  `json:"eyeStatus"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	first := decoded.GazeHistory[0]
	if first["onTarget"] != true || first["timestamp"] != float64(10) {
		t.Fatalf("gazeHistory[0] = %v, want onTarget and 10ms timestamp", first)
	}
	if !decoded.EyeStatus["leftEyeOpen"] || decoded.EyeStatus["rightEyeOpen"] {
		t.Fatalf("eyeStatus = %v", decoded.EyeStatus)
	}
}

func TestTracker_EmptyMetrics(t *testing.T) {
	start := time.Now()
	m := NewTracker(start).Metrics(start)
	if m.TotalTime != 0 || m.TrackingPercentage != 0 || m.FixationCount != 0 {
		t.Fatalf("empty metrics = %#v", m)
	}
	if m.GazeStability != 0.5 || m.GazeConsistency != 0.5 {
		t.Fatalf("neutral scores = %v/%v, want 0.5", m.GazeStability, m.GazeConsistency)
	}
}

func TestTracker_RecordingDerivesSaccades(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start)
	at := func(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }

	// Three fixations: at (100,100), a 10px drift, then a 300px jump.
	for _, s := range []struct {
		ms   int
		x, y float64
		on   bool
	}{
		{0, 100, 100, true}, {200, 100, 100, false},
		{300, 110, 100, true}, {500, 110, 100, false},
		{600, 410, 100, true}, {800, 410, 100, true},
	} {
		tr.Add(at(s.ms), Observation{X: s.x, Y: s.y, OnTarget: s.on})
	}

	rec := tr.Recording(at(1000), "Bob")
	if len(rec.Fixations) != 3 {
		t.Fatalf("fixations = %d, want 3", len(rec.Fixations))
	}
	want := Saccade{Start: 500 * time.Millisecond, End: 600 * time.Millisecond, Amplitude: 300, Velocity: 3000}
	if len(rec.Saccades) != 1 || rec.Saccades[0] != want {
		t.Fatalf("saccades = %+v, want [%+v]", rec.Saccades, want)
	}

	report, err := Analyze(rec)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if report.Statistics.SaccadeCount != 1 {
		t.Fatalf("SaccadeCount = %d, want 1", report.Statistics.SaccadeCount)
	}
}
