// Package analysis turns recorded gaze data into clinical metrics.
//
// Analyze grades a finished Recording. Tracker accumulates live samples
// while a test runs and reports the running Metrics shown on the test
// screen. Gaze coordinates are screen pixels.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNoDuration is returned when a recording has no positive total time.
var ErrNoDuration = errors.New("recording has no duration")

// GazePoint is one gaze estimate relative to the test start.
type GazePoint struct {
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	OnTarget   bool          `json:"onTarget"`
	Timestamp  time.Duration `json:"-"`
	Confidence float64       `json:"confidence"`
}

// Fixation is a period of steady gaze on the target.
type Fixation struct {
	Start time.Duration
	End   time.Duration
	X     float64
	Y     float64
}

// Duration returns End-Start, or zero for an open fixation.
func (f Fixation) Duration() time.Duration {
	if f.End < f.Start {
		return 0
	}
	return f.End - f.Start
}

// MinSaccadeAmplitude is the smallest gaze shift, in pixels, between two
// fixations that counts as a saccade.
const MinSaccadeAmplitude = 30.0

// Saccade is a rapid movement between fixations. Amplitude is in pixels,
// Velocity in pixels per second.
type Saccade struct {
	Start     time.Duration
	End       time.Duration
	Amplitude float64
	Velocity  float64
}

// Saccades derives the jumps between consecutive fixations whose centres
// lie at least MinSaccadeAmplitude apart. fixations must be in time order.
func Saccades(fixations []Fixation) []Saccade {
	var out []Saccade
	for i := 1; i < len(fixations); i++ {
		prev, next := fixations[i-1], fixations[i]
		amp := math.Hypot(next.X-prev.X, next.Y-prev.Y)
		if amp < MinSaccadeAmplitude {
			continue
		}
		s := Saccade{Start: prev.End, End: next.Start, Amplitude: amp}
		if gap := next.Start - prev.End; gap > 0 {
			s.Velocity = amp / gap.Seconds()
		}
		out = append(out, s)
	}
	return out
}

// EyeStatus reports which eyes the tracker saw open.
type EyeStatus struct {
	LeftOpen  bool `json:"leftEyeOpen"`
	RightOpen bool `json:"rightEyeOpen"`
}

// Describe returns a human-readable eye state.
func (e *EyeStatus) Describe() string {
	switch {
	case e == nil:
		return "Not detected"
	case e.LeftOpen && e.RightOpen:
		return "Both eyes open"
	case e.LeftOpen:
		return "Left eye open"
	case e.RightOpen:
		return "Right eye open"
	default:
		return "Eyes closed"
	}
}

// Recording is the data captured during one test.
type Recording struct {
	TotalTime   time.Duration
	GazeTime    time.Duration
	PatientName string
	TestDate    time.Time
	Fixations   []Fixation
	Saccades    []Saccade
	GazeHistory []GazePoint
	// Distances are eye-screen estimates in millimetres. Non-positive
	// entries mark samples where no face was measured.
	Distances []float64
	EyeStatus *EyeStatus
}

// TrackingPercentage returns GazeTime as a percentage of TotalTime.
func (r Recording) TrackingPercentage() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	return float64(r.GazeTime) * 100 / float64(r.TotalTime)
}

// Rating is the overall clinical grade.
type Rating string

// Ratings, best first.
const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingFair      Rating = "Fair"
	RatingPoor      Rating = "Poor"
)

// Quality grades tracking reliability.
type Quality string

// Quality levels, best first.
const (
	QualityExcellent  Quality = "Excellent"
	QualityGood       Quality = "Good"
	QualityAcceptable Quality = "Acceptable"
	QualityPoor       Quality = "Poor"
)

// Statistics are the detailed figures of a recording.
type Statistics struct {
	TotalTime          time.Duration
	GazeTime           time.Duration
	TrackingPercentage float64
	FixationCount      int
	SaccadeCount       int
	AvgFixation        time.Duration
	MaxFixation        time.Duration
	MinFixation        time.Duration
	// AvgDistanceMM is zero when DistanceMeasured is false.
	AvgDistanceMM    float64
	DistanceMeasured bool
	GazeStability    float64
	GazeConsistency  float64
	EyeStatus        string
}

// Evaluation is the clinical reading of a recording.
type Evaluation struct {
	Rating             Rating
	Remarks            []string
	TrackingPercentage float64
	FollowUp           bool
}

// Text renders the remarks followed by the overall rating.
func (e Evaluation) Text() string {
	var b strings.Builder
	for _, r := range e.Remarks {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Overall: %s", e.Rating)
	return b.String()
}

// TrackingQuality grades how reliably the target was followed.
type TrackingQuality struct {
	Level          Quality
	Score          float64
	GazePercentage float64
	Stability      float64
	Consistency    float64
}

// Report is the full analysis of a recording.
type Report struct {
	PatientName string
	TestDate    time.Time
	Statistics  Statistics
	Evaluation  Evaluation
	Quality     TrackingQuality
}

// Analyze grades a finished recording.
func Analyze(r Recording) (Report, error) {
	if r.TotalTime <= 0 {
		return Report{}, ErrNoDuration
	}

	tracking := r.TrackingPercentage()
	stability := Stability(r.GazeHistory)
	consistency := Consistency(r.GazeHistory)
	avg, maxFix, minFix := FixationDurations(r.Fixations)
	avgDist, measured := AverageDistance(r.Distances)

	stats := Statistics{
		TotalTime:          r.TotalTime,
		GazeTime:           r.GazeTime,
		TrackingPercentage: tracking,
		FixationCount:      len(r.Fixations),
		SaccadeCount:       len(r.Saccades),
		AvgFixation:        avg,
		MaxFixation:        maxFix,
		MinFixation:        minFix,
		AvgDistanceMM:      avgDist,
		DistanceMeasured:   measured,
		GazeStability:      stability,
		GazeConsistency:    consistency,
		EyeStatus:          r.EyeStatus.Describe(),
	}

	return Report{
		PatientName: r.PatientName,
		TestDate:    r.TestDate,
		Statistics:  stats,
		Evaluation:  evaluate(tracking, len(r.Fixations), r.TotalTime, stability),
		Quality: TrackingQuality{
			Level:          QualityFor(tracking),
			Score:          math.Min(100, tracking),
			GazePercentage: tracking,
			Stability:      stability,
			Consistency:    consistency,
		},
	}, nil
}

// RatingFor maps a tracking percentage onto a clinical rating.
func RatingFor(tracking float64) Rating {
	switch {
	case tracking >= 80:
		return RatingExcellent
	case tracking >= 60:
		return RatingGood
	case tracking >= 40:
		return RatingFair
	default:
		return RatingPoor
	}
}

// QualityFor maps a tracking percentage onto a quality level.
func QualityFor(tracking float64) Quality {
	switch {
	case tracking >= 85:
		return QualityExcellent
	case tracking >= 70:
		return QualityGood
	case tracking >= 50:
		return QualityAcceptable
	default:
		return QualityPoor
	}
}

func evaluate(tracking float64, fixations int, total time.Duration, stability float64) Evaluation {
	rating := RatingFor(tracking)
	var remarks []string

	switch rating {
	case RatingExcellent:
		remarks = append(remarks, "Excellent tracking: the patient followed the target.")
	case RatingGood:
		remarks = append(remarks, "Acceptable tracking: a few interruptions detected.")
	case RatingFair:
		remarks = append(remarks, "Weak tracking: frequent interruptions.")
	default:
		remarks = append(remarks, "Very weak tracking: the patient did not follow the target.")
	}

	perMinute := float64(fixations) / total.Minutes()
	switch {
	case perMinute > 5:
		remarks = append(remarks, "High fixation count: possible micro-saccades.")
	case perMinute > 1:
		remarks = append(remarks, "Normal fixation count.")
	}

	switch {
	case stability > 0.8:
		remarks = append(remarks, "Gaze very stable during fixations.")
	case stability > 0.6:
		remarks = append(remarks, "Gaze moderately stable.")
	default:
		remarks = append(remarks, "Unstable gaze: possible tremor.")
	}

	return Evaluation{
		Rating:             rating,
		Remarks:            remarks,
		TrackingPercentage: tracking,
		FollowUp:           rating == RatingPoor,
	}
}

const (
	minStabilitySamples = 10
	consistencyWindow   = 10
	neutralScore        = 0.5
)

// Stability scores how tightly on-target gaze clusters, from 0 (scattered)
// to 1 (steady). Histories too short to judge score 0.5.
func Stability(history []GazePoint) float64 {
	if len(history) < minStabilitySamples {
		return neutralScore
	}

	var xs, ys []float64
	for _, g := range history {
		if g.OnTarget {
			xs = append(xs, g.X)
			ys = append(ys, g.Y)
		}
	}
	if len(xs) < 2 {
		return neutralScore
	}

	meanX, meanY := mean(xs), mean(ys)
	var variance float64
	for i := range xs {
		variance += (xs[i]-meanX)*(xs[i]-meanX) + (ys[i]-meanY)*(ys[i]-meanY)
	}
	variance /= float64(len(xs))

	return math.Max(0, 1-math.Sqrt(variance)/100)
}

// Consistency is the mean on-target ratio over sliding windows of ten
// samples. Histories no longer than one window score 0.5.
func Consistency(history []GazePoint) float64 {
	windows := len(history) - consistencyWindow
	if windows <= 0 {
		return neutralScore
	}

	var total float64
	for i := 0; i < windows; i++ {
		onTarget := 0
		for _, g := range history[i : i+consistencyWindow] {
			if g.OnTarget {
				onTarget++
			}
		}
		total += float64(onTarget) / consistencyWindow
	}
	return total / float64(windows)
}

// FixationDurations returns the average, longest and shortest fixation.
func FixationDurations(fixations []Fixation) (avg, longest, shortest time.Duration) {
	if len(fixations) == 0 {
		return 0, 0, 0
	}
	var sum time.Duration
	shortest = fixations[0].Duration()
	for _, f := range fixations {
		d := f.Duration()
		sum += d
		longest = max(longest, d)
		shortest = min(shortest, d)
	}
	return sum / time.Duration(len(fixations)), longest, shortest
}

// AverageDistance averages the measured eye-screen distances in
// millimetres. ok is false when nothing was measured.
func AverageDistance(distances []float64) (avg float64, ok bool) {
	var sum float64
	var n int
	for _, d := range distances {
		if d > 0 {
			sum += d
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Millis renders d as whole milliseconds, e.g. "230ms".
func Millis(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Round(time.Millisecond).Milliseconds())
}
