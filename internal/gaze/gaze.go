// Package gaze reads gaze samples produced by an external eye tracker.
//
// The tracker writes one JSON object per line:
//
//	{"x":512.4,"y":300.1,"confidence":0.92,"on_target":true,"left_eye_open":true,"right_eye_open":true,"distance_mm":540,"ts":1741942800123}
//
// A tracker that cannot measure distance may send the eye centres in
// camera pixels instead, as "left_eye":{"x":..,"y":..} and "right_eye".
// Only x and y are required. Lines that fail to decode are skipped and
// counted.
package gaze

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/regardlab/regard/internal/analysis"
	"github.com/regardlab/regard/internal/state"
)

// Stdin is the source name that reads samples from standard input.
const Stdin = "-"

const maxLineBytes = 64 * 1024

// Sample is one tracker line.
type Sample struct {
	X            *float64      `json:"x"`
	Y            *float64      `json:"y"`
	Confidence   float64       `json:"confidence"`
	OnTarget     bool          `json:"on_target"`
	LeftEyeOpen  *bool         `json:"left_eye_open,omitempty"`
	RightEyeOpen *bool         `json:"right_eye_open,omitempty"`
	DistanceMM   float64       `json:"distance_mm,omitempty"`
	LeftEye      *analysis.Eye `json:"left_eye,omitempty"`
	RightEye     *analysis.Eye `json:"right_eye,omitempty"`
	// TS is the capture time in unix milliseconds; zero when the tracker
	// does not stamp samples.
	TS int64 `json:"ts,omitempty"`
}

// Time returns the capture time, or fallback when the sample is unstamped.
func (s Sample) Time(fallback time.Time) time.Time {
	if s.TS <= 0 {
		return fallback
	}
	return time.UnixMilli(s.TS)
}

// GazeSample converts s for the state store.
func (s Sample) GazeSample() state.GazeSample {
	return state.GazeSample{X: deref(s.X), Y: deref(s.Y), Confidence: s.Confidence}
}

// Distance returns the reported eye-screen distance, falling back to an
// estimate from the eye centres. ok is false when neither is available.
func (s Sample) Distance() (mm float64, ok bool) {
	if s.DistanceMM > 0 {
		return s.DistanceMM, true
	}
	return analysis.EstimateDistance(s.LeftEye, s.RightEye)
}

// Observation converts s for an analysis.Tracker.
func (s Sample) Observation() analysis.Observation {
	mm, _ := s.Distance()
	return analysis.Observation{
		X:            deref(s.X),
		Y:            deref(s.Y),
		Confidence:   s.Confidence,
		OnTarget:     s.OnTarget,
		LeftEyeOpen:  s.LeftEyeOpen,
		RightEyeOpen: s.RightEyeOpen,
		DistanceMM:   mm,
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Stats counts what a Stream call consumed.
type Stats struct {
	Lines   int
	Samples int
	Skipped int
}

// Stream decodes samples from r and calls fn for each one until r is
// exhausted, ctx is cancelled or fn returns an error. Blank lines are
// ignored; malformed lines are skipped. Reaching EOF returns a nil error.
//
// Cancellation is observed between lines; a read blocked on a quiet pipe
// returns once the writer sends another line or closes it.
func Stream(ctx context.Context, r io.Reader, fn func(Sample) error) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Lines++

		var s Sample
		if err := json.Unmarshal([]byte(line), &s); err != nil || s.X == nil || s.Y == nil {
			stats.Skipped++
			continue
		}
		stats.Samples++
		if err := fn(s); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read gaze feed: %w", err)
	}
	return stats, ctx.Err()
}

// Open opens a gaze source: a file or FIFO path, or Stdin.
func Open(source string) (io.ReadCloser, error) {
	source = strings.TrimSpace(source)
	switch source {
	case "":
		return nil, fmt.Errorf("gaze source is empty")
	case Stdin:
		return io.NopCloser(os.Stdin), nil
	}
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open gaze source: %w", err)
	}
	return file, nil
}
