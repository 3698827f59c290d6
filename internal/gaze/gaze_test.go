package gaze

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStream_DecodesAndSkips(t *testing.T) {
	input := strings.Join([]string{
		`{"x":10,"y":20,"confidence":0.9,"on_target":true,"left_eye_open":true,"right_eye_open":false,"distance_mm":520,"ts":1741942800123}`,
		``,
		`not json`,
		`{"y":5}`,
		`{"x":1.5,"y":2.5}`,
	}, "\n")

	var got []Sample
	stats, err := Stream(context.Background(), strings.NewReader(input), func(s Sample) error {
		got = append(got, s)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if stats != (Stats{Lines: 4, Samples: 2, Skipped: 2}) {
		t.Fatalf("stats = %#v, want 4 lines 2 samples 2 skipped", stats)
	}

	first := got[0]
	if *first.X != 10 || *first.Y != 20 || !first.OnTarget || first.DistanceMM != 520 {
		t.Fatalf("first sample = %#v", first)
	}
	obs := first.Observation()
	if obs.LeftEyeOpen == nil || !*obs.LeftEyeOpen || obs.RightEyeOpen == nil || *obs.RightEyeOpen {
		t.Fatalf("eye state not carried: %#v", obs)
	}
	if ts := first.Time(time.Time{}); ts.UnixMilli() != 1741942800123 {
		t.Fatalf("Time() = %v", ts)
	}

	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if ts := got[1].Time(fallback); !ts.Equal(fallback) {
		t.Fatalf("unstamped Time() = %v, want fallback", ts)
	}
	if gs := got[1].GazeSample(); gs.X != 1.5 || gs.Y != 2.5 || gs.Confidence != 0 {
		t.Fatalf("GazeSample() = %#v", gs)
	}
}

func TestSample_DistanceFallsBackToEyeCentres(t *testing.T) {
	input := strings.Join([]string{
		`{"x":1,"y":1,"left_eye":{"x":300,"y":200},"right_eye":{"x":367,"y":200}}`,
		`{"x":1,"y":1,"distance_mm":420,"left_eye":{"x":300,"y":200},"right_eye":{"x":367,"y":200}}`,
		`{"x":1,"y":1,"left_eye":{"x":300,"y":200}}`,
	}, "\n")

	var got []Sample
	if _, err := Stream(context.Background(), strings.NewReader(input), func(s Sample) error {
		got = append(got, s)
		return nil
	}); err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("decoded %d samples, want 3", len(got))
	}

	if mm, ok := got[0].Distance(); !ok || mm != 500 {
		t.Fatalf("estimated Distance() = %v, %v; want 500, true", mm, ok)
	}
	if obs := got[0].Observation(); obs.DistanceMM != 500 {
		t.Fatalf("Observation().DistanceMM = %v, want 500", obs.DistanceMM)
	}
	if mm, ok := got[1].Distance(); !ok || mm != 420 {
		t.Fatalf("reported Distance() = %v, %v; want 420, true", mm, ok)
	}
	if mm, ok := got[2].Distance(); ok || mm != 0 {
		t.Fatalf("one-eye Distance() = %v, %v; want 0, false", mm, ok)
	}
	if obs := got[2].Observation(); obs.DistanceMM != 0 {
		t.Fatalf("Observation().DistanceMM = %v, want 0", obs.DistanceMM)
	}
}

func TestStream_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	_, err := Stream(context.Background(), strings.NewReader("{\"x\":1,\"y\":1}\n{\"x\":2,\"y\":2}\n"), func(Sample) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err = %v calls = %d, want stop after 1", err, calls)
	}
}

func TestStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Stream(ctx, strings.NewReader("{\"x\":1,\"y\":1}\n{\"x\":2,\"y\":2}\n"), func(Sample) error {
		calls++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err = %v calls = %d, want context.Canceled after 1", err, calls)
	}
}

func TestOpen(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatalf("Open(empty) returned nil error")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.ndjson")); err == nil {
		t.Fatalf("Open(missing) returned nil error")
	}

	path := filepath.Join(t.TempDir(), "gaze.ndjson")
	if err := os.WriteFile(path, []byte("{\"x\":1,\"y\":1}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rc, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()

	stats, err := Stream(context.Background(), rc, func(Sample) error { return nil })
	if err != nil || stats.Samples != 1 {
		t.Fatalf("Stream(file) = %#v, %v", stats, err)
	}
}
