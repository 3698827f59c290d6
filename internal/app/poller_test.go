package app

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 30 * time.Second},
		{"negative failures", -1, 30 * time.Second},
		{"one failure", 1, time.Minute},
		{"two failures", 2, 2 * time.Minute},
		{"three failures", 3, 4 * time.Minute},
		{"four failures capped", 4, 5 * time.Minute}, // Would be 8m, capped to 5m
		{"many failures capped", 40, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 70; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

func TestCalculateBackoff_BaseAboveCap(t *testing.T) {
	if got := calculateBackoff(3, 10*time.Minute); got != 10*time.Minute {
		t.Fatalf("calculateBackoff = %v, want base unchanged", got)
	}
}

func TestStartPoller_RefreshesUntilCancelled(t *testing.T) {
	var hits atomic.Int32
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tests/":
			hits.Add(1)
			writeJSON(w, `[{"id":1,"result":"good"}]`)
		case "/api/tests/statistics/":
			writeJSON(w, `{"total_tests":1}`)
		default:
			http.NotFound(w, r)
		}
	})
	env.signIn(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := StartPoller(ctx, env.ctrl, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if hits.Load() < 2 {
		t.Fatalf("poller fetched tests %d times, want at least 2", hits.Load())
	}
	st := env.store.State()
	if len(st.TestResults) != 1 || st.Statistics == nil || st.Statistics.TotalTests != 1 {
		t.Fatalf("state after poll = %+v, want one test and statistics", st)
	}
	if st.Sync.LastUpdated.IsZero() || st.Sync.ConsecutiveFailures != 0 {
		t.Fatalf("sync status = %+v, want a successful refresh", st.Sync)
	}
}

func TestStartPoller_SkipsWhileSignedOut(t *testing.T) {
	var hits atomic.Int32
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := StartPoller(ctx, env.ctrl, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	cancel()
	<-done

	if hits.Load() != 0 {
		t.Fatalf("poller made %d requests while signed out, want 0", hits.Load())
	}
}
