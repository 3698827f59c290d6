package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/regardlab/regard/internal/state"
)

func TestFollowGaze_FeedsRunningTest(t *testing.T) {
	env := newTestEnv(t, http.NotFound)
	env.signIn(t)
	env.ctrl.StartTest()

	feed := filepath.Join(t.TempDir(), "gaze.ndjson")
	lines := []string{
		`{"x":10,"y":20,"confidence":0.9,"on_target":true,"ts":1741942800000}`,
		`not json`,
		``,
		`{"y":5}`,
		`{"x":30,"y":40,"confidence":0.8,"on_target":true,"ts":1741942800100}`,
	}
	if err := os.WriteFile(feed, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}

	select {
	case <-FollowGaze(context.Background(), env.ctrl, feed, zap.NewNop()):
	case <-time.After(5 * time.Second):
		t.Fatal("FollowGaze did not finish at EOF")
	}

	cur := env.store.State().CurrentTest
	if cur == nil || len(cur.RawData) == 0 {
		t.Fatalf("CurrentTest = %+v, want recorded samples", cur)
	}
	found := false
	for _, s := range cur.RawData {
		if s.X == 30 && s.Y == 40 {
			found = true
		}
	}
	if !found {
		t.Fatalf("RawData = %v, want the last sample", cur.RawData)
	}
}

func TestFollowGaze_MissingSourceNotifies(t *testing.T) {
	env := newTestEnv(t, http.NotFound)

	<-FollowGaze(context.Background(), env.ctrl, filepath.Join(t.TempDir(), "absent"), nil)

	n := lastNotification(t, env.store.State())
	if n.Kind != state.KindError || !strings.Contains(n.Message, "gaze source") {
		t.Fatalf("notification = %+v, want gaze source error", n)
	}
}

func TestBootstrap_WiresComponents(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("REGARD_API_URL", "")

	dataDir := filepath.Join(home, "data")
	cfgPath := filepath.Join(home, "config.toml")
	cfg := "api_url = \"http://backend.test:8000\"\ndata_dir = \"" + dataDir + "\"\npoll_seconds = 5\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	rt, err := Bootstrap(Options{
		ConfigPath: cfgPath,
		PrefsPath:  filepath.Join(home, "prefs.toml"),
		APIURL:     "http://override.test:9000",
	})
	if err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	if rt.Config.APIURL != "http://override.test:9000" {
		t.Fatalf("APIURL = %q, want the override", rt.Config.APIURL)
	}
	if rt.Config.PollEvery != 5*time.Second {
		t.Fatalf("PollEvery = %v, want 5s", rt.Config.PollEvery)
	}
	if rt.Prefs.Theme != "DSFR" {
		t.Fatalf("Theme = %q, want DSFR default", rt.Prefs.Theme)
	}
	if rt.Client.IsAuthenticated() {
		t.Fatal("fresh storage should carry no tokens")
	}

	rt.Store.SetScreen(state.ScreenStatistics)
	if err := rt.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "regard.db")); err != nil {
		t.Fatalf("storage file missing: %v", err)
	}

	// A second run restores the persisted screen.
	rt, err = Bootstrap(Options{ConfigPath: cfgPath, PrefsPath: filepath.Join(home, "prefs.toml")})
	if err != nil {
		t.Fatalf("second Bootstrap returned error: %v", err)
	}
	defer rt.Close()
	if got := rt.Store.State().CurrentScreen; got != state.ScreenStatistics {
		t.Fatalf("restored screen = %q, want statistics", got)
	}
}
