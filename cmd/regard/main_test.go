package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliEnv struct {
	home    string
	dataDir string
	apiURL  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"access_token":"a","refresh_token":"r","user_id":7,"username":"alice","email":"a@example.com","first_name":"Alice","last_name":"Martin"}`)
	})
	mux.HandleFunc("/api/patients/me/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id":3,"user":{"id":7,"username":"alice","email":"a@example.com","first_name":"Alice","last_name":"Martin"},"age":42,"tests_count":2}`)
	})
	mux.HandleFunc("/api/patients/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[{"id":3,"user":{"id":7,"username":"alice","first_name":"Alice"},"age":42,"tests_count":2}]`)
	})
	mux.HandleFunc("/api/tests/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"count":2,"results":[{"id":5,"result":"good","test_date":"2025-03-14T09:00:00Z","duration":30,"tracking_percentage":72.5,"fixation_count":14},{"id":4,"result":"poor","duration":30}]}`)
	})
	mux.HandleFunc("/api/tests/statistics/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"total_tests":2,"results":{"excellent":0,"good":1,"acceptable":0,"poor":1},"averages":{"tracking_percentage":61.2,"gaze_stability":0.7}}`)
	})
	mux.HandleFunc("/api/tests/5/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id":5,"result":"good","duration":30,"clinical_evaluation":"Stable gaze."}`)
	})
	mux.HandleFunc("/api/tests/99/", http.NotFound)
	mux.HandleFunc("/api/tests/5/export_pdf/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.4 report")
	})
	mux.HandleFunc("/ml/predict/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"tracking_percentage":80`) {
			http.Error(w, `{"error":"bad input"}`, http.StatusBadRequest)
			return
		}
		writeJSON(w, `{"result":"good","confidence":0.87,"anomaly_detected":false}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("REGARD_API_URL", "")
	return &cliEnv{home: home, dataDir: filepath.Join(home, "data"), apiURL: srv.URL}
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

// run executes the CLI with the environment's backend and data directory.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(e.home, "config.toml")
	if _, err := os.Stat(cfg); err != nil {
		body := "data_dir = \"" + e.dataDir + "\"\n"
		if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}

	var out bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out)
	root.SetArgs(append([]string{
		"--config", cfg,
		"--prefs", filepath.Join(e.home, "prefs.toml"),
		"--api", e.apiURL,
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestLoginThenListTests(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "secret\n", "login", "alice")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "Signed in as alice") {
		t.Fatalf("login output = %q", out)
	}

	out, err = env.run(t, "", "tests")
	if err != nil {
		t.Fatalf("tests failed: %v", err)
	}
	for _, want := range []string{"good", "poor", "72.5%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("tests output missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "", "whoami")
	if err != nil {
		t.Fatalf("whoami failed: %v", err)
	}
	if !strings.Contains(out, "Alice Martin (alice)") || !strings.Contains(out, "Age:   42") {
		t.Fatalf("whoami output = %q", out)
	}
}

func TestLoginReusesLastUsername(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "secret\n", "login", "alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	out, err := env.run(t, "secret", "login")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	if !strings.Contains(out, "alice") {
		t.Fatalf("login output = %q", out)
	}
}

func TestLoginRequiresPassword(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "", "login", "alice"); err == nil {
		t.Fatal("login without password succeeded")
	}
}

func TestCommandsRequireSession(t *testing.T) {
	env := newCLIEnv(t)
	for _, cmd := range [][]string{{"tests"}, {"stats"}, {"whoami"}, {"export", "--all"}} {
		_, err := env.run(t, "", cmd...)
		if err != errNotSignedIn {
			t.Fatalf("%v error = %v, want %v", cmd, err, errNotSignedIn)
		}
	}
}

func TestShowTest(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "secret\n", "login", "alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	out, err := env.run(t, "", "test", "#5")
	if err != nil {
		t.Fatalf("test 5 failed: %v", err)
	}
	if !strings.Contains(out, "Test #5  good") || !strings.Contains(out, "Stable gaze.") {
		t.Fatalf("test output = %q", out)
	}

	_, err = env.run(t, "", "test", "99")
	if err == nil || !strings.Contains(err.Error(), "test #99 not found") {
		t.Fatalf("missing test error = %v", err)
	}

	if _, err := env.run(t, "", "test", "abc"); err == nil {
		t.Fatal("invalid id accepted")
	}
}

func TestStatsAndPatients(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "secret\n", "login", "alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	out, err := env.run(t, "", "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "Tests taken: 2") || !strings.Contains(out, "61.2%") {
		t.Fatalf("stats output = %q", out)
	}

	out, err = env.run(t, "", "patients")
	if err != nil {
		t.Fatalf("patients failed: %v", err)
	}
	if !strings.Contains(out, "Alice") || !strings.Contains(out, "42") {
		t.Fatalf("patients output = %q", out)
	}
}

func TestExport(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "secret\n", "login", "alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := env.run(t, "", "export"); err == nil {
		t.Fatal("export without id or --all succeeded")
	}
	if _, err := env.run(t, "", "export", "5", "--all"); err == nil {
		t.Fatal("export with id and --all succeeded")
	}

	path := filepath.Join(env.home, "reports", "five.pdf")
	out, err := env.run(t, "", "export", "5", "-o", path)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("export output = %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("exported file = %q, %v", data, err)
	}
}

func TestPredictAcceptsComments(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "secret\n", "login", "alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	input := filepath.Join(env.home, "metrics.jsonc")
	body := `{
	// captured by hand
	"tracking_percentage": 80,
	"fixation_count": 12, /* trailing comma below */
	"gaze_stability": 0.8,
}`
	if err := os.WriteFile(input, []byte(body), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	out, err := env.run(t, "", "predict", input)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if !strings.Contains(out, "good (87% confidence)") {
		t.Fatalf("predict output = %q", out)
	}
}

func TestLogoutForgetsSession(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "secret\n", "login", "alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := env.run(t, "", "logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := env.run(t, "", "tests"); err != errNotSignedIn {
		t.Fatalf("tests after logout error = %v, want %v", err, errNotSignedIn)
	}
}

func TestLogsFiltersByLevel(t *testing.T) {
	env := newCLIEnv(t)
	if err := os.MkdirAll(env.dataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	lines := strings.Join([]string{
		`{"level":"debug","msg":"tick"}`,
		`{"level":"warn","logger":"regard.app","msg":"refresh failed","error":"timeout"}`,
	}, "\n")
	if err := os.WriteFile(filepath.Join(env.dataDir, "regard.log"), []byte(lines+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, err := env.run(t, "", "logs", "--level", "info")
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	if strings.Contains(out, "tick") || !strings.Contains(out, "WARN  [regard.app] refresh failed error=timeout") {
		t.Fatalf("logs output = %q", out)
	}
}
