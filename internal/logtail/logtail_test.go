package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "read all (0)", maxLines: 0, expected: expectedAll},
		{name: "read all (negative)", maxLines: -1, expected: expectedAll},
		{name: "read partial (5)", maxLines: 5, expected: expectedAll[5:]},
		{name: "read exactly all (10)", maxLines: 10, expected: expectedAll},
		{name: "read more than exists (20)", maxLines: 20, expected: expectedAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	line := `{"level":"warn","ts":"2026-03-01T10:00:00.000Z","logger":"regard.poller","msg":"refresh failed","failures":2,"error":"backend unavailable"}`
	e, ok := Parse(line)
	if !ok {
		t.Fatal("Parse() ok = false")
	}
	if e.Level != zapcore.WarnLevel || e.Logger != "regard.poller" || e.Message != "refresh failed" {
		t.Fatalf("Parse() = %+v", e)
	}
	if e.Time.IsZero() {
		t.Fatal("timestamp not decoded")
	}
	if len(e.Fields) != 2 || e.Fields["error"] != "backend unavailable" {
		t.Fatalf("Fields = %v", e.Fields)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name:  "raw line",
			entry: Entry{Raw: "panic: boom"},
			want:  "panic: boom",
		},
		{
			name: "fields sorted",
			entry: Entry{
				Level:   zapcore.ErrorLevel,
				Logger:  "regard.api",
				Message: "request failed",
				Fields:  map[string]any{"status": 500.0, "path": "/api/tests/"},
			},
			want: "ERROR [regard.api] request failed path=/api/tests/ status=500",
		},
		{
			name:  "info without logger",
			entry: Entry{Level: zapcore.InfoLevel, Message: "started"},
			want:  "INFO  started",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Format(); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	lines := []string{
		`{"level":"debug","msg":"tick"}`,
		`{"level":"info","msg":"signed in"}`,
		"",
		"not json",
		`{"level":"error","msg":"upload failed"}`,
	}

	got := Filter(lines, zapcore.InfoLevel)
	if len(got) != 2 || got[0].Message != "signed in" || got[1].Message != "upload failed" {
		t.Fatalf("Filter(info) = %+v", got)
	}

	got = Filter(lines, zapcore.DebugLevel)
	if len(got) != 4 || got[2].Raw != "not json" {
		t.Fatalf("Filter(debug) = %+v", got)
	}
}
