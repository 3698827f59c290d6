package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file is not an error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := range count {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one decoded JSON log line.
type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Logger  string
	Message string
	Fields  map[string]any
	// Raw holds the original text of lines that are not JSON entries.
	Raw string
}

var reserved = []string{"ts", "level", "logger", "msg", "caller", "stacktrace"}

// Parse decodes a log line written by the regard logger. Lines that are not
// JSON objects come back with only Raw set and ok false.
func Parse(line string) (e Entry, ok bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{Raw: line}, false
	}

	if ts, _ := raw["ts"].(string); ts != "" {
		e.Time, _ = time.Parse("2006-01-02T15:04:05.000Z0700", ts)
	}
	if lvl, _ := raw["level"].(string); lvl != "" {
		_ = e.Level.UnmarshalText([]byte(lvl))
	}
	e.Logger, _ = raw["logger"].(string)
	e.Message, _ = raw["msg"].(string)

	for k, v := range raw {
		if slices.Contains(reserved, k) {
			continue
		}
		if e.Fields == nil {
			e.Fields = make(map[string]any)
		}
		e.Fields[k] = v
	}
	return e, true
}

// Format renders an entry as a single human readable line:
// time, level, logger, message, then fields sorted by key.
func (e Entry) Format() string {
	if e.Message == "" && e.Raw != "" {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "%-5s ", e.Level.CapitalString())
	if e.Logger != "" {
		b.WriteString("[" + e.Logger + "] ")
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}

// Filter keeps lines at or above min. Lines that are not JSON entries are
// kept only when min is debug.
func Filter(lines []string, min zapcore.Level) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, ok := Parse(line)
		if !ok {
			if min <= zapcore.DebugLevel {
				out = append(out, e)
			}
			continue
		}
		if e.Level >= min {
			out = append(out, e)
		}
	}
	return out
}
