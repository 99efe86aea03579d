package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Entry is one decoded log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Tail returns the last n records of the log at path whose level is at
// least minLevel. Lines that are not JSON records are skipped. n <= 0 returns
// every matching record.
func Tail(path string, n int, minLevel slog.Level) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		e, ok := decodeEntry(sc.Bytes())
		if !ok || ParseLevel(e.Level) < minLevel {
			continue
		}
		entries = append(entries, e)
		if n > 0 && len(entries) > n {
			entries = entries[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return entries, nil
}

func decodeEntry(line []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{}, false
	}
	msg, ok := raw[slog.MessageKey].(string)
	if !ok {
		return Entry{}, false
	}

	e := Entry{Message: msg}
	e.Level, _ = raw[slog.LevelKey].(string)
	if ts, ok := raw[slog.TimeKey].(string); ok {
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	delete(raw, slog.MessageKey)
	delete(raw, slog.LevelKey)
	delete(raw, slog.TimeKey)
	if len(raw) > 0 {
		e.Attrs = raw
	}
	return e, true
}
