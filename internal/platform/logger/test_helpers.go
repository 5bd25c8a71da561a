package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLogBuffer collects JSON log lines written by concurrent goroutines
type TestLogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// GetLogEntries decodes every non-empty line as one JSON record
func (b *TestLogBuffer) GetLogEntries() ([]map[string]any, error) {
	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewBufferString(b.String()))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("log line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// EntriesWithMessage returns the records whose msg equals message
func (b *TestLogBuffer) EntriesWithMessage(t *testing.T, message string) []map[string]any {
	t.Helper()
	entries, err := b.GetLogEntries()
	require.NoError(t, err)

	var matching []map[string]any
	for _, entry := range entries {
		if entry[slog.MessageKey] == message {
			matching = append(matching, entry)
		}
	}
	return matching
}

// GetTestLogger returns a debug-level JSON logger writing into a fresh buffer
func GetTestLogger(t *testing.T) (*slog.Logger, *TestLogBuffer) {
	t.Helper()
	buf := &TestLogBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// AssertLogContains fails t unless the raw log output contains content
func AssertLogContains(t *testing.T, buf *TestLogBuffer, content string) {
	t.Helper()
	assert.Contains(t, buf.String(), content)
}

// AssertLogField fails t unless some record has field set to expected.
// Numbers decode as float64.
func AssertLogField(t *testing.T, buf *TestLogBuffer, field string, expected any) {
	t.Helper()
	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.NotEmpty(t, entries, "no log records")

	for _, entry := range entries {
		if value, ok := entry[field]; ok && value == expected {
			return
		}
	}
	t.Errorf("no log record has %s=%v\nlogs:\n%s", field, expected, buf.String())
}
