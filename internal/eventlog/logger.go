// Package eventlog writes compact `event=name key=value` lines to the process
// log, an optional append-only file and any attached live subscribers.
package eventlog

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Broadcaster receives every entry written to the log file.
type Broadcaster interface {
	BroadcastLog(entry string)
}

// Logger provides a single append-only log file shared by the daemon's
// components. Debug events are dropped unless debug is enabled.
type Logger struct {
	path        string
	file        *os.File
	mutex       sync.Mutex
	broadcaster Broadcaster
	debug       bool
	now         func() time.Time
}

// New opens path for appending. An empty path logs to the process log only.
func New(path string, debug bool) (*Logger, error) {
	logger := &Logger{path: path, debug: debug, now: time.Now}
	if strings.TrimSpace(path) == "" {
		return logger, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file '%s': %w", path, err)
	}
	logger.file = f
	return logger, nil
}

func (l *Logger) Path() string { return l.path }

// SetBroadcaster sets the subscriber for real-time log streaming.
func (l *Logger) SetBroadcaster(broadcaster Broadcaster) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.broadcaster = broadcaster
}

// SetDebug toggles debug events.
func (l *Logger) SetDebug(enabled bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.debug = enabled
}

// DebugEnabled reports whether debug events are recorded.
func (l *Logger) DebugEnabled() bool {
	if l == nil {
		return false
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.debug
}

// Write appends a full log entry line. A trailing newline is added when
// missing.
func (l *Logger) Write(entry string) error {
	if l == nil {
		return fmt.Errorf("logger is not initialized")
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if len(entry) > 0 && entry[len(entry)-1] != '\n' {
		entry += "\n"
	}

	if l.file != nil {
		if _, err := l.file.WriteString(entry); err != nil {
			return err
		}
	}

	if l.broadcaster != nil {
		l.broadcaster.BroadcastLog(strings.TrimSuffix(entry, "\n"))
	}

	if l.file != nil {
		return l.file.Sync()
	}
	return nil
}

// Event records an event on the process log and the shared sink.
func (l *Logger) Event(event string, fields map[string]any) {
	line := Format(event, fields)
	log.Print(line)
	if l == nil {
		return
	}
	if err := l.Write("time=" + l.now().UTC().Format(time.RFC3339) + " " + line); err != nil {
		log.Printf("event=eventlog.write error=%q", err.Error())
	}
}

// Debug records an event only when debug logging is enabled.
func (l *Logger) Debug(event string, fields map[string]any) {
	if !l.DebugEnabled() {
		return
	}
	l.Event(event, fields)
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Format renders an event with its fields sorted by key.
func Format(event string, fields map[string]any) string {
	var b strings.Builder
	b.WriteString("event=")
	b.WriteString(event)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(fields[k]))
	}
	return b.String()
}

func formatValue(v any) string {
	switch typed := v.(type) {
	case string:
		if typed == "" || strings.ContainsAny(typed, " \t\n\"=") {
			return fmt.Sprintf("%q", typed)
		}
		return typed
	case error:
		return fmt.Sprintf("%q", typed.Error())
	case time.Duration:
		return typed.String()
	default:
		return fmt.Sprint(v)
	}
}
