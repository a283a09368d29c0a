package httpmw

import (
	"context"
	"sync"

	"github.com/sanctuaryweb/site/internal/log"
)

type logEntry struct {
	level string
	msg   string
	err   error
	kv    []any
}

// recordingLogger keeps every With field and log call in one place. With
// returns the same logger so entries written downstream land here too.
type recordingLogger struct {
	mu      sync.Mutex
	fields  []any
	entries []logEntry
}

func (l *recordingLogger) With(kv ...any) log.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields = append(l.fields, kv...)
	return l
}

func (l *recordingLogger) add(e logEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *recordingLogger) Debug(_ context.Context, msg string, kv ...any) {
	l.add(logEntry{level: "debug", msg: msg, kv: kv})
}

func (l *recordingLogger) Info(_ context.Context, msg string, kv ...any) {
	l.add(logEntry{level: "info", msg: msg, kv: kv})
}

func (l *recordingLogger) Warn(_ context.Context, msg string, kv ...any) {
	l.add(logEntry{level: "warn", msg: msg, kv: kv})
}

func (l *recordingLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	l.add(logEntry{level: "error", msg: msg, err: err, kv: kv})
}

func (l *recordingLogger) Sync() error { return nil }

func (l *recordingLogger) byLevel(level string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

func (l *recordingLogger) field(key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lookup(l.fields, key)
}

func lookup(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			return kv[i+1], true
		}
	}
	return nil, false
}
