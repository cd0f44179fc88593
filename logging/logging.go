// Package logging configures slog and provides the diagnostics recorder
// injected into pipeline stages.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stderr is used. Format must be "text" or "json".
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog.Level.
// Unknown values return slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// Recorder is the diagnostics sink handed to each pipeline stage. Stages
// record through it instead of reaching for a global logger.
type Recorder interface {
	Record(ctx context.Context, level slog.Level, msg string, attrs ...any)
}

// NewRecorder adapts a slog.Logger. A nil logger uses slog.Default at call time.
func NewRecorder(l *slog.Logger) Recorder {
	return slogRecorder{l: l}
}

type slogRecorder struct {
	l *slog.Logger
}

func (r slogRecorder) Record(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := r.l
	if l == nil {
		l = slog.Default()
	}
	l.Log(ctx, level, msg, attrs...)
}

// Discard drops every record.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, slog.Level, string, ...any) {}

// Entry is one captured record.
type Entry struct {
	Level slog.Level
	Msg   string
	Attrs map[string]any
}

// Memory keeps records in memory. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Record(_ context.Context, level slog.Level, msg string, attrs ...any) {
	e := Entry{Level: level, Msg: msg, Attrs: make(map[string]any)}
	// Normalise the key/value list the same way slog does.
	rec := slog.NewRecord(time.Time{}, level, msg, 0)
	rec.Add(attrs...)
	rec.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.Any()
		return true
	})

	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
}

// Entries returns a copy of the captured records.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// AtLevel returns the captured records with exactly the given level.
func (m *Memory) AtLevel(level slog.Level) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
