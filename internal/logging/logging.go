// Package logging builds the process logger and a deduplicating wrapper used for
// warnings that would otherwise repeat once per record.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// New returns a slog.Logger writing to w. format is "text" or "json".
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
}

// ParseLevel maps debug/info/warn/error onto slog levels. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return lvl, nil
}

// Deduper wraps a logger and suppresses repeated warnings with the same key.
// A nil *Deduper logs through slog.Default without deduplication state.
type Deduper struct {
	log  *slog.Logger
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDeduper(l *slog.Logger) *Deduper {
	if l == nil {
		l = slog.Default()
	}
	return &Deduper{log: l, seen: make(map[string]struct{})}
}

// Logger returns the wrapped logger.
func (d *Deduper) Logger() *slog.Logger {
	if d == nil || d.log == nil {
		return slog.Default()
	}
	return d.log
}

// WarnOnce logs msg at WARN the first time key is seen and reports whether it did.
func (d *Deduper) WarnOnce(key, msg string, args ...any) bool {
	if d == nil {
		slog.Default().Warn(msg, args...)
		return true
	}
	d.mu.Lock()
	_, dup := d.seen[key]
	if !dup {
		d.seen[key] = struct{}{}
	}
	d.mu.Unlock()
	if dup {
		return false
	}
	d.Logger().Warn(msg, args...)
	return true
}

// Reset forgets every key, so the next WarnOnce per key logs again.
func (d *Deduper) Reset() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.seen = make(map[string]struct{})
	d.mu.Unlock()
}
