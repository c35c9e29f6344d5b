package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// Entry is one captured log call with its attributes flattened into
// dotted keys, including those bound through With and WithGroup.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture is a slog.Handler that keeps every record in memory.
// Loggers derived with With share the parent's entries.
type LogCapture struct {
	store  *entryStore
	bound  []slog.Attr
	prefix string
}

type entryStore struct {
	mu      sync.Mutex
	entries []Entry
	t       testing.TB
}

// NewTestLogger returns a logger writing to a fresh capture. Records are
// echoed through t.Logf so they show up with -v.
func NewTestLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	c := &LogCapture{store: &entryStore{t: t}}
	return slog.New(c), c
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.bound)+r.NumAttrs())
	for _, a := range c.bound {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, c.prefix, a)
		return true
	})

	s := c.store
	s.mu.Lock()
	s.entries = append(s.entries, Entry{Level: r.Level, Message: r.Message, Attrs: attrs})
	s.mu.Unlock()
	if s.t != nil {
		s.t.Logf("%s %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *c
	next.bound = append([]slog.Attr(nil), c.bound...)
	for _, a := range attrs {
		if c.prefix != "" {
			a.Key = c.prefix + a.Key
		}
		next.bound = append(next.bound, a)
	}
	return &next
}

func (c *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	next := *c
	next.prefix = c.prefix + name + "."
	return &next
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, g := range v.Group() {
			flatten(dst, p, g)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// Entries returns a copy of everything captured so far.
func (c *LogCapture) Entries() []Entry {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return append([]Entry(nil), c.store.entries...)
}

// Find returns the first entry at level whose message contains msg.
func (c *LogCapture) Find(level slog.Level, msg string) (Entry, bool) {
	for _, e := range c.Entries() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return e, true
		}
	}
	return Entry{}, false
}

// ContainsMessage reports whether any entry, at any level, contains msg.
func (c *LogCapture) ContainsMessage(msg string) bool {
	for _, e := range c.Entries() {
		if strings.Contains(e.Message, msg) {
			return true
		}
	}
	return false
}

// Reset drops the captured entries.
func (c *LogCapture) Reset() {
	c.store.mu.Lock()
	c.store.entries = nil
	c.store.mu.Unlock()
}

// AssertLogContains fails t unless an entry at level contains msg.
func AssertLogContains(t testing.TB, c *LogCapture, level slog.Level, msg string) {
	t.Helper()
	if _, ok := c.Find(level, msg); ok {
		return
	}
	t.Errorf("no %s log containing %q", level, msg)
	for _, e := range c.Entries() {
		t.Logf("  %s %s", e.Level, e.Message)
	}
}
