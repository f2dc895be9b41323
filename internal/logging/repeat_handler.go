package logging

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// maxTracked bounds the fingerprints kept. When the table is full expired
// entries are pruned, and if none have expired the table starts over.
const maxTracked = 4096

// RepeatHandler drops a record when an identical one (same level, message and
// attributes, timestamp ignored) went through less than window ago. The next
// record that does go through carries a "repeated" attribute with the number
// dropped in between. Derived handlers share the same memory.
type RepeatHandler struct {
	next   slog.Handler
	window time.Duration
	scope  uint64
	state  *repeatState
}

type repeatState struct {
	mu   sync.Mutex
	now  func() time.Time
	seen map[uint64]*repeatEntry
}

type repeatEntry struct {
	passed  time.Time
	dropped int
}

func NewRepeatHandler(next slog.Handler, window time.Duration) *RepeatHandler {
	return &RepeatHandler{
		next:   next,
		window: window,
		state:  &repeatState{now: time.Now, seen: make(map[uint64]*repeatEntry)},
	}
}

func (h *RepeatHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RepeatHandler) Handle(ctx context.Context, r slog.Record) error {
	key := h.fingerprint(r)

	s := h.state
	s.mu.Lock()
	now := s.now()
	e, ok := s.seen[key]
	if ok && now.Sub(e.passed) < h.window {
		e.dropped++
		s.mu.Unlock()
		return nil
	}
	dropped := 0
	if ok {
		dropped = e.dropped
		e.passed, e.dropped = now, 0
	} else {
		if len(s.seen) >= maxTracked {
			s.pruneLocked(now, h.window)
			if len(s.seen) >= maxTracked {
				s.seen = make(map[uint64]*repeatEntry)
			}
		}
		s.seen[key] = &repeatEntry{passed: now}
	}
	s.mu.Unlock()

	if dropped > 0 {
		r = r.Clone()
		r.AddAttrs(slog.Int("repeated", dropped))
	}
	return h.next.Handle(ctx, r)
}

func (s *repeatState) pruneLocked(now time.Time, window time.Duration) {
	for k, e := range s.seen {
		if now.Sub(e.passed) >= window {
			delete(s.seen, k)
		}
	}
}

func (h *RepeatHandler) fingerprint(r slog.Record) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatUint(h.scope, 16))
	_, _ = d.WriteString(r.Level.String())
	_, _ = d.WriteString("|" + r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.WriteString("|" + a.Key + "=" + a.Value.String())
		return true
	})
	return d.Sum64()
}

// derive keeps loggers with different bound attributes apart.
func (h *RepeatHandler) derive(next slog.Handler, salt string) *RepeatHandler {
	return &RepeatHandler{
		next:   next,
		window: h.window,
		scope:  xxhash.Sum64String(strconv.FormatUint(h.scope, 16) + "/" + salt),
		state:  h.state,
	}
}

func (h *RepeatHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	salt := ""
	for _, a := range attrs {
		salt += a.Key + "=" + a.Value.String() + ";"
	}
	return h.derive(h.next.WithAttrs(attrs), salt)
}

func (h *RepeatHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(h.next.WithGroup(name), "group:"+name)
}
