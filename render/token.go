package render

import (
	"math"
	"sync/atomic"
	"time"
)

// AccessToken tracks when and how often a cache entry is touched. All
// operations are lock-free; Touch may be called from any goroutine holding a
// reference to the entry.
type AccessToken struct {
	lastTouched atomic.Pointer[time.Time]
	touchFreq   atomic.Uint32
}

// newAccessToken returns a token stamped now with zero touches.
func newAccessToken() *AccessToken {
	t := &AccessToken{}
	now := time.Now()
	t.lastTouched.Store(&now)
	return t
}

// Touch records an access: the timestamp is swapped to now and the frequency
// counter is incremented, saturating at the maximum rather than wrapping.
func (t *AccessToken) Touch() {
	now := time.Now()
	t.lastTouched.Store(&now)
	for {
		v := t.touchFreq.Load()
		if v == math.MaxUint32 {
			return
		}
		if t.touchFreq.CompareAndSwap(v, v+1) {
			return
		}
	}
}

// Freq returns the touch count.
func (t *AccessToken) Freq() uint32 {
	return t.touchFreq.Load()
}

// Score returns milliseconds elapsed since the last touch divided by the
// touch frequency (minimum 1). Lower scores are hotter.
func (t *AccessToken) Score() uint32 {
	return t.snapshot().score()
}

// snapshot captures a consistent view for tier comparison.
func (t *AccessToken) snapshot() tokenSnapshot {
	return tokenSnapshot{
		touched: *t.lastTouched.Load(),
		freq:    t.touchFreq.Load(),
	}
}

// tokenSnapshot is a point-in-time copy of a token used to rank entries
// within a tier without racing concurrent touches.
type tokenSnapshot struct {
	touched time.Time
	freq    uint32
}

func (s tokenSnapshot) score() uint32 {
	elapsed := time.Since(s.touched).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > math.MaxUint32 {
		elapsed = math.MaxUint32
	}
	freq := s.freq
	if freq == 0 {
		freq = 1
	}
	return uint32(uint64(elapsed) / uint64(freq))
}

// colderThan reports whether s is a better demotion or eviction candidate
// than o: higher score first, then lower frequency (the higher-frequency
// entry stays hot on a score tie).
func (s tokenSnapshot) colderThan(o tokenSnapshot) bool {
	ss, os := s.score(), o.score()
	if ss != os {
		return ss > os
	}
	return s.freq < o.freq
}

// hotterThan reports whether s is a better promotion candidate than o: lower
// score first, then higher frequency on a tie.
func (s tokenSnapshot) hotterThan(o tokenSnapshot) bool {
	ss, os := s.score(), o.score()
	if ss != os {
		return ss < os
	}
	return s.freq > o.freq
}
