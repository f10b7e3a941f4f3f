// Package middleware contains the checks run around every command: the
// per-guild cooldown and panic recovery.
package middleware

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// COOLDOWN
// Each command allows Rate uses per Per window, counted per guild. The window
// opens on the first use after the previous one expired.
// ══════════════════════════════════════════════════════════════════════════════

// Cooldown is the allowance of one command. A zero value disables it.
type Cooldown struct {
	Rate int
	Per  time.Duration
}

// Enabled reports whether the cooldown limits anything.
func (c Cooldown) Enabled() bool {
	return c.Rate > 0 && c.Per > 0
}

// CooldownError is returned when a bucket is exhausted.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("You are on cooldown. Try again in %.2fs", e.RetryAfter.Seconds())
}

type bucket struct {
	tokens int
	window time.Time
	per    time.Duration
}

// Limiter tracks cooldown buckets keyed by scope and command.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	checks  int
}

// NewLimiter creates an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

const pruneEvery = 256

// Check consumes one use of the bucket for (scope, command). It returns a
// *CooldownError when no use is left.
func (l *Limiter) Check(scope, command string, cd Cooldown) error {
	if !cd.Enabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.checks++
	if l.checks%pruneEvery == 0 {
		l.pruneLocked(now)
	}

	key := scope + "/" + command
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: cd.Rate, per: cd.Per}
		l.buckets[key] = b
	}

	if now.Sub(b.window) > cd.Per {
		b.tokens = cd.Rate
	}
	if b.tokens == cd.Rate {
		b.window = now
	}
	if b.tokens <= 0 {
		return &CooldownError{RetryAfter: cd.Per - now.Sub(b.window)}
	}
	b.tokens--
	return nil
}

// Reset forgets every bucket of the scope.
func (l *Limiter) Reset(scope string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := scope + "/"
	for key := range l.buckets {
		if strings.HasPrefix(key, prefix) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.window) > b.per {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
