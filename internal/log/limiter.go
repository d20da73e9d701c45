// SPDX-License-Identifier: MIT
package log

import "time"

// Limiter suppresses repeats of a message inside a window and reports how
// many were swallowed on the next one that gets through. It is not safe for
// concurrent use; each goroutine keeps its own.
type Limiter struct {
	window     time.Duration
	last       time.Time
	suppressed int
	now        func() time.Time
}

func NewLimiter(window time.Duration) *Limiter {
	return &Limiter{window: window, now: time.Now}
}

// Allow reports whether a message may be logged now, and how many were
// suppressed since the last allowed one.
func (l *Limiter) Allow() (bool, int) {
	now := l.now()
	if !l.last.IsZero() && now.Sub(l.last) < l.window {
		l.suppressed++
		return false, 0
	}
	n := l.suppressed
	l.last = now
	l.suppressed = 0
	return true, n
}

// Warnf logs through the limiter at warn level.
func (l *Limiter) Warnf(format string, v ...any) {
	if ok, n := l.Allow(); ok {
		if n > 0 {
			format += " (%d similar suppressed)"
			v = append(v, n)
		}
		Warnf(format, v...)
	}
}
