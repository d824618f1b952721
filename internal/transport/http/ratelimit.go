package http

import "time"

// rateLimiter counts inbound frames of one connection in fixed windows.
// It is owned by the connection's read loop and not safe for concurrent use.
type rateLimiter struct {
	limit       int
	window      time.Duration
	windowStart time.Time
	counter     int
	now         func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := r.now()
	if now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
