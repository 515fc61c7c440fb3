package inflight

import (
	"context"
	"net/http"
	"sync"
)

// Counter tracks in-flight streams that should block draining.
type Counter struct {
	mu     sync.Mutex
	count  int64
	zeroCh chan struct{}
}

// Inc increments the in-flight counter.
func (c *Counter) Inc() {
	c.mu.Lock()
	if c.count == 0 {
		c.zeroCh = make(chan struct{})
	}
	c.count++
	c.mu.Unlock()
}

// Dec decrements the in-flight counter.
func (c *Counter) Dec() {
	c.mu.Lock()
	if c.count > 0 {
		c.count--
		if c.count == 0 {
			close(c.zeroCh)
		}
	}
	c.mu.Unlock()
}

// Load returns the current in-flight count.
func (c *Counter) Load() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// WaitForZero blocks until the count is zero or the context is done.
// It reports whether zero was reached.
func (c *Counter) WaitForZero(ctx context.Context) bool {
	select {
	case <-c.zeroChannel():
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Counter) zeroChannel() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zeroCh == nil {
		c.zeroCh = make(chan struct{})
		if c.count == 0 {
			close(c.zeroCh)
		}
	}
	return c.zeroCh
}

// Middleware increments the counter for the duration of a request.
func (c *Counter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Inc()
			defer c.Dec()
			next.ServeHTTP(w, r)
		})
	}
}
