package storefront

import (
	"context"
	"sync"
	"sync/atomic"
)

// RedirectLatch records that the session asked to send the user to login.
// The terminal client consumes it after each command. Requests tracked with
// TrackRedirect are also marked, so the HTTP layer answers only the request
// that hit the expired credential.
type RedirectLatch struct {
	mu      sync.Mutex
	pending bool
	total   int
}

func (l *RedirectLatch) RedirectToLogin(ctx context.Context) {
	if flag, ok := ctx.Value(redirectKey{}).(*atomic.Bool); ok {
		flag.Store(true)
	}
	l.mu.Lock()
	l.pending = true
	l.total++
	l.mu.Unlock()
}

// Take returns whether a redirect is pending and clears it.
func (l *RedirectLatch) Take() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.pending
	l.pending = false
	return p
}

// Total counts redirects since the device was opened.
func (l *RedirectLatch) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

type redirectKey struct{}

// TrackRedirect returns a context whose work records a redirect to login.
func TrackRedirect(ctx context.Context) context.Context {
	return context.WithValue(ctx, redirectKey{}, new(atomic.Bool))
}

// RedirectRequested reports whether work done under ctx sent the user to login.
func RedirectRequested(ctx context.Context) bool {
	flag, ok := ctx.Value(redirectKey{}).(*atomic.Bool)
	return ok && flag.Load()
}
