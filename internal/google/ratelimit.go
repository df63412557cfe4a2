package google

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TenantLimiter keeps one token bucket per tenant so a single busy tenant
// cannot burn through the Sheets write quota shared by the app.
type TenantLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
	buckets   map[string]*bucket
}

type bucket struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

// NewTenantLimiter returns nil when rps <= 0; a nil limiter never waits.
func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &TenantLimiter{
		limit:     rate.Limit(rps),
		burst:     burst,
		idleAfter: 10 * time.Minute,
		buckets:   make(map[string]*bucket),
	}
}

// Wait blocks until tenantID may issue another call or ctx is done.
func (l *TenantLimiter) Wait(ctx context.Context, tenantID string) error {
	if l == nil {
		return nil
	}
	return l.get(tenantID).Wait(ctx)
}

// Allow reports whether tenantID may issue a call right now, consuming a token if so.
func (l *TenantLimiter) Allow(tenantID string) bool {
	if l == nil {
		return true
	}
	return l.get(tenantID).Allow()
}

func (l *TenantLimiter) get(tenantID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > l.idleAfter {
		for id, b := range l.buckets {
			if now.Sub(b.lastUsed) > l.idleAfter {
				delete(l.buckets, id)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[tenantID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[tenantID] = b
	}
	b.lastUsed = now
	return b.lim
}

// Len returns the number of tracked tenants.
func (l *TenantLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
