package google

import (
	"sync"
	"time"
)

type breakerState int

const (
	closed breakerState = iota
	open
	halfOpen
)

// Breaker is a consecutive-failure circuit breaker shared by all tenants'
// Google calls. After threshold transient failures it rejects calls for
// openFor, then lets a single probe through.
type Breaker struct {
	mu               sync.Mutex
	st               breakerState
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
	now              func() time.Time
}

// NewBreaker returns nil when threshold <= 0; a nil *Breaker lets every call through.
func NewBreaker(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		return nil
	}
	return &Breaker{failThreshold: threshold, openFor: openFor, now: time.Now}
}

func (b *Breaker) TryAcquire() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case open:
		if b.now().After(b.nextTryAt) && !b.probeInFlight {
			b.st = halfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case halfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) OnSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = closed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *Breaker) OnFailure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == halfOpen {
		b.st = open
		b.nextTryAt = b.now().Add(b.openFor)
		b.probeInFlight = false
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = open
		b.nextTryAt = b.now().Add(b.openFor)
	}
}

// Do runs fn if the breaker admits it. Only transient errors count as
// failures; a 404 or 403 still proves Google is reachable.
func (b *Breaker) Do(fn func() error) error {
	if !b.TryAcquire() {
		return ErrBreakerOpen
	}
	err := fn()
	if IsTransient(err) {
		b.OnFailure()
	} else {
		b.OnSuccess()
	}
	return err
}
