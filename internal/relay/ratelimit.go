package relay

import (
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

// Limiter enforces a per-device-token hourly cap. Each token gets its own
// bucket with the full cap as burst and a continuous hourly refill, so the
// window slides instead of resetting.
type Limiter struct {
	mu         sync.Mutex
	maxPerHour int64
	buckets    map[string]*ratelimit.Bucket
}

func NewLimiter(maxPerHour int) *Limiter {
	return &Limiter{
		maxPerHour: int64(maxPerHour),
		buckets:    make(map[string]*ratelimit.Bucket),
	}
}

// Allow reports whether one more request for this token fits under the cap.
func (l *Limiter) Allow(token string) bool {
	l.mu.Lock()
	b, ok := l.buckets[token]
	if !ok {
		b = ratelimit.NewBucketWithRate(float64(l.maxPerHour)/time.Hour.Seconds(), l.maxPerHour)
		l.buckets[token] = b
	}
	l.mu.Unlock()

	return b.TakeAvailable(1) == 1
}
