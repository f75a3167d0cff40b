package ratelimiter

import (
	"context"
	"sync"
	"time"

	"github.com/remotechain/votesync/common"
	"golang.org/x/time/rate"
)

var rateLimiters = common.NewGoCache(10*time.Minute, 5*time.Minute)
var lock sync.Mutex

// GetLimiter returns the limiter registered under key, creating it with
// limit and burst on first use. Idle limiters expire after ten minutes.
func GetLimiter(key string, limit float64, burst int) *rate.Limiter {
	lock.Lock()
	defer lock.Unlock()

	if limiter, ok := rateLimiters.Get(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	rateLimiters.Set(key, limiter)

	return limiter
}

// Wait blocks until the limiter under key admits one event or ctx is done.
func Wait(ctx context.Context, key string, limit float64, burst int) error {
	return GetLimiter(key, limit, burst).Wait(ctx)
}
