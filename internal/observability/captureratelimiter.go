package observability

import (
	"crypto/md5"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	maxTrackedMessages   = 16
	minTimeBetweenEvents = time.Minute
)

// CaptureRateLimiter drops Capture* messages that repeat too quickly.
type CaptureRateLimiter struct {
	sync.Mutex

	// recentMessages maps a hash of a message to the last time it was
	// allowed through.
	recentMessages *lru.Cache
}

func NewCaptureRateLimiter() *CaptureRateLimiter {
	cache, err := lru.New(maxTrackedMessages)

	// The only error is if the size is non-positive.
	if err != nil {
		panic(err)
	}

	return &CaptureRateLimiter{recentMessages: cache}
}

// AllowCapture returns whether a message with the given text should be
// logged, assuming it will be.
//
// A nil limiter allows everything.
func (rl *CaptureRateLimiter) AllowCapture(message string) bool {
	if rl == nil {
		return true
	}

	rl.Lock()
	defer rl.Unlock()

	messageHash := md5.Sum([]byte(message))

	lastTimeAny, ok := rl.recentMessages.Get(messageHash)
	if ok {
		lastTime, ok := lastTimeAny.(time.Time)

		if ok && time.Since(lastTime) < minTimeBetweenEvents {
			return false
		}
	}

	rl.recentMessages.Add(messageHash, time.Now())
	return true
}
