// Package ratelimit tracks server-imposed rate limits per telemetry
// category.
//
// Limits arrive as X-Sentry-Rate-Limits headers (or a bare Retry-After
// on a 429) and embargo a category, or all categories, until a deadline.
// An entry whose deadline has passed is semantically absent even before
// the sweeper physically removes it.
package ratelimit

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/outposthq/outpost/core/internal/protocol"
)

// Map is the set of active rate limits.
//
// Safe for concurrent use. All operations take the current time
// explicitly so that expiry logic is independent of sweep timing and
// directly testable.
type Map struct {
	mu        sync.RWMutex
	deadlines map[protocol.Category]time.Time
}

func NewMap() *Map {
	return &Map{deadlines: make(map[protocol.Category]time.Time)}
}

// IsRateLimited reports whether the category, or everything, is
// embargoed at the given time.
func (m *Map) IsRateLimited(category protocol.Category, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.deadlines[category].After(now) {
		return true
	}
	return m.deadlines[protocol.CategoryGlobal].After(now)
}

// Update parses an X-Sentry-Rate-Limits header value and records the
// limits it declares.
//
// The value is a comma-separated list of quota groups, each of the form
//
//	retry_after_seconds:category[;category...]:scope[:...]
//
// A group whose first token is not a non-negative integer is discarded
// silently. An empty category list means the limit is global. Tokens
// after the category list describe the quota's scope and name and are
// ignored here.
func (m *Map) Update(headerValue string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, group := range strings.Split(headerValue, ",") {
		tokens := strings.SplitN(strings.TrimSpace(group), ":", 3)

		seconds, err := strconv.Atoi(tokens[0])
		if err != nil || seconds < 0 {
			continue
		}
		deadline := now.Add(time.Duration(seconds) * time.Second)

		categoryList := ""
		if len(tokens) > 1 {
			categoryList = tokens[1]
		}

		if categoryList == "" {
			m.deadlines[protocol.CategoryGlobal] = deadline
			continue
		}

		for _, name := range strings.Split(categoryList, ";") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			m.deadlines[protocol.Category(name)] = deadline
		}
	}
}

// UpdateGlobal embargoes every category for the given number of seconds.
//
// Used for the plain Retry-After fallback on a 429 response without a
// structured rate limit header.
func (m *Map) UpdateGlobal(retryAfterSeconds int, now time.Time) {
	if retryAfterSeconds < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadlines[protocol.CategoryGlobal] =
		now.Add(time.Duration(retryAfterSeconds) * time.Second)
}

// Sweep removes entries whose deadline has passed.
//
// Purely a memory optimization, correctness never depends on it.
func (m *Map) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for category, deadline := range m.deadlines {
		if !deadline.After(now) {
			delete(m.deadlines, category)
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.deadlines)
}
