package ratelimit_test

import (
	"testing"
	"time"

	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

var testNow = time.Unix(1700000000, 0)

func TestMap_Update(t *testing.T) {
	m := ratelimit.NewMap()

	m.Update("60:error;transaction:key, 2700:default:organization", testNow)

	assert.True(t, m.IsRateLimited(protocol.CategoryError, testNow))
	assert.True(t, m.IsRateLimited(protocol.CategoryTransaction, testNow))
	assert.True(t, m.IsRateLimited(protocol.CategoryDefault, testNow))
	assert.False(t, m.IsRateLimited(protocol.CategoryLog, testNow))

	after := testNow.Add(61 * time.Second)
	assert.False(t, m.IsRateLimited(protocol.CategoryError, after))
	assert.False(t, m.IsRateLimited(protocol.CategoryTransaction, after))
	assert.True(t, m.IsRateLimited(protocol.CategoryDefault, after))

	assert.False(t, m.IsRateLimited(
		protocol.CategoryDefault, testNow.Add(2701*time.Second)))
}

func TestMap_UpdateEmptyCategoryListIsGlobal(t *testing.T) {
	m := ratelimit.NewMap()

	m.Update("120::key:quota", testNow)

	assert.True(t, m.IsRateLimited(protocol.CategoryError, testNow))
	assert.True(t, m.IsRateLimited(protocol.CategoryLog, testNow))
	assert.False(t, m.IsRateLimited(
		protocol.CategoryError, testNow.Add(121*time.Second)))
}

func TestMap_UpdateBareSecondsIsGlobal(t *testing.T) {
	m := ratelimit.NewMap()

	m.Update("30", testNow)

	assert.True(t, m.IsRateLimited(protocol.CategoryCheckIn, testNow))
}

func TestMap_UpdateDiscardsMalformedGroups(t *testing.T) {
	m := ratelimit.NewMap()

	m.Update("soon:error:key", testNow)
	m.Update("-5:error:key", testNow)
	m.Update("", testNow)

	assert.False(t, m.IsRateLimited(protocol.CategoryError, testNow))
	assert.Equal(t, 0, m.Len())
}

func TestMap_UpdateKeepsValidGroupNextToMalformed(t *testing.T) {
	m := ratelimit.NewMap()

	m.Update("oops:log:key, 60:error:key", testNow)

	assert.True(t, m.IsRateLimited(protocol.CategoryError, testNow))
	assert.False(t, m.IsRateLimited(protocol.CategoryLog, testNow))
}

func TestMap_UpdateOverwritesDeadline(t *testing.T) {
	m := ratelimit.NewMap()

	m.Update("3600:error:key", testNow)
	m.Update("10:error:key", testNow)

	assert.True(t, m.IsRateLimited(protocol.CategoryError, testNow))
	assert.False(t, m.IsRateLimited(
		protocol.CategoryError, testNow.Add(11*time.Second)))
}

func TestMap_UpdateGlobal(t *testing.T) {
	m := ratelimit.NewMap()

	m.UpdateGlobal(45, testNow)

	assert.True(t, m.IsRateLimited(protocol.CategoryError, testNow))
	assert.True(t, m.IsRateLimited(protocol.CategoryLog, testNow))
	assert.False(t, m.IsRateLimited(
		protocol.CategoryError, testNow.Add(46*time.Second)))
}

func TestMap_UpdateGlobalNegativeIgnored(t *testing.T) {
	m := ratelimit.NewMap()

	m.UpdateGlobal(-1, testNow)

	assert.Equal(t, 0, m.Len())
}

func TestMap_SweepRemovesOnlyExpired(t *testing.T) {
	m := ratelimit.NewMap()
	m.Update("60:error:key, 3600:log:key", testNow)

	m.Sweep(testNow.Add(61 * time.Second))

	assert.Equal(t, 1, m.Len())
	assert.True(t, m.IsRateLimited(
		protocol.CategoryLog, testNow.Add(61*time.Second)))
}

func TestMap_ExpiryCorrectWithoutSweep(t *testing.T) {
	m := ratelimit.NewMap()
	m.Update("60:error:key", testNow)

	// No sweep ran; the entry is still stored but must not count.
	assert.Equal(t, 1, m.Len())
	assert.False(t, m.IsRateLimited(
		protocol.CategoryError, testNow.Add(2*time.Hour)))
}
