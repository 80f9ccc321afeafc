package astm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFingerprintCache(t *testing.T) *FingerprintCache {
	t.Helper()
	cache, err := NewFingerprintCache()
	require.NoError(t, err)
	return cache
}

func TestFingerprintCache_SSIDMatch(t *testing.T) {
	cache := newTestFingerprintCache(t)

	match, ok := cache.Match("aa:bb:cc:dd:ee:ff", "Mavic-12345")
	assert.True(t, ok)
	assert.Equal(t, "DJI Mavic", match.Model)
}

func TestFingerprintCache_OUIFallback(t *testing.T) {
	cache := newTestFingerprintCache(t)

	match, ok := cache.Match("60:60:1f:11:22:33", "")
	assert.True(t, ok)
	assert.Equal(t, "DJI", match.Model)
}

func TestFingerprintCache_NoMatch(t *testing.T) {
	cache := newTestFingerprintCache(t)

	_, ok := cache.Match("11:22:33:44:55:66", "random-ssid")
	assert.False(t, ok)
}

func TestFingerprintCache_CachesResult(t *testing.T) {
	cache := newTestFingerprintCache(t)

	first, ok := cache.Match("60:60:1f:11:22:33", "")
	assert.True(t, ok)

	second, ok := cache.Match("60:60:1f:11:22:33", "")
	assert.True(t, ok)
	assert.Equal(t, first, second)
}

func TestFingerprintCache_EvictsAtCapacity(t *testing.T) {
	cache := newTestFingerprintCache(t)

	for i := 0; i < fingerprintCacheSize+10; i++ {
		mac := fmt.Sprintf("11:22:33:44:55:%02x", i%256)
		ssid := fmt.Sprintf("unmatched-%d", i)
		cache.Match(mac, ssid)
	}

	assert.LessOrEqual(t, len(cache.negative), fingerprintCacheSize)
}
