package projectcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCheckMissOnEmptyCache(t *testing.T) {
	c := New(time.Minute)
	_, found := c.Check(1, "k")
	require.False(t, found)
}

func TestCheckHitOnMatchingKey(t *testing.T) {
	c := New(time.Minute)
	c.Set(1, strPtr("secret"))

	matched, found := c.Check(1, "secret")
	require.True(t, found)
	require.True(t, matched)
}

func TestCheckMismatchFallsThroughToStore(t *testing.T) {
	c := New(time.Minute)
	c.Set(1, strPtr("secret"))

	matched, found := c.Check(1, "wrong")
	require.False(t, found)
	require.False(t, matched)
}

func TestCheckAcceptsAnyKeyWhenNoPublicKeyConfigured(t *testing.T) {
	c := New(time.Minute)
	c.Set(1, nil)

	matched, found := c.Check(1, "anything")
	require.True(t, found)
	require.True(t, matched)
}

func TestCheckExpiresAfterTTL(t *testing.T) {
	c := New(time.Millisecond)
	c.Set(1, strPtr("secret"))
	time.Sleep(5 * time.Millisecond)

	_, found := c.Check(1, "secret")
	require.False(t, found)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c := New(time.Minute)
	c.Set(1, strPtr("secret"))
	c.Invalidate(1)

	_, found := c.Check(1, "secret")
	require.False(t, found)
}
