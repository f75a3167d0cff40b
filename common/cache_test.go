package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// go test -v -run=TestGoCache
func TestGoCache(t *testing.T) {
	c := NewGoCache(time.Minute, time.Minute)

	require.NoError(t, c.Add("a", 1))
	require.Error(t, c.Add("a", 2))

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	c.Set("a", 3)
	v, _ = c.Get("a")
	require.Equal(t, 3, v)
}

// go test -v -run=TestFirstSeen
func TestFirstSeen(t *testing.T) {
	c := NewGoCache(50*time.Millisecond, time.Minute)

	require.True(t, c.FirstSeen("0xabc:0:false"))
	require.False(t, c.FirstSeen("0xabc:0:false"))
	require.True(t, c.FirstSeen("0xabc:0:true"))

	time.Sleep(100 * time.Millisecond)
	require.True(t, c.FirstSeen("0xabc:0:false"))
}
