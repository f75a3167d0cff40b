package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// go test -v -run=TestGetLimiter
func TestGetLimiter(t *testing.T) {
	l1 := GetLimiter("test:get", 1, 2)
	l2 := GetLimiter("test:get", 100, 200)
	require.True(t, l1 == l2)
	require.Equal(t, 2, l2.Burst())

	l3 := GetLimiter("test:other", 1, 2)
	require.False(t, l1 == l3)
}

// go test -v -run=TestWait
func TestWait(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Wait(ctx, "test:wait", 1, 1))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.Error(t, Wait(ctx, "test:wait", 1, 1))
}
