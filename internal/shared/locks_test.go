package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLockerExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := NewLocker(client)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, CheckoutLockKey("s1"), time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, CheckoutLockKey("s1"), time.Second)
	require.True(t, errors.Is(err, ErrLocked))

	other, err := locker.Acquire(ctx, CheckoutLockKey("s2"), time.Second)
	require.NoError(t, err)
	other()

	release()
	again, err := locker.Acquire(ctx, CheckoutLockKey("s1"), time.Second)
	require.NoError(t, err)
	again()
}

func TestLockerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := NewLocker(client)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, CheckoutLockKey("s3"), time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	release, err := locker.Acquire(ctx, CheckoutLockKey("s3"), time.Second)
	require.NoError(t, err)
	release()
	require.False(t, mr.Exists(CheckoutLockKey("s3")))
}
