package keylock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-hris-leave/internal/shared/keylock"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := keylock.NewLocal()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "k")
			assert.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := keylock.NewLocal()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	assert.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	assert.NoError(t, err)
	unlockB()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := keylock.NewLocal()

	unlock, err := l.Lock(context.Background(), "k")
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	again, err := l.Lock(context.Background(), "k")
	assert.NoError(t, err)
	again()
}

func TestLockAll_SortsKeys(t *testing.T) {
	l := keylock.NewLocal()
	ctx := context.Background()

	release, err := keylock.LockAll(ctx, l, "c", "a", "b")
	assert.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "b")
	assert.Error(t, err)

	release()
	unlock, err := l.Lock(ctx, "b")
	assert.NoError(t, err)
	unlock()
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "balance:c1:e1:ANNUAL", keylock.BalanceKey("c1", "e1", "ANNUAL"))
	assert.Equal(t, "leave:c1:r1", keylock.RequestKey("c1", "r1"))
	assert.Equal(t, "employee:c1:e1", keylock.EmployeeKey("c1", "e1"))
}

func TestRedis_LockAndRelease(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	l := keylock.NewRedis(rdb,
		keylock.WithTTL(5*time.Second),
		keylock.WithRetryInterval(time.Millisecond),
		keylock.WithTokenFunc(func() string { return "tok" }),
	)

	mock.ExpectSetNX("keylock:balance:c:e:ANNUAL", "tok", 5*time.Second).SetVal(false)
	mock.ExpectSetNX("keylock:balance:c:e:ANNUAL", "tok", 5*time.Second).SetVal(true)
	mock.ExpectEval(`if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`, []string{"keylock:balance:c:e:ANNUAL"}, "tok").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), keylock.BalanceKey("c", "e", "ANNUAL"))
	assert.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_ContextDone(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	l := keylock.NewRedis(rdb,
		keylock.WithTTL(time.Second),
		keylock.WithRetryInterval(50*time.Millisecond),
		keylock.WithTokenFunc(func() string { return "tok" }),
	)

	mock.ExpectSetNX("keylock:k", "tok", time.Second).SetVal(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := l.Lock(ctx, "k")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
