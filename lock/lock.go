// Package lock provides the exclusive lock a reconcile run holds on its roster.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/finploy/matchbatch"
)

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

// Locker hands out named exclusive locks. Lock blocks until the lock is held,
// ctx is done, or the locker gives up; giving up is an ErrCodeLockBusy error.
type Locker interface {
	Lock(ctx context.Context, name string) (Unlock, error)
}

// LocalLocker locks within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]chan struct{}{}}
}

func (l *LocalLocker) Lock(ctx context.Context, name string) (Unlock, error) {
	for {
		l.mu.Lock()
		ch, busy := l.held[name]
		if !busy {
			released := make(chan struct{})
			l.held[name] = released
			l.mu.Unlock()
			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, name)
					l.mu.Unlock()
					close(released)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, matchbatch.NewBatchError(matchbatch.ErrCodeLockBusy, "lock:%v is held", name, ctx.Err())
		}
	}
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker locks across processes with SET NX PX. A held lock is extended
// every TTL/3, so it only expires after TTL once its holder dies; Wait bounds
// how long Lock retries.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewRedisLocker(client redis.UniversalClient, prefix string, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, wait: wait, retry: 200 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, name string) (Unlock, error) {
	key := l.prefix + name
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, matchbatch.NewBatchError(matchbatch.ErrCodeLockBusy, "acquire lock:%v", key, err)
		}
		if ok {
			matchbatch.DefaultLogger.Debug(ctx, "lock acquired:%v token:%v", key, token)
			stop := l.keepAlive(ctx, key, token)
			return func(ctx context.Context) error {
				stop()
				n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
				if err != nil {
					return matchbatch.NewBatchError(matchbatch.ErrCodeLockBusy, "release lock:%v", key, err)
				}
				if n == 0 {
					matchbatch.DefaultLogger.Warn(ctx, "lock:%v expired before release", key)
				}
				return nil
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, matchbatch.NewBatchError(matchbatch.ErrCodeLockBusy, "lock:%v is held", key)
		}
		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil, matchbatch.NewBatchError(matchbatch.ErrCodeLockBusy, "lock:%v is held", key, ctx.Err())
		}
	}
}

// keepAlive extends key until the returned stop func is called or the token
// is gone. stop waits for the extending goroutine to exit and may be called twice.
func (l *RedisLocker) keepAlive(ctx context.Context, key, token string) func() {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() == nil {
					matchbatch.DefaultLogger.Error(ctx, "extend lock:%v err:%v", key, err)
				}
				continue
			}
			if n == 0 {
				matchbatch.DefaultLogger.Warn(ctx, "lock:%v lost before it could be extended", key)
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
