package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"topgun/internal/shared/constants"
	"topgun/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HeaderLocker serializes mutations of one payment header across requests.
// The returned func releases the lock and is safe to call once.
type HeaderLocker interface {
	Lock(ctx context.Context, paymentNo int64) (func(), error)
}

// releaseScript deletes the lock only if we still own it
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

type RedisHeaderLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
	maxWait    time.Duration
}

func NewRedisHeaderLocker(client *redis.Client, ttl time.Duration) *RedisHeaderLocker {
	if ttl <= 0 {
		ttl = constants.TTL_HEADER_LOCK
	}
	return &RedisHeaderLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: 50 * time.Millisecond,
		maxWait:    ttl,
	}
}

func (l *RedisHeaderLocker) Lock(ctx context.Context, paymentNo int64) (func(), error) {
	key := constants.BuildHeaderLockKey(paymentNo)
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrHeaderBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// detached so a cancelled request still frees the key
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				logger.GetDefault().WarnContext(ctx, "failed to release payment header lock",
					"payment_no", paymentNo, "error", err)
			}
		})
	}, nil
}

// LocalHeaderLocker is the in-process fallback used when redis is unavailable
type LocalHeaderLocker struct {
	mu    sync.Mutex
	locks map[int64]*headerLock
}

type headerLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalHeaderLocker() *LocalHeaderLocker {
	return &LocalHeaderLocker{locks: make(map[int64]*headerLock)}
}

func (l *LocalHeaderLocker) Lock(ctx context.Context, paymentNo int64) (func(), error) {
	l.mu.Lock()
	hl, ok := l.locks[paymentNo]
	if !ok {
		hl = &headerLock{ch: make(chan struct{}, 1)}
		l.locks[paymentNo] = hl
	}
	hl.refs++
	l.mu.Unlock()

	select {
	case hl.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(paymentNo, hl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-hl.ch
			l.unref(paymentNo, hl)
		})
	}, nil
}

func (l *LocalHeaderLocker) unref(paymentNo int64, hl *headerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hl.refs--
	if hl.refs == 0 {
		delete(l.locks, paymentNo)
	}
}

var (
	_ HeaderLocker = (*RedisHeaderLocker)(nil)
	_ HeaderLocker = (*LocalHeaderLocker)(nil)
)
