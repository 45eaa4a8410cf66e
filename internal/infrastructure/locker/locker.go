// Package locker garantiza que solo haya una resincronización de stock a la vez.
package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain"
)

var (
	_ vault.SyncLocker = (*Redis)(nil)
	_ vault.SyncLocker = (*Local)(nil)
)

// DefaultTTL duración del lock si no se configura otra. Debe cubrir la resincronización
// más larga esperada.
const DefaultTTL = 5 * time.Minute

// Redis lock distribuido con redislock (varias réplicas de la API).
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedis construye el lock. ttl <= 0 usa DefaultTTL.
func NewRedis(client redislock.RedisClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: redislock.New(client), ttl: ttl}
}

// Obtain intenta tomar el lock una sola vez; si lo tiene otro devuelve domain.ErrConflict.
func (l *Redis) Obtain(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: sincronización en curso", domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

// Local lock en proceso (una sola réplica o Redis desactivado).
type Local struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocal construye el lock en proceso.
func NewLocal() *Local {
	return &Local{held: make(map[string]bool)}
}

// Obtain igual que Redis.Obtain pero dentro del proceso.
func (l *Local) Obtain(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("%w: sincronización en curso", domain.ErrConflict)
	}
	l.held[key] = true

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
