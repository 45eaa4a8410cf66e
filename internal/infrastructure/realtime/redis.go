// Package realtime difunde los eventos de la bóveda a los clientes conectados.
// La difusión es "best effort": un fallo se registra y nunca deshace la operación.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/pkg/config"
)

var (
	_ vault.Broadcaster = (*RedisBroadcaster)(nil)
	_ vault.Broadcaster = Nop{}
)

// DefaultChannel canal de Pub/Sub si REDIS_CHANNEL no está definido.
const DefaultChannel = "goldvault:events"

// Envelope mensaje publicado en el canal.
type Envelope struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// publisher subconjunto de *redis.Client que usa el broadcaster.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBroadcaster publica cada evento como JSON en un canal de Redis Pub/Sub.
type RedisBroadcaster struct {
	client  publisher
	channel string
	now     func() time.Time
}

// NewRedisBroadcaster construye el broadcaster. channel vacío usa DefaultChannel.
func NewRedisBroadcaster(client publisher, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroadcaster{client: client, channel: channel, now: time.Now}
}

// Publish serializa el sobre y lo publica.
func (b *RedisBroadcaster) Publish(ctx context.Context, event string, payload any) error {
	msg, err := json.Marshal(Envelope{Event: event, Payload: payload, SentAt: b.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal evento %s: %w", event, err)
	}
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Nop descarta los eventos (Redis desactivado).
type Nop struct{}

// Publish no hace nada.
func (Nop) Publish(context.Context, string, any) error { return nil }

// Connect abre el cliente de Redis y verifica la conexión.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 20,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}
	return client, nil
}
