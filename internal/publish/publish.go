// Package publish mirrors controller snapshots onto Redis PubSub so local
// dashboards can follow a live session without holding the controller.
// Channels: pub:session:{id}:bar, pub:session:{id}:trade, pub:session:{id}:state.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"live-clientv1/internal/model"
)

// Publisher fans session envelopes out on Redis PubSub. Best-effort: publish
// failures are logged, never propagated into the event path.
type Publisher struct {
	client *goredis.Client
}

// New connects to Redis and pings it.
func New(addr, password string, db int) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("publisher connected", "addr", addr)
	return &Publisher{client: client}, nil
}

// PublishBar publishes one bar update.
func (p *Publisher) PublishBar(ctx context.Context, sessionID string, b model.Bar) {
	p.publish(ctx, channel(sessionID, "bar"), b)
}

// PublishTrade publishes one trade event.
func (p *Publisher) PublishTrade(ctx context.Context, sessionID string, t model.Trade) {
	p.publish(ctx, channel(sessionID, "trade"), t)
}

// PublishState publishes the latest state snapshot plus derived summary.
func (p *Publisher) PublishState(ctx context.Context, sessionID string, st model.SessionState, sum model.Summary) {
	p.publish(ctx, channel(sessionID, "state"), map[string]any{
		"state":   st,
		"summary": sum,
	})
}

func (p *Publisher) publish(ctx context.Context, ch string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("publish marshal failed", "channel", ch, "err", err)
		return
	}
	if err := p.client.Publish(ctx, ch, data).Err(); err != nil {
		slog.Warn("publish failed", "channel", ch, "err", err)
	}
}

func channel(sessionID, kind string) string {
	return "pub:session:" + sessionID + ":" + kind
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
