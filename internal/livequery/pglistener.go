package livequery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"analyzeit/internal/shared/telemetry"
)

// ChangeChannel is the Postgres channel the analyses trigger notifies on,
// with the owning user id as payload.
const ChangeChannel = "analyses_changed"

const reconnectDelay = time.Second

// PGListener holds one pooled connection in LISTEN mode and republishes each
// notification on a Broadcaster.
type PGListener struct {
	Pool        *pgxpool.Pool
	Channel     string
	Broadcaster *Broadcaster
}

// Run listens until ctx ends, reconnecting after failures. After every
// (re)connect all subscribers are signalled, since notifications sent while
// disconnected are lost.
func (l *PGListener) Run(ctx context.Context) error {
	channel := l.Channel
	if channel == "" {
		channel = ChangeChannel
	}
	for {
		err := l.listen(ctx, channel)
		if ctx.Err() != nil {
			return nil
		}
		telemetry.Warn("livequery.listener_disconnected", map[string]any{
			"channel": channel,
			"error":   err,
		})
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *PGListener) listen(ctx context.Context, channel string) error {
	conn, err := l.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	telemetry.Info("livequery.listening", map[string]any{"channel": channel})
	l.Broadcaster.PublishAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// The connection state is unknown; drop it from the pool.
			_ = conn.Conn().Close(context.Background())
			return fmt.Errorf("wait: %w", err)
		}
		if n.Payload != "" {
			l.Broadcaster.Publish(n.Payload)
		}
	}
}
