// Package realtime forwards the row changes published by Postgres to the
// websocket clients of the dashboard.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/migrations"
	"go.vocdoni.io/dvote/log"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

func newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = minBackoff
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 0
	return backoff.WithContext(bo, ctx)
}

// Change is a row change notified by the database triggers.
type Change struct {
	Table      string    `json:"table"`
	Action     string    `json:"action"`
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
}

// ParseChange decodes a notification payload.
func ParseChange(payload string) (*Change, error) {
	ch := &Change{}
	if err := json.Unmarshal([]byte(payload), ch); err != nil {
		return nil, fmt.Errorf("invalid change payload: %w", err)
	}
	if ch.Table == "" {
		return nil, fmt.Errorf("invalid change payload: missing table")
	}
	ch.Action = strings.ToLower(ch.Action)
	ch.ReceivedAt = time.Now().UTC()
	return ch, nil
}

// Listener holds a dedicated connection listening on the change channel.
type Listener struct {
	url     string
	channel string
}

// NewListener creates a listener for the database at url.
func NewListener(url string) *Listener {
	return &Listener{url: url, channel: migrations.NotifyChannel}
}

// Listen delivers every change to handle until ctx is done. When the
// connection drops it reconnects with exponential backoff.
func (l *Listener) Listen(ctx context.Context, handle func(*Change)) error {
	bo := newBackOff(ctx)
	for {
		err := l.listen(ctx, handle, bo.Reset)
		if ctx.Err() != nil {
			return nil
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil
		}
		log.Warnw("realtime listener disconnected", "error", err, "retry", wait.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *Listener) listen(ctx context.Context, handle func(*Change), connected func()) error {
	conn, err := pgx.Connect(ctx, l.url)
	if err != nil {
		return fmt.Errorf("could not connect: %w", err)
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("could not listen on %s: %w", l.channel, err)
	}
	connected()
	log.Infow("realtime listener connected", "channel", l.channel)
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ch, err := ParseChange(n.Payload)
		if err != nil {
			log.Warnw("discarding notification", "error", err)
			continue
		}
		handle(ch)
	}
}
