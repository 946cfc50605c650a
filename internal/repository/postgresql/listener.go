package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// RowChangesChannel is the NOTIFY channel written by the notify_row_change trigger.
const RowChangesChannel = "row_changes"

// ChangeListener holds one pooled connection in LISTEN mode and streams raw
// notification payloads. Lost connections are re-established with exponential backoff.
type ChangeListener struct {
	pool    *pgxpool.Pool
	channel string

	newBackOff func() backoff.BackOff
}

func NewChangeListener(pool *pgxpool.Pool, channel string) *ChangeListener {
	if channel == "" {
		channel = RowChangesChannel
	}
	return &ChangeListener{
		pool:    pool,
		channel: channel,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

// Listen blocks until ctx is done, sending each payload to out.
// Notifications raised while disconnected are lost; NOTIFY has no replay.
func (l *ChangeListener) Listen(ctx context.Context, out chan<- string) error {
	b := l.newBackOff()

	for {
		err := l.listenOnce(ctx, out, b)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("listen %s: giving up: %w", l.channel, err)
		}
		log.Warn().Err(err).Str("channel", l.channel).Dur("retry_in", wait).Msg("listener disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (l *ChangeListener) listenOnce(ctx context.Context, out chan<- string, b backoff.BackOff) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", mapPostgresError(err))
	}
	// a LISTENing connection must not go back to the pool
	conn := pooled.Hijack()
	defer conn.Close(context.Background()) //nolint:errcheck

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", mapPostgresError(err))
	}
	log.Info().Str("channel", l.channel).Msg("listening for row changes")
	b.Reset()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("wait: %w", mapPostgresError(err))
		}

		select {
		case out <- n.Payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
