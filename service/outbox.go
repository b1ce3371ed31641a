package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abdullah-608/gigpanda/pkg/logger"
	"github.com/Abdullah-608/gigpanda/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Publisher abstracts the RabbitMQ producer for testability.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// OutboxDispatcher drains the transactional outbox: rows written alongside a
// lifecycle commit are published to the broker after the fact, so a broker
// outage never blocks or loses a contract operation.
type OutboxDispatcher struct {
	pool      *pgxpool.Pool
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewOutboxDispatcher(pool *pgxpool.Pool, publisher Publisher, interval time.Duration, batchSize int) *OutboxDispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxDispatcher{
		pool:      pool,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until the context is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.drainOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id       int64
	topic    string
	payload  json.RawMessage
	attempts int
}

// drainOnce publishes one batch of pending rows. SKIP LOCKED lets multiple
// instances drain concurrently without double-publishing within a batch.
func (d *OutboxDispatcher) drainOnce(ctx context.Context) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("outbox: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
        SELECT id, topic, payload, attempts
        FROM outbox
        WHERE status='pending'
        ORDER BY id
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    `, d.batchSize)
	if err != nil {
		return fmt.Errorf("outbox: select pending: %w", err)
	}

	var batch []outboxRow
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.id, &r.topic, &r.payload, &r.attempts); err != nil {
			rows.Close()
			return fmt.Errorf("outbox: scan: %w", err)
		}
		batch = append(batch, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("outbox: iterate: %w", err)
	}
	if len(batch) == 0 {
		return tx.Commit(ctx)
	}

	for _, r := range batch {
		if err := d.publisher.Publish(ctx, r.topic, r.payload); err != nil {
			metrics.IncrementOutboxPublished(r.topic, "failed")
			logger.Warn(ctx, "outbox publish failed",
				"outbox_id", r.id,
				"topic", r.topic,
				"attempts", r.attempts+1,
				"error", err,
			)
			if _, err := tx.Exec(ctx, `UPDATE outbox SET attempts=attempts+1 WHERE id=$1`, r.id); err != nil {
				return fmt.Errorf("outbox: bump attempts: %w", err)
			}
			continue
		}

		metrics.IncrementOutboxPublished(r.topic, "success")
		if _, err := tx.Exec(ctx, `UPDATE outbox SET status='sent', attempts=attempts+1 WHERE id=$1`, r.id); err != nil {
			return fmt.Errorf("outbox: mark sent: %w", err)
		}
	}

	return tx.Commit(ctx)
}
