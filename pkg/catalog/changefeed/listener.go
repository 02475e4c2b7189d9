package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// Listener defaults
const (
	DefaultChannel       = "catalog_changes"
	DefaultBatchSize     = 50
	DefaultFlushInterval = 2 * time.Second
)

// Notification is the payload emitted by the catalog_notify_change trigger.
type Notification struct {
	ID    int64  `json:"id"`
	Table string `json:"table"`
	Op    string `json:"op"`
}

// Loader turns a notification into the document to publish.
type Loader func(ctx context.Context, n Notification) (Document, error)

// notificationConn is the part of *pgx.Conn the listener uses.
type notificationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// PostgresListener feeds NOTIFY payloads to a Monitor in batches. A batch
// is flushed when it reaches the batch size or the flush interval passes.
type PostgresListener struct {
	pool          *pgxpool.Pool
	monitor       *Monitor
	load          Loader
	channel       string
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

// ListenerOption configures a PostgresListener
type ListenerOption func(*PostgresListener)

func WithChannel(channel string) ListenerOption {
	return func(l *PostgresListener) {
		if channel != "" {
			l.channel = channel
		}
	}
}

func WithBatchSize(n int) ListenerOption {
	return func(l *PostgresListener) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) ListenerOption {
	return func(l *PostgresListener) {
		if d > 0 {
			l.flushInterval = d
		}
	}
}

func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(l *PostgresListener) {
		l.logger = logger
	}
}

// NewPostgresListener creates a listener. load defaults to RawLoader.
func NewPostgresListener(pool *pgxpool.Pool, monitor *Monitor, load Loader, opts ...ListenerOption) *PostgresListener {
	if load == nil {
		load = RawLoader
	}
	l := &PostgresListener{
		pool:          pool,
		monitor:       monitor,
		load:          load,
		channel:       DefaultChannel,
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run holds one pooled connection and listens until ctx is done.
func (l *PostgresListener) Run(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()
	return l.listen(ctx, conn.Conn())
}

func (l *PostgresListener) listen(ctx context.Context, conn notificationConn) error {
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.InfoContext(ctx, "listening for catalog changes", "channel", l.channel)

	var pending []Document
	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		if err := l.monitor.Handle(ctx, pending); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	deadline := time.Now().Add(l.flushInterval)
	for {
		waitCtx, cancel := context.WithDeadline(ctx, deadline)
		n, err := conn.WaitForNotification(waitCtx)
		cancel()

		switch {
		case ctx.Err() != nil:
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.flushInterval)
			if ferr := flush(shutdownCtx); ferr != nil {
				l.logger.Error("final flush failed", "documents", len(pending), "err", ferr)
			}
			cancel()
			return nil
		case errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err):
			if err := flush(ctx); err != nil {
				// Keep the batch; it is retried on the next interval.
				l.logger.ErrorContext(ctx, "change batch failed, will retry", "documents", len(pending), "err", err)
			}
			deadline = time.Now().Add(l.flushInterval)
			continue
		case err != nil:
			return fmt.Errorf("wait for notification: %w", err)
		}

		doc, err := l.decode(ctx, n.Payload)
		if err != nil {
			l.logger.WarnContext(ctx, "dropping change notification", "payload", n.Payload, "err", err)
			continue
		}
		pending = append(pending, doc)
		if len(pending) >= l.batchSize {
			if err := flush(ctx); err != nil {
				l.logger.ErrorContext(ctx, "change batch failed, will retry", "documents", len(pending), "err", err)
			}
			deadline = time.Now().Add(l.flushInterval)
		}
	}
}

func (l *PostgresListener) decode(ctx context.Context, payload string) (Document, error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return Document{}, fmt.Errorf("decode payload: %w", err)
	}
	return l.load(ctx, n)
}

// RawLoader publishes the notification itself as the document body.
func RawLoader(_ context.Context, n Notification) (Document, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: strconv.FormatInt(n.ID, 10), Type: documentType(n.Table), Data: data}, nil
}

// RepositoryLoader publishes the current state of the changed row. Deleted
// products publish a tombstone.
func RepositoryLoader(repo catalog.Repository) Loader {
	return func(ctx context.Context, n Notification) (Document, error) {
		switch documentType(n.Table) {
		case DocumentProduct:
			if n.Op == "DELETE" {
				return deletedProductDocument(n.ID)
			}
			p, err := repo.GetProduct(ctx, n.ID)
			if err != nil {
				return Document{}, err
			}
			return productDocument(p)
		case DocumentOrder:
			o, err := repo.GetOrder(ctx, n.ID)
			if err != nil {
				return Document{}, err
			}
			return orderDocument(o)
		default:
			return RawLoader(ctx, n)
		}
	}
}
