package changefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-catalog/pkg/catalog"
	memrepo "github.com/tendant/simple-catalog/pkg/catalog/repo/memory"
)

type fakeConn struct {
	listened string
	notes    chan *pgconn.Notification
	fail     error
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.listened = sql
	return pgconn.NewCommandTag("LISTEN"), nil
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case n := <-c.notes:
		if n == nil {
			return nil, c.fail
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newListener(m *Monitor, load Loader, opts ...ListenerOption) *PostgresListener {
	return NewPostgresListener(nil, m, load, opts...)
}

func TestListener_FlushesOnBatchSize(t *testing.T) {
	pub := &recordingPublisher{}
	l := newListener(newTestMonitor(pub, nil), nil, WithBatchSize(2), WithFlushInterval(time.Hour))
	conn := &fakeConn{notes: make(chan *pgconn.Notification, 4)}
	conn.notes <- &pgconn.Notification{Channel: DefaultChannel, Payload: `{"id":1,"table":"products","op":"INSERT"}`}
	conn.notes <- &pgconn.Notification{Channel: DefaultChannel, Payload: `{"id":2,"table":"products","op":"UPDATE"}`}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.listen(ctx, conn) }()

	require.Eventually(t, func() bool { return len(pub.Events()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, `LISTEN "catalog_changes"`, conn.listened)
	assert.Equal(t, "documents/1", pub.Events()[0].Subject())
	assert.Equal(t, "documents/2", pub.Events()[1].Subject())
}

func TestListener_FlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	l := newListener(newTestMonitor(pub, nil), nil, WithBatchSize(100), WithFlushInterval(20*time.Millisecond))
	conn := &fakeConn{notes: make(chan *pgconn.Notification, 1)}
	conn.notes <- &pgconn.Notification{Payload: `{"id":5,"table":"orders","op":"INSERT"}`}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.listen(ctx, conn) }()

	require.Eventually(t, func() bool { return len(pub.Events()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestListener_RetriesFailedBatch(t *testing.T) {
	pub := &recordingPublisher{failOn: 1}
	l := newListener(newTestMonitor(pub, nil), nil, WithBatchSize(1), WithFlushInterval(20*time.Millisecond))
	conn := &fakeConn{notes: make(chan *pgconn.Notification, 1)}
	conn.notes <- &pgconn.Notification{Payload: `{"id":5,"table":"products","op":"UPDATE"}`}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.listen(ctx, conn) }()

	require.Eventually(t, func() bool { return len(pub.Events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "documents/5", pub.Events()[0].Subject())
}

func TestListener_FlushesPendingOnShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	l := newListener(newTestMonitor(pub, nil), nil, WithBatchSize(100), WithFlushInterval(time.Hour))
	conn := &fakeConn{notes: make(chan *pgconn.Notification, 1)}
	conn.notes <- &pgconn.Notification{Payload: `{"id":1,"table":"products","op":"INSERT"}`}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.listen(ctx, conn) }()

	require.Eventually(t, func() bool { return len(conn.notes) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Len(t, pub.Events(), 1)
}

func TestListener_DropsMalformedPayload(t *testing.T) {
	pub := &recordingPublisher{}
	l := newListener(newTestMonitor(pub, nil), nil, WithBatchSize(1))
	conn := &fakeConn{notes: make(chan *pgconn.Notification, 2)}
	conn.notes <- &pgconn.Notification{Payload: `not json`}
	conn.notes <- &pgconn.Notification{Payload: `{"id":2,"table":"products","op":"INSERT"}`}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.listen(ctx, conn) }()

	require.Eventually(t, func() bool { return len(pub.Events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "documents/2", pub.Events()[0].Subject())
}

func TestListener_ConnectionErrorStops(t *testing.T) {
	l := newListener(newTestMonitor(&recordingPublisher{}, nil), nil)
	conn := &fakeConn{notes: make(chan *pgconn.Notification, 1), fail: errors.New("conn closed")}
	conn.notes <- nil

	err := l.listen(context.Background(), conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn closed")
}

func TestRepositoryLoader(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	p := &catalog.Product{Name: "Boot", Price: decimal.NewFromInt(80), Category: "shoes"}
	require.NoError(t, repo.CreateProduct(ctx, p))
	o := &catalog.Order{UserID: "alice", Total: decimal.NewFromInt(80), Items: []catalog.OrderItem{{ProductID: p.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(80)}}}
	require.NoError(t, repo.CreateOrder(ctx, o))

	load := RepositoryLoader(repo)

	doc, err := load(ctx, Notification{ID: p.ID, Table: "products", Op: "UPDATE"})
	require.NoError(t, err)
	assert.Equal(t, DocumentProduct, doc.Type)
	assert.Contains(t, string(doc.Data), `"name":"Boot"`)

	doc, err = load(ctx, Notification{ID: p.ID, Table: "products", Op: "DELETE"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"deleted":true}`, string(doc.Data))

	doc, err = load(ctx, Notification{ID: o.ID, Table: "orders", Op: "INSERT"})
	require.NoError(t, err)
	assert.Equal(t, DocumentOrder, doc.Type)
	assert.Contains(t, string(doc.Data), `"userId":"alice"`)

	_, err = load(ctx, Notification{ID: 99, Table: "products", Op: "UPDATE"})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	doc, err = load(ctx, Notification{ID: 4, Table: "audit", Op: "INSERT"})
	require.NoError(t, err)
	assert.Equal(t, "audit", doc.Type)
}
