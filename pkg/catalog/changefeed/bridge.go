package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// Document types
const (
	DocumentProduct = "product"
	DocumentOrder   = "order"
)

func documentType(table string) string {
	switch table {
	case "products":
		return DocumentProduct
	case "orders":
		return DocumentOrder
	default:
		return table
	}
}

// DefaultBridgeTimeout bounds one queued delivery
const DefaultBridgeTimeout = 10 * time.Second

var (
	errBridgeStopped   = errors.New("changefeed: bridge stopped")
	errBridgeQueueFull = errors.New("changefeed: bridge queue full")
)

// SinkBridge feeds catalog service events into a Monitor. It is the change
// source when there is no database to LISTEN on.
//
// A bridge from NewSinkBridge publishes inline. One from
// NewAsyncSinkBridge queues documents for a background goroutine so the
// caller never waits on the topic; a full queue drops the document.
type SinkBridge struct {
	monitor *Monitor
	queue   chan Document
	timeout time.Duration

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

var _ catalog.EventSink = (*SinkBridge)(nil)

func NewSinkBridge(monitor *Monitor) *SinkBridge {
	return &SinkBridge{monitor: monitor}
}

// NewAsyncSinkBridge returns a queued bridge. Call Start to begin delivery
// and Stop to flush what is queued.
func NewAsyncSinkBridge(monitor *Monitor, queueSize int) *SinkBridge {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &SinkBridge{
		monitor: monitor,
		queue:   make(chan Document, queueSize),
		timeout: DefaultBridgeTimeout,
	}
}

// Start launches the delivery goroutine. Queued documents are still
// delivered after ctx is cancelled, until Stop.
func (b *SinkBridge) Start(ctx context.Context) {
	if b.queue == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for doc := range b.queue {
			sendCtx, cancel := context.WithTimeout(base, b.timeout)
			if err := b.monitor.Handle(sendCtx, []Document{doc}); err != nil {
				b.monitor.logger.WarnContext(sendCtx, "change event not delivered", "document", doc.ID, "type", doc.Type, "err", err)
			}
			cancel()
		}
	}()
}

// Stop rejects new documents and waits for the queue to drain.
func (b *SinkBridge) Stop() {
	if b.queue == nil {
		return
	}
	b.mu.Lock()
	if !b.stopped {
		b.stopped = true
		close(b.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *SinkBridge) deliver(ctx context.Context, doc Document) error {
	if b.queue == nil {
		return b.monitor.Handle(ctx, []Document{doc})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return errBridgeStopped
	}
	select {
	case b.queue <- doc:
		return nil
	default:
		b.monitor.observe("dropped")
		return fmt.Errorf("%w: document %s", errBridgeQueueFull, doc.ID)
	}
}

func (b *SinkBridge) ProductChanged(ctx context.Context, product *catalog.Product) error {
	doc, err := productDocument(product)
	if err != nil {
		return err
	}
	return b.deliver(ctx, doc)
}

func (b *SinkBridge) ProductDeleted(ctx context.Context, productID int64) error {
	doc, err := deletedProductDocument(productID)
	if err != nil {
		return err
	}
	return b.deliver(ctx, doc)
}

func (b *SinkBridge) OrderCreated(ctx context.Context, order *catalog.Order) error {
	doc, err := orderDocument(order)
	if err != nil {
		return err
	}
	return b.deliver(ctx, doc)
}

func productDocument(p *catalog.Product) (Document, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: strconv.FormatInt(p.ID, 10), Type: DocumentProduct, Data: data}, nil
}

func deletedProductDocument(id int64) (Document, error) {
	data, err := json.Marshal(struct {
		ID      int64 `json:"id"`
		Deleted bool  `json:"deleted"`
	}{ID: id, Deleted: true})
	if err != nil {
		return Document{}, err
	}
	return Document{ID: strconv.FormatInt(id, 10), Type: DocumentProduct, Data: data}, nil
}

func orderDocument(o *catalog.Order) (Document, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: strconv.FormatInt(o.ID, 10), Type: DocumentOrder, Data: data}, nil
}
