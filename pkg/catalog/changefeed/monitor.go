// Package changefeed republishes catalog mutations as CloudEvents.
//
// Changes reach a Monitor in batches of Documents, either from Postgres
// LISTEN/NOTIFY (PostgresListener) or in-process from the catalog service
// (SinkBridge). The Monitor sends one DocumentUpdated event per document and
// fails the batch on the first failed send so the source can redeliver it.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event attributes
const (
	EventType     = "DocumentUpdated"
	DefaultSource = "/catalog/products"
	DataVersion   = "1.0"

	// DataVersionExtension carries DataVersion on every event.
	DataVersionExtension = "dataversion"
)

// Document is one changed record.
type Document struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Observer receives per-event results. metrics.Recorder implements it.
type Observer interface {
	ObserveEvent(result string)
}

// Monitor turns document batches into events.
type Monitor struct {
	publisher Publisher
	source    string
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
	observer  Observer
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithPublisher sets the publisher. Without one, batches are skipped.
func WithPublisher(p Publisher) MonitorOption {
	return func(m *Monitor) {
		m.publisher = p
	}
}

// WithSource sets the CloudEvents source attribute
func WithSource(source string) MonitorOption {
	return func(m *Monitor) {
		if source != "" {
			m.source = source
		}
	}
}

// WithClock overrides the event time source
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithIDGenerator overrides event id generation
func WithIDGenerator(newID func() string) MonitorOption {
	return func(m *Monitor) {
		m.newID = newID
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(o Observer) MonitorOption {
	return func(m *Monitor) {
		m.observer = o
	}
}

// NewMonitor creates a monitor
func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		source: DefaultSource,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether a publisher is configured
func (m *Monitor) Enabled() bool {
	return m.publisher != nil
}

// Handle publishes one event per document, in order.
func (m *Monitor) Handle(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if m.publisher == nil {
		m.logger.WarnContext(ctx, "event publisher not configured, skipping change batch", "documents", len(docs))
		m.observe("skipped")
		return nil
	}

	m.logger.InfoContext(ctx, "publishing change batch", "documents", len(docs))
	for _, doc := range docs {
		event, err := m.BuildEvent(doc)
		if err != nil {
			m.observe("failed")
			return fmt.Errorf("build event for document %s: %w", doc.ID, err)
		}
		if err := m.publisher.Publish(ctx, event); err != nil {
			m.observe("failed")
			m.logger.ErrorContext(ctx, "publish failed", "document", doc.ID, "err", err)
			return fmt.Errorf("publish document %s: %w", doc.ID, err)
		}
		m.observe("sent")
	}
	return nil
}

// BuildEvent maps a document to its DocumentUpdated event.
func (m *Monitor) BuildEvent(doc Document) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(m.newID())
	event.SetType(EventType)
	event.SetSource(m.source)
	event.SetSubject("documents/" + doc.ID)
	event.SetTime(m.now())
	event.SetExtension(DataVersionExtension, DataVersion)

	payload, err := json.Marshal(doc)
	if err != nil {
		return event, err
	}
	if err := event.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return event, err
	}
	return event, event.Validate()
}

func (m *Monitor) observe(result string) {
	if m.observer != nil {
		m.observer.ObserveEvent(result)
	}
}
