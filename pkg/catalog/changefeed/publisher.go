package changefeed

import (
	"context"
	"errors"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
)

// TopicKeyHeader authenticates requests to an event topic endpoint.
const TopicKeyHeader = "aeg-sas-key"

// Publisher delivers one event.
type Publisher interface {
	Publish(ctx context.Context, event cloudevents.Event) error
}

// CloudEventsPublisher sends events with the CloudEvents SDK.
type CloudEventsPublisher struct {
	client cloudevents.Client
}

// NewCloudEventsPublisher returns a publisher posting structured
// (application/cloudevents+json) events to endpoint over HTTP. A non-empty key is sent in the TopicKeyHeader.
func NewCloudEventsPublisher(endpoint, key string) (*CloudEventsPublisher, error) {
	if endpoint == "" {
		return nil, errors.New("changefeed: topic endpoint is required")
	}
	opts := []cehttp.Option{cehttp.WithTarget(endpoint)}
	if key != "" {
		opts = append(opts, cehttp.WithHeader(TopicKeyHeader, key))
	}
	client, err := cloudevents.NewClientHTTP(opts...)
	if err != nil {
		return nil, fmt.Errorf("changefeed: create cloudevents client: %w", err)
	}
	return &CloudEventsPublisher{client: client}, nil
}

// NewPublisherWithClient wraps an existing client
func NewPublisherWithClient(client cloudevents.Client) *CloudEventsPublisher {
	return &CloudEventsPublisher{client: client}
}

// Publish sends event in structured mode: the whole event is the JSON body.
func (p *CloudEventsPublisher) Publish(ctx context.Context, event cloudevents.Event) error {
	result := p.client.Send(cloudevents.WithEncodingStructured(ctx), event)
	if !cloudevents.IsACK(result) {
		return fmt.Errorf("changefeed: send %s: %w", event.ID(), result)
	}
	return nil
}
