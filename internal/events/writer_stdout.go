package events

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

// LogWriter writes events to the process log. It is the writer of local deployments.
type LogWriter struct{}

func (l *LogWriter) Write(_ context.Context, topic string, e cloudevents.Event) error {
	zap.S().Named("event_writer").Infow("event", "type", e.Type(), "id", e.ID(), "topic", topic, "data", string(e.Data()))
	return nil
}

func (l *LogWriter) Close(_ context.Context) error {
	return nil
}
