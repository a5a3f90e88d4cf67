package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	WorkflowMessageKind string = "ai.mozilla.lumigator.workflow"
	JobMessageKind      string = "ai.mozilla.lumigator.job"
	defaultTopic        string = "lumigator.events"
	eventSource         string = "lumigator.backend"
	closeTimeout               = 5 * time.Second
)

// Writer sends events to their destination.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// EventProducer queues events and hands them to the writer from a single goroutine,
// so callers never wait on the writer.
type EventProducer struct {
	queue     *queue
	wakeCh    chan struct{}
	doneCh    chan struct{}
	stoppedCh chan struct{}
	writer    Writer
	topic     string
	closeOnce sync.Once
	closeErr  error
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		queue:     newQueue(),
		wakeCh:    make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		writer:    w,
		topic:     defaultTopic,
	}

	for _, o := range opts {
		o(ep)
	}

	go ep.run()
	return ep
}

// Publish queues body, encoded as json, as an event of the given kind.
func (ep *EventProducer) Publish(_ context.Context, kind string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	select {
	case <-ep.doneCh:
		return ErrProducerClosed
	default:
	}

	ep.queue.PushBack(&message{Kind: kind, Data: data, Time: time.Now()})

	select {
	case ep.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// Close flushes the pending events and closes the writer. Later calls return the first result.
func (ep *EventProducer) Close() error {
	ep.closeOnce.Do(func() {
		close(ep.doneCh)
		<-ep.stoppedCh

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := ep.writer.Close(ctx); err != nil {
			zap.S().Named("event_producer").Errorf("event producer closed with error: %s", err)
			ep.closeErr = err
			return
		}
		zap.S().Named("event_producer").Info("event producer closed")
	})
	return ep.closeErr
}

func (ep *EventProducer) run() {
	defer close(ep.stoppedCh)

	for {
		ep.drain()

		select {
		case <-ep.wakeCh:
		case <-ep.doneCh:
			ep.drain()
			return
		}
	}
}

func (ep *EventProducer) drain() {
	for msg := ep.queue.Pop(); msg != nil; msg = ep.queue.Pop() {
		e := cloudevents.NewEvent()
		e.SetID(uuid.NewString())
		e.SetSource(eventSource)
		e.SetType(msg.Kind)
		e.SetTime(msg.Time)
		_ = e.SetData(cloudevents.ApplicationJSON, msg.Data)

		if err := ep.writer.Write(context.Background(), ep.topic, e); err != nil {
			zap.S().Named("event_producer").Errorw("failed to send event", "error", err, "type", msg.Kind)
		}
	}
}
