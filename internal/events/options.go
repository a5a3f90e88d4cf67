package events

import "errors"

var ErrProducerClosed = errors.New("event producer is closed")

type ProducerOptions func(e *EventProducer)

func WithOutputTopic(topic string) ProducerOptions {
	return func(e *EventProducer) {
		e.topic = topic
	}
}
