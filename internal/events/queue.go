package events

import (
	"sync"
	"time"
)

type message struct {
	Kind string
	Data []byte
	Time time.Time
	next *message
}

// queue is an unbounded FIFO of pending messages.
type queue struct {
	lock sync.Mutex
	head *message
	tail *message
	size int
}

func newQueue() *queue {
	return &queue{}
}

func (q *queue) PushBack(msg *message) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.head == nil {
		q.head = msg
	} else {
		q.tail.next = msg
	}
	q.tail = msg
	q.size++
}

// Pop removes the oldest message. It returns nil when the queue is empty.
func (q *queue) Pop() *message {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.head == nil {
		return nil
	}
	msg := q.head
	q.head = msg.next
	if q.head == nil {
		q.tail = nil
	}
	msg.next = nil
	q.size--
	return msg
}

func (q *queue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.size
}
