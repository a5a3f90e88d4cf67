package events

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("queue", func() {
	It("pops in insertion order", func() {
		q := newQueue()
		q.PushBack(&message{Kind: WorkflowMessageKind, Data: []byte("msg1")})
		q.PushBack(&message{Kind: WorkflowMessageKind, Data: []byte("msg2")})
		q.PushBack(&message{Kind: JobMessageKind, Data: []byte("msg3")})
		Expect(q.Size()).To(Equal(3))

		Expect(q.Pop().Data).To(Equal([]byte("msg1")))
		Expect(q.Pop().Data).To(Equal([]byte("msg2")))
		Expect(q.Size()).To(Equal(1))

		m := q.Pop()
		Expect(m.Kind).To(Equal(JobMessageKind))
		Expect(q.Size()).To(Equal(0))
		Expect(q.head).To(BeNil())
		Expect(q.tail).To(BeNil())

		Expect(q.Pop()).To(BeNil())
	})

	It("accepts messages after being emptied", func() {
		q := newQueue()
		q.PushBack(&message{Data: []byte("msg1")})
		Expect(q.Pop()).NotTo(BeNil())

		q.PushBack(&message{Data: []byte("msg2")})
		Expect(q.Size()).To(Equal(1))
		Expect(q.Pop().Data).To(Equal([]byte("msg2")))
	})
})
