package service_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mozilla-ai/lumigator/internal/service"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("supervisor", func() {
	var supervisor *service.Supervisor

	BeforeEach(func() {
		supervisor = service.NewSupervisor(context.Background())
	})

	It("runs a task until it returns", func() {
		release := make(chan struct{})
		Expect(supervisor.Go("task", func(ctx context.Context) { <-release })).To(Succeed())
		Expect(supervisor.IsRunning("task")).To(BeTrue())

		close(release)
		Eventually(func() bool { return supervisor.IsRunning("task") }).Should(BeFalse())
	})

	It("refuses a second task with the same id", func() {
		release := make(chan struct{})
		defer close(release)

		Expect(supervisor.Go("task", func(ctx context.Context) { <-release })).To(Succeed())
		Expect(supervisor.Go("task", func(ctx context.Context) {})).NotTo(Succeed())
	})

	It("cancels a task and waits for it", func() {
		var cleanedUp atomic.Bool
		Expect(supervisor.Go("task", func(ctx context.Context) {
			<-ctx.Done()
			cleanedUp.Store(true)
		})).To(Succeed())

		Expect(supervisor.Cancel("task")).To(BeTrue())
		Expect(cleanedUp.Load()).To(BeTrue())
		Expect(supervisor.IsRunning("task")).To(BeFalse())
		Expect(supervisor.Cancel("task")).To(BeFalse())
	})

	It("survives a panicking task", func() {
		Expect(supervisor.Go("task", func(ctx context.Context) { panic("boom") })).To(Succeed())
		Eventually(func() bool { return supervisor.IsRunning("task") }).Should(BeFalse())

		Expect(supervisor.Go("task", func(ctx context.Context) {})).To(Succeed())
		supervisor.Wait()
	})

	It("cancels every task on shutdown", func() {
		var stopped atomic.Int32
		for _, id := range []string{"a", "b", "c"} {
			Expect(supervisor.Go(id, func(ctx context.Context) {
				<-ctx.Done()
				stopped.Add(1)
			})).To(Succeed())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(supervisor.Shutdown(ctx)).To(Succeed())
		Expect(stopped.Load()).To(Equal(int32(3)))

		Expect(supervisor.Go("late", func(ctx context.Context) {})).NotTo(Succeed())
	})

	It("gives up waiting when the shutdown context ends", func() {
		release := make(chan struct{})
		defer close(release)
		Expect(supervisor.Go("stubborn", func(ctx context.Context) { <-release })).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(supervisor.Shutdown(ctx)).To(MatchError(context.DeadlineExceeded))
	})
})
