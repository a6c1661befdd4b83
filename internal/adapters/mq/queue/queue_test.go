package queue_test

import (
	"context"
	"testing"
	"time"

	queue "github.com/okian/nudge/internal/adapters/mq/queue"
	model "github.com/okian/nudge/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func note(id string) model.Notification {
	return model.Notification{ID: id, UserID: "123", Kind: model.KindDigest, Body: "hi"}
}

func TestInMemoryQueue(t *testing.T) {
	convey.Convey("Given an in-memory queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		convey.Convey("When enqueueing within capacity", func() {
			convey.So(q.Enqueue(ctx, note("a")), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, note("b")), convey.ShouldBeTrue)
			convey.So(q.Len(ctx), convey.ShouldEqual, 2)

			convey.Convey("And a third intent is dropped, not blocked", func() {
				convey.So(q.Enqueue(ctx, note("c")), convey.ShouldBeFalse)
				convey.So(q.Len(ctx), convey.ShouldEqual, 2)
			})

			convey.Convey("And dequeue receives intents in order", func() {
				ch := q.Dequeue(ctx)

				first := <-ch
				second := <-ch
				convey.So(first.ID, convey.ShouldEqual, "a")
				convey.So(second.ID, convey.ShouldEqual, "b")
			})
		})

		convey.Convey("When the queue is closed", func() {
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then enqueue refuses new intents", func() {
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(q.Enqueue(ctx, note("late")), convey.ShouldBeFalse)
			})

			convey.Convey("Then the dequeue channel drains and closes", func() {
				ch := q.Dequeue(ctx)
				select {
				case _, open := <-ch:
					convey.So(open, convey.ShouldBeFalse)
				case <-time.After(time.Second):
					convey.So("timed out", convey.ShouldBeEmpty)
				}
			})

			convey.Convey("Then closing again is a no-op", func() {
				convey.So(q.Close(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the consumer context is canceled", func() {
			cctx, cancel := context.WithCancel(ctx)
			ch := q.Dequeue(cctx)
			convey.So(q.Enqueue(ctx, note("a")), convey.ShouldBeTrue)
			cancel()
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then the wrapper channel eventually closes", func() {
				deadline := time.After(time.Second)
				for {
					select {
					case _, open := <-ch:
						if !open {
							convey.So(open, convey.ShouldBeFalse)
							return
						}
					case <-deadline:
						convey.So("timed out", convey.ShouldBeEmpty)
						return
					}
				}
			})
		})
	})
}
