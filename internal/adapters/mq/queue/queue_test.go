package queue_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hibiki-gg/scoretrack/internal/adapters/mq/queue"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

func job(id string) queue.Job {
	return model.ImportJob{
		JobID:      id,
		UserID:     1,
		ImportType: model.ImportTypeBatchManual,
		Payload:    []byte(`{}`),
	}
}

func TestEnqueueDequeue(t *testing.T) {
	Convey("Given an in-memory queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(4), queue.WithBufferSize(4))

		Convey("When jobs are enqueued", func() {
			So(q.Enqueue(ctx, job("j1")), ShouldBeTrue)
			So(q.Enqueue(ctx, job("j2")), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 2)

			Convey("Then they come back in order", func() {
				jobs := q.Dequeue(ctx)
				So((<-jobs).JobID, ShouldEqual, "j1")
				So((<-jobs).JobID, ShouldEqual, "j2")
			})
		})

		Convey("When the queue is full", func() {
			for i := 0; i < 4; i++ {
				So(q.Enqueue(ctx, job("j"+strconv.Itoa(i))), ShouldBeTrue)
			}

			Convey("Then further enqueues are rejected", func() {
				So(q.Enqueue(ctx, job("overflow")), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 4)
			})
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Given a queue with one pending job", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue()
		So(q.Enqueue(ctx, job("pending")), ShouldBeTrue)

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)

			Convey("Then enqueue is rejected", func() {
				So(q.Enqueue(ctx, job("late")), ShouldBeFalse)
			})

			Convey("Then pending jobs still drain and the channel closes", func() {
				jobs := q.Dequeue(ctx)

				j, ok := <-jobs
				So(ok, ShouldBeTrue)
				So(j.JobID, ShouldEqual, "pending")

				select {
				case _, ok := <-jobs:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					So("dequeue channel did not close", ShouldBeEmpty)
				}
			})

			Convey("Then closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})

	Convey("Given a consumer whose context is canceled", t, func() {
		q := queue.NewInMemoryQueue()
		ctx, cancel := context.WithCancel(context.Background())

		jobs := q.Dequeue(ctx)
		cancel()
		So(q.Enqueue(context.Background(), job("j1")), ShouldBeTrue)

		Convey("Then the dequeue channel shuts down", func() {
			select {
			case <-jobs:
			case <-time.After(time.Second):
				So("dequeue channel did not shut down", ShouldBeEmpty)
			}
		})
	})
}
