package worker_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hibiki-gg/scoretrack/internal/adapters/mq/queue"
	"github.com/hibiki-gg/scoretrack/internal/adapters/mq/worker"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

// recordingImporter collects the jobs it was handed.
type recordingImporter struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (r *recordingImporter) ProcessJob(_ context.Context, job worker.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job.JobID)
	return r.err
}

func (r *recordingImporter) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recordingImporter) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.jobs))
	copy(out, r.jobs)
	return out
}

func job(id string) worker.Job {
	return model.ImportJob{JobID: id, UserID: 1, ImportType: model.ImportTypeBatchManual}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorkerRun(t *testing.T) {
	Convey("Given a worker over a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		imp := &recordingImporter{}
		w := worker.NewInMemoryWorker(q, imp, worker.WithName("test-worker"))

		go w.Run(ctx)

		Convey("When a job is enqueued", func() {
			So(q.Enqueue(ctx, job("j1")), ShouldBeTrue)

			Convey("Then the importer receives it", func() {
				So(waitFor(func() bool { return len(imp.seen()) == 1 }), ShouldBeTrue)
				So(imp.seen()[0], ShouldEqual, "j1")
			})
		})

		Convey("When the importer fails", func() {
			imp.setErr(errors.New("conversion blew up"))
			So(q.Enqueue(ctx, job("bad")), ShouldBeTrue)
			So(waitFor(func() bool { return len(imp.seen()) == 1 }), ShouldBeTrue)

			Convey("Then the worker keeps running and takes the next job", func() {
				imp.setErr(nil)
				So(q.Enqueue(ctx, job("good")), ShouldBeTrue)
				So(waitFor(func() bool { return len(imp.seen()) == 2 }), ShouldBeTrue)
			})
		})

		Convey("When the worker is shut down", func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()
			So(w.Shutdown(shutdownCtx), ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers", t, func() {
		ctx := context.Background()

		q := queue.NewInMemoryQueue()
		imp := &recordingImporter{}
		pool := worker.NewPool(4, q, imp)
		pool.Start(ctx)

		Convey("When many jobs are enqueued", func() {
			const jobs = 50
			for i := 0; i < jobs; i++ {
				So(q.Enqueue(ctx, job("j"+strconv.Itoa(i))), ShouldBeTrue)
			}

			Convey("Then the pool drains them all", func() {
				So(waitFor(func() bool { return len(imp.seen()) == jobs }), ShouldBeTrue)

				distinct := make(map[string]struct{})
				for _, id := range imp.seen() {
					distinct[id] = struct{}{}
				}
				So(len(distinct), ShouldEqual, jobs)
			})
		})

		Convey("When the pool is shut down with pending jobs", func() {
			for i := 0; i < 10; i++ {
				So(q.Enqueue(ctx, job("p"+strconv.Itoa(i))), ShouldBeTrue)
			}

			So(pool.Shutdown(ctx), ShouldBeNil)

			Convey("Then the queue is closed and everything was processed", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(len(imp.seen()), ShouldEqual, 10)
			})
		})
	})
}
