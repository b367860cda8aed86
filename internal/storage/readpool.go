package storage

import (
	"context"
	"database/sql"
	"sync"
)

// DefaultReadPoolSize is used when a caller doesn't specify a worker count.
const DefaultReadPoolSize = 5

type readJob struct {
	ctx    context.Context
	run    func(ctx context.Context, db *sql.DB) (interface{}, error)
	result chan<- jobOutcome
}

// ReadPool spreads read-only queries across a fixed number of worker
// goroutines, each bound to its own connection, so one slow scan doesn't
// serialize behind the single Writer connection. Grounded on the bounded
// worker pool shape used for concurrent batch work elsewhere in this
// codebase: a buffered work channel, N workers draining it, a result
// channel closed once every worker has exited.
type ReadPool struct {
	dbs   []*sql.DB
	queue chan readJob
	wg    sync.WaitGroup
	done  chan struct{}
}

// NewReadPool starts size workers, each driving one of the given
// connections round-robin. len(dbs) need not equal size; workers simply
// share dbs by index modulo len(dbs).
func NewReadPool(dbs []*sql.DB, size int) *ReadPool {
	if size <= 0 {
		size = DefaultReadPoolSize
	}
	p := &ReadPool{
		dbs:   dbs,
		queue: make(chan readJob, size*4),
		done:  make(chan struct{}),
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		db := dbs[i%len(dbs)]
		go p.worker(db)
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	return p
}

func (p *ReadPool) worker(db *sql.DB) {
	defer p.wg.Done()
	for job := range p.queue {
		val, err := job.run(job.ctx, db)
		job.result <- jobOutcome{val: val, err: err}
		close(job.result)
	}
}

// Stop closes the submission queue and waits for every worker to finish
// its current job. SubmitRead must not be called again afterward.
func (p *ReadPool) Stop() {
	close(p.queue)
	<-p.done
}

func (p *ReadPool) submitRaw(ctx context.Context, run func(ctx context.Context, db *sql.DB) (interface{}, error)) <-chan jobOutcome {
	result := make(chan jobOutcome, 1)
	job := readJob{ctx: ctx, run: run, result: result}

	select {
	case p.queue <- job:
	case <-ctx.Done():
		result <- jobOutcome{err: ctx.Err()}
		close(result)
	}
	return result
}

// SubmitRead queues fn to run against one of the pool's connections and
// returns a Future for its typed result.
func SubmitRead[T any](p *ReadPool, ctx context.Context, fn func(ctx context.Context, db *sql.DB) (T, error)) *Future[T] {
	future, resolve, reject := NewFuture[T]()

	outcome := p.submitRaw(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		return fn(ctx, db)
	})

	go func() {
		o := <-outcome
		if o.err != nil {
			reject(o.err)
			return
		}
		resolve(o.val.(T))
	}()

	return future
}
