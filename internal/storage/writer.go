package storage

import (
	"context"
	"database/sql"
)

// writeJob is the non-generic unit of work queued to a Writer. Go methods
// can't take their own type parameter, so the package-level generic
// Submit function below builds one of these and unwraps its interface{}
// result back into a typed Future.
type writeJob struct {
	ctx    context.Context
	run    func(ctx context.Context, tx *sql.Tx) (interface{}, error)
	result chan<- jobOutcome
}

type jobOutcome struct {
	val interface{}
	err error
}

// Writer serializes every mutating operation through a single goroutine
// driving a single *sql.DB connection, mirroring the one-writer-at-a-time
// discipline SQLite itself requires and that the Connection Pool already
// enforces per owner (MaxOpenConns=1). Concurrent callers queue through
// Submit instead of racing for the connection directly; a worker pool of
// one.
type Writer struct {
	db    *sql.DB
	queue chan writeJob
	done  chan struct{}
}

// NewWriter starts the writer loop over db, which must be a connection
// dedicated to this Writer (e.g. one obtained from the Connection Pool
// under its own OwnerID). queueDepth bounds how many pending writes may
// be queued before Submit blocks.
func NewWriter(db *sql.DB, queueDepth int) *Writer {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	w := &Writer{
		db:    db,
		queue: make(chan writeJob, queueDepth),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Writer) loop() {
	defer close(w.done)
	for job := range w.queue {
		val, err := w.runJob(job)
		job.result <- jobOutcome{val: val, err: err}
		close(job.result)
	}
}

func (w *Writer) runJob(job writeJob) (interface{}, error) {
	tx, err := w.db.BeginTx(job.ctx, nil)
	if err != nil {
		return nil, err
	}

	val, err := job.run(job.ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return val, nil
}

// Stop closes the submission queue and waits for the worker to drain any
// already-queued jobs. Submit must not be called again afterward.
func (w *Writer) Stop() {
	close(w.queue)
	<-w.done
}

// submitRaw enqueues job and returns the channel its outcome will arrive
// on. Blocks if the queue is full; returns immediately with a closed,
// canceled-context outcome channel if ctx is already done.
func (w *Writer) submitRaw(ctx context.Context, run func(ctx context.Context, tx *sql.Tx) (interface{}, error)) <-chan jobOutcome {
	result := make(chan jobOutcome, 1)
	job := writeJob{ctx: ctx, run: run, result: result}

	select {
	case w.queue <- job:
	case <-ctx.Done():
		result <- jobOutcome{err: ctx.Err()}
		close(result)
	}
	return result
}

// Submit queues fn to run against a fresh transaction on the Writer's
// connection and returns a Future for its typed result. fn's transaction
// is committed if it returns a nil error and rolled back otherwise.
func Submit[T any](w *Writer, ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) (T, error)) *Future[T] {
	future, resolve, reject := NewFuture[T]()

	outcome := w.submitRaw(ctx, func(ctx context.Context, tx *sql.Tx) (interface{}, error) {
		return fn(ctx, tx)
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
