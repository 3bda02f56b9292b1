package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-system/internal/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Job is a unit of work routed to a worker by Key. Jobs sharing a key are
// processed one at a time, in enqueue order.
type Job[T any] struct {
	Key     string
	Payload T
}

// Dispatcher routes jobs to a fixed set of workers using consistent hashing on
// the job key, guaranteeing per-key ordering and mutual exclusion.
type Dispatcher[T any] struct {
	workers []chan Job[T]
	handle  func(context.Context, T)
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher[T any](numWorkers int, handle func(context.Context, T), log zerolog.Logger) *Dispatcher[T] {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher[T]{
		workers: make([]chan Job[T], numWorkers),
		handle:  handle,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Job[T], channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their channel and exit
// after Close; ctx is handed to every job.
func (d *Dispatcher[T]) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a job to the worker responsible for its key. It blocks once
// that worker's buffer is full, or until ctx is done.
func (d *Dispatcher[T]) Enqueue(ctx context.Context, job Job[T]) error {
	idx := d.shardIndex(job.Key)
	select {
	case d.workers[idx] <- job:
		metrics.WorkerQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued jobs to finish. Enqueue must
// not be called after Close.
func (d *Dispatcher[T]) Close() {
	for _, ch := range d.workers {
		close(ch)
	}
	d.wg.Wait()
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher[T]) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher[T]) runWorker(ctx context.Context, id int, ch <-chan Job[T]) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for job := range ch {
		metrics.WorkerQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		d.run(ctx, id, job)
	}
}

func (d *Dispatcher[T]) run(ctx context.Context, id int, job Job[T]) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Interface("panic", r).
				Str("key", job.Key).
				Int("worker_id", id).
				Msg("job panicked")
		}
	}()
	d.handle(ctx, job.Payload)
}
