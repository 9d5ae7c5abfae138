package tracker

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Queue.Do after Close.
var ErrQueueClosed = errors.New("queue closed")

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Queue runs submitted functions one at a time on a single goroutine.
//
// Every Session Log read-modify-write goes through the engine's queue, so two
// events can never interleave their load and save.
type Queue struct {
	tasks chan task
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewQueue starts the worker goroutine.
func NewQueue() *Queue {
	q := &Queue{
		tasks: make(chan task),
		quit:  make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case t := <-q.tasks:
			if err := t.ctx.Err(); err != nil {
				t.done <- err
				continue
			}
			t.done <- t.fn(t.ctx)
		}
	}
}

// Do runs fn on the worker and waits for it to finish.
//
// fn must not call Do on the same queue.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case <-q.quit:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.tasks <- t:
	}
	return <-t.done
}

// Close stops the worker after the task in flight, if any, completes.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.quit)
	})
	q.wg.Wait()
}
