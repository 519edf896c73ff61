package worker

import (
	"context"
	"sync"
)

// Outcome is the result of processing one submitted item
type Outcome[R any] struct {
	Index int // Submission order, starting at 0
	Value R
	Err   error
}

// GetError returns the error from the outcome
func (o Outcome[R]) GetError() error {
	return o.Err
}

type queued[T any] struct {
	index int
	item  T
}

// Pool applies one function to submitted items with a fixed number of
// workers. Outcomes arrive on Results in completion order. Cancelling the
// parent context stops workers between items.
type Pool[T, R any] struct {
	fn      func(ctx context.Context, item T) (R, error)
	workers int

	queue   chan queued[T]
	results chan Outcome[R]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	submitted int

	closeQueue   sync.Once
	closeResults sync.Once
}

// NewPool starts a pool of workers bound to ctx. Non-positive worker counts
// run one worker.
func NewPool[T, R any](ctx context.Context, workers int, fn func(ctx context.Context, item T) (R, error)) *Pool[T, R] {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool[T, R]{
		fn:      fn,
		workers: workers,
		queue:   make(chan queued[T], workers*2),
		results: make(chan Outcome[R], workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool[T, R]) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.queue:
			if !ok {
				return
			}
			out := Outcome[R]{Index: q.index}
			if err := p.ctx.Err(); err != nil {
				out.Err = err
			} else {
				out.Value, out.Err = p.fn(p.ctx, q.item)
			}
			select {
			case p.results <- out:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues an item and returns its index. It reports false when the
// pool was cancelled before the item could be queued. Submit must not be
// called after Close.
func (p *Pool[T, R]) Submit(item T) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q := queued[T]{index: p.submitted, item: item}
	select {
	case <-p.ctx.Done():
		return 0, false
	case p.queue <- q:
		p.submitted++
		return q.index, true
	}
}

// Results is closed once Close has been called and every worker has exited
func (p *Pool[T, R]) Results() <-chan Outcome[R] {
	return p.results
}

// Close stops accepting items; workers exit after draining the queue
func (p *Pool[T, R]) Close() {
	p.closeQueue.Do(func() { close(p.queue) })
	go func() {
		p.wg.Wait()
		p.closeResults.Do(func() { close(p.results) })
		p.cancel()
	}()
}

// Shutdown cancels in-flight work and waits for the workers to stop
func (p *Pool[T, R]) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults.Do(func() { close(p.results) })
}
