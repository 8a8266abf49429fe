// Package parallel provides the worker pool used to spread draw execution
// across CPU cores.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a pool of goroutines for parallel draw execution.
//
// Each worker owns a queue and steals from the others when its own runs
// dry, which balances load when some bands of a draw are denser than
// others.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewPool creates a pool with the given number of workers and starts them.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case task := <-own:
			if task != nil {
				task()
			}
		default:
			if task := p.steal(id); task != nil {
				task()
				continue
			}
			select {
			case <-p.done:
				drain(own)
				return
			case task := <-own:
				if task != nil {
					task()
				}
			}
		}
	}
}

func drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			if task != nil {
				task()
			}
		default:
			return
		}
	}
}

// steal takes one task from another worker's queue, or returns nil.
func (p *Pool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case task := <-p.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// Run distributes tasks round-robin across the workers and waits for all
// of them to complete. On a closed pool the tasks run inline on the
// calling goroutine, so callers never lose work.
func (p *Pool) Run(tasks []func()) {
	if len(tasks) == 0 {
		return
	}
	if !p.running.Load() {
		for _, task := range tasks {
			task()
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		task := task
		wrapped := func() {
			defer wg.Done()
			task()
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			task()
			wg.Done()
		}
	}
	// Close may have raced with the submits above: once done is closed a
	// queued task can end up in a queue whose worker already drained and
	// exited. Run anything left unclaimed so Wait cannot hang.
	if !p.running.Load() {
		for _, q := range p.queues {
			drain(q)
		}
	}
	wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int { return p.workers }

// Close stops the workers after the queued tasks finish. Close is safe to
// call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
