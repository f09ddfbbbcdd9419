package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

var errThrottleClosed = errors.New("throttle closed")

const (
	ticketWaiting int32 = iota
	ticketGranted
	ticketAbandoned
)

// ticket is one caller's place in the queue.
type ticket struct {
	state atomic.Int32
	grant chan struct{}
}

// Throttle is the single request queue in front of the provider. Callers enqueue a ticket,
// one worker hands out grants in arrival order no faster than the configured rate. Tickets
// whose caller already left do not use up a slot.
type Throttle struct {
	queue   chan *ticket
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewThrottle(requestsPerSecond float64, queueSize int) *Throttle {
	if queueSize <= 0 {
		queueSize = 256
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Throttle{
		queue:   make(chan *ticket, queueSize),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	t.wg.Add(1)
	go t.worker()
	return t
}

func (t *Throttle) worker() {
	defer t.wg.Done()
	for {
		var tk *ticket
		select {
		case <-t.ctx.Done():
			return
		case tk = <-t.queue:
		}
		if tk.state.Load() == ticketAbandoned {
			continue
		}
		if err := t.limiter.Wait(t.ctx); err != nil {
			return
		}
		t.handOut(tk)
	}
}

// handOut grants the slot to tk, or to the next queued caller still waiting when tk left
// during the limiter wait.
func (t *Throttle) handOut(tk *ticket) {
	for !tk.state.CompareAndSwap(ticketWaiting, ticketGranted) {
		select {
		case tk = <-t.queue:
		default:
			return
		}
	}
	close(tk.grant)
}

// Acquire blocks the calling goroutine until the worker grants it a request slot.
func (t *Throttle) Acquire(ctx context.Context) error {
	tk := &ticket{grant: make(chan struct{})}
	select {
	case t.queue <- tk:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return errThrottleClosed
	}

	select {
	case <-tk.grant:
		return nil
	case <-ctx.Done():
		tk.state.CompareAndSwap(ticketWaiting, ticketAbandoned)
		return ctx.Err()
	case <-t.ctx.Done():
		return errThrottleClosed
	}
}

func (t *Throttle) Close() {
	t.cancel()
	t.wg.Wait()
}
