package ccu

import "sync"

// OutstandingSends is the shared counter described in §4.9/§5: the sender
// task decrements it on every SendMessage outcome (success, drop, error)
// and signals waiters whenever it reaches zero, so session preparation can
// wait for "all outstanding sends drained" after each batch.
type OutstandingSends struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

// NewOutstandingSends constructs a zeroed counter.
func NewOutstandingSends() *OutstandingSends {
	o := &OutstandingSends{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Add increments the counter by n (n is typically the size of a batch about
// to be enqueued, or 1 per individual send).
func (o *OutstandingSends) Add(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.count += n
}

// Done decrements the counter by one and wakes waiters once it reaches zero.
func (o *OutstandingSends) Done() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.count > 0 {
		o.count--
	}
	if o.count == 0 {
		o.cond.Broadcast()
	}
}

// Wait blocks until the counter reaches zero.
func (o *OutstandingSends) Wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.count != 0 {
		o.cond.Wait()
	}
}
