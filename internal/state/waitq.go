// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync"

	"github.com/gammazero/deque"
)

// WaiterQueue is a FIFO of goroutines waiting for a free pool slot. The zero
// value is ready to use.
type WaiterQueue struct {
	mu sync.Mutex
	q  deque.Deque[chan struct{}]
}

// Add registers and returns a channel that will be closed when Notify is
// called and the caller is at the front of the queue.
func (wq *WaiterQueue) Add() Waiter {
	ch := make(chan struct{})
	wq.mu.Lock()
	wq.q.PushBack(ch)
	wq.mu.Unlock()
	return Waiter{q: wq, ch: ch}
}

// Notify wakes the waiter at the front of the queue, if any.
func (wq *WaiterQueue) Notify() {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	if wq.q.Len() > 0 {
		close(wq.q.PopFront())
	}
}

func (wq *WaiterQueue) remove(ch chan struct{}) bool {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	i := wq.q.Index(func(c chan struct{}) bool { return c == ch })
	if i < 0 {
		return false
	}
	wq.q.Remove(i)
	return true
}

// A Waiter is one registration in a WaiterQueue. Waiters may be copied.
type Waiter struct {
	q  *WaiterQueue
	ch chan struct{}
}

// Done returns a channel that is closed once the waiter has been notified.
func (w Waiter) Done() <-chan struct{} {
	return w.ch
}

// Close deregisters a waiter that stopped waiting for some reason other than
// receiving from Done. If it had already been notified, the notification is
// passed on to the next waiter so that no wakeup is lost. Close must not be
// called after a receive from Done has succeeded.
func (w Waiter) Close() {
	if !w.q.remove(w.ch) {
		w.q.Notify()
	}
}
