// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestWaiterQueueFIFO(t *testing.T) {
	chk := require.New(t)
	var wq WaiterQueue

	a := wq.Add()
	b := wq.Add()
	chk.Equal(2, wq.q.Len())

	wq.Notify()
	chk.True(isClosed(a.Done()))
	chk.False(isClosed(b.Done()))

	wq.Notify()
	chk.True(isClosed(b.Done()))
	chk.Equal(0, wq.q.Len())

	// Notifying an empty queue is a no-op.
	wq.Notify()
}

func TestWaiterCloseBeforeNotify(t *testing.T) {
	chk := require.New(t)
	var wq WaiterQueue

	a := wq.Add()
	b := wq.Add()
	a.Close()
	chk.Equal(1, wq.q.Len())

	wq.Notify()
	chk.False(isClosed(a.Done()))
	chk.True(isClosed(b.Done()))
}

func TestWaiterClosePassesNotificationOn(t *testing.T) {
	chk := require.New(t)
	var wq WaiterQueue

	a := wq.Add()
	b := wq.Add()
	wq.Notify()

	// a was notified but gave up for another reason, so b must be woken.
	a.Close()
	chk.True(isClosed(b.Done()))
}
