// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake returns a FakeClock reading initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.waitersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a Clock for tests. It is safe for concurrent use.
//
// Callbacks run synchronously inside Advance in deadline order. A
// callback may arm new timers; ones that fall inside the advanced
// window fire in the same Advance call. Calling Advance from a
// callback deadlocks.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	waiters        []*fakeWaiter
	waitersChanged *sync.Cond

	// advancing serializes Advance calls so callbacks never overlap.
	advancing sync.Mutex
}

type fakeWaiter struct {
	deadline time.Time

	// Exactly one of channel and callback is set.
	channel  chan time.Time
	callback func()

	stopped bool
	fired   bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock has been
// advanced by d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.addLocked(&fakeWaiter{deadline: c.current.Add(d), channel: channel})
	return channel
}

// AfterFunc schedules f. If d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stopFunc:  func() bool { return false },
			resetFunc: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	waiter := &fakeWaiter{deadline: c.current.Add(d), callback: f}
	c.addLocked(waiter)
	c.mu.Unlock()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if waiter.stopped || waiter.fired {
				return false
			}
			waiter.stopped = true
			return true
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := !waiter.stopped && !waiter.fired
			waiter.deadline = c.current.Add(d)
			if !active {
				waiter.stopped, waiter.fired = false, false
				if !slices.Contains(c.waiters, waiter) {
					c.addLocked(waiter)
				}
			}
			return active
		},
	}
}

func (c *FakeClock) addLocked(waiter *fakeWaiter) {
	c.waiters = append(c.waiters, waiter)
	c.waitersChanged.Broadcast()
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline has been reached, earliest first. Waiters armed by a
// callback fire too if their deadline is within the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.advancing.Lock()
	defer c.advancing.Unlock()

	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		waiter := c.nextExpired(target)
		if waiter == nil {
			break
		}
		if waiter.callback != nil {
			waiter.callback()
			continue
		}
		select {
		case waiter.channel <- waiter.deadline:
		default:
		}
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// nextExpired removes and returns the earliest live waiter due at or
// before target, moving the clock to its deadline.
func (c *FakeClock) nextExpired(target time.Time) *fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waiters = slices.DeleteFunc(c.waiters, func(waiter *fakeWaiter) bool {
		return waiter.stopped || waiter.fired
	})
	var next *fakeWaiter
	for _, waiter := range c.waiters {
		if waiter.deadline.After(target) {
			continue
		}
		if next == nil || waiter.deadline.Before(next.deadline) {
			next = waiter
		}
	}
	if next == nil {
		return nil
	}
	next.fired = true
	if next.deadline.After(c.current) {
		c.current = next.deadline
	}
	return next
}

// WaitForTimers blocks until at least n waiters are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.waitersChanged.Wait()
	}
}

// PendingCount returns the number of waiters that have neither fired
// nor been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped && !waiter.fired {
			count++
		}
	}
	return count
}
