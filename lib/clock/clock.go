// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the subset of the time package the cache depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed. If d <= 0, f runs right
	// away: on a new goroutine for Real, synchronously for Fake.
	// Callers holding a lock f acquires must pass a positive d.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop cancels the call. It reports whether the call was still
// pending.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset reschedules the call to run d from now. It reports whether the
// call was still pending.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
