// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source of the cache. Write debouncing,
// flush throttling and retry backoff all read time through a Clock so
// tests can drive them with a FakeClock instead of sleeping.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	queue := writequeue.New(store, writequeue.Config{Clock: c})
//	queue.Enqueue(context, entry)
//	c.Advance(writequeue.DefaultDebounce) // flushes synchronously
//
// FakeClock runs AfterFunc callbacks on the goroutine that calls
// Advance. WaitForTimers blocks until other goroutines have armed
// their timers, closing the race between registration and Advance.
package clock
