// Package arena provides a recyclable slot arena addressed by generation-tagged handles.
//
// Features:
//   - O(1) amortized insertion with slot reuse through a free list
//   - Stale handle detection: every reuse bumps the slot generation
//   - An ordered live sequence usable as a deque or, after Update, as a priority queue
//   - Per-entry age and priority metadata with full or bounded partial re-sorting
//
// Backing storage only grows. Slots are never deallocated individually.
// An Arena is not safe for concurrent use.
package arena
