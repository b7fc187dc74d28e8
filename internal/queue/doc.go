// Package queue persists the time-ordered announcement queue and the
// last-processed-day marker.
//
// Two records survive restarts:
//   - the queue: day key -> ordered message list
//   - the marker: the last day the refill cycle ran for
//
// Missing or corrupt state degrades to empty defaults; undelivered history
// may be lost but the process always starts.
package queue
