// Package task runs operator-triggered jobs (immediate chat processing,
// historical backfill, capacity recounts) on a bounded in-memory queue served
// by a worker pool, so chat commands and admin requests return immediately.
package task
