// Package batch drives the per-chat extraction pipeline: fetch a window of
// messages, extract tasks, persist them and open a pending prioritization
// record with a prompt for each. Messages are not marked processed here; that
// happens once the human decisions on a batch are complete.
package batch
