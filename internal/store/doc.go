// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, so the prioritization rules and the batch
// pipeline remain independent of the SQL dialect behind them.
package store
