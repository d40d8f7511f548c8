// Package utils provides the concurrency and recovery helpers shared by the
// consolidation stages.
//
// It contains:
//   - Bounded fan-out helpers and a generic worker pool (concurrent.go)
//   - Panic recovery that converts panics into PanicError values (recovery.go)
//   - Environment-driven limits and small slice helpers (helpers.go)
package utils
