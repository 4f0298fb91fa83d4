// Package store defines interfaces and sentinel errors for task
// persistence. The interfaces abstract the underlying database from the
// application's core logic, so the lifecycle rules stay independent of
// the storage technology.
package store
