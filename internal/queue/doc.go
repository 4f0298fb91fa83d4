// Package queue defines the minimal contract between the application
// and the work queue that executes task jobs: submit a job by task id,
// have a handler invoked with that id. Broker-specific implementations
// live in the asynqueue (Redis) and memqueue (in-process) subpackages.
package queue
