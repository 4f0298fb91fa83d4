// Package worker implements the background jobs that drive the task
// lifecycle: processing a task to completion or failure, sending the
// completion notification, and pruning old completed tasks. The jobs
// are plain functions invoked by whichever queue backend is configured.
package worker
