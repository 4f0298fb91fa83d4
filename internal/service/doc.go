// Package service contains the application services that sit between
// the API layer and the stores: task CRUD, the retry and status-update
// operations, and the enqueue contract with the work queue.
package service
