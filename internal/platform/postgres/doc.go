// Package postgres provides the PostgreSQL implementation of the task
// store interface defined in the internal/store package. It handles
// query execution, mapping between domain entities and table rows, and
// translation of driver errors into store sentinel errors.
package postgres
