// Package domain contains the core business entities and domain logic of
// the application: the Task entity and its status state machine. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
