package models

import "time"

// OperationKind tags a queued mutation.
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// PendingOperation is a collection-entry mutation that could not be confirmed
// against the remote store and awaits replay. The Entry field is the full
// payload at the time of the attempted mutation (including the temporary
// local id for creates). Operations replay in insertion order.
type PendingOperation struct {
	ID       string          `json:"id"`
	Kind     OperationKind   `json:"kind"`
	Entry    CollectionEntry `json:"payload"`
	QueuedAt time.Time       `json:"timestamp"`
}
