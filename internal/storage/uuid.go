package storage

import "github.com/google/uuid"

// newTaskID generates a random UUID v4 string for task identifiers.
func newTaskID() string {
	return uuid.NewString()
}
