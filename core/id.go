package core

import "github.com/google/uuid"

// NewID generates a unique identifier used for workflows, agents, and runs.
func NewID() string { return uuid.NewString() }
