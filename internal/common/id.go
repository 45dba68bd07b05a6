package common

import (
	"github.com/google/uuid"
)

// NewExecutionID generates a unique hunt execution ID with the "exec_" prefix
// Format: exec_<uuid>
func NewExecutionID() string {
	return "exec_" + uuid.New().String()
}

// NewSubscriptionID generates a unique subscription ID with the "sub_" prefix
// Format: sub_<uuid>
func NewSubscriptionID() string {
	return "sub_" + uuid.New().String()
}
