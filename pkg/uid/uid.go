package uid

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// Short returns the first eight hex digits of a new identifier, for
// names with length limits such as MQTT client IDs.
func Short() string {
	return strings.SplitN(New(), "-", 2)[0]
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
