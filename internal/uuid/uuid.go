// Package uuid generates unguessable identifiers for scratch directories
// and temporary files.
package uuid

import "github.com/google/uuid"

// NewString returns a new V4 UUID string. Panics on entropy-source error,
// which in practice never happens.
func NewString() string {
	return uuid.New().String()
}
