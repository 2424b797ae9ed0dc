package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID creates a prefixed random id, e.g. "req-3f2a9c1e"
func GenerateID(prefix string) string {
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	if prefix == "" {
		return short
	}
	return prefix + "-" + short
}

// NewTraceID returns a full UUID used to correlate requests and pushes
func NewTraceID() string {
	return uuid.NewString()
}
