package domain

import (
	"fmt"
	"strings"
)

const maxIDLength = 64

// NormalizeID trims whitespace and lowercases an id, rejecting anything that could not be
// used as a cache key segment or URL path segment.
func NormalizeID(rawID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(rawID))
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > maxIDLength {
		return "", fmt.Errorf("%w: too long (%d characters)", ErrInvalidID, len(id))
	}
	for _, char := range id {
		isAlnum := (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9')
		if !isAlnum && char != '-' && char != '_' {
			return "", fmt.Errorf("%w: invalid character in id. input: '%s'", ErrInvalidID, rawID)
		}
	}
	return id, nil
}
