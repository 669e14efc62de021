// Package idgen generates session identifiers backed by nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// SessionPrefix is prepended to every session ID.
const SessionPrefix = "fs-"

// Alphabet defines the character set used for the random portion of the ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
// Session IDs are bearer secrets, so they carry about 143 bits of entropy.
const Length = 24

// NewSessionID returns a new random session ID.
func NewSessionID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return SessionPrefix + id, nil
}

// ValidSessionID reports whether id has the shape NewSessionID produces.
// Cookie values failing this check are discarded without a store lookup.
func ValidSessionID(id string) bool {
	rest, ok := strings.CutPrefix(id, SessionPrefix)
	if !ok || len(rest) != Length {
		return false
	}
	for _, c := range rest {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}
