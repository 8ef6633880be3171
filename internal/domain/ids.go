package domain

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// NewID returns a fresh identifier. Every store uses ObjectID hex strings so
// identifiers look the same regardless of the backing database.
func NewID() string {
	return bson.NewObjectID().Hex()
}

// IsValidID reports whether id is a 24-character hexadecimal string.
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NormalizeID lowercases id so hex identifiers compare equal in every store.
func NormalizeID(id string) string {
	return strings.ToLower(id)
}
