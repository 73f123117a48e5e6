package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// MinHashSaltLength is the minimum accepted length of LOG_HASH_SALT.
const MinHashSaltLength = 32

var hashSalt string

// InitHashSalt loads the salt used for hashing identifiers from LOG_HASH_SALT.
// It panics when the salt is missing or shorter than MinHashSaltLength.
func InitHashSalt() {
	salt := os.Getenv("LOG_HASH_SALT")
	if salt == "" {
		panic("LOG_HASH_SALT must be set")
	}
	if len(salt) < MinHashSaltLength {
		panic(fmt.Sprintf("LOG_HASH_SALT must be at least %d characters", MinHashSaltLength))
	}
	hashSalt = salt
}

// InitHashSaltForTesting sets a fixed salt.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashUserID creates a privacy-preserving hash of a user ID.
// This allows tracking user actions without exposing actual user IDs.
func HashUserID(userID int64) string {
	data := fmt.Sprintf("%d:%s", userID, hashSalt)
	hash := sha256.Sum256([]byte(data))
	// Return first 8 characters for readability
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeText is a general-purpose sanitizer for any user-provided text,
// such as merchant names and descriptions.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	// For short text, show only the length
	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	// For longer text, show prefix and length
	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}
