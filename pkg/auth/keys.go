package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// APIKeyPrefix marks live publisher keys.
	APIKeyPrefix = "pk_live_"

	apiKeyEntropyBytes = 16
	displayPrefixLen   = 12
)

// GenerateAPIKey returns a new random API key along with its lookup hash
// and display prefix.
func GenerateAPIKey() (key, hash, prefix string, err error) {
	raw := make([]byte, apiKeyEntropyBytes)

	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("generating api key: %w", err)
	}

	key = APIKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)

	return key, HashAPIKey(key), DisplayPrefix(key), nil
}

// HashAPIKey returns the hex-encoded SHA-256 of key. Keys are only ever
// stored and looked up by this hash.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the part of key that is safe to show in listings.
func DisplayPrefix(key string) string {
	if len(key) <= displayPrefixLen {
		return key
	}

	return key[:displayPrefixLen]
}
