package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const PublishableKeyPrefix = "pk_live_"

// NewPublishableKey returns "pk_live_" followed by 16 random bytes in hex.
func NewPublishableKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return PublishableKeyPrefix + hex.EncodeToString(b), nil
}
