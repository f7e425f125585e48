package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewEventID generates a random 32-character hexadecimal event ID.
func NewEventID() string {
	b := make([]byte, 16)

	if _, err := rand.Read(b); err != nil {
		// Only possible if the OS entropy source is broken.
		panic(fmt.Errorf("protocol: rand error: %v", err))
	}

	return hex.EncodeToString(b)
}
