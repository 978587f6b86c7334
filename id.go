package kvstore

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewClientID generates a random 128-bit identifier rendered as 32 hex
// characters. The transport assigns one per request to callers that do not
// send X-Client-Name, so anonymous callers never share transaction state.
func NewClientID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
