package oclient

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// stateTokenBytes is the amount of randomness in a state token.
const stateTokenBytes = 32

// generateStateToken creates a random URL-safe token for CSRF protection.
func generateStateToken() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// encodeState wraps the serialized state record for transport in a query string.
func encodeState(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}

// decodeState accepts padded and unpadded base64url.
func decodeState(encoded string) (StateData, error) {
	var s StateData
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return s, fmt.Errorf("%w: empty", ErrInvalidState)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if s.State == "" || s.UserID == "" || s.OrgID == "" {
		return s, fmt.Errorf("%w: incomplete payload", ErrInvalidState)
	}
	return s, nil
}
