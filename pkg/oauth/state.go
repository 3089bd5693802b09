package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/staylens-io/staylens-engine/pkg/models"
)

// DefaultStateTTL bounds how long an authorization round-trip may take.
const DefaultStateTTL = 15 * time.Minute

// StateCodec signs and verifies the OAuth state parameter. The callback
// endpoint is public and stateless, so the project identity must survive the
// round trip through the provider inside the state itself.
type StateCodec struct {
	key []byte
	ttl time.Duration
}

// NewStateCodec creates a codec from the signing key.
func NewStateCodec(key string, ttl time.Duration) *StateCodec {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateCodec{key: []byte(key), ttl: ttl}
}

type statePayload struct {
	ProjectID uuid.UUID         `json:"pid"`
	Source    models.SourceType `json:"src"`
	Nonce     string            `json:"n"`
	ExpiresAt int64             `json:"exp"`
}

// Encode produces base64url(payload) + "." + base64url(hmac-sha256).
func (c *StateCodec) Encode(projectID uuid.UUID, source models.SourceType) (string, error) {
	payload := statePayload{
		ProjectID: projectID,
		Source:    source,
		Nonce:     uuid.NewString(),
		ExpiresAt: time.Now().Add(c.ttl).Unix(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(data)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies the signature and expiry and recovers the project identity.
func (c *StateCodec) Decode(state string) (uuid.UUID, models.SourceType, error) {
	encoded, sig, found := strings.Cut(state, ".")
	if !found {
		return uuid.Nil, "", fmt.Errorf("malformed state parameter")
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(encoded))) {
		return uuid.Nil, "", fmt.Errorf("state signature mismatch")
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to decode state: %w", err)
	}
	var payload statePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if time.Now().Unix() > payload.ExpiresAt {
		return uuid.Nil, "", fmt.Errorf("state expired")
	}
	if !payload.Source.Valid() {
		return uuid.Nil, "", fmt.Errorf("unknown source %q in state", payload.Source)
	}
	return payload.ProjectID, payload.Source, nil
}

func (c *StateCodec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
