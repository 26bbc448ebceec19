package oauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// verifierTailLength is how much of the code verifier is embedded in the
// state blob. The tail is compared on callback as defense in depth; the
// verifier used for the exchange is always the stored one.
const verifierTailLength = 8

// State is the payload packed into the OAuth state parameter. It is encoded
// opaquely so the provider returns it unmodified.
type State struct {
	SessionID    string `json:"sessionId"`
	VerifierTail string `json:"verifierTail"`
}

// NewState builds the state payload for a session and its verifier.
func NewState(sessionID, codeVerifier string) State {
	tail := codeVerifier
	if len(tail) > verifierTailLength {
		tail = tail[len(tail)-verifierTailLength:]
	}
	return State{SessionID: sessionID, VerifierTail: tail}
}

// Encode serializes the state as base64url(JSON).
func (s State) Encode() string {
	raw, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeState parses an encoded state blob.
func DecodeState(encoded string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		// Some providers re-encode with padding; try the padded form too.
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return State{}, fmt.Errorf("oauth: undecodable state: %w", err)
		}
	}

	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("oauth: malformed state payload: %w", err)
	}
	if s.SessionID == "" {
		return State{}, fmt.Errorf("oauth: state missing session id")
	}
	return s, nil
}

// MatchesVerifier reports whether the embedded tail matches the stored
// verifier. A mismatch is logged as a warning by the caller but does not
// abort the exchange.
func (s State) MatchesVerifier(codeVerifier string) bool {
	return NewState(s.SessionID, codeVerifier).VerifierTail == s.VerifierTail
}
