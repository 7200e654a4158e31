// Package token verifies the HMAC-SHA256 capability tokens NPC agents present
// at handshake. The segment-HMAC scheme mirrors the reconnect-token pattern
// seen in other realtime hubs in the pack (raw crypto/hmac over
// base64url-joined segments, compared in constant time), generalised to a
// three-segment header.payload.signature token with a JSON payload.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// FailureKind enumerates why verification failed.
type FailureKind string

const (
	FailureNone                   FailureKind = ""
	FailureInvalidFormat          FailureKind = "InvalidFormat"
	FailureInvalidSegmentEncoding FailureKind = "InvalidSegmentEncoding"
	FailureInvalidSignature       FailureKind = "InvalidSignature"
	FailureTokenExpired           FailureKind = "TokenExpired"
	FailureSecretMissing          FailureKind = "SecretMissing"
)

// VerifyError reports why VerifyManagerToken failed.
type VerifyError struct {
	Kind FailureKind
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("token verification failed: %s", e.Kind)
}

func fail(kind FailureKind) (*ManagerTokenPayload, error) {
	return nil, &VerifyError{Kind: kind}
}

// ManagerTokenPayload is the decoded payload of a manager token.
type ManagerTokenPayload struct {
	AgentID       string         `json:"agentId,omitempty"`
	Namespace     string         `json:"namespace,omitempty"`
	NamespaceSlug string         `json:"namespaceSlug,omitempty"`
	OfficeID      string         `json:"officeId,omitempty"`
	Exp           *int64         `json:"exp,omitempty"`
	Iat           *int64         `json:"iat,omitempty"`
	Jti           string         `json:"jti,omitempty"`
	Extra         map[string]any `json:"-"`
}

// EffectiveNamespace returns namespaceSlug if set, else namespace.
func (p *ManagerTokenPayload) EffectiveNamespace() string {
	if p.NamespaceSlug != "" {
		return p.NamespaceSlug
	}
	return p.Namespace
}

var base64URLSegment = func(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

// SignManagerToken builds a token of the form base64url(header) + "." +
// base64url(payload) + "." + base64url(HMAC-SHA256(secret, header+"."+payload)).
// Exposed primarily for tests and for tooling that issues tokens in
// development; production token issuance lives outside this system (§1).
func SignManagerToken(secret string, header []byte, payload []byte) string {
	h := base64.RawURLEncoding.EncodeToString(header)
	b := base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(h + "." + b))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return h + "." + b + "." + sig
}

// VerifyManagerToken verifies a compact token against secret and nowSeconds,
// returning the decoded payload on success.
func VerifyManagerToken(tokenString, secret string, nowSeconds int64) (*ManagerTokenPayload, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return fail(FailureInvalidFormat)
	}
	h, b, s := parts[0], parts[1], parts[2]
	if !base64URLSegment(h) || !base64URLSegment(b) || !base64URLSegment(s) {
		return fail(FailureInvalidFormat)
	}

	if secret == "" {
		return fail(FailureSecretMissing)
	}

	sigBytes, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return fail(FailureInvalidSegmentEncoding)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(h + "." + b))
	expected := mac.Sum(nil)

	if len(expected) != len(sigBytes) || !hmac.Equal(expected, sigBytes) {
		return fail(FailureInvalidSignature)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(b)
	if err != nil {
		return fail(FailureInvalidSegmentEncoding)
	}

	var raw map[string]any
	if err := json.Unmarshal(payloadBytes, &raw); err != nil {
		return fail(FailureInvalidSegmentEncoding)
	}

	payload := &ManagerTokenPayload{Extra: map[string]any{}}
	if err := json.Unmarshal(payloadBytes, payload); err != nil {
		return fail(FailureInvalidSegmentEncoding)
	}
	for k, v := range raw {
		switch k {
		case "agentId", "namespace", "namespaceSlug", "officeId", "exp", "iat", "jti":
			continue
		default:
			payload.Extra[k] = v
		}
	}

	if payload.Exp != nil && nowSeconds > *payload.Exp {
		return fail(FailureTokenExpired)
	}

	return payload, nil
}
