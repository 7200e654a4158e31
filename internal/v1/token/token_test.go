package token

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(t *testing.T, secret string, payload map[string]any) string {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return SignManagerToken(secret, []byte(`{"alg":"HS256"}`), b)
}

func TestVerifyManagerToken_RoundTrip(t *testing.T) {
	secret := "s3cr3t"
	tok := signPayload(t, secret, map[string]any{
		"agentId":   "agent.alpha.office.xyz",
		"namespace": "alpha",
		"officeId":  "office-1",
	})

	payload, err := VerifyManagerToken(tok, secret, 1000)
	require.NoError(t, err)
	assert.Equal(t, "agent.alpha.office.xyz", payload.AgentID)
	assert.Equal(t, "alpha", payload.Namespace)
	assert.Equal(t, "office-1", payload.OfficeID)
}

func TestVerifyManagerToken_WrongSecretFails(t *testing.T) {
	tok := signPayload(t, "right-secret", map[string]any{"agentId": "a"})
	_, err := VerifyManagerToken(tok, "wrong-secret", 1000)
	require.Error(t, err)
	ve, ok := err.(*VerifyError)
	require.True(t, ok)
	assert.Equal(t, FailureInvalidSignature, ve.Kind)
}

func TestVerifyManagerToken_TamperedSegmentFails(t *testing.T) {
	tok := signPayload(t, "secret", map[string]any{"agentId": "a"})
	tampered := tok[:len(tok)-1] + "x"
	_, err := VerifyManagerToken(tampered, "secret", 1000)
	require.Error(t, err)
}

func TestVerifyManagerToken_ExpiredFails(t *testing.T) {
	exp := int64(500)
	tok := signPayload(t, "secret", map[string]any{"agentId": "a", "exp": exp})
	_, err := VerifyManagerToken(tok, "secret", 1000)
	require.Error(t, err)
	ve := err.(*VerifyError)
	assert.Equal(t, FailureTokenExpired, ve.Kind)
}

func TestVerifyManagerToken_FutureExpPasses(t *testing.T) {
	exp := int64(2000)
	tok := signPayload(t, "secret", map[string]any{"agentId": "a", "exp": exp})
	_, err := VerifyManagerToken(tok, "secret", 1000)
	require.NoError(t, err)
}

func TestVerifyManagerToken_InvalidFormat(t *testing.T) {
	_, err := VerifyManagerToken("not-a-token", "secret", 0)
	require.Error(t, err)
	ve := err.(*VerifyError)
	assert.Equal(t, FailureInvalidFormat, ve.Kind)
}

func TestVerifyManagerToken_SecretMissing(t *testing.T) {
	tok := signPayload(t, "secret", map[string]any{"agentId": "a"})
	_, err := VerifyManagerToken(tok, "", 0)
	require.Error(t, err)
	ve := err.(*VerifyError)
	assert.Equal(t, FailureSecretMissing, ve.Kind)
}
