package secretstore

import (
	"context"
	"testing"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	tenantKeys  []registry.TenantKey
	credential  *registry.Credential
	credCalls   int
}

func (f *fakeRegistry) TenantKeys(ctx context.Context, officeID string) []registry.TenantKey {
	return f.tenantKeys
}

func (f *fakeRegistry) RequestPresenceCredential(ctx context.Context, officeID, agentID string) *registry.Credential {
	f.credCalls++
	return f.credential
}

func TestResolve_TenantKeysTier(t *testing.T) {
	reg := &fakeRegistry{
		tenantKeys: []registry.TenantKey{
			{KeyType: "Shared:SkyOffice-Server", Metadata: registry.KeyMeta{Paths: []string{"path/a"}}},
		},
	}
	store := &MemorySecretStore{Blobs: map[string]string{
		"path/a": `{"sharedSecret":"tenant-secret"}`,
	}}
	r := NewResolver(reg, store)

	secret, source := r.Resolve(context.Background(), "agent1", "office1")
	require.Equal(t, "tenant-secret", secret)
	assert.Equal(t, SourceTenantKeys, source)
	assert.Equal(t, 0, reg.credCalls, "per-agent credential tier must not be tried once tenant-keys succeeds")
}

func TestResolve_FallsThroughToPerAgentCredential(t *testing.T) {
	reg := &fakeRegistry{credential: &registry.Credential{SharedSecret: "agent-secret"}}
	r := NewResolver(reg, &MemorySecretStore{})

	secret, source := r.Resolve(context.Background(), "agent1", "office1")
	require.Equal(t, "agent-secret", secret)
	assert.Equal(t, SourceRegistry, source)
}

func TestResolve_CachesWithinTTL(t *testing.T) {
	reg := &fakeRegistry{credential: &registry.Credential{SharedSecret: "agent-secret"}}
	r := NewResolver(reg, &MemorySecretStore{}).WithTTL(50 * time.Millisecond)

	_, _ = r.Resolve(context.Background(), "agent1", "office1")
	_, _ = r.Resolve(context.Background(), "agent1", "office1")
	assert.Equal(t, 1, reg.credCalls, "second resolve within TTL must hit the cache")

	time.Sleep(60 * time.Millisecond)
	_, _ = r.Resolve(context.Background(), "agent1", "office1")
	assert.Equal(t, 2, reg.credCalls, "resolve after TTL expiry must re-query")
}

func TestResolve_NoneFoundReturnsEmpty(t *testing.T) {
	r := NewResolver(&fakeRegistry{}, &MemorySecretStore{})
	secret, source := r.Resolve(context.Background(), "agent1", "office1")
	assert.Empty(t, secret)
	assert.Empty(t, source)
}

func TestExtractSecretFromBlob_KeyValueLines(t *testing.T) {
	blob := "# comment\nSHARED_SECRET=ignored-name\nPRESENCE_SHARED_SECRET=value-1\n"
	assert.Equal(t, "value-1", extractSecretFromBlob(blob))
}
