package secretstore

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/metrics"
	"github.com/AGIoffice/SkyOffice/internal/v1/registry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SourceStatic      = "static"
	SourceTenantKeys  = "tenant-keys"
	SourceRegistry    = "registry"

	defaultTTL = 5 * time.Minute
)

var staticSecretEnvVars = []string{
	"SKYOFFICE_PRESENCE_SHARED_SECRET",
	"SKYOFFICE_PRESENCE_SECRET",
	"PRESENCE_SHARED_SECRET",
	"SHARED_SECRET",
}

var officeIDEnvVars = []string{
	"REGISTRY_OFFICE_ID",
	"OFFICE_ID",
	"SKYOFFICE_OFFICE_ID",
}

// RegistryAPI is the subset of the Registry client the resolver needs.
type RegistryAPI interface {
	TenantKeys(ctx context.Context, officeID string) []registry.TenantKey
	RequestPresenceCredential(ctx context.Context, officeID, agentID string) *registry.Credential
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Resolver resolves the HMAC secret used to verify a manager token for
// (agentId, officeId) through the three-tier chain in §4.C.
type Resolver struct {
	registry RegistryAPI
	store    SecretStore
	ttl      time.Duration

	// redisClient backs the resolve/tenant caches across replicas when set
	// (REDIS_ENABLED=true); nil falls back to the in-process map below, the
	// same nil-safe degrade-to-single-instance shape as the teacher's
	// bus.Service.
	redisClient *redis.Client

	mu            sync.Mutex
	resolveCache  map[string]cacheEntry // "officeId:agentId" -> secret
	tenantCache   map[string]cacheEntry // secret-store path -> blob
	announcedOnce map[string]bool
}

func NewResolver(reg RegistryAPI, store SecretStore) *Resolver {
	return &Resolver{
		registry:      reg,
		store:         store,
		ttl:           defaultTTL,
		resolveCache:  map[string]cacheEntry{},
		tenantCache:   map[string]cacheEntry{},
		announcedOnce: map[string]bool{},
	}
}

// WithTTL overrides the cache TTL, primarily for tests.
func (r *Resolver) WithTTL(ttl time.Duration) *Resolver {
	r.ttl = ttl
	return r
}

// WithRedis backs the resolver's caches with a shared Redis instance so
// replicas don't each re-resolve the same office/agent secret. Passing nil
// leaves the resolver on its in-process cache (single-instance mode).
func (r *Resolver) WithRedis(client *redis.Client) *Resolver {
	r.redisClient = client
	return r
}

// Resolve returns the secret and the tier that produced it, or ("", "") if
// no tier yielded a secret. A cache hit reports the source "cache"; the tier
// that originally produced a cached secret is not recorded.
func (r *Resolver) Resolve(ctx context.Context, agentID, officeID string) (string, string) {
	if officeID == "" {
		officeID = firstNonEmptyEnv(officeIDEnvVars)
	}

	cacheKey := officeID + ":" + strings.ToLower(agentID)
	if v, ok := r.getCached(ctx, "resolve", r.resolveCache, cacheKey); ok {
		return v, "cache"
	}

	if secret := r.resolveStatic(); secret != "" {
		r.setCached(ctx, "resolve", r.resolveCache, cacheKey, secret)
		metrics.SecretResolutions.WithLabelValues(SourceStatic).Inc()
		return secret, SourceStatic
	}

	if secret := r.resolveTenantKeys(ctx, officeID); secret != "" {
		r.setCached(ctx, "resolve", r.resolveCache, cacheKey, secret)
		metrics.SecretResolutions.WithLabelValues(SourceTenantKeys).Inc()
		return secret, SourceTenantKeys
	}

	if secret := r.resolvePerAgentCredential(ctx, officeID, agentID); secret != "" {
		r.setCached(ctx, "resolve", r.resolveCache, cacheKey, secret)
		metrics.SecretResolutions.WithLabelValues(SourceRegistry).Inc()
		return secret, SourceRegistry
	}

	return "", ""
}

func (r *Resolver) resolveStatic() string {
	return firstNonEmptyEnv(staticSecretEnvVars)
}

func (r *Resolver) resolveTenantKeys(ctx context.Context, officeID string) string {
	if officeID == "" || r.registry == nil {
		return ""
	}
	keys := r.registry.TenantKeys(ctx, officeID)
	var target *registry.TenantKey
	for i := range keys {
		if strings.ToLower(keys[i].KeyType) == "shared:skyoffice-server" {
			target = &keys[i]
			break
		}
	}
	if target == nil {
		return ""
	}

	var path string
	if len(target.Metadata.Paths) > 0 {
		path = target.Metadata.Paths[0]
	} else if target.Metadata.SecretsPath != "" {
		path = target.Metadata.SecretsPath
	}
	if path == "" {
		return ""
	}

	blob, err := r.fetchTenantBlob(ctx, path)
	if err != nil {
		logging.Warn(ctx, "secretstore: tenant secret blob fetch failed", zap.String("officeId", officeID), zap.Error(err))
		return ""
	}

	secret := extractSecretFromBlob(blob)
	if secret != "" && !r.announcedOnce[path] {
		r.announcedOnce[path] = true
		logging.Info(ctx, "secretstore: loaded tenant secret", zap.String("path", path), zap.String("officeId", officeID))
	}
	return secret
}

func (r *Resolver) fetchTenantBlob(ctx context.Context, path string) (string, error) {
	if v, ok := r.getCached(ctx, "tenant", r.tenantCache, path); ok {
		return v, nil
	}
	if r.store == nil {
		return "", nil
	}
	blob, err := r.store.GetSecretBlob(ctx, path)
	if err != nil {
		return "", err
	}
	r.setCached(ctx, "tenant", r.tenantCache, path, blob)
	return blob, nil
}

func (r *Resolver) resolvePerAgentCredential(ctx context.Context, officeID, agentID string) string {
	if officeID == "" || agentID == "" || r.registry == nil {
		return ""
	}
	cred := r.registry.RequestPresenceCredential(ctx, officeID, agentID)
	if cred == nil {
		return ""
	}
	return cred.Secret()
}

// redisKey namespaces a cache entry so the resolve and tenant tiers don't
// collide in a shared Redis keyspace.
func redisKey(tier, key string) string {
	return "skyoffice:secretstore:" + tier + ":" + key
}

func (r *Resolver) getCached(ctx context.Context, tier string, cache map[string]cacheEntry, key string) (string, bool) {
	if r.redisClient != nil {
		v, err := r.redisClient.Get(ctx, redisKey(tier, key)).Result()
		if err == nil {
			return v, true
		}
		if err != redis.Nil {
			logging.Warn(ctx, "secretstore: redis cache read failed, falling back to in-process cache", zap.String("tier", tier), zap.Error(err))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := cache[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (r *Resolver) setCached(ctx context.Context, tier string, cache map[string]cacheEntry, key, value string) {
	if r.redisClient != nil {
		if err := r.redisClient.Set(ctx, redisKey(tier, key), value, r.ttl).Err(); err != nil {
			logging.Warn(ctx, "secretstore: redis cache write failed, falling back to in-process cache", zap.String("tier", tier), zap.Error(err))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cache[key] = cacheEntry{value: value, expiresAt: time.Now().Add(r.ttl)}
}

// extractSecretFromBlob parses the secret-store blob as JSON or KEY=VALUE
// lines and selects the first recognised key, per §4.C.
func extractSecretFromBlob(blob string) string {
	trimmed := strings.TrimSpace(blob)
	if trimmed == "" {
		return ""
	}

	if trimmed[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			for _, key := range []string{
				"SKYOFFICE_PRESENCE_SHARED_SECRET",
				"SKYOFFICE_PRESENCE_SECRET",
				"PRESENCE_SHARED_SECRET",
				"sharedSecret",
				"shared_secret",
			} {
				if v, ok := obj[key].(string); ok && v != "" {
					return v
				}
			}
			return ""
		}
	}

	kv := map[string]string{}
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		kv[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	for _, key := range []string{
		"SKYOFFICE_PRESENCE_SHARED_SECRET",
		"SKYOFFICE_PRESENCE_SECRET",
		"PRESENCE_SHARED_SECRET",
		"sharedSecret",
		"shared_secret",
	} {
		if v := kv[key]; v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyEnv(keys []string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
