// Package registry is a thin typed client over the external Registry
// service that declares offices and agents. Every call is wrapped in a
// circuit breaker (mirroring the teacher's Redis bus pattern) so a degraded
// Registry fails fast instead of piling up slow requests; failures on
// GET/PATCH are logged and swallowed per §7's "reconciliation is eventually
// consistent" propagation policy. The underlying transport is instrumented
// with otelhttp so every outbound call carries a span under whatever tracer
// provider tracing.InitTracer installed.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/metrics"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const requestTimeout = 5 * time.Second

// Client is a Registry HTTP client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func New(baseURL, token string) *Client {
	st := gobreaker.Settings{
		Name:        "registry",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var v float64
			switch to {
			case gobreaker.StateClosed:
				v = 0
			case gobreaker.StateOpen:
				v = 1
			case gobreaker.StateHalfOpen:
				v = 2
			}
			metrics.RegistryCircuitState.Set(v)
		},
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: gobreaker.NewCircuitBreaker(st),
	}
}

func (c *Client) authHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("X-Registry-Service-Token", c.token)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	c.authHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return rawResult{data: data, status: resp.StatusCode}, fmt.Errorf("registry: %s %s returned status %d", method, path, resp.StatusCode)
		}
		return rawResult{data: data, status: resp.StatusCode}, nil
	})

	if rr, ok := result.(rawResult); ok {
		return rr.data, rr.status, err
	}
	return nil, 0, err
}

type rawResult struct {
	data   []byte
	status int
}

// ListOffices fetches every office the Registry declares. On failure, the
// error is logged and an empty slice returned — callers never crash on a
// flaky Registry.
func (c *Client) ListOffices(ctx context.Context) []Office {
	data, status, err := c.do(ctx, http.MethodGet, "/offices", nil)
	metrics.RegistryRequests.WithLabelValues("list_offices", statusLabel(status, err)).Inc()
	if err != nil {
		logging.Warn(ctx, "registry: list offices failed", zap.Error(err))
		return nil
	}
	var offices []Office
	if err := json.Unmarshal(data, &offices); err != nil {
		logging.Warn(ctx, "registry: list offices decode failed", zap.Error(err))
		return nil
	}
	return offices
}

// ListAgents fetches every agent belonging to an office.
func (c *Client) ListAgents(ctx context.Context, officeID string) []Agent {
	data, status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/offices/%s/agents", officeID), nil)
	metrics.RegistryRequests.WithLabelValues("list_agents", statusLabel(status, err)).Inc()
	if err != nil {
		logging.Warn(ctx, "registry: list agents failed", zap.String("officeId", officeID), zap.Error(err))
		return nil
	}
	var agents []Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		logging.Warn(ctx, "registry: list agents decode failed", zap.Error(err))
		return nil
	}
	return agents
}

// PatchAgent patches an agent's last-seen timestamp and metadata. Failures
// are advisory telemetry and are logged, never returned.
func (c *Client) PatchAgent(ctx context.Context, officeID, agentID string, lastSeenAt string, metadata any) {
	body := map[string]any{"lastSeenAt": lastSeenAt, "metadata": metadata}
	_, status, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/offices/%s/agents/%s", officeID, agentID), body)
	metrics.RegistryRequests.WithLabelValues("patch_agent", statusLabel(status, err)).Inc()
	if err != nil {
		logging.Warn(ctx, "registry: patch agent failed", zap.String("officeId", officeID), zap.String("agentId", agentID), zap.Error(err))
	}
}

// PatchOffice patches an office with the live room id assigned to it.
func (c *Client) PatchOffice(ctx context.Context, officeID, skyofficeWorldID string) {
	body := map[string]any{"skyofficeWorldId": skyofficeWorldID}
	_, status, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/offices/%s", officeID), body)
	metrics.RegistryRequests.WithLabelValues("patch_office", statusLabel(status, err)).Inc()
	if err != nil {
		logging.Warn(ctx, "registry: patch office failed", zap.String("officeId", officeID), zap.Error(err))
	}
}

// TenantKeys fetches an office's tenant keys.
func (c *Client) TenantKeys(ctx context.Context, officeID string) []TenantKey {
	data, status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/offices/%s/tenant-keys", officeID), nil)
	metrics.RegistryRequests.WithLabelValues("tenant_keys", statusLabel(status, err)).Inc()
	if err != nil {
		logging.Warn(ctx, "registry: tenant keys failed", zap.String("officeId", officeID), zap.Error(err))
		return nil
	}
	var keys []TenantKey
	if err := json.Unmarshal(data, &keys); err != nil {
		logging.Warn(ctx, "registry: tenant keys decode failed", zap.Error(err))
		return nil
	}
	return keys
}

// RequestPresenceCredential requests a per-agent shared secret. Returns nil
// on any failure (caller treats this tier as unavailable).
func (c *Client) RequestPresenceCredential(ctx context.Context, officeID, agentID string) *Credential {
	data, status, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/offices/%s/presence/agents/%s/credential", officeID, agentID), map[string]any{})
	metrics.RegistryRequests.WithLabelValues("presence_credential", statusLabel(status, err)).Inc()
	if err != nil {
		logging.Warn(ctx, "registry: presence credential failed", zap.String("officeId", officeID), zap.String("agentId", agentID), zap.Error(err))
		return nil
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		logging.Warn(ctx, "registry: presence credential decode failed", zap.Error(err))
		return nil
	}
	return &cred
}

func statusLabel(status int, err error) string {
	if err != nil && status == 0 {
		return "network_error"
	}
	if status >= 200 && status < 300 {
		return "ok"
	}
	return fmt.Sprintf("http_%d", status)
}
