package reconciler

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/AGIoffice/SkyOffice/internal/v1/registry"
)

var nonIdentifierChars = regexp.MustCompile(`[^a-z0-9-]+`)
var dashRuns = regexp.MustCompile(`-{2,}`)

// parseMetadata best-effort decodes a Registry metadata blob; malformed or
// absent metadata yields an empty map rather than an error, since metadata
// is treated as an opaque pass-through value (§9).
func parseMetadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func deepCloneMetadata(m map[string]any) map[string]any {
	b, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func numberField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key].(float64)
	return v, ok
}

func mapField(m map[string]any, key string) map[string]any {
	v, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	return v
}

func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sanitiseLabel turns an arbitrary identifier candidate into a DNS-label-safe
// token: lowercase, non [a-z0-9-] runs collapsed to a single '-', leading and
// trailing '-' trimmed, "agent" if that leaves nothing.
func sanitiseLabel(s string) string {
	s = strings.ToLower(s)
	s = nonIdentifierChars.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "agent"
	}
	return s
}

// deriveAgentDomainIdentifier implements §4.H's identifier derivation
// priority chain, producing the dotted domain identifier used as the NPC's
// presence agentId.
func deriveAgentDomainIdentifier(agent registry.Agent, office registry.Office, officeBaseDomain string) string {
	meta := parseMetadata(agent.Metadata)

	candidate := firstNonEmptyString(
		stringField(meta, "defaultAgentDomain"),
		stringField(meta, "agentDomain"),
		stringField(meta, "domain"),
		agent.AgentIdentifier,
		stringField(meta, "defaultAgentId"),
		stringField(meta, "agentIdentifier"),
		agent.ID,
	)

	if strings.Contains(candidate, ".") {
		return strings.ToLower(candidate)
	}

	label := sanitiseLabel(candidate)
	if office.Domain != "" {
		return label + "." + strings.ToLower(office.Domain)
	}

	slug := normalizeOfficeSlug(office)
	if slug == "" {
		slug = "office"
	}
	base := officeBaseDomain
	if base == "" {
		base = "office.xyz"
	}
	return label + "." + slug + "." + base
}
