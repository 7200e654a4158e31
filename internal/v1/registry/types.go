package registry

import "encoding/json"

// Office is a Registry-declared office/namespace.
type Office struct {
	OfficeID      string          `json:"officeId"`
	NamespaceSlug string          `json:"namespaceSlug"`
	Domain        string          `json:"domain,omitempty"`
	DisplayName   string          `json:"displayName,omitempty"`
	Status        string          `json:"status,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Agent is a Registry-declared NPC persona.
type Agent struct {
	ID              string          `json:"id"`
	AgentIdentifier string          `json:"agentIdentifier,omitempty"`
	AvatarID        string          `json:"avatarId,omitempty"`
	Role            string          `json:"role,omitempty"`
	AgentEmail      string          `json:"agentEmail,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// TenantKey is one entry in an office's tenant-keys list.
type TenantKey struct {
	KeyType  string   `json:"keyType"`
	Metadata KeyMeta  `json:"metadata"`
}

type KeyMeta struct {
	Paths       []string `json:"paths,omitempty"`
	SecretsPath string   `json:"secretsPath,omitempty"`
}

// Credential is the response of a per-agent presence credential request.
type Credential struct {
	SharedSecret      string `json:"sharedSecret,omitempty"`
	SharedSecretSnake string `json:"shared_secret,omitempty"`
}

func (c Credential) Secret() string {
	if c.SharedSecret != "" {
		return c.SharedSecret
	}
	return c.SharedSecretSnake
}
