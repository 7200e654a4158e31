package reconciler

import (
	"strings"

	"github.com/AGIoffice/SkyOffice/internal/v1/registry"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
)

// buildNpcPayload assembles the NPC upsert payload for one Registry agent,
// per §4.H's "NPC payload assembly" rule.
func buildNpcPayload(agent registry.Agent, office registry.Office, identifier, namespaceSlug, defaultVoiceAgentID string) room.NpcPayload {
	meta := parseMetadata(agent.Metadata)

	spawn := mapField(meta, "spawn")
	if spawn == nil {
		spawn = mapField(meta, "spawnConfig")
	}
	if spawn == nil {
		spawn = meta
	}

	pos := room.Point{X: 800, Y: 200}
	if posMap := mapField(spawn, "position"); posMap != nil {
		if x, ok := numberField(posMap, "x"); ok {
			pos.X = x
		}
		if y, ok := numberField(posMap, "y"); ok {
			pos.Y = y
		}
	} else {
		if x, ok := numberField(spawn, "x"); ok {
			pos.X = x
		}
		if y, ok := numberField(spawn, "y"); ok {
			pos.Y = y
		}
	}

	workstationID := stringField(spawn, "workstationId")
	if workstationID == "" {
		workstationID = "design-studio"
	}

	role := firstNonEmptyString(agent.Role, stringField(spawn, "role"), "GM")

	voiceAgentID := firstNonEmptyString(stringField(spawn, "voiceAgentId"), agent.AgentEmail, defaultVoiceAgentID)

	displayName := firstNonEmptyString(stringField(meta, "displayName"), agent.AgentEmail, agent.ID)
	nickname := firstNonEmptyString(stringField(meta, "nickname"), stringField(meta, "alias"))

	enriched := deepCloneMetadata(meta)
	enriched["displayName"] = displayName
	if nickname != "" {
		enriched["nickname"] = nickname
	}
	if agent.AgentEmail != "" {
		enriched["defaultAgentEmail"] = agent.AgentEmail
	}

	officeMeta := parseMetadata(office.Metadata)
	officeDefaultAgentID := stringField(officeMeta, "defaultAgentId")
	isDefault := boolField(meta, "default") || (officeDefaultAgentID != "" && strings.EqualFold(officeDefaultAgentID, agent.ID))
	if isDefault {
		enriched["default"] = true
		enriched["defaultAgentId"] = agent.ID
		enriched["defaultAgentDomain"] = identifier
		enriched["agentDomain"] = identifier
	}

	return room.NpcPayload{
		AgentID:         identifier,
		RegistryAgentID: agent.ID,
		OfficeID:        office.OfficeID,
		Name:            displayName,
		AvatarID:        agent.AvatarID,
		WorkstationID:   workstationID,
		Position:        &pos,
		Role:            role,
		VoiceAgentID:    voiceAgentID,
		NamespaceSlug:   namespaceSlug,
		AgentMetadata:   enriched,
	}
}
