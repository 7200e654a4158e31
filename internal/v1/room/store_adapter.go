package room

import (
	"context"
	"encoding/json"

	"github.com/AGIoffice/SkyOffice/internal/v1/store"
)

// StoreAdapter satisfies the room package's persistence interface on top of
// the generic §4.D store, translating between the Room's in-memory shapes
// and the store's flat row types.
type StoreAdapter struct {
	Store *store.Store
}

func (a *StoreAdapter) SaveRoomRow(ctx context.Context, name, description string, passwordHash *string, autoDispose bool) error {
	return a.Store.SaveRoom(ctx, store.RoomRow{
		Name:        name,
		Description: description,
		Password:    passwordHash,
		AutoDispose: autoDispose,
	})
}

func (a *StoreAdapter) DeleteRoomRow(ctx context.Context, name string) error {
	return a.Store.DeleteRoomByName(ctx, name)
}

func (a *StoreAdapter) SaveNpcRow(ctx context.Context, n NpcAssignment) error {
	metaJSON := ""
	if n.AgentMetadata != nil {
		if b, err := json.Marshal(n.AgentMetadata); err == nil {
			metaJSON = string(b)
		}
	}
	return a.Store.SaveNpc(ctx, store.NpcRow{
		AgentID:         n.AgentID,
		RegistryAgentID: n.RegistryAgentID,
		OfficeID:        n.OfficeID,
		Name:            n.Name,
		AvatarID:        n.AvatarID,
		WorkstationID:   n.WorkstationID,
		PositionX:       n.Position.X,
		PositionY:       n.Position.Y,
		Role:            n.Role,
		ComputerID:      n.ComputerID,
		RoomName:        n.RoomID,
		VoiceAgentID:    n.VoiceAgentID,
		NamespaceSlug:   n.NamespaceSlug,
		AgentMetadata:   metaJSON,
	})
}

func (a *StoreAdapter) RemoveNpcRow(ctx context.Context, agentID string) error {
	return a.Store.RemoveNpc(ctx, agentID)
}

// NpcRowsForRoom returns the persisted NPC rows whose roomName matches, as
// NpcPayload values ready to be replayed through upsertNpc during
// rehydration.
func (a *StoreAdapter) NpcRowsForRoom(ctx context.Context, roomName string) ([]NpcPayload, error) {
	all, err := a.Store.AllNpcs(ctx)
	if err != nil {
		return nil, err
	}
	var out []NpcPayload
	for _, row := range all {
		if row.RoomName != roomName {
			continue
		}
		var meta map[string]any
		if row.AgentMetadata != "" {
			_ = json.Unmarshal([]byte(row.AgentMetadata), &meta) // nil on parse failure, per §4.D
		}
		out = append(out, NpcPayload{
			AgentID:         row.AgentID,
			RegistryAgentID: row.RegistryAgentID,
			OfficeID:        row.OfficeID,
			Name:            row.Name,
			AvatarID:        row.AvatarID,
			WorkstationID:   row.WorkstationID,
			Position:        &Point{X: row.PositionX, Y: row.PositionY},
			Role:            row.Role,
			VoiceAgentID:    row.VoiceAgentID,
			NamespaceSlug:   row.NamespaceSlug,
			AgentMetadata:   meta,
			ComputerID:      row.ComputerID,
		})
	}
	return out, nil
}
