package directory

import (
	"context"

	"github.com/AGIoffice/SkyOffice/internal/v1/store"
)

// StoreAdapter satisfies PersistenceBackend on top of the generic §4.D
// store, used during namespace teardown to purge residual room and NPC
// rows that outlive the in-memory Room instances.
type StoreAdapter struct {
	Store *store.Store
}

func (a *StoreAdapter) DeleteRoomRow(ctx context.Context, roomName string) error {
	return a.Store.DeleteRoomByName(ctx, roomName)
}

func (a *StoreAdapter) RemoveNpcRow(ctx context.Context, agentID string) error {
	return a.Store.RemoveNpc(ctx, agentID)
}

func (a *StoreAdapter) ListNpcRefs(ctx context.Context) ([]PersistedNpcRef, error) {
	rows, err := a.Store.AllNpcs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PersistedNpcRef, 0, len(rows))
	for _, row := range rows {
		out = append(out, PersistedNpcRef{
			AgentID:       row.AgentID,
			NamespaceSlug: row.NamespaceSlug,
			RoomName:      row.RoomName,
		})
	}
	return out, nil
}
