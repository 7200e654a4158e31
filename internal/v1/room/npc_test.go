package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertNpc_SeatsAtResolvableWorkstation(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})

	a := rm.UpsertNpc(context.Background(), NpcPayload{
		AgentID:       "a.x.office.xyz",
		Name:          "Ada",
		AvatarID:      "adam",
		WorkstationID: "design-studio",
		Position:      &Point{X: 800, Y: 200},
	}, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})

	require.NotNil(t, a)
	assert.Equal(t, "design-studio", a.ComputerID)
	assert.Equal(t, "GM", a.Role)

	player, ok := rm.players[npcPlayerKey("a.x.office.xyz")]
	require.True(t, ok)
	assert.Equal(t, "adam_sit_down", player.Anim)

	seatCount := 0
	for _, c := range rm.computers {
		if _, occupied := c.ConnectedUser[npcPlayerKey("a.x.office.xyz")]; occupied {
			seatCount++
		}
	}
	assert.Equal(t, 1, seatCount, "the NPC must occupy exactly one computer seat")
}

func TestUpsertNpc_UnresolvableWorkstationLeavesUnseatedWithIdleAnim(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})

	a := rm.UpsertNpc(context.Background(), NpcPayload{
		AgentID:       "agent-1",
		AvatarID:      "eve",
		WorkstationID: "nonexistent-seat",
	}, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})

	assert.Empty(t, a.ComputerID)
	player := rm.players[npcPlayerKey("agent-1")]
	assert.Equal(t, "eve_idle_down", player.Anim)
}

func TestUpsertNpc_IsIdempotentOnAgentID(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})
	ctx := context.Background()

	rm.UpsertNpc(ctx, NpcPayload{AgentID: "agent-1", Name: "Ada"}, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})
	rm.UpsertNpc(ctx, NpcPayload{AgentID: "agent-1", Name: "Ada Lovelace"}, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})

	assert.Len(t, rm.npcAssignments, 1)
	a, ok := rm.FindNpc("agent-1")
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", a.Name)
}

func TestRemoveNpc_DeletesAssignmentPlayerAndSeat(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})
	ctx := context.Background()

	rm.UpsertNpc(ctx, NpcPayload{AgentID: "agent-1", WorkstationID: "design-studio"}, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})
	rm.RemoveNpc(ctx, "agent-1")

	_, found := rm.FindNpc("agent-1")
	assert.False(t, found)
	_, hasPlayer := rm.players[npcPlayerKey("agent-1")]
	assert.False(t, hasPlayer)
	for _, c := range rm.computers {
		_, occupied := c.ConnectedUser[npcPlayerKey("agent-1")]
		assert.False(t, occupied)
	}
}

func TestRemoveNpc_PatchesRegistryWithInvertedPresence(t *testing.T) {
	reg := &fakeRegistryClient{}
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore(), Registry: reg})
	ctx := context.Background()

	rm.UpsertNpc(ctx, NpcPayload{AgentID: "agent-1", OfficeID: "office-1"}, UpsertOptions{SkipPersistence: true})
	rm.RemoveNpc(ctx, "agent-1")

	assert.Contains(t, reg.patchedAgents, "agent-1")
}

func TestUpdateNpcState_PostureSitSetsSitAnim(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})
	ctx := context.Background()
	rm.UpsertNpc(ctx, NpcPayload{AgentID: "agent-1", AvatarID: "adam"}, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})

	posture := "sit"
	rm.UpdateNpcState(ctx, "agent-1", NpcStatePatch{Posture: &posture})

	player := rm.players[npcPlayerKey("agent-1")]
	assert.Equal(t, "adam_sit_down", player.Anim)
}

func TestUpdateNpcState_UnknownAgentReturnsNil(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})
	result := rm.UpdateNpcState(context.Background(), "ghost", NpcStatePatch{})
	assert.Nil(t, result)
}

func TestRehydrate_ReplaysPersistedRowsForThisRoomOnly(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	store.rows["agent-1"] = NpcAssignment{AgentID: "agent-1", RoomID: "Public Lobby", Name: "Ada"}
	store.rows["agent-2"] = NpcAssignment{AgentID: "agent-2", RoomID: "Other Room", Name: "Bob"}

	rm := newTestRoom(t, Config{Name: "Public Lobby", Directory: newFakeDirectory(), Store: store})
	rm.Rehydrate(ctx)

	_, found1 := rm.FindNpc("agent-1")
	_, found2 := rm.FindNpc("agent-2")
	assert.True(t, found1)
	assert.False(t, found2)
}

func TestRehydrate_IsIdempotent(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	store.rows["agent-1"] = NpcAssignment{AgentID: "agent-1", RoomID: "Public Lobby"}

	rm := newTestRoom(t, Config{Name: "Public Lobby", Directory: newFakeDirectory(), Store: store})
	rm.Rehydrate(ctx)
	rm.RemoveNpc(ctx, "agent-1")
	rm.Rehydrate(ctx)

	_, found := rm.FindNpc("agent-1")
	assert.False(t, found, "a second Rehydrate call must not resurrect a removed NPC")
}
