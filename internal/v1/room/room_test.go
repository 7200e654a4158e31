package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(t *testing.T, cfg Config) *Room {
	t.Helper()
	if cfg.ID == "" {
		cfg.ID = "room-1"
	}
	if cfg.Name == "" {
		cfg.Name = "Public Lobby"
	}
	if cfg.NamespaceSlug == "" {
		cfg.NamespaceSlug = "acme"
	}
	rm, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return rm
}

func TestNew_SeedsFixedSeatsAndMetadata(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})
	assert.Len(t, rm.computers, numComputers)
	assert.Len(t, rm.whiteboards, numWhiteboards)
	assert.False(t, rm.Metadata["hasPassword"].(bool))
}

func TestNew_HashesPlaintextPassword(t *testing.T) {
	rm := newTestRoom(t, Config{PlaintextPassword: "hunter2", Directory: newFakeDirectory(), Store: newFakeStore()})
	require.NotNil(t, rm.PasswordHash)
	assert.True(t, rm.CheckPassword("hunter2"))
	assert.False(t, rm.CheckPassword("wrong"))
}

func TestNew_NoPasswordAlwaysChecksTrue(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})
	assert.True(t, rm.CheckPassword(""))
	assert.True(t, rm.CheckPassword("anything"))
}

func TestNew_RegistersInDirectory(t *testing.T) {
	dir := newFakeDirectory()
	rm := newTestRoom(t, Config{ID: "room-xyz", Directory: dir, Store: newFakeStore()})
	assert.Same(t, rm, dir.registered["room-xyz"])
}

func TestNew_RegistryBackedPatchesOffice(t *testing.T) {
	reg := &fakeRegistryClient{}
	newTestRoom(t, Config{RegistryBacked: true, OfficeID: "office-1", Directory: newFakeDirectory(), Store: newFakeStore(), Registry: reg})
	assert.Equal(t, []string{"office-1"}, reg.patchedOffices)
}

func TestDispose_UnregistersAndClearsState(t *testing.T) {
	dir := newFakeDirectory()
	rm := newTestRoom(t, Config{ID: "room-1", Directory: dir, Store: newFakeStore()})
	rm.UpsertNpc(context.Background(), NpcPayload{AgentID: "a1", Name: "Ada"}, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})

	rm.Dispose(context.Background())

	_, stillRegistered := dir.registered["room-1"]
	assert.False(t, stillRegistered)
	_, found := rm.FindNpc("a1")
	assert.False(t, found)
}

func TestDispose_CompareOnDelete_DoesNotEvictReplacementRoom(t *testing.T) {
	dir := newFakeDirectory()
	rm1 := newTestRoom(t, Config{ID: "room-1", Directory: dir, Store: newFakeStore()})
	rm2 := newTestRoom(t, Config{ID: "room-1", Directory: dir, Store: newFakeStore()})

	rm1.Dispose(context.Background())

	assert.Same(t, rm2, dir.registered["room-1"])
}

func TestOnlineCounts(t *testing.T) {
	rm := newTestRoom(t, Config{Directory: newFakeDirectory(), Store: newFakeStore()})
	rm.OnJoin(context.Background(), &fakeClient{key: "sess-1"}, &AuthResult{})
	rm.UpsertNpc(context.Background(), NpcPayload{AgentID: "a1", Name: "Ada"}, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})

	clients, npcs, total := rm.OnlineCounts()
	assert.Equal(t, 1, clients)
	assert.Equal(t, 1, npcs)
	assert.Equal(t, 2, total)
}
