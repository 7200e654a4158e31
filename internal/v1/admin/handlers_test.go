package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/directory"
	"github.com/AGIoffice/SkyOffice/internal/v1/mapdata"
	"github.com/AGIoffice/SkyOffice/internal/v1/registry"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistryAPI struct {
	offices []registry.Office
	agents  map[string][]registry.Agent
}

func (f *fakeRegistryAPI) ListOffices(ctx context.Context) []registry.Office { return f.offices }
func (f *fakeRegistryAPI) ListAgents(ctx context.Context, officeID string) []registry.Agent {
	return f.agents[officeID]
}

func newTestRouter(t *testing.T, dir *directory.Directory, reg RegistryAPI) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rl, err := NewRateLimiter("1000-M", "1000-M", "1000-M", nil)
	require.NoError(t, err)
	return Router(Deps{Directory: dir, Registry: reg, StartedAt: time.Now()}, rl, []string{"*"})
}

func newTestRouterWithGrid(t *testing.T, dir *directory.Directory, reg RegistryAPI, grid *mapdata.Grid) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rl, err := NewRateLimiter("1000-M", "1000-M", "1000-M", nil)
	require.NoError(t, err)
	return Router(Deps{Directory: dir, Registry: reg, Grid: grid, StartedAt: time.Now()}, rl, []string{"*"})
}

func newRoom(t *testing.T, dir *directory.Directory, id, slug string) *room.Room {
	t.Helper()
	rm, err := room.New(context.Background(), room.Config{ID: id, Name: id, NamespaceSlug: slug, Directory: dir})
	require.NoError(t, err)
	return rm
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz_ReportsActiveRoomCount(t *testing.T) {
	dir := directory.New(directory.Config{})
	newRoom(t, dir, "room-1", "alpha")
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["rooms"])
}

func TestDeployCharacter_UpsertsIntoNamedRoom(t *testing.T) {
	dir := directory.New(directory.Config{})
	newRoom(t, dir, "room-1", "alpha")
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodPost, "/api/deploy-character", map[string]any{
		"agentId":       "agent-1",
		"name":          "Secretary",
		"avatarId":      "adam",
		"workstationId": "exec-suite",
		"namespaceSlug": "alpha",
	})

	require.Equal(t, http.StatusOK, w.Code)
	rm, ok := dir.RoomByNamespace("alpha")
	require.True(t, ok)
	assignments := rm.ListNpcAssignments()
	require.Len(t, assignments, 1)
	assert.Equal(t, "agent-1", assignments[0].AgentID)
	assert.Equal(t, 705.0, assignments[0].Position.X)
}

func TestDeployCharacter_MissingAgentIdIsRejected(t *testing.T) {
	dir := directory.New(directory.Config{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodPost, "/api/deploy-character", map[string]any{"name": "x"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeployCharacter_NoRoomAvailableReturns503(t *testing.T) {
	dir := directory.New(directory.Config{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodPost, "/api/deploy-character", map[string]any{
		"agentId": "agent-1", "name": "x", "avatarId": "a", "workstationId": "w",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListNpcs_FlattensAcrossRooms(t *testing.T) {
	dir := directory.New(directory.Config{})
	rm1 := newRoom(t, dir, "room-1", "alpha")
	rm2 := newRoom(t, dir, "room-2", "beta")
	rm1.UpsertNpc(context.Background(), room.NpcPayload{AgentID: "a1"}, room.UpsertOptions{})
	rm2.UpsertNpc(context.Background(), room.NpcPayload{AgentID: "a2"}, room.UpsertOptions{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodGet, "/api/npcs", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	npcs, ok := body["npcs"].([]any)
	require.True(t, ok)
	assert.Len(t, npcs, 2)
}

func TestRoomByNamespace_ReturnsOnlineCounts(t *testing.T) {
	dir := directory.New(directory.Config{})
	newRoom(t, dir, "room-1", "alpha")
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodGet, "/api/rooms/by-namespace/alpha", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoomByNamespace_UnknownReturns404(t *testing.T) {
	dir := directory.New(directory.Config{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodGet, "/api/rooms/by-namespace/ghost", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOfficeAgents_PrefersRegistryOverFallback(t *testing.T) {
	dir := directory.New(directory.Config{})
	reg := &fakeRegistryAPI{
		offices: []registry.Office{{OfficeID: "office-1"}},
		agents:  map[string][]registry.Agent{"office-1": {{ID: "agent-1"}}},
	}
	router := newTestRouter(t, dir, reg)

	w := doJSON(t, router, http.MethodGet, "/api/offices/office-1/agents", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "registry", body["source"])
}

func TestOfficeAgents_FallsBackToLocalAssignments(t *testing.T) {
	dir := directory.New(directory.Config{})
	rm := newRoom(t, dir, "room-1", "alpha")
	rm.UpsertNpc(context.Background(), room.NpcPayload{AgentID: "a1", OfficeID: "office-1"}, room.UpsertOptions{})
	reg := &fakeRegistryAPI{offices: []registry.Office{{OfficeID: "office-1"}}}
	router := newTestRouter(t, dir, reg)

	w := doJSON(t, router, http.MethodGet, "/api/offices/office-1/agents", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "local-fallback", body["source"])
}

func TestOfficeAgents_UnknownOfficeReturns404(t *testing.T) {
	dir := directory.New(directory.Config{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodGet, "/api/offices/ghost/agents", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRoom_RemovesRoomAndAgents(t *testing.T) {
	dir := directory.New(directory.Config{})
	rm := newRoom(t, dir, "room-1", "alpha")
	rm.UpsertNpc(context.Background(), room.NpcPayload{AgentID: "a1"}, room.UpsertOptions{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodDelete, "/api/rooms/alpha", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	_, ok := dir.RoomByNamespace("alpha")
	assert.False(t, ok)
}

func TestDeleteNpc_RemovesFromOwningRoom(t *testing.T) {
	dir := directory.New(directory.Config{})
	rm := newRoom(t, dir, "room-1", "alpha")
	rm.UpsertNpc(context.Background(), room.NpcPayload{AgentID: "a1"}, room.UpsertOptions{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodDelete, "/api/npcs/a1", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	_, found := rm.FindNpc("a1")
	assert.False(t, found)
}

func TestDeleteNpc_UnknownAgentReturns404(t *testing.T) {
	dir := directory.New(directory.Config{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodDelete, "/api/npcs/ghost", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPersistNpcState_RejectsEmptyPatch(t *testing.T) {
	dir := directory.New(directory.Config{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodPost, "/api/npcs/a1/persist", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPersistNpcState_UpdatesPositionOnOwningRoom(t *testing.T) {
	dir := directory.New(directory.Config{})
	rm := newRoom(t, dir, "room-1", "alpha")
	rm.UpsertNpc(context.Background(), room.NpcPayload{AgentID: "a1"}, room.UpsertOptions{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodPost, "/api/npcs/a1/persist", map[string]any{
		"position": map[string]any{"x": 12.4, "y": 8.6},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assignment, found := rm.FindNpc("a1")
	require.True(t, found)
	assert.Equal(t, 12.0, assignment.Position.X)
	assert.Equal(t, 9.0, assignment.Position.Y)
}

func TestPathfind_RequiresStartAndTarget(t *testing.T) {
	dir := directory.New(directory.Config{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodPost, "/api/pathfind", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPathfind_NoGridLoadedReturns503(t *testing.T) {
	dir := directory.New(directory.Config{})
	router := newTestRouter(t, dir, &fakeRegistryAPI{})

	w := doJSON(t, router, http.MethodPost, "/api/pathfind", map[string]any{
		"start":  map[string]any{"x": 0, "y": 0},
		"target": map[string]any{"x": 32, "y": 32},
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPathfind_UnreachableTargetReturns404(t *testing.T) {
	dir := directory.New(directory.Config{})
	grid := &mapdata.Grid{Width: 2, Height: 1, TileWidth: 32, TileHeight: 32, Cells: []byte{0, 1}}
	router := newTestRouterWithGrid(t, dir, &fakeRegistryAPI{}, grid)

	w := doJSON(t, router, http.MethodPost, "/api/pathfind", map[string]any{
		"start":  map[string]any{"x": 0, "y": 0},
		"target": map[string]any{"x": 32, "y": 0},
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}
