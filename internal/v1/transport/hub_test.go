package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/AGIoffice/SkyOffice/internal/v1/apierr"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHubDirectory struct {
	mu    sync.Mutex
	rooms map[string]*room.Room
}

func newFakeHubDirectory() *fakeHubDirectory {
	return &fakeHubDirectory{rooms: map[string]*room.Room{}}
}

func (d *fakeHubDirectory) Register(rm *room.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[rm.NamespaceSlug] = rm
}

func (d *fakeHubDirectory) UnregisterIfCurrent(rm *room.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rooms[rm.NamespaceSlug] == rm {
		delete(d.rooms, rm.NamespaceSlug)
	}
}

func (d *fakeHubDirectory) RoomByNamespace(slug string) (*room.Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rm, ok := d.rooms[slug]
	return rm, ok
}

func (d *fakeHubDirectory) RoomIDForNamespace(slug string) (string, bool) {
	rm, ok := d.RoomByNamespace(slug)
	if !ok {
		return "", false
	}
	return rm.ID, true
}

type fakeSecretResolver struct{ secret string }

func (f *fakeSecretResolver) Resolve(ctx context.Context, agentID, officeID string) (string, string) {
	if f.secret == "" {
		return "", ""
	}
	return f.secret, "static"
}

func newTestRoom(t *testing.T, dir RoomDirectory, id, slug string) *room.Room {
	t.Helper()
	registrar, ok := dir.(*fakeHubDirectory)
	require.True(t, ok)
	rm, err := room.New(context.Background(), room.Config{ID: id, Name: id, NamespaceSlug: slug, Directory: registrar})
	require.NoError(t, err)
	return rm
}

func TestCheckOrigin_AllowsEmptyOrigin(t *testing.T) {
	h := NewHub(newFakeHubDirectory(), &fakeSecretResolver{}, []string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws/alpha", nil)

	assert.True(t, h.checkOrigin(req))
}

func TestCheckOrigin_AllowsConfiguredOrigin(t *testing.T) {
	h := NewHub(newFakeHubDirectory(), &fakeSecretResolver{}, []string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws/alpha", nil)
	req.Header.Set("Origin", "https://app.example.com")

	assert.True(t, h.checkOrigin(req))
}

func TestCheckOrigin_RejectsUnknownOrigin(t *testing.T) {
	h := NewHub(newFakeHubDirectory(), &fakeSecretResolver{}, []string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws/alpha", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	assert.False(t, h.checkOrigin(req))
}

func TestCheckOrigin_WildcardAllowsAnything(t *testing.T) {
	h := NewHub(newFakeHubDirectory(), &fakeSecretResolver{}, []string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/ws/alpha", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")

	assert.True(t, h.checkOrigin(req))
}

func TestServeWs_UnknownNamespaceReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(newFakeHubDirectory(), &fakeSecretResolver{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws/ghost", nil)
	c.Params = gin.Params{{Key: "namespaceSlug", Value: "ghost"}}

	h.ServeWs(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeWs_FailedHandshakeRespondsWithoutUpgrading(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := newFakeHubDirectory()
	newTestRoom(t, dir, "room-1", "alpha")
	h := NewHub(dir, &fakeSecretResolver{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws/alpha?agentId=agent-1&managerToken=bad", nil)
	c.Params = gin.Params{{Key: "namespaceSlug", Value: "alpha"}}

	h.ServeWs(c)

	assert.NotEqual(t, http.StatusSwitchingProtocols, w.Code)
}

func TestSessionKey_NpcUsesNpcKeyHumanGetsUUID(t *testing.T) {
	npcKey := sessionKey(&room.AuthResult{IsNpc: true, NpcKey: "npc:agent-1"}, room.JoinOptions{})
	assert.Equal(t, "npc:agent-1", npcKey)

	humanKey1 := sessionKey(&room.AuthResult{}, room.JoinOptions{})
	humanKey2 := sessionKey(&room.AuthResult{}, room.JoinOptions{})
	assert.NotEmpty(t, humanKey1)
	assert.NotEqual(t, humanKey1, humanKey2)
}

func TestRespondAuthError_IncludesRedirectDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(newFakeHubDirectory(), &fakeSecretResolver{}, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.respondAuthError(c, apierr.Redirect("room-2"))

	assert.Equal(t, http.StatusGone, w.Code)
	assert.Contains(t, w.Body.String(), "room-2")
}
