package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/AGIoffice/SkyOffice/internal/v1/apierr"
	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RoomDirectory is the subset of the Room Directory the Hub needs to resolve
// an inbound connection to a live room.
type RoomDirectory interface {
	RoomByNamespace(slug string) (*room.Room, bool)
	RoomIDForNamespace(slug string) (string, bool)
}

// Hub upgrades inbound HTTP requests to WebSocket connections, runs the
// handshake against the target room, and wires the resulting Client into
// the room's read/write pumps.
type Hub struct {
	dir            RoomDirectory
	secrets        room.SecretResolver
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewHub(dir RoomDirectory, secrets room.SecretResolver, allowedOrigins []string) *Hub {
	h := &Hub{dir: dir, secrets: secrets, allowedOrigins: allowedOrigins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWs is the gin handler for GET /ws/:namespaceSlug. Join options travel
// as query parameters: password, name, agentId, managerToken.
func (h *Hub) ServeWs(c *gin.Context) {
	ctx := c.Request.Context()
	namespaceSlug := strings.ToLower(c.Param("namespaceSlug"))

	rm, ok := h.dir.RoomByNamespace(namespaceSlug)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no room for namespace"})
		return
	}

	opts := room.JoinOptions{
		NamespaceSlug: namespaceSlug,
		Password:      c.Query("password"),
		Name:          c.Query("name"),
		AgentID:       c.Query("agentId"),
		ManagerToken:  c.Query("managerToken"),
	}

	auth, apiErr := rm.OnAuth(ctx, opts, h.secrets, h.dir)
	if apiErr != nil {
		h.respondAuthError(c, apiErr)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(ctx, "transport: websocket upgrade failed", zap.Error(err))
		return
	}

	key := sessionKey(auth, opts)
	client := newClient(conn, rm, key)

	rm.OnJoin(ctx, client, auth)

	go client.writePump()
	go client.readPump(context.Background(), auth)
}

func (h *Hub) respondAuthError(c *gin.Context, err *apierr.Error) {
	body := gin.H{"error": err.Message, "kind": err.Kind}
	for k, v := range err.Details {
		body[k] = v
	}
	c.JSON(err.Status, body)
}

func sessionKey(auth *room.AuthResult, opts room.JoinOptions) string {
	if auth != nil && auth.IsNpc {
		return auth.NpcKey
	}
	return uuid.NewString()
}
