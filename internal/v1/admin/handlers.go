package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/mapdata"
	"github.com/AGIoffice/SkyOffice/internal/v1/metrics"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type api struct {
	deps Deps
}

func ok(data gin.H) gin.H {
	out := gin.H{"success": true}
	for k, v := range data {
		out[k] = v
	}
	return out
}

func fail(msg string) gin.H {
	return gin.H{"success": false, "error": msg}
}

// healthz returns process liveness, per §4.I.
func (a *api) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime":    time.Since(a.deps.StartedAt).Seconds(),
		"rooms":     a.deps.Directory.ActiveRoomCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type deployCharacterRequest struct {
	AgentID       string  `json:"agentId" binding:"required"`
	Name          string  `json:"name" binding:"required"`
	AvatarID      string  `json:"avatarId" binding:"required"`
	WorkstationID string  `json:"workstationId" binding:"required"`
	Position      *posReq `json:"position"`
	NamespaceSlug string  `json:"namespaceSlug"`
	RoomID        string  `json:"roomId"`
	Role          string  `json:"role"`
	VoiceAgentID  string  `json:"voiceAgentId"`
}

type posReq struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// deployCharacter resolves a target room and upserts an NPC into it, per
// §4.I's resolution order: namespaceSlug, then roomId, then any active room.
func (a *api) deployCharacter(c *gin.Context) {
	var req deployCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fail("agentId, name, avatarId and workstationId are required"))
		return
	}

	rm := a.resolveTargetRoom(req.NamespaceSlug, req.RoomID)
	if rm == nil {
		c.JSON(http.StatusServiceUnavailable, fail("no target room available"))
		return
	}

	x, y := 705.0, 500.0
	if req.Position != nil {
		if req.Position.X != nil {
			x = *req.Position.X
		}
		if req.Position.Y != nil {
			y = *req.Position.Y
		}
	}

	assignment := rm.UpsertNpc(c.Request.Context(), room.NpcPayload{
		AgentID:       req.AgentID,
		Name:          req.Name,
		AvatarID:      req.AvatarID,
		WorkstationID: req.WorkstationID,
		Position:      &room.Point{X: x, Y: y},
		Role:          req.Role,
		VoiceAgentID:  req.VoiceAgentID,
		NamespaceSlug: rm.NamespaceSlug,
	}, room.UpsertOptions{})

	c.JSON(http.StatusOK, ok(gin.H{"npc": assignment}))
}

// resolveTargetRoom implements the target-room resolution order common to
// several Admin API operations: explicit namespace, then explicit room id,
// then any active room.
func (a *api) resolveTargetRoom(namespaceSlug, roomID string) *room.Room {
	if namespaceSlug != "" {
		if rm, ok := a.deps.Directory.RoomByNamespace(strings.ToLower(namespaceSlug)); ok {
			return rm
		}
	}
	if roomID != "" {
		if rm, ok := a.deps.Directory.RoomByNamespace(strings.ToLower(roomID)); ok {
			return rm
		}
	}
	if rm, ok := a.deps.Directory.GetAnyActiveRoom(); ok {
		return rm
	}
	return nil
}

// listNpcs returns every NPC assignment across every live room.
func (a *api) listNpcs(c *gin.Context) {
	c.JSON(http.StatusOK, ok(gin.H{"npcs": a.deps.Directory.ListNpcAssignments()}))
}

// roomByNamespace looks up the live room for a namespace slug.
func (a *api) roomByNamespace(c *gin.Context) {
	slug := strings.ToLower(c.Param("slug"))
	rm, found := a.deps.Directory.RoomByNamespace(slug)
	if !found {
		c.JSON(http.StatusNotFound, fail("no room for namespace"))
		return
	}
	clients, npcs, total := rm.OnlineCounts()
	c.JSON(http.StatusOK, ok(gin.H{
		"roomId":        rm.ID,
		"namespaceSlug": rm.NamespaceSlug,
		"clientsOnline": clients,
		"npcsOnline":    npcs,
		"totalOnline":   total,
	}))
}

// officeAgents fetches an office's agents from the Registry; when the
// Registry returns nothing, it falls back to this office's local NPC
// assignments so operators still see something useful (§4.I).
func (a *api) officeAgents(c *gin.Context) {
	officeID := c.Param("officeId")
	ctx := c.Request.Context()

	agents := a.deps.Registry.ListAgents(ctx, officeID)
	if len(agents) > 0 {
		c.JSON(http.StatusOK, ok(gin.H{"agents": agents, "source": "registry"}))
		return
	}

	if !a.officeExists(ctx, officeID) {
		c.JSON(http.StatusNotFound, fail("unknown office"))
		return
	}

	var fallback []room.NpcAssignment
	for _, a2 := range a.deps.Directory.ListNpcAssignments() {
		if a2.OfficeID == officeID {
			fallback = append(fallback, a2)
		}
	}
	c.JSON(http.StatusOK, ok(gin.H{"agents": fallback, "source": "local-fallback"}))
}

func (a *api) officeExists(ctx context.Context, officeID string) bool {
	for _, o := range a.deps.Registry.ListOffices(ctx) {
		if o.OfficeID == officeID || strings.EqualFold(o.NamespaceSlug, officeID) || strings.EqualFold(o.Domain, officeID) {
			return true
		}
	}
	return false
}

// deleteRoom tears down an entire namespace and fires a best-effort cache
// invalidation at the chat bridge. §7: the invalidation failure is logged,
// never surfaced to the caller.
func (a *api) deleteRoom(c *gin.Context) {
	slug := strings.ToLower(c.Param("slug"))
	removedRooms, removedAgents := a.deps.Directory.DestroyNamespace(c.Request.Context(), slug)

	go a.invalidateChatBridgeCache(removedAgents, slug)

	c.JSON(http.StatusOK, ok(gin.H{"removedRooms": removedRooms, "removedAgents": removedAgents}))
}

func (a *api) invalidateChatBridgeCache(agentIDs []string, namespaceSlug string) {
	if a.deps.ChatBridgeURL == "" {
		return
	}
	body, err := json.Marshal(gin.H{"agentIds": agentIDs, "namespaceSlug": namespaceSlug})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.deps.ChatBridgeURL+"/api/aladdin/cache/invalidate", bytes.NewReader(body))
	if err != nil {
		logging.Warn(ctx, "admin: failed to build chat bridge invalidate request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logging.Warn(ctx, "admin: chat bridge cache invalidate failed", zap.Error(err))
		return
	}
	resp.Body.Close()
}

// deleteNpc removes an agent's assignment from whichever room currently
// holds it (`removeNpcEverywhere`); no active-room check is made first.
func (a *api) deleteNpc(c *gin.Context) {
	agentID := c.Param("agentId")
	rm, found := a.deps.Directory.FindRoomWithAgent(agentID)
	if !found {
		c.JSON(http.StatusNotFound, fail("agent not assigned to any room"))
		return
	}
	rm.RemoveNpc(c.Request.Context(), agentID)
	c.JSON(http.StatusOK, ok(nil))
}

type pathfindRequest struct {
	Start  *mapdata.Point `json:"start" binding:"required"`
	Target *mapdata.Point `json:"target" binding:"required"`
}

// pathfind runs A* over the preloaded walkable-map grid.
func (a *api) pathfind(c *gin.Context) {
	var req pathfindRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Start == nil || req.Target == nil {
		c.JSON(http.StatusBadRequest, fail("start and target positions are required"))
		return
	}
	if a.deps.Grid == nil {
		c.JSON(http.StatusServiceUnavailable, fail("walkable map not loaded"))
		return
	}

	start := time.Now()
	path, err := mapdata.FindPath(a.deps.Grid, *req.Start, *req.Target)
	metrics.PathfindDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PathfindRequests.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, fail("pathfinding failed"))
		return
	}
	if path == nil {
		metrics.PathfindRequests.WithLabelValues("no_path").Inc()
		c.JSON(http.StatusNotFound, fail("path not found"))
		return
	}
	metrics.PathfindRequests.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, ok(gin.H{"path": path}))
}

type persistNpcStateRequest struct {
	Position      *mapdata.Point `json:"position"`
	Anim          *string        `json:"anim"`
	Posture       *string        `json:"posture"`
	WorkstationID *string        `json:"workstationId"`
	VoiceAgentID  *string        `json:"voiceAgentId"`
	NamespaceSlug string         `json:"namespaceSlug"`
	RoomID        string         `json:"roomId"`
}

// persistNpcState updates an NPC's state; resolution order is namespace,
// then roomId, then the room currently holding the agent, then any active
// room.
func (a *api) persistNpcState(c *gin.Context) {
	agentID := c.Param("agentId")
	var req persistNpcStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fail("invalid request body"))
		return
	}
	if req.Position == nil && req.Anim == nil && req.Posture == nil && req.WorkstationID == nil && req.VoiceAgentID == nil {
		c.JSON(http.StatusBadRequest, fail("at least one field must be provided"))
		return
	}

	rm := a.resolveNpcRoom(req.NamespaceSlug, req.RoomID, agentID)
	if rm == nil {
		c.JSON(http.StatusServiceUnavailable, fail("no target room available"))
		return
	}

	patch := room.NpcStatePatch{
		Anim:          req.Anim,
		Posture:       req.Posture,
		WorkstationID: req.WorkstationID,
		VoiceAgentID:  req.VoiceAgentID,
	}
	if req.Position != nil {
		patch.Position = &room.Point{X: roundCoord(req.Position.X), Y: roundCoord(req.Position.Y)}
	}

	assignment := rm.UpdateNpcState(c.Request.Context(), agentID, patch)
	if assignment == nil {
		c.JSON(http.StatusNotFound, fail("agent not assigned in target room"))
		return
	}
	c.JSON(http.StatusOK, ok(gin.H{"npc": assignment}))
}

func (a *api) resolveNpcRoom(namespaceSlug, roomID, agentID string) *room.Room {
	if namespaceSlug != "" {
		if rm, ok := a.deps.Directory.RoomByNamespace(strings.ToLower(namespaceSlug)); ok {
			return rm
		}
	}
	if roomID != "" {
		if rm, ok := a.deps.Directory.RoomByNamespace(strings.ToLower(roomID)); ok {
			return rm
		}
	}
	if rm, ok := a.deps.Directory.FindRoomWithAgent(agentID); ok {
		return rm
	}
	if rm, ok := a.deps.Directory.GetAnyActiveRoom(); ok {
		return rm
	}
	return nil
}

func roundCoord(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
