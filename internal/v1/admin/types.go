// Package admin is the HTTP Admin API Facade (§4.I): a thin gin layer where
// every handler reduces to one call into the directory, a room, or the
// pathfinder. Grounded on the teacher's cmd/v1/session/main.go gin wiring
// (CORS, gin.Recovery, health/metrics endpoints) and its ratelimit package
// (ulule/limiter/v3 middleware keyed by route group).
package admin

import (
	"context"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/mapdata"
	"github.com/AGIoffice/SkyOffice/internal/v1/registry"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
)

// RoomDirectory is the subset of the Room Directory the Admin API drives.
type RoomDirectory interface {
	RoomByNamespace(slug string) (*room.Room, bool)
	GetAnyActiveRoom() (*room.Room, bool)
	FindRoomWithAgent(agentID string) (*room.Room, bool)
	ListNpcAssignments() []room.NpcAssignment
	DestroyNamespace(ctx context.Context, slug string) (removedRooms []string, removedAgents []string)
	ActiveRoomCount() int
}

// RegistryAPI is the subset of the Registry client the Admin API queries
// directly (agent listing for the office-agents endpoint).
type RegistryAPI interface {
	ListOffices(ctx context.Context) []registry.Office
	ListAgents(ctx context.Context, officeID string) []registry.Agent
}

// Deps bundles everything the Admin API handlers need.
type Deps struct {
	Directory     RoomDirectory
	Registry      RegistryAPI
	Grid          *mapdata.Grid
	ChatBridgeURL string
	StartedAt     time.Time
}
