// Package room implements the in-memory authoritative state for one
// namespace (§4.F): players, computers, whiteboards, and the NPC assignment
// table, plus the realtime message handlers and handshake logic a transport
// adapter drives through the Room's exported hooks. Grounded on the
// teacher's session.Room (room.go/methods.go/handlers.go) — same
// mutex-serialised-state-tree shape, generalised from video-conference
// roles to office seating and NPC presence.
package room

import (
	"context"
	"sync"
	"time"
)

const (
	numComputers   = 5
	numWhiteboards = 3
)

// Point is a 2D world position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Player is one occupant of the room's shared world state, human or NPC.
type Player struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Anim           string  `json:"anim"`
	Name           string  `json:"name"`
	ReadyToConnect bool    `json:"readyToConnect"`
	VideoConnected bool    `json:"videoConnected"`
}

// Seat tracks which sessions currently occupy a shared resource (a computer
// or a whiteboard).
type Seat struct {
	ConnectedUser map[string]struct{}
}

func newSeat() Seat {
	return Seat{ConnectedUser: map[string]struct{}{}}
}

// NpcAssignment is the full record binding an agent to a room, a seat, and
// a presence snapshot (§3).
type NpcAssignment struct {
	AgentID         string
	RegistryAgentID string
	OfficeID        string
	Name            string
	AvatarID        string
	WorkstationID   string
	Position        Point
	Role            string
	ComputerID      string
	VoiceAgentID    string
	NamespaceSlug   string
	RoomID          string
	AssignedAt      string
	AgentMetadata   map[string]any
}

// NpcPayload is the input to upsertNpc; fields absent from the wire payload
// are left zero-valued and defaulted inside upsertNpc.
type NpcPayload struct {
	AgentID         string
	RegistryAgentID string
	OfficeID        string
	Name            string
	AvatarID        string
	WorkstationID   string
	Position        *Point
	Role            string
	VoiceAgentID    string
	NamespaceSlug   string
	AgentMetadata   map[string]any
	ComputerID      string // explicit override; see upsertNpc step 3
}

// UpsertOptions gates the write-through side effects of upsertNpc.
type UpsertOptions struct {
	SkipPersistence  bool
	SkipRegistrySync bool
}

// NpcStatePatch is the mutation set accepted by updateNpcState; nil fields
// are left unchanged.
type NpcStatePatch struct {
	Position      *Point
	Anim          *string
	Posture       *string // "sit" | "stand"
	WorkstationID *string
	VoiceAgentID  *string
}

// registrar is the subset of the Room Directory a Room needs to register
// and unregister itself without importing the directory package (it would
// create an import cycle, since the directory holds *Room values).
type registrar interface {
	Register(rm *Room)
	UnregisterIfCurrent(rm *Room)
}

// persistence is the subset of the persistence store a Room writes through
// to (§4.D).
type persistence interface {
	SaveRoomRow(ctx context.Context, name, description string, passwordHash *string, autoDispose bool) error
	DeleteRoomRow(ctx context.Context, name string) error
	SaveNpcRow(ctx context.Context, a NpcAssignment) error
	RemoveNpcRow(ctx context.Context, agentID string) error
	NpcRowsForRoom(ctx context.Context, roomName string) ([]NpcPayload, error)
}

// registryClient is the subset of the Registry client a Room pushes
// telemetry to (§4.E).
type registryClient interface {
	PatchOffice(ctx context.Context, officeID, roomID string)
	PatchAgent(ctx context.Context, officeID, agentID, lastSeenAt string, metadata any)
}

// Room is one namespace's live, authoritative world state.
type Room struct {
	mu sync.Mutex

	ID            string
	Name          string
	NamespaceSlug string
	PasswordHash  *string
	RegistryBacked bool
	OfficeID      string
	Metadata      map[string]any

	computers   [numComputers]Seat
	whiteboards [numWhiteboards]Seat

	players        map[string]*Player
	npcAssignments map[string]*NpcAssignment

	clients   map[string]ClientHandle
	chatLog   []ChatMessage

	rehydrated bool

	dir      registrar
	store    persistence
	registry registryClient

	createdAt time.Time
}

func (r *Room) lock() func() {
	r.mu.Lock()
	return r.mu.Unlock
}
