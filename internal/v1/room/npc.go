package room

import (
	"context"
	"strings"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/metrics"
	"go.uber.org/zap"
)

func npcPlayerKey(agentID string) string {
	return "npc-" + strings.ToLower(agentID)
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", "office secretary":
		return "GM"
	default:
		return role
	}
}

// UpsertNpc is the NPC assignment engine's idempotent create-or-update
// (§4.F). It attaches/updates the NPC's Player, resolves workstation
// seating, assembles the NpcAssignment, and write-throughs to persistence
// and the Registry unless suppressed.
func (r *Room) UpsertNpc(ctx context.Context, payload NpcPayload, opts UpsertOptions) *NpcAssignment {
	unlock := r.lock()

	agentID := payload.AgentID
	key := npcPlayerKey(agentID)

	pos := Point{X: 800, Y: 200}
	if payload.Position != nil {
		pos = *payload.Position
	}

	player, ok := r.players[key]
	if !ok {
		player = &Player{}
		r.players[key] = player
	}
	player.Name = payload.Name
	player.X = pos.X
	player.Y = pos.Y
	player.ReadyToConnect = true
	player.VideoConnected = false

	computerID := ""
	if payload.WorkstationID != "" {
		for i := range r.computers {
			delete(r.computers[i].ConnectedUser, key)
		}
		if idx := resolveComputerIndex(payload.WorkstationID); idx >= 0 {
			r.computers[idx].ConnectedUser[key] = struct{}{}
			computerID = payload.WorkstationID
		}
	} else if payload.ComputerID != "" {
		computerID = payload.ComputerID
	}

	avatar := payload.AvatarID
	if avatar == "" {
		avatar = "adam"
	}
	if computerID != "" {
		player.Anim = avatar + "_sit_down"
	} else {
		player.Anim = avatar + "_idle_down"
	}

	assignment := &NpcAssignment{
		AgentID:         agentID,
		RegistryAgentID: payload.RegistryAgentID,
		OfficeID:        payload.OfficeID,
		Name:            payload.Name,
		AvatarID:        payload.AvatarID,
		WorkstationID:   payload.WorkstationID,
		Position:        pos,
		Role:            normalizeRole(payload.Role),
		ComputerID:      computerID,
		VoiceAgentID:    payload.VoiceAgentID,
		NamespaceSlug:   payload.NamespaceSlug,
		RoomID:          r.Name,
		AssignedAt:      time.Now().UTC().Format(time.RFC3339),
		AgentMetadata:   payload.AgentMetadata,
	}
	r.npcAssignments[strings.ToLower(agentID)] = assignment
	r.recomputeOnlineCountLocked()

	unlock()

	metrics.NpcUpserts.WithLabelValues("ok").Inc()

	if !opts.SkipPersistence && r.store != nil {
		if err := r.store.SaveNpcRow(ctx, *assignment); err != nil {
			logging.Warn(ctx, "room: failed to persist npc row", zap.String("agentId", agentID), zap.Error(err))
		}
	}

	if !opts.SkipRegistrySync && r.registry != nil && assignment.OfficeID != "" {
		r.registry.PatchAgent(ctx, assignment.OfficeID, agentID, assignment.AssignedAt, map[string]any{
			"positionX":            pos.X,
			"positionY":            pos.Y,
			"workstationId":        assignment.WorkstationID,
			"voiceAgentId":         assignment.VoiceAgentID,
			"namespaceSlug":        assignment.NamespaceSlug,
			"isPresentInSkyOffice": true,
			"spawn": map[string]any{
				"position":      map[string]any{"x": pos.X, "y": pos.Y},
				"workstationId": assignment.WorkstationID,
				"voiceAgentId":  assignment.VoiceAgentID,
			},
		})
	}

	return assignment
}

// RemoveNpc deletes the assignment, its Player, and any computer occupancy;
// best-effort deletes the persisted row; patches Registry with an inverted
// presence flag.
func (r *Room) RemoveNpc(ctx context.Context, agentID string) {
	key := npcPlayerKey(agentID)
	lowerID := strings.ToLower(agentID)

	unlock := r.lock()
	assignment, existed := r.npcAssignments[lowerID]
	delete(r.npcAssignments, lowerID)
	delete(r.players, key)
	for i := range r.computers {
		delete(r.computers[i].ConnectedUser, key)
	}
	r.recomputeOnlineCountLocked()
	unlock()

	if !existed {
		return
	}

	if r.store != nil {
		if err := r.store.RemoveNpcRow(ctx, agentID); err != nil {
			logging.Warn(ctx, "room: failed to delete npc row", zap.String("agentId", agentID), zap.Error(err))
		}
	}

	if r.registry != nil && assignment.OfficeID != "" {
		r.registry.PatchAgent(ctx, assignment.OfficeID, agentID, time.Now().UTC().Format(time.RFC3339), map[string]any{
			"isPresentInSkyOffice": false,
			"spawn":                nil,
		})
	}
}

// UpdateNpcState mutates an existing assignment's position/animation/seat
// and writes through, per §4.F.
func (r *Room) UpdateNpcState(ctx context.Context, agentID string, patch NpcStatePatch) *NpcAssignment {
	key := npcPlayerKey(agentID)
	lowerID := strings.ToLower(agentID)

	unlock := r.lock()
	assignment, ok := r.npcAssignments[lowerID]
	if !ok {
		unlock()
		return nil
	}
	player := r.players[key]

	if patch.Position != nil {
		assignment.Position = *patch.Position
		if player != nil {
			player.X = patch.Position.X
			player.Y = patch.Position.Y
		}
	}
	if patch.WorkstationID != nil {
		assignment.WorkstationID = *patch.WorkstationID
		idx := resolveComputerIndex(*patch.WorkstationID)
		for i := range r.computers {
			delete(r.computers[i].ConnectedUser, key)
		}
		if idx >= 0 {
			r.computers[idx].ConnectedUser[key] = struct{}{}
			assignment.ComputerID = *patch.WorkstationID
		} else {
			assignment.ComputerID = ""
		}
	}
	if patch.VoiceAgentID != nil {
		assignment.VoiceAgentID = *patch.VoiceAgentID
	}

	avatar := assignment.AvatarID
	if avatar == "" {
		avatar = "adam"
	}
	switch {
	case patch.Anim != nil:
		if player != nil {
			player.Anim = *patch.Anim
		}
	case patch.Posture != nil:
		anim := avatar + "_idle_down"
		if *patch.Posture == "sit" {
			anim = avatar + "_sit_down"
		}
		if player != nil {
			player.Anim = anim
		}
	}

	snapshot := *assignment
	unlock()

	if r.store != nil {
		if err := r.store.SaveNpcRow(ctx, snapshot); err != nil {
			logging.Warn(ctx, "room: failed to persist npc state update", zap.String("agentId", agentID), zap.Error(err))
		}
	}
	if r.registry != nil && snapshot.OfficeID != "" {
		r.registry.PatchAgent(ctx, snapshot.OfficeID, agentID, time.Now().UTC().Format(time.RFC3339), map[string]any{
			"positionX":     snapshot.Position.X,
			"positionY":     snapshot.Position.Y,
			"workstationId": snapshot.WorkstationID,
			"voiceAgentId":  snapshot.VoiceAgentID,
		})
	}
	return &snapshot
}

// Rehydrate loads any persisted NPC rows whose roomName matches this room
// and replays them through UpsertNpc with both side effects suppressed, per
// §4.F's startup-rehydration rule. It is idempotent: once run, further
// calls are no-ops.
func (r *Room) Rehydrate(ctx context.Context) {
	unlock := r.lock()
	if r.rehydrated {
		unlock()
		return
	}
	r.rehydrated = true
	unlock()

	if r.store == nil {
		return
	}

	rows, err := r.store.NpcRowsForRoom(ctx, r.Name)
	if err != nil {
		logging.Warn(ctx, "room: rehydration query failed", zap.String("room", r.Name), zap.Error(err))
		return
	}
	for _, row := range rows {
		r.UpsertNpc(ctx, row, UpsertOptions{SkipPersistence: true, SkipRegistrySync: true})
	}
}

// ListNpcAssignments returns a snapshot of every current NPC assignment.
func (r *Room) ListNpcAssignments() []NpcAssignment {
	unlock := r.lock()
	defer unlock()
	out := make([]NpcAssignment, 0, len(r.npcAssignments))
	for _, a := range r.npcAssignments {
		out = append(out, *a)
	}
	return out
}

// FindNpc returns the current assignment for an agent, if present.
func (r *Room) FindNpc(agentID string) (NpcAssignment, bool) {
	unlock := r.lock()
	defer unlock()
	a, ok := r.npcAssignments[strings.ToLower(agentID)]
	if !ok {
		return NpcAssignment{}, false
	}
	return *a, true
}
