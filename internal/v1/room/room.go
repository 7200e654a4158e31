package room

import (
	"context"
	"strings"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/metrics"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Config carries everything New needs to build and register a Room.
type Config struct {
	ID             string
	Name           string
	NamespaceSlug  string
	Description    string
	PlaintextPassword string // empty = no password
	PrehashedPassword string // takes precedence over PlaintextPassword when set
	AutoDispose    bool
	RegistryBacked bool
	OfficeID       string
	Metadata       map[string]any

	Directory registrar
	Store     persistence
	Registry  registryClient
}

// New creates a Room, seeds its fixed-arity seats, hashes its password if
// one was supplied, registers it in the Room Directory, and writes through
// to persistence (§4.F).
func New(ctx context.Context, cfg Config) (*Room, error) {
	rm := &Room{
		ID:             cfg.ID,
		Name:           cfg.Name,
		NamespaceSlug:  normalizeSlug(cfg.NamespaceSlug),
		RegistryBacked: cfg.RegistryBacked,
		OfficeID:       cfg.OfficeID,
		Metadata:       cloneMetadata(cfg.Metadata),
		players:        map[string]*Player{},
		npcAssignments: map[string]*NpcAssignment{},
		clients:        map[string]ClientHandle{},
		dir:            cfg.Directory,
		store:          cfg.Store,
		registry:       cfg.Registry,
		createdAt:      time.Now(),
	}
	for i := range rm.computers {
		rm.computers[i] = newSeat()
	}
	for i := range rm.whiteboards {
		rm.whiteboards[i] = newSeat()
	}

	switch {
	case cfg.PrehashedPassword != "":
		h := cfg.PrehashedPassword
		rm.PasswordHash = &h
	case cfg.PlaintextPassword != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.PlaintextPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		h := string(hash)
		rm.PasswordHash = &h
	}

	if rm.Metadata == nil {
		rm.Metadata = map[string]any{}
	}
	rm.Metadata["hasPassword"] = rm.PasswordHash != nil
	rm.Metadata["registryBacked"] = rm.RegistryBacked
	rm.recomputeOnlineCountLocked()

	if rm.dir != nil {
		rm.dir.Register(rm)
	}

	if rm.store != nil {
		if err := rm.store.SaveRoomRow(ctx, rm.Name, cfg.Description, rm.PasswordHash, cfg.AutoDispose); err != nil {
			logging.Warn(ctx, "room: failed to persist room row", zap.String("room", rm.Name), zap.Error(err))
		}
	}

	if rm.RegistryBacked && rm.registry != nil && rm.OfficeID != "" {
		rm.registry.PatchOffice(ctx, rm.OfficeID, rm.ID)
	}

	metrics.ActiveRooms.Inc()
	return rm, nil
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// recomputeOnlineCountLocked recomputes the three online-count metadata
// fields; callers must hold r.mu.
func (r *Room) recomputeOnlineCountLocked() {
	npcCount := len(r.npcAssignments)
	totalCount := len(r.players)
	clientCount := totalCount - npcCount
	if clientCount < 0 {
		clientCount = 0
	}
	r.Metadata["clientsOnlineCount"] = clientCount
	r.Metadata["npcOnlineCount"] = npcCount
	r.Metadata["totalOnlineCount"] = totalCount
	metrics.RoomOnlineCount.WithLabelValues(r.NamespaceSlug, "total").Set(float64(totalCount))
	metrics.RoomOnlineCount.WithLabelValues(r.NamespaceSlug, "npc").Set(float64(npcCount))
}

// Dispose tears down the room: unregisters from the Room Directory using
// compare-on-delete semantics (handled by the directory itself) and clears
// local state.
func (r *Room) Dispose(ctx context.Context) {
	unlock := r.lock()
	npcCount := len(r.npcAssignments)
	r.players = map[string]*Player{}
	r.npcAssignments = map[string]*NpcAssignment{}
	unlock()

	if r.dir != nil {
		r.dir.UnregisterIfCurrent(r)
	}
	metrics.ActiveRooms.Dec()
	logging.Info(ctx, "room: disposed", zap.String("room", r.Name), zap.Int("npcCount", npcCount))
}

// CheckPassword bcrypt-compares a plaintext password against the room's
// stored hash. Returns true if the room has no password set.
func (r *Room) CheckPassword(plaintext string) bool {
	if r.PasswordHash == nil {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(*r.PasswordHash), []byte(plaintext)) == nil
}

// OnlineCounts returns the current client/npc/total counts.
func (r *Room) OnlineCounts() (clients, npcs, total int) {
	unlock := r.lock()
	defer unlock()
	total = len(r.players)
	npcs = len(r.npcAssignments)
	clients = total - npcs
	if clients < 0 {
		clients = 0
	}
	return
}
