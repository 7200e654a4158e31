// Package directory is the process-wide Room Directory (§4.G): two indexes
// (roomId -> Room, namespaceSlug -> Room) plus namespace teardown and
// cross-room agent lookup. Grounded on the teacher's session.Hub, which
// plays the same "registry of live rooms behind a mutex, created on demand,
// torn down on empty" role for video-conference rooms.
package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
	"go.uber.org/zap"
)

// PersistedNpcRef is the minimal shape of a persisted NPC row the directory
// needs to purge residual rows during namespace teardown.
type PersistedNpcRef struct {
	AgentID       string
	NamespaceSlug string
	RoomName      string
}

// PersistenceBackend is the subset of §4.D the directory writes through to
// during namespace teardown.
type PersistenceBackend interface {
	DeleteRoomRow(ctx context.Context, roomName string) error
	RemoveNpcRow(ctx context.Context, agentID string) error
	ListNpcRefs(ctx context.Context) ([]PersistedNpcRef, error)
}

// Directory is the singleton registry of live Room instances.
type Directory struct {
	mu               sync.RWMutex
	byRoomID         map[string]*room.Room
	byNamespaceSlug  map[string]*room.Room
	officeBaseDomain string
	store            PersistenceBackend
}

// Config configures a new Directory.
type Config struct {
	OfficeBaseDomain string // default "office.xyz"
	Store            PersistenceBackend
}

func New(cfg Config) *Directory {
	domain := cfg.OfficeBaseDomain
	if domain == "" {
		domain = "office.xyz"
	}
	return &Directory{
		byRoomID:         map[string]*room.Room{},
		byNamespaceSlug:  map[string]*room.Room{},
		officeBaseDomain: domain,
		store:            cfg.Store,
	}
}

// Register adds a Room to both indexes. Satisfies room.registrar.
func (d *Directory) Register(rm *room.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byRoomID[rm.ID] = rm
	if rm.NamespaceSlug != "" {
		d.byNamespaceSlug[rm.NamespaceSlug] = rm
	}
}

// UnregisterIfCurrent removes a Room from both indexes, but only if it is
// still the instance mapped there — the compare-on-delete semantics that
// survive the "replacement room created under the same slug" race (§5, §9).
func (d *Directory) UnregisterIfCurrent(rm *room.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.byRoomID[rm.ID] == rm {
		delete(d.byRoomID, rm.ID)
	}
	if d.byNamespaceSlug[rm.NamespaceSlug] == rm {
		delete(d.byNamespaceSlug, rm.NamespaceSlug)
	}
}

// RoomIDForNamespace satisfies room.RoomLookup for the handshake redirect
// check.
func (d *Directory) RoomIDForNamespace(slug string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rm, ok := d.byNamespaceSlug[slug]
	if !ok {
		return "", false
	}
	return rm.ID, true
}

// RoomByNamespace returns the live Room for a namespace slug, if any.
func (d *Directory) RoomByNamespace(slug string) (*room.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rm, ok := d.byNamespaceSlug[slug]
	return rm, ok
}

// RoomByID returns the live Room for a transport-assigned room id, if any.
func (d *Directory) RoomByID(id string) (*room.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rm, ok := d.byRoomID[id]
	return rm, ok
}

// ActiveRoomCount returns the number of live rooms.
func (d *Directory) ActiveRoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byRoomID)
}

// GetAnyActiveRoom returns an arbitrary live room, if one exists.
func (d *Directory) GetAnyActiveRoom() (*room.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, rm := range d.byRoomID {
		return rm, true
	}
	return nil, false
}

// FindRoomWithAgent linearly scans every live room for one holding an
// assignment for agentID.
func (d *Directory) FindRoomWithAgent(agentID string) (*room.Room, bool) {
	d.mu.RLock()
	rooms := make([]*room.Room, 0, len(d.byRoomID))
	for _, rm := range d.byRoomID {
		rooms = append(rooms, rm)
	}
	d.mu.RUnlock()

	for _, rm := range rooms {
		if _, ok := rm.FindNpc(agentID); ok {
			return rm, true
		}
	}
	return nil, false
}

// ListNpcAssignments flattens every live room's NPC assignment table.
func (d *Directory) ListNpcAssignments() []room.NpcAssignment {
	d.mu.RLock()
	rooms := make([]*room.Room, 0, len(d.byRoomID))
	for _, rm := range d.byRoomID {
		rooms = append(rooms, rm)
	}
	d.mu.RUnlock()

	var out []room.NpcAssignment
	for _, rm := range rooms {
		out = append(out, rm.ListNpcAssignments()...)
	}
	return out
}

// namespaceCandidates expands a slug to the set of aliases destroyNamespace
// treats as the same namespace: the slug itself, its head segment before
// the first '.', and "{slug}.{officeBaseDomain}".
func (d *Directory) namespaceCandidates(slug string) map[string]bool {
	slug = strings.ToLower(slug)
	head := slug
	if i := strings.IndexByte(slug, '.'); i >= 0 {
		head = slug[:i]
	}
	return map[string]bool{
		slug: true,
		head: true,
		slug + "." + d.officeBaseDomain: true,
	}
}

// PruneNamespacesNotIn destroys every registry-backed room whose namespace
// (or its head segment before the first '.') is absent from validSlugs, and
// returns the room ids removed.
func (d *Directory) PruneNamespacesNotIn(ctx context.Context, validSlugs map[string]bool) []string {
	d.mu.RLock()
	var toPrune []string
	for slug, rm := range d.byNamespaceSlug {
		if !rm.RegistryBacked {
			continue
		}
		head := slug
		if i := strings.IndexByte(slug, '.'); i >= 0 {
			head = slug[:i]
		}
		if !validSlugs[slug] && !validSlugs[head] {
			toPrune = append(toPrune, slug)
		}
	}
	d.mu.RUnlock()

	var removed []string
	for _, slug := range toPrune {
		rooms, _ := d.DestroyNamespace(ctx, slug)
		removed = append(removed, rooms...)
	}
	return removed
}

// DestroyNamespace tears down every room and persisted record associated
// with a namespace slug. It is idempotent and best-effort: each sub-step is
// wrapped so a failure in one does not abort the rest (§7).
func (d *Directory) DestroyNamespace(ctx context.Context, slug string) (removedRooms []string, removedAgents []string) {
	candidates := d.namespaceCandidates(slug)

	d.mu.Lock()
	var rooms []*room.Room
	for candidate := range candidates {
		if rm, ok := d.byNamespaceSlug[candidate]; ok {
			rooms = append(rooms, rm)
		}
	}
	d.mu.Unlock()

	seenRooms := map[string]bool{}
	for _, rm := range rooms {
		if seenRooms[rm.ID] {
			continue
		}
		seenRooms[rm.ID] = true

		for _, a := range rm.ListNpcAssignments() {
			rm.RemoveNpc(ctx, a.AgentID)
			removedAgents = append(removedAgents, a.AgentID)
		}

		rm.Dispose(ctx)
		removedRooms = append(removedRooms, rm.ID)

		if d.store != nil {
			if err := d.store.DeleteRoomRow(ctx, rm.Name); err != nil {
				logging.Warn(ctx, "directory: failed to delete persisted room row", zap.String("room", rm.Name), zap.Error(err))
			}
		}
	}

	if d.store != nil {
		refs, err := d.store.ListNpcRefs(ctx)
		if err != nil {
			logging.Warn(ctx, "directory: failed to list persisted npc refs during teardown", zap.Error(err))
		} else {
			for _, ref := range refs {
				if !candidates[strings.ToLower(ref.NamespaceSlug)] && !candidates[strings.ToLower(ref.RoomName)] {
					continue
				}
				if err := d.store.RemoveNpcRow(ctx, ref.AgentID); err != nil {
					logging.Warn(ctx, "directory: failed to purge residual npc row", zap.String("agentId", ref.AgentID), zap.Error(err))
					continue
				}
				removedAgents = append(removedAgents, ref.AgentID)
			}
		}
	}

	return removedRooms, removedAgents
}
