// Package reconciler keeps the Room Directory in sync with the external
// Registry (§4.H): it creates a Room for every office namespace the
// Registry declares, seeds NPC assignments for that office's agents, and
// prunes rooms whose namespace the Registry no longer lists. Grounded on
// the teacher's Redis bus reconnection/circuit-breaker pattern for "a
// background task that keeps local state aligned with a flaky external
// system" — generalised here from a pub/sub bus to a polling reconciler,
// since the teacher's own session package has no periodic-reconcile
// analogue.
package reconciler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/metrics"
	"github.com/AGIoffice/SkyOffice/internal/v1/registry"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
	"go.uber.org/zap"
)

const maxAgentSyncAttempts = 8

// RegistryAPI is the subset of the Registry client the reconciler needs.
type RegistryAPI interface {
	ListOffices(ctx context.Context) []registry.Office
	ListAgents(ctx context.Context, officeID string) []registry.Agent
	PatchOffice(ctx context.Context, officeID, roomID string)
	PatchAgent(ctx context.Context, officeID, agentID, lastSeenAt string, metadata any)
}

// RoomDirectory is the subset of the Room Directory the reconciler drives:
// it both registers rooms it creates (room.Config.Directory) and queries
// namespace occupancy.
type RoomDirectory interface {
	Register(rm *room.Room)
	UnregisterIfCurrent(rm *room.Room)
	RoomByNamespace(slug string) (*room.Room, bool)
	PruneNamespacesNotIn(ctx context.Context, validSlugs map[string]bool) []string
}

// RoomPersistence is the subset of the persistence store a Room write
// through to; the reconciler also writes through directly after a
// skip-persistence upsert (§4.H).
type RoomPersistence interface {
	SaveRoomRow(ctx context.Context, name, description string, passwordHash *string, autoDispose bool) error
	DeleteRoomRow(ctx context.Context, name string) error
	SaveNpcRow(ctx context.Context, a room.NpcAssignment) error
	RemoveNpcRow(ctx context.Context, agentID string) error
	NpcRowsForRoom(ctx context.Context, roomName string) ([]room.NpcPayload, error)
}

// BootstrapStore is the subset of the persistence store truncated at
// bootstrap.
type BootstrapStore interface {
	ClearAllRooms(ctx context.Context) error
	ClearAllNpcs(ctx context.Context) error
}

// Config configures a Reconciler.
type Config struct {
	Registry            RegistryAPI
	Directory           RoomDirectory
	RoomStore           RoomPersistence
	BootstrapStore      BootstrapStore
	OfficeBaseDomain    string
	DefaultAgentVoiceID string
	SyncInterval        time.Duration
}

// Reconciler is the §4.H Registry Reconciler.
type Reconciler struct {
	registry            RegistryAPI
	dir                 RoomDirectory
	roomStore           RoomPersistence
	bootstrapStore      BootstrapStore
	officeBaseDomain    string
	defaultAgentVoiceID string
	syncInterval        time.Duration

	newRoom func(ctx context.Context, cfg room.Config) (*room.Room, error)
	sleep   func(time.Duration)

	mu       sync.Mutex
	inFlight bool
}

func New(cfg Config) *Reconciler {
	domain := cfg.OfficeBaseDomain
	if domain == "" {
		domain = "office.xyz"
	}
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Reconciler{
		registry:            cfg.Registry,
		dir:                 cfg.Directory,
		roomStore:           cfg.RoomStore,
		bootstrapStore:      cfg.BootstrapStore,
		officeBaseDomain:    domain,
		defaultAgentVoiceID: cfg.DefaultAgentVoiceID,
		syncInterval:        interval,
		newRoom:             room.New,
		sleep:               time.Sleep,
	}
}

// Bootstrap truncates persisted rooms and NPCs, then runs one
// ensureRegistryRooms synchronously, per §4.H's bootstrap invocation shape.
func (r *Reconciler) Bootstrap(ctx context.Context) {
	if r.bootstrapStore != nil {
		if err := r.bootstrapStore.ClearAllRooms(ctx); err != nil {
			logging.Warn(ctx, "reconciler: bootstrap clear rooms failed", zap.Error(err))
		}
		if err := r.bootstrapStore.ClearAllNpcs(ctx); err != nil {
			logging.Warn(ctx, "reconciler: bootstrap clear npcs failed", zap.Error(err))
		}
	}
	r.tick(ctx)
}

// Run starts the periodic ensureRegistryRooms loop; it blocks until ctx is
// cancelled. A single in-flight gate ensures overlapping ticks return
// immediately rather than piling up (§5).
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	start := time.Now()
	r.ensureRegistryRooms(ctx)
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
}

// ensureRegistryRooms fetches every office, creates a Room for any
// namespace not already occupied, schedules an agent sync for every office
// (new or existing room), then prunes rooms whose namespace is no longer
// declared.
func (r *Reconciler) ensureRegistryRooms(ctx context.Context) {
	offices := r.registry.ListOffices(ctx)

	valid := map[string]bool{}
	for _, o := range offices {
		if slug := normalizeOfficeSlug(o); slug != "" {
			valid[slug] = true
		}
		if o.Domain != "" {
			d := strings.ToLower(o.Domain)
			valid[d] = true
			if i := strings.IndexByte(d, '.'); i >= 0 {
				valid[d[:i]] = true
			}
		}
	}

	for _, o := range offices {
		slug := normalizeOfficeSlug(o)
		if slug == "" {
			continue
		}
		if _, ok := r.dir.RoomByNamespace(slug); ok {
			go r.scheduleRegistryAgentSync(ctx, o)
			continue
		}

		rm, err := r.newRoom(ctx, room.Config{
			ID:             slug,
			Name:           slug,
			NamespaceSlug:  slug,
			RegistryBacked: true,
			OfficeID:       o.OfficeID,
			Metadata:       registryRoomMetadata(o),
			Directory:      r.dir,
			Store:          r.roomStore,
			Registry:       r.registry,
		})
		if err != nil {
			logging.Warn(ctx, "reconciler: failed to create room for office", zap.String("officeId", o.OfficeID), zap.Error(err))
			continue
		}
		_ = rm
		go r.scheduleRegistryAgentSync(ctx, o)
	}

	removed := r.dir.PruneNamespacesNotIn(ctx, valid)
	if len(removed) > 0 {
		metrics.ReconcilePrunedRooms.Add(float64(len(removed)))
	}
}

func registryRoomMetadata(o registry.Office) map[string]any {
	return map[string]any{
		"registryBacked":   true,
		"registryOfficeId": o.OfficeID,
		"registryId":       o.OfficeID,
		"registryDomain":   o.Domain,
		"registryStatus":   o.Status,
		"namespaceSlug":    normalizeOfficeSlug(o),
		"displayName":      o.DisplayName,
		"registryMetadata": parseMetadata(o.Metadata),
	}
}

// scheduleRegistryAgentSync polls the directory for the office's room to
// appear (room creation is asynchronous in the general case), then
// upserts an NPC for every agent the Registry lists for the office.
func (r *Reconciler) scheduleRegistryAgentSync(ctx context.Context, o registry.Office) {
	slug := normalizeOfficeSlug(o)

	var rm *room.Room
	found := false
	for attempt := 0; attempt < maxAgentSyncAttempts; attempt++ {
		if found2, ok := r.dir.RoomByNamespace(slug); ok {
			rm, found = found2, true
			break
		}
		r.sleep(backoffFor(attempt))
	}
	if !found {
		logging.Warn(ctx, "reconciler: room never appeared for office", zap.String("officeId", o.OfficeID), zap.String("namespaceSlug", slug))
		return
	}

	agents := r.registry.ListAgents(ctx, o.OfficeID)
	for _, agent := range agents {
		identifier := deriveAgentDomainIdentifier(agent, o, r.officeBaseDomain)
		payload := buildNpcPayload(agent, o, identifier, slug, r.defaultAgentVoiceID)

		// skipPersistence:true, skipRegistrySync left false — the reconciler
		// deliberately keeps patching the Registry on every tick (§9 open
		// question: no diffing).
		assignment := rm.UpsertNpc(ctx, payload, room.UpsertOptions{SkipPersistence: true})
		if r.roomStore != nil {
			if err := r.roomStore.SaveNpcRow(ctx, *assignment); err != nil {
				logging.Warn(ctx, "reconciler: failed to persist reconciled npc row", zap.String("agentId", identifier), zap.Error(err))
			}
		}
	}
}

func backoffFor(attempt int) time.Duration {
	ms := 500 * attempt
	if ms > 3000 {
		ms = 3000
	}
	return time.Duration(ms) * time.Millisecond
}

func normalizeOfficeSlug(o registry.Office) string {
	if o.NamespaceSlug != "" {
		return strings.ToLower(o.NamespaceSlug)
	}
	if o.Domain != "" {
		d := strings.ToLower(o.Domain)
		if i := strings.IndexByte(d, '.'); i >= 0 {
			return d[:i]
		}
		return d
	}
	return ""
}
