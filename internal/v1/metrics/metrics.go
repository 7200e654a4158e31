// Package metrics declares the Prometheus metrics surface for the presence
// orchestrator. Kept close to the components that mutate it, mirroring the
// teacher's namespace/subsystem/name convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyoffice",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active room instances.",
	})

	RoomOnlineCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "skyoffice",
		Subsystem: "room",
		Name:      "online_count",
		Help:      "Current online count per room, partitioned by kind.",
	}, []string{"namespace", "kind"})

	NpcAssignments = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "skyoffice",
		Subsystem: "npc",
		Name:      "assignments_active",
		Help:      "Current number of NPC assignments per room.",
	}, []string{"namespace"})

	NpcUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyoffice",
		Subsystem: "npc",
		Name:      "upserts_total",
		Help:      "Total NPC upsert operations, partitioned by outcome.",
	}, []string{"outcome"})

	HandshakeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyoffice",
		Subsystem: "handshake",
		Name:      "results_total",
		Help:      "Total join handshake attempts, partitioned by result kind.",
	}, []string{"kind"})

	PathfindRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyoffice",
		Subsystem: "pathfind",
		Name:      "requests_total",
		Help:      "Total pathfinding requests, partitioned by outcome.",
	}, []string{"outcome"})

	PathfindDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skyoffice",
		Subsystem: "pathfind",
		Name:      "duration_seconds",
		Help:      "Time spent computing a path.",
		Buckets:   prometheus.DefBuckets,
	})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skyoffice",
		Subsystem: "reconciler",
		Name:      "tick_duration_seconds",
		Help:      "Time spent in one ensureRegistryRooms tick.",
		Buckets:   prometheus.DefBuckets,
	})

	ReconcilePrunedRooms = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyoffice",
		Subsystem: "reconciler",
		Name:      "pruned_rooms_total",
		Help:      "Total rooms pruned because their namespace vanished from the registry.",
	})

	RegistryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyoffice",
		Subsystem: "registry",
		Name:      "requests_total",
		Help:      "Total Registry HTTP calls, partitioned by endpoint and status.",
	}, []string{"endpoint", "status"})

	RegistryCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyoffice",
		Subsystem: "registry",
		Name:      "circuit_state",
		Help:      "Registry circuit breaker state (0=closed, 1=open, 2=half-open).",
	})

	SecretResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyoffice",
		Subsystem: "secret",
		Name:      "resolutions_total",
		Help:      "Total secret resolutions, partitioned by source tier.",
	}, []string{"source"})
)
