package room

import (
	"context"
	"strings"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/apierr"
	"github.com/AGIoffice/SkyOffice/internal/v1/metrics"
	"github.com/AGIoffice/SkyOffice/internal/v1/token"
)

// JoinOptions is the normalised set of options a transport adapter passes
// to OnAuth, collapsing the human/NPC join-option shapes of §6 into one
// struct.
type JoinOptions struct {
	NamespaceSlug string
	Password      string
	Name          string
	AgentID       string // non-empty marks this as an NPC handshake
	ManagerToken  string // options.auth.managerToken or options.managerToken
}

// AuthResult is attached to the client's opaque user-data on a successful
// handshake.
type AuthResult struct {
	IsNpc                bool
	NpcAgentID           string
	NpcKey               string
	ManagerTokenPayload  *token.ManagerTokenPayload
	PresenceSecretSource string
}

// SecretResolver is the subset of §4.C the handshake needs.
type SecretResolver interface {
	Resolve(ctx context.Context, agentID, officeID string) (string, string)
}

// RoomLookup lets the handshake redirect an NPC to the room that actually
// holds its intended namespace (§4.F's 410 case).
type RoomLookup interface {
	RoomIDForNamespace(slug string) (string, bool)
}

// OnAuth implements the handshake (§4.F). It never panics on a bad request:
// every failure is returned as a typed *apierr.Error for the transport
// adapter to translate into its own wire error.
func (r *Room) OnAuth(ctx context.Context, opts JoinOptions, secrets SecretResolver, lookup RoomLookup) (*AuthResult, *apierr.Error) {
	if opts.AgentID == "" {
		if opts.NamespaceSlug != "" && normalizeSlug(opts.NamespaceSlug) != r.NamespaceSlug {
			metrics.HandshakeResults.WithLabelValues("namespace_mismatch").Inc()
			return nil, apierr.AuthMismatch("namespace mismatch")
		}
		if r.PasswordHash != nil && !r.CheckPassword(opts.Password) {
			metrics.HandshakeResults.WithLabelValues("bad_password").Inc()
			return nil, apierr.AuthRequired("invalid password")
		}
		metrics.HandshakeResults.WithLabelValues("human_ok").Inc()
		return &AuthResult{}, nil
	}

	// NPC handshakes never take the blanket namespace-mismatch 403: a
	// namespace mismatch here instead drives the 410 redirect check below,
	// per the "Namespace redirect" scenario in §8.
	return r.authenticateNpc(ctx, opts, secrets, lookup)
}

func (r *Room) authenticateNpc(ctx context.Context, opts JoinOptions, secrets SecretResolver, lookup RoomLookup) (*AuthResult, *apierr.Error) {
	if opts.ManagerToken == "" {
		metrics.HandshakeResults.WithLabelValues("missing_token").Inc()
		return nil, apierr.AuthRequired("manager token required")
	}

	r.Rehydrate(ctx)

	assignment, found := r.FindNpc(opts.AgentID)
	if !found {
		metrics.HandshakeResults.WithLabelValues("unknown_agent").Inc()
		return nil, apierr.NotFound("no NPC assignment for this agent in this room")
	}

	if opts.NamespaceSlug != "" && normalizeSlug(opts.NamespaceSlug) != r.NamespaceSlug && lookup != nil {
		if otherID, ok := lookup.RoomIDForNamespace(normalizeSlug(opts.NamespaceSlug)); ok && otherID != r.ID {
			metrics.HandshakeResults.WithLabelValues("redirect").Inc()
			return nil, apierr.Redirect(otherID)
		}
	}

	secret, source := secrets.Resolve(ctx, opts.AgentID, assignment.OfficeID)
	if secret == "" {
		metrics.HandshakeResults.WithLabelValues("secret_unavailable").Inc()
		return nil, apierr.NoCapacity("presence secret unavailable")
	}

	payload, err := token.VerifyManagerToken(opts.ManagerToken, secret, time.Now().Unix())
	if err != nil {
		metrics.HandshakeResults.WithLabelValues("bad_token").Inc()
		return nil, apierr.AuthMismatch(err.Error())
	}

	if payload.AgentID != "" && !strings.EqualFold(payload.AgentID, opts.AgentID) {
		metrics.HandshakeResults.WithLabelValues("agent_mismatch").Inc()
		return nil, apierr.AuthMismatch("token agentId does not match request")
	}
	if ns := payload.EffectiveNamespace(); ns != "" && normalizeSlug(ns) != r.NamespaceSlug {
		metrics.HandshakeResults.WithLabelValues("namespace_mismatch").Inc()
		return nil, apierr.AuthMismatch("token namespace does not match room")
	}
	if assignment.NamespaceSlug != "" && opts.NamespaceSlug != "" && normalizeSlug(assignment.NamespaceSlug) != normalizeSlug(opts.NamespaceSlug) {
		metrics.HandshakeResults.WithLabelValues("assignment_mismatch").Inc()
		return nil, apierr.AuthMismatch("assignment namespace does not match request")
	}

	metrics.HandshakeResults.WithLabelValues("npc_ok").Inc()
	return &AuthResult{
		IsNpc:                true,
		NpcAgentID:           opts.AgentID,
		NpcKey:               npcPlayerKey(opts.AgentID),
		ManagerTokenPayload:  payload,
		PresenceSecretSource: source,
	}, nil
}
