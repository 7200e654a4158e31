package room

import (
	"context"
	"sync"
)

type fakeDirectory struct {
	mu        sync.Mutex
	registered map[string]*Room
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{registered: map[string]*Room{}}
}

func (d *fakeDirectory) Register(rm *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registered[rm.ID] = rm
}

func (d *fakeDirectory) UnregisterIfCurrent(rm *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.registered[rm.ID] == rm {
		delete(d.registered, rm.ID)
	}
}

type fakeStore struct {
	mu   sync.Mutex
	rows map[string]NpcAssignment
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]NpcAssignment{}}
}

func (s *fakeStore) SaveRoomRow(ctx context.Context, name, description string, passwordHash *string, autoDispose bool) error {
	return nil
}

func (s *fakeStore) DeleteRoomRow(ctx context.Context, name string) error { return nil }

func (s *fakeStore) SaveNpcRow(ctx context.Context, a NpcAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[a.AgentID] = a
	return nil
}

func (s *fakeStore) RemoveNpcRow(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, agentID)
	return nil
}

func (s *fakeStore) NpcRowsForRoom(ctx context.Context, roomName string) ([]NpcPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []NpcPayload
	for _, a := range s.rows {
		if a.RoomID != roomName {
			continue
		}
		pos := a.Position
		out = append(out, NpcPayload{
			AgentID:       a.AgentID,
			OfficeID:      a.OfficeID,
			Name:          a.Name,
			AvatarID:      a.AvatarID,
			WorkstationID: a.WorkstationID,
			Position:      &pos,
			Role:          a.Role,
			VoiceAgentID:  a.VoiceAgentID,
			NamespaceSlug: a.NamespaceSlug,
		})
	}
	return out, nil
}

type fakeRegistryClient struct {
	mu          sync.Mutex
	patchedOffices []string
	patchedAgents  []string
}

func (f *fakeRegistryClient) PatchOffice(ctx context.Context, officeID, roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchedOffices = append(f.patchedOffices, officeID)
}

func (f *fakeRegistryClient) PatchAgent(ctx context.Context, officeID, agentID, lastSeenAt string, metadata any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchedAgents = append(f.patchedAgents, agentID)
}

type fakeSecretResolver struct {
	secret string
}

func (f *fakeSecretResolver) Resolve(ctx context.Context, agentID, officeID string) (string, string) {
	if f.secret == "" {
		return "", ""
	}
	return f.secret, "static"
}

type fakeLookup struct {
	byNamespace map[string]string
}

func (f *fakeLookup) RoomIDForNamespace(slug string) (string, bool) {
	id, ok := f.byNamespace[slug]
	return id, ok
}

type fakeClient struct {
	key     string
	mu      sync.Mutex
	inbox   []fakeMessage
}

type fakeMessage struct {
	Event   string
	Payload any
}

func (c *fakeClient) SessionKey() string { return c.key }

func (c *fakeClient) Send(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbox = append(c.inbox, fakeMessage{Event: event, Payload: payload})
}

func (c *fakeClient) received(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.inbox {
		if m.Event == event {
			return true
		}
	}
	return false
}
