package room

import (
	"context"
	"encoding/json"
	"time"
)

// ClientHandle is what a transport adapter gives the Room for one connected
// session: an addressable sink for outbound messages plus the session key
// the Room tracks it under (the raw session id for humans, the NPC key for
// agents).
type ClientHandle interface {
	SessionKey() string
	Send(event string, payload any)
}

// ChatMessage is one entry of the room's replicated chat history.
type ChatMessage struct {
	SenderKey string `json:"senderKey"`
	Content   string `json:"content"`
	At        string `json:"at"`
}

// Message event names (§4.F).
const (
	EventConnectToComputer      = "CONNECT_TO_COMPUTER"
	EventDisconnectFromComputer = "DISCONNECT_FROM_COMPUTER"
	EventStopScreenShare        = "STOP_SCREEN_SHARE"
	EventConnectToWhiteboard    = "CONNECT_TO_WHITEBOARD"
	EventDisconnectFromWhiteboard = "DISCONNECT_FROM_WHITEBOARD"
	EventUpdatePlayer           = "UPDATE_PLAYER"
	EventUpdatePlayerName       = "UPDATE_PLAYER_NAME"
	EventReadyToConnect         = "READY_TO_CONNECT"
	EventVideoConnected         = "VIDEO_CONNECTED"
	EventDisconnectStream       = "DISCONNECT_STREAM"
	EventAddChatMessage         = "ADD_CHAT_MESSAGE"
)

// OnJoin attaches a newly authenticated client to the room's state tree. A
// human client gets a fresh Player under its raw session key; an NPC client
// reuses the Player its assignment already created.
func (r *Room) OnJoin(ctx context.Context, client ClientHandle, auth *AuthResult) {
	r.Rehydrate(ctx)

	key := client.SessionKey()
	unlock := r.lock()
	r.clients[key] = client
	if auth == nil || !auth.IsNpc {
		if _, exists := r.players[key]; !exists {
			r.players[key] = &Player{}
		}
	}
	r.recomputeOnlineCountLocked()
	unlock()
}

// OnLeave detaches a client. For human sessions this also removes the
// Player and any seat occupancy; NPC Players survive (their lifetime is
// bound to the assignment, not the connection).
func (r *Room) OnLeave(ctx context.Context, client ClientHandle, auth *AuthResult) {
	key := client.SessionKey()
	unlock := r.lock()
	delete(r.clients, key)
	if auth == nil || !auth.IsNpc {
		delete(r.players, key)
		for i := range r.computers {
			delete(r.computers[i].ConnectedUser, key)
		}
		for i := range r.whiteboards {
			delete(r.whiteboards[i].ConnectedUser, key)
		}
	}
	r.recomputeOnlineCountLocked()
	unlock()
}

// OnMessage routes one realtime message by name (§4.F table).
func (r *Room) OnMessage(ctx context.Context, client ClientHandle, event string, payload json.RawMessage) {
	switch event {
	case EventConnectToComputer:
		r.handleSeatConnect(client, payload, r.computers[:])
	case EventDisconnectFromComputer:
		r.handleSeatDisconnect(client, payload, r.computers[:])
	case EventStopScreenShare:
		r.handleStopScreenShare(client, payload)
	case EventConnectToWhiteboard:
		r.handleSeatConnect(client, payload, r.whiteboards[:])
	case EventDisconnectFromWhiteboard:
		r.handleSeatDisconnect(client, payload, r.whiteboards[:])
	case EventUpdatePlayer:
		r.handleUpdatePlayer(client, payload)
	case EventUpdatePlayerName:
		r.handleUpdatePlayerName(client, payload)
	case EventReadyToConnect:
		r.setPlayerFlag(client, func(p *Player) { p.ReadyToConnect = true })
	case EventVideoConnected:
		r.setPlayerFlag(client, func(p *Player) { p.VideoConnected = true })
	case EventDisconnectStream:
		r.handleDisconnectStream(client, payload)
	case EventAddChatMessage:
		r.handleAddChatMessage(client, payload)
	}
}

type seatPayload struct {
	ComputerID   *int `json:"computerId"`
	WhiteboardID *int `json:"whiteboardId"`
}

func (p seatPayload) index() (int, bool) {
	if p.ComputerID != nil {
		return *p.ComputerID, true
	}
	if p.WhiteboardID != nil {
		return *p.WhiteboardID, true
	}
	return 0, false
}

func (r *Room) handleSeatConnect(client ClientHandle, raw json.RawMessage, seats []Seat) {
	var p seatPayload
	if json.Unmarshal(raw, &p) != nil {
		return
	}
	idx, ok := p.index()
	if !ok || idx < 0 || idx >= len(seats) {
		return
	}
	unlock := r.lock()
	seats[idx].ConnectedUser[client.SessionKey()] = struct{}{}
	unlock()
}

func (r *Room) handleSeatDisconnect(client ClientHandle, raw json.RawMessage, seats []Seat) {
	var p seatPayload
	if json.Unmarshal(raw, &p) != nil {
		return
	}
	idx, ok := p.index()
	if !ok || idx < 0 || idx >= len(seats) {
		return
	}
	unlock := r.lock()
	delete(seats[idx].ConnectedUser, client.SessionKey())
	unlock()
}

func (r *Room) handleStopScreenShare(client ClientHandle, raw json.RawMessage) {
	var p seatPayload
	if json.Unmarshal(raw, &p) != nil {
		return
	}
	idx, ok := p.index()
	if !ok || idx < 0 || idx >= len(r.computers) {
		return
	}
	senderKey := client.SessionKey()

	unlock := r.lock()
	peers := make([]string, 0, len(r.computers[idx].ConnectedUser))
	for sid := range r.computers[idx].ConnectedUser {
		if sid != senderKey {
			peers = append(peers, sid)
		}
	}
	handles := make([]ClientHandle, 0, len(peers))
	for _, sid := range peers {
		if h, ok := r.clients[sid]; ok {
			handles = append(handles, h)
		}
	}
	unlock()

	for _, h := range handles {
		h.Send(EventStopScreenShare, map[string]any{"senderId": senderKey})
	}
}

type updatePlayerPayload struct {
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
	Anim *string  `json:"anim"`
}

func (r *Room) handleUpdatePlayer(client ClientHandle, raw json.RawMessage) {
	var p updatePlayerPayload
	if json.Unmarshal(raw, &p) != nil {
		return
	}
	r.mutatePlayer(client, func(player *Player) {
		if p.X != nil {
			player.X = *p.X
		}
		if p.Y != nil {
			player.Y = *p.Y
		}
		if p.Anim != nil {
			player.Anim = *p.Anim
		}
	})
}

func (r *Room) handleUpdatePlayerName(client ClientHandle, raw json.RawMessage) {
	var p struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &p) != nil {
		return
	}
	r.mutatePlayer(client, func(player *Player) { player.Name = p.Name })
}

func (r *Room) mutatePlayer(client ClientHandle, mutate func(*Player)) {
	unlock := r.lock()
	defer unlock()
	player, ok := r.players[client.SessionKey()]
	if !ok {
		return
	}
	mutate(player)
}

func (r *Room) setPlayerFlag(client ClientHandle, mutate func(*Player)) {
	r.mutatePlayer(client, mutate)
}

func (r *Room) handleDisconnectStream(client ClientHandle, raw json.RawMessage) {
	var p struct {
		ClientID string `json:"clientId"`
	}
	if json.Unmarshal(raw, &p) != nil || p.ClientID == "" {
		return
	}
	unlock := r.lock()
	target, ok := r.clients[p.ClientID]
	unlock()
	if !ok {
		return
	}
	target.Send(EventDisconnectStream, map[string]any{"clientId": client.SessionKey()})
}

func (r *Room) handleAddChatMessage(client ClientHandle, raw json.RawMessage) {
	var p struct {
		Content string `json:"content"`
	}
	if json.Unmarshal(raw, &p) != nil || p.Content == "" {
		return
	}
	msg := ChatMessage{SenderKey: client.SessionKey(), Content: p.Content, At: time.Now().UTC().Format(time.RFC3339)}

	unlock := r.lock()
	r.chatLog = append(r.chatLog, msg)
	senderKey := client.SessionKey()
	recipients := make([]ClientHandle, 0, len(r.clients))
	for sid, h := range r.clients {
		if sid != senderKey {
			recipients = append(recipients, h)
		}
	}
	unlock()

	for _, h := range recipients {
		h.Send(EventAddChatMessage, msg)
	}
}
