// Package store is the local embedded SQL persistence layer (§4.D): one
// sqlite file, one connection, two tables. Grounded on the pure-Go
// modernc.org/sqlite driver seen in the pack's leapmux manifest, used here
// with plain database/sql rather than a generated query layer to keep the
// additive-column migration tolerant of "column already exists" the spec
// calls for.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// RoomRow is a persisted room.
type RoomRow struct {
	Name        string
	Description string
	Password    *string
	AutoDispose bool
}

// NpcRow is a persisted NPC assignment.
type NpcRow struct {
	AgentID         string
	RegistryAgentID string
	OfficeID        string
	Name            string
	AvatarID        string
	WorkstationID   string
	PositionX       float64
	PositionY       float64
	Role            string
	ComputerID      string
	RoomName        string
	VoiceAgentID    string
	NamespaceSlug   string
	AgentMetadata   string // serialized JSON; "" if absent
}

// Store is the local persistence layer: a single sqlite connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path and ensures the
// schema exists, tolerating "duplicate column" errors from additive
// migrations on a pre-existing database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			name TEXT PRIMARY KEY,
			description TEXT,
			password TEXT,
			autoDispose INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS npcs (
			agentId TEXT PRIMARY KEY,
			registryAgentId TEXT,
			officeId TEXT,
			name TEXT,
			avatarId TEXT,
			workstationId TEXT,
			positionX REAL,
			positionY REAL,
			role TEXT,
			computerId TEXT,
			roomName TEXT,
			voiceAgentId TEXT,
			namespaceSlug TEXT,
			agentMetadata TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}

	// Additive columns for legacy databases: tolerate "duplicate column name".
	additive := []string{
		`ALTER TABLE npcs ADD COLUMN voiceAgentId TEXT`,
		`ALTER TABLE npcs ADD COLUMN namespaceSlug TEXT`,
		`ALTER TABLE npcs ADD COLUMN agentMetadata TEXT`,
	}
	for _, stmt := range additive {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateColumnError(err) {
				continue
			}
			return fmt.Errorf("store: additive migrate: %w", err)
		}
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column")
}

// SaveRoom is an idempotent insert-or-replace.
func (s *Store) SaveRoom(ctx context.Context, row RoomRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (name, description, password, autoDispose) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET description=excluded.description, password=excluded.password, autoDispose=excluded.autoDispose`,
		row.Name, row.Description, row.Password, boolToInt(row.AutoDispose),
	)
	if err != nil {
		return fmt.Errorf("store: save room %q: %w", row.Name, err)
	}
	return nil
}

func (s *Store) DeleteRoomByName(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete room %q: %w", name, err)
	}
	return nil
}

func (s *Store) AllRooms(ctx context.Context) ([]RoomRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, description, password, autoDispose FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("store: all rooms: %w", err)
	}
	defer rows.Close()

	var out []RoomRow
	for rows.Next() {
		var r RoomRow
		var autoDispose int
		if err := rows.Scan(&r.Name, &r.Description, &r.Password, &autoDispose); err != nil {
			return nil, fmt.Errorf("store: scan room: %w", err)
		}
		r.AutoDispose = autoDispose != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ClearAllRooms(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms`)
	if err != nil {
		return fmt.Errorf("store: clear rooms: %w", err)
	}
	return nil
}

// SaveNpc is an idempotent insert-or-replace keyed on agentId.
func (s *Store) SaveNpc(ctx context.Context, row NpcRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO npcs (agentId, registryAgentId, officeId, name, avatarId, workstationId,
			positionX, positionY, role, computerId, roomName, voiceAgentId, namespaceSlug, agentMetadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agentId) DO UPDATE SET
			registryAgentId=excluded.registryAgentId, officeId=excluded.officeId, name=excluded.name,
			avatarId=excluded.avatarId, workstationId=excluded.workstationId, positionX=excluded.positionX,
			positionY=excluded.positionY, role=excluded.role, computerId=excluded.computerId,
			roomName=excluded.roomName, voiceAgentId=excluded.voiceAgentId, namespaceSlug=excluded.namespaceSlug,
			agentMetadata=excluded.agentMetadata`,
		row.AgentID, row.RegistryAgentID, row.OfficeID, row.Name, row.AvatarID, row.WorkstationID,
		row.PositionX, row.PositionY, row.Role, row.ComputerID, row.RoomName, row.VoiceAgentID,
		row.NamespaceSlug, row.AgentMetadata,
	)
	if err != nil {
		return fmt.Errorf("store: save npc %q: %w", row.AgentID, err)
	}
	return nil
}

func (s *Store) RemoveNpc(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM npcs WHERE agentId = ?`, agentID)
	if err != nil {
		return fmt.Errorf("store: remove npc %q: %w", agentID, err)
	}
	return nil
}

func (s *Store) AllNpcs(ctx context.Context) ([]NpcRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agentId, registryAgentId, officeId, name, avatarId, workstationId,
		positionX, positionY, role, computerId, roomName, voiceAgentId, namespaceSlug, agentMetadata FROM npcs`)
	if err != nil {
		return nil, fmt.Errorf("store: all npcs: %w", err)
	}
	defer rows.Close()

	var out []NpcRow
	for rows.Next() {
		var r NpcRow
		if err := rows.Scan(&r.AgentID, &r.RegistryAgentID, &r.OfficeID, &r.Name, &r.AvatarID, &r.WorkstationID,
			&r.PositionX, &r.PositionY, &r.Role, &r.ComputerID, &r.RoomName, &r.VoiceAgentID,
			&r.NamespaceSlug, &r.AgentMetadata); err != nil {
			return nil, fmt.Errorf("store: scan npc: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ClearAllNpcs(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM npcs`)
	if err != nil {
		return fmt.Errorf("store: clear npcs: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
