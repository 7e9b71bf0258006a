// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/chatsync/lib/codec"
	"github.com/bureau-foundation/chatsync/lib/ref"
	"github.com/bureau-foundation/chatsync/lib/sqlitepool"
	"github.com/bureau-foundation/chatsync/timeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_snapshots (
	room_id     TEXT PRIMARY KEY,
	compression INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	data        BLOB NOT NULL,
	saved_at    INTEGER NOT NULL
);
`

// Config configures a Store.
type Config struct {
	// Path is the database file.
	Path string

	// Compression names the preferred snapshot encoding: "zstd"
	// (the default when empty) or "none".
	Compression string

	Logger *slog.Logger
}

// Store is safe for concurrent use.
type Store struct {
	pool        *sqlitepool.Pool
	compression Compression
	logger      *slog.Logger
}

// Open opens (creating if needed) the snapshot database.
func Open(config Config) (*Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	compression, err := ParseCompression(config.Compression)
	if err != nil {
		return nil, err
	}
	poolSize := 0
	if config.Path == ":memory:" {
		poolSize = 1
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     config.Path,
		PoolSize: poolSize,
		Schema:   schema,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	return &Store{pool: pool, compression: compression, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Save replaces the stored snapshot of a room.
func (s *Store) Save(ctx context.Context, roomID ref.RoomID, snapshot timeline.Snapshot, savedAt time.Time) error {
	encoded, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("persist: encoding snapshot of %s: %w", roomID, err)
	}
	data, encoding, err := compress(encoded, s.compression)
	if err != nil {
		return fmt.Errorf("persist: compressing snapshot of %s: %w", roomID, err)
	}

	err = s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO room_snapshots (room_id, compression, size, data, saved_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (room_id) DO UPDATE SET
				compression = excluded.compression,
				size = excluded.size,
				data = excluded.data,
				saved_at = excluded.saved_at`,
			&sqlitex.ExecOptions{
				Args: []any{roomID.String(), int64(encoding), int64(len(encoded)), data, savedAt.UnixMilli()},
			})
	})
	if err != nil {
		return fmt.Errorf("persist: saving %s: %w", roomID, err)
	}
	s.logger.Debug("room snapshot saved",
		"room_id", roomID.String(),
		"messages", len(snapshot.Messages),
		"compression", encoding.String(),
		"stored_bytes", len(data),
	)
	return nil
}

// Load returns the stored snapshot of a room. ok is false when none
// is stored.
func (s *Store) Load(ctx context.Context, roomID ref.RoomID) (snapshot timeline.Snapshot, ok bool, err error) {
	var row *storedRow
	err = s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT room_id, compression, size, data FROM room_snapshots WHERE room_id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{roomID.String()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					row = scanRow(stmt)
					return nil
				},
			})
	})
	if err != nil {
		return timeline.Snapshot{}, false, fmt.Errorf("persist: loading %s: %w", roomID, err)
	}
	if row == nil {
		return timeline.Snapshot{}, false, nil
	}
	snapshot, err = row.decode()
	if err != nil {
		return timeline.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

// LoadAll returns every stored snapshot. A row that fails to decode
// is logged and skipped so one corrupt room does not hide the rest.
func (s *Store) LoadAll(ctx context.Context) (map[ref.RoomID]timeline.Snapshot, error) {
	var rows []*storedRow
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT room_id, compression, size, data FROM room_snapshots ORDER BY room_id`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					rows = append(rows, scanRow(stmt))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("persist: loading snapshots: %w", err)
	}

	result := make(map[ref.RoomID]timeline.Snapshot, len(rows))
	for _, row := range rows {
		roomID, err := ref.ParseRoomID(row.roomID)
		if err != nil {
			s.logger.Warn("skipping snapshot with invalid room id", "room_id", row.roomID, "error", err)
			continue
		}
		snapshot, err := row.decode()
		if err != nil {
			s.logger.Warn("skipping undecodable snapshot", "room_id", row.roomID, "error", err)
			continue
		}
		result[roomID] = snapshot
	}
	return result, nil
}

// Delete removes a room's snapshot.
func (s *Store) Delete(ctx context.Context, roomID ref.RoomID) error {
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `DELETE FROM room_snapshots WHERE room_id = ?`,
			&sqlitex.ExecOptions{Args: []any{roomID.String()}})
	})
	if err != nil {
		return fmt.Errorf("persist: deleting %s: %w", roomID, err)
	}
	return nil
}

// DeleteAll removes every snapshot.
func (s *Store) DeleteAll(ctx context.Context) error {
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `DELETE FROM room_snapshots`, nil)
	})
	if err != nil {
		return fmt.Errorf("persist: deleting snapshots: %w", err)
	}
	s.logger.Info("room snapshots cleared")
	return nil
}

type storedRow struct {
	roomID      string
	compression Compression
	size        int
	data        []byte
}

func scanRow(stmt *sqlite.Stmt) *storedRow {
	data := make([]byte, stmt.ColumnLen(3))
	stmt.ColumnBytes(3, data)
	return &storedRow{
		roomID:      stmt.ColumnText(0),
		compression: Compression(stmt.ColumnInt64(1)),
		size:        int(stmt.ColumnInt64(2)),
		data:        data,
	}
}

func (r *storedRow) decode() (timeline.Snapshot, error) {
	encoded, err := decompress(r.data, r.compression, r.size)
	if err != nil {
		return timeline.Snapshot{}, fmt.Errorf("persist: %s: %w", r.roomID, err)
	}
	var snapshot timeline.Snapshot
	if err := codec.Unmarshal(encoded, &snapshot); err != nil {
		return timeline.Snapshot{}, fmt.Errorf("persist: decoding snapshot of %s: %w", r.roomID, err)
	}
	return snapshot, nil
}
