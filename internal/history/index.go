package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// index is a derived, rebuildable sqlite mirror of the history cache. It is
// never the source of truth — the {version_id}.json files are — but gives
// the total-size query a real index instead of an in-memory linear scan
// (per-game listing is served from the in-memory cache, not from this
// index), and self-heals: a missing or
// corrupt index.db is simply recreated and repopulated from the JSON files
// on the next Init.
type index struct {
	db *sql.DB
}

// openIndex opens (creating if necessary) the sqlite index at path and
// migrates it to the latest schema.
func openIndex(path string, logger *slog.Logger) (*index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening index db: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrating index db: %w", err)
	}

	logger.Debug("history index db ready", slog.String("path", path))

	return &index{db: db}, nil
}

func (ix *index) Close() error { return ix.db.Close() }

// reset clears the derived index entirely; callers repopulate it from the
// JSON files that remain the ground truth.
func (ix *index) reset(ctx context.Context) error {
	_, err := ix.db.ExecContext(ctx, "DELETE FROM history_entries")
	return err
}

func (ix *index) upsert(ctx context.Context, e HistoryEntry) error {
	size := sizeOrZero(e.Metadata.SizeBytes)
	if e.Metadata.SizeBytes == nil {
		if info, err := os.Stat(e.ArchivePath); err == nil {
			size = info.Size()
		}
	}

	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO history_entries (game_id, version_id, emulator_id, timestamp, hash, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, version_id) DO UPDATE SET
			emulator_id = excluded.emulator_id,
			timestamp = excluded.timestamp,
			hash = excluded.hash,
			size_bytes = excluded.size_bytes
	`, e.Metadata.GameID, e.Metadata.VersionID, e.Metadata.EmulatorID, e.Metadata.Timestamp,
		e.Metadata.Hash, size)

	return err
}

func (ix *index) delete(ctx context.Context, gameID, versionID string) error {
	_, err := ix.db.ExecContext(ctx,
		"DELETE FROM history_entries WHERE game_id = ? AND version_id = ?", gameID, versionID)

	return err
}

// totalSize returns the sum of size_bytes across all indexed entries,
// optionally filtered to one game.
func (ix *index) totalSize(ctx context.Context, gameID string) (int64, error) {
	var total sql.NullInt64

	var err error
	if gameID == "" {
		err = ix.db.QueryRowContext(ctx, "SELECT SUM(size_bytes) FROM history_entries").Scan(&total)
	} else {
		err = ix.db.QueryRowContext(ctx,
			"SELECT SUM(size_bytes) FROM history_entries WHERE game_id = ?", gameID).Scan(&total)
	}

	if err != nil {
		return 0, fmt.Errorf("history: querying total size: %w", err)
	}

	return total.Int64, nil
}

// versionIDsByGame returns version ids for gameID ordered newest-first,
// exactly the order list_history must return (spec §4.2/§8 property 3).
func (ix *index) versionIDsByGame(ctx context.Context, gameID string) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx,
		"SELECT version_id FROM history_entries WHERE game_id = ? ORDER BY timestamp DESC, version_id ASC",
		gameID)
	if err != nil {
		return nil, fmt.Errorf("history: querying versions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func sizeOrZero(p *int64) int64 {
	if p == nil {
		return 0
	}

	return *p
}
