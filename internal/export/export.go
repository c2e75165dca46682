package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mcsweep/internal/model"
	"mcsweep/internal/output"
)

// ErrUnknownFormat is returned for an export format other than sqlite, jsonl, csv or text.
var ErrUnknownFormat = errors.New("export: unknown format")

const createTable = `
CREATE TABLE IF NOT EXISTS servers (
    address        TEXT PRIMARY KEY,
    port           INTEGER NOT NULL,
    version        TEXT,
    platform_tag   TEXT,
    online_players INTEGER,
    max_players    INTEGER,
    protocol       INTEGER,
    motd           TEXT,
    found_at       TEXT
);
CREATE INDEX IF NOT EXISTS servers_platform ON servers (platform_tag);
`

const upsert = `
INSERT INTO servers (address, port, version, platform_tag, online_players, max_players, protocol, motd, found_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
    port=excluded.port,
    version=excluded.version,
    platform_tag=excluded.platform_tag,
    online_players=excluded.online_players,
    max_players=excluded.max_players,
    protocol=excluded.protocol,
    motd=excluded.motd,
    found_at=excluded.found_at;
`

// OpenDB opens (creating if needed) a SQLite database with the servers table.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA encoding = 'UTF-8'"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("export: create table: %w", err)
	}
	return db, nil
}

// SaveSQLite upserts recs keyed by address in one transaction and returns
// the number of rows written.
func SaveSQLite(ctx context.Context, db *sql.DB, recs []model.StatusRecord) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, r := range recs {
		var foundAt any
		if !r.FoundAt.IsZero() {
			foundAt = r.FoundAt.UTC().Format(time.RFC3339)
		}
		_, err := stmt.ExecContext(ctx,
			r.Address, r.Port, r.Version, r.PlatformTag,
			r.OnlinePlayers, r.MaxPlayers, r.Protocol, r.MOTD, foundAt)
		if err != nil {
			return i, fmt.Errorf("export: upsert %s: %w", r.Address, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// LoadSQLite reads every row back, ordered by address.
func LoadSQLite(ctx context.Context, db *sql.DB) ([]model.StatusRecord, error) {
	rows, err := db.QueryContext(ctx, `
SELECT address, port, version, platform_tag, online_players, max_players, protocol, motd, found_at
FROM servers ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StatusRecord
	for rows.Next() {
		var (
			r       model.StatusRecord
			foundAt sql.NullString
		)
		if err := rows.Scan(&r.Address, &r.Port, &r.Version, &r.PlatformTag,
			&r.OnlinePlayers, &r.MaxPlayers, &r.Protocol, &r.MOTD, &foundAt); err != nil {
			return nil, err
		}
		if foundAt.Valid {
			r.FoundAt, _ = time.Parse(time.RFC3339, foundAt.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WriteStream writes recs to w in one of the line formats understood by
// the output package.
func WriteStream(w io.Writer, format string, recs []model.StatusRecord) error {
	f, err := output.NewFormatter(format, w)
	if err != nil {
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	for i := range recs {
		if err := f.Write(&recs[i]); err != nil {
			return err
		}
	}
	return f.Flush()
}
