package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"harvestdash/internal/core"
	"harvestdash/internal/log"
	"harvestdash/internal/sheets"

	_ "modernc.org/sqlite"
)

const (
	upsertLatest = `INSERT INTO latest_snapshots
    (source, snapshot_id, fetched_at, sheet_count, record_count, payload, saved_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET
    snapshot_id = excluded.snapshot_id,
    fetched_at = excluded.fetched_at,
    sheet_count = excluded.sheet_count,
    record_count = excluded.record_count,
    payload = excluded.payload,
    saved_at = excluded.saved_at`

	selectLatest = `SELECT payload FROM latest_snapshots WHERE source = ?`

	selectInfo = `SELECT snapshot_id, fetched_at, sheet_count, record_count, saved_at
FROM latest_snapshots WHERE source = ?`
)

// SQLiteRepository keeps the most recent good snapshot of each source. Saving
// overwrites the previous row; no history is kept.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

var _ sheets.SnapshotStore = (*SQLiteRepository)(nil)

// Info describes a stored snapshot without decoding it.
type Info struct {
	ID          string    `json:"id"`
	FetchedAt   time.Time `json:"fetchedAt"`
	SheetCount  int       `json:"sheetCount"`
	RecordCount int       `json:"recordCount"`
	SavedAt     time.Time `json:"savedAt"`
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB, logger *log.Logger) *SQLiteRepository {
	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveLatest implements sheets.SnapshotStore
func (r *SQLiteRepository) SaveLatest(ctx context.Context, snap core.Snapshot) error {
	if snap.Source == "" {
		return errors.New("snapshot has no source")
	}
	payload, err := json.Marshal(encode(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, upsertLatest,
		snap.Source,
		id,
		snap.FetchedAt.UTC().Format(time.RFC3339Nano),
		len(snap.Sheets),
		snap.RecordCount(),
		string(payload),
		r.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	r.logger.DebugContext(ctx, "Snapshot saved to SQLite",
		log.NewFields().WithSnapshot(snap.Source, len(snap.Sheets), snap.RecordCount()).ToSlice()...)
	return nil
}

// LoadLatest implements sheets.SnapshotStore
func (r *SQLiteRepository) LoadLatest(ctx context.Context, source string) (core.Snapshot, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, selectLatest, source).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, core.ErrNoSnapshot
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var stored storedSnapshot
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return stored.decode(), nil
}

// LatestInfo returns metadata of the stored snapshot of source.
func (r *SQLiteRepository) LatestInfo(ctx context.Context, source string) (Info, error) {
	var (
		info             Info
		fetched, savedAt string
	)
	err := r.db.QueryRowContext(ctx, selectInfo, source).
		Scan(&info.ID, &fetched, &info.SheetCount, &info.RecordCount, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, core.ErrNoSnapshot
	}
	if err != nil {
		return Info{}, fmt.Errorf("load snapshot info: %w", err)
	}
	info.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
	info.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	return info, nil
}

// storedSnapshot is the persisted form. Rows are kept positionally so the
// header order survives the round trip.
type (
	storedSnapshot struct {
		Source    string        `json:"source"`
		FetchedAt time.Time     `json:"fetchedAt"`
		Sheets    []storedSheet `json:"sheets"`
	}

	storedSheet struct {
		Name    string     `json:"name"`
		Headers []string   `json:"headers"`
		Rows    [][]string `json:"rows"`
	}
)

func encode(snap core.Snapshot) storedSnapshot {
	out := storedSnapshot{Source: snap.Source, FetchedAt: snap.FetchedAt, Sheets: make([]storedSheet, 0, len(snap.Sheets))}
	for _, sh := range snap.Sheets {
		ss := storedSheet{Name: sh.Name, Headers: sh.Headers, Rows: make([][]string, 0, len(sh.Rows))}
		for _, rec := range sh.Rows {
			row := make([]string, len(sh.Headers))
			for i, h := range sh.Headers {
				row[i] = rec[h]
			}
			ss.Rows = append(ss.Rows, row)
		}
		out.Sheets = append(out.Sheets, ss)
	}
	return out
}

func (s storedSnapshot) decode() core.Snapshot {
	snap := core.Snapshot{Source: s.Source, FetchedAt: s.FetchedAt, Sheets: make([]core.Sheet, 0, len(s.Sheets))}
	for _, ss := range s.Sheets {
		headers := ss.Headers
		if headers == nil {
			headers = []string{}
		}
		sh := core.Sheet{Name: ss.Name, Headers: headers, Rows: make([]core.Record, 0, len(ss.Rows))}
		for _, row := range ss.Rows {
			rec := make(core.Record, len(headers))
			for i, h := range headers {
				if i < len(row) {
					rec[h] = row[i]
				} else {
					rec[h] = ""
				}
			}
			sh.Rows = append(sh.Rows, rec)
		}
		snap.Sheets = append(snap.Sheets, sh)
	}
	return snap
}
