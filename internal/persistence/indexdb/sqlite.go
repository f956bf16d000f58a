package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	tlog "sparsetile.ai/internal/persistence/log"
)

// SQLiteIndex is a secondary index over snapshots and edits. Writes go through one
// goroutine that batches them into transactions; the snapshot files and the edit
// journal stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	// mu orders sends on ch against close(ch).
	mu     sync.RWMutex
	closed bool
	ch     chan req
	wg     sync.WaitGroup

	dropEdits atomic.Uint64
}

type reqKind int

const (
	reqSnapshot reqKind = iota + 1
	reqEdit
)

type req struct {
	kind     reqKind
	snapshot SnapshotRow
	edit     tlog.EditEntry
}

// SnapshotRow describes one written snapshot file.
type SnapshotRow struct {
	MapID      string
	Revision   uint64
	Path       string
	Topology   string
	Width      int
	Height     int
	Chunks     int
	Layers     int
	RecordedAt time.Time
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	// DropEditTotal counts edits that never reached the table: queue full or insert failed.
	DropEditTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			map_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			path TEXT NOT NULL,
			topology TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			layers INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (map_id, revision)
		);`,
		`CREATE TABLE IF NOT EXISTS edits (
			map_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			time TEXT NOT NULL,
			op TEXT NOT NULL,
			layer INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			value INTEGER NOT NULL,
			entity TEXT NOT NULL,
			PRIMARY KEY (map_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS edits_cell ON edits(map_id, x, y);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}

// RecordSnapshot queues a snapshot row. It blocks while the queue is full and
// does nothing after Close.
func (s *SQLiteIndex) RecordSnapshot(row SnapshotRow) {
	if s == nil {
		return
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.ch <- req{kind: reqSnapshot, snapshot: row}
}

// RecordEdit queues an edit row, dropping it if the indexer falls behind.
func (s *SQLiteIndex) RecordEdit(e tlog.EditEntry) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- req{kind: reqEdit, edit: e}:
	default:
		s.dropEdits.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropEditTotal: s.dropEdits.Load(),
	}
}

// LatestSnapshot returns the highest-revision snapshot recorded for mapID.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context, mapID string) (SnapshotRow, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT map_id,revision,path,topology,width,height,chunks,layers,recorded_at
		FROM snapshots WHERE map_id=? ORDER BY revision DESC LIMIT 1`, mapID)
	var (
		r   SnapshotRow
		rev int64
		at  string
	)
	err := row.Scan(&r.MapID, &rev, &r.Path, &r.Topology, &r.Width, &r.Height, &r.Chunks, &r.Layers, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRow{}, false, nil
	}
	if err != nil {
		return SnapshotRow{}, false, err
	}
	r.Revision = uint64(rev)
	r.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
	return r, true, nil
}

// EditCount returns how many edits of mapID touched cell (x, y).
func (s *SQLiteIndex) EditCount(ctx context.Context, mapID string, x, y int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edits WHERE map_id=? AND x=? AND y=?`, mapID, x, y).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(map_id,revision,path,topology,width,height,chunks,layers,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertEdit, _ := s.db.Prepare(`INSERT OR REPLACE INTO edits(map_id,seq,time,op,layer,x,y,value,entity) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
		if insertEdit != nil {
			_ = insertEdit.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	// exec runs one insert inside a savepoint so a failure undoes only that row.
	exec := func(stmt *sql.Stmt, args ...any) error {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT idx_row"); err != nil {
			return err
		}
		if _, err := tx.Stmt(stmt).ExecContext(ctx, args...); err != nil {
			_, _ = tx.ExecContext(ctx, "ROLLBACK TO idx_row")
			_, _ = tx.ExecContext(ctx, "RELEASE idx_row")
			return err
		}
		_, err := tx.ExecContext(ctx, "RELEASE idx_row")
		return err
	}

	tick := time.NewTicker(commitMaxWait)
	defer tick.Stop()

	for {
		var (
			r  req
			ok bool
		)
		select {
		case r, ok = <-s.ch:
		case <-tick.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}
		if !ok {
			commit()
			return
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				// A lost row is recovered by the snapshot directory scan on resume.
				_ = exec(insertSnapshot,
					sn.MapID,
					int64(sn.Revision),
					sn.Path,
					sn.Topology,
					sn.Width,
					sn.Height,
					sn.Chunks,
					sn.Layers,
					sn.RecordedAt.UTC().Format(time.RFC3339Nano),
				)
			}
			// Readers resume from this row, so it is committed right away.
			commit()
			continue

		case reqEdit:
			e := r.edit
			if insertEdit != nil {
				if err := exec(insertEdit,
					e.MapID,
					int64(e.Seq),
					e.Time.UTC().Format(time.RFC3339Nano),
					e.Op,
					int64(e.Layer),
					e.X,
					e.Y,
					int64(e.Value),
					e.Entity,
				); err != nil {
					s.dropEdits.Add(1)
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery {
			commit()
		}
	}
}
