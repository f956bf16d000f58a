package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	tlog "sparsetile.ai/internal/persistence/log"
)

func TestSQLiteIndex_LatestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordSnapshot(SnapshotRow{MapID: "m1", Revision: 5, Path: "/data/5.snap.zst", Topology: "square", Width: 8, Height: 9, Chunks: 4, Layers: 2})
	idx.RecordSnapshot(SnapshotRow{MapID: "m1", Revision: 12, Path: "/data/12.snap.zst", Topology: "square", Width: 8, Height: 9, Chunks: 4, Layers: 2})
	idx.RecordSnapshot(SnapshotRow{MapID: "m2", Revision: 40, Path: "/other/40.snap.zst", Topology: "hex", Width: 3, Height: 3, Chunks: 1, Layers: 1})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	row, ok, err := idx.LatestSnapshot(context.Background(), "m1")
	if err != nil || !ok {
		t.Fatalf("LatestSnapshot: %v %v", ok, err)
	}
	if row.Revision != 12 || row.Path != "/data/12.snap.zst" || row.Width != 8 || row.Height != 9 {
		t.Fatalf("row mismatch: %+v", row)
	}
	if row.RecordedAt.IsZero() {
		t.Fatalf("recorded_at not stored")
	}
	if _, ok, err := idx.LatestSnapshot(context.Background(), "nope"); err != nil || ok {
		t.Fatalf("unknown map: %v %v", ok, err)
	}
}

func TestSQLiteIndex_RecordEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for seq := uint64(1); seq <= 3; seq++ {
		idx.RecordEdit(tlog.EditEntry{Seq: seq, Time: now, MapID: "m1", Op: tlog.OpSetTile, Layer: 1, X: 2, Y: 3, Value: uint16(seq)})
	}
	idx.RecordEdit(tlog.EditEntry{Seq: 4, Time: now, MapID: "m1", Op: tlog.OpSetEntity, Layer: 1, X: 0, Y: 0, Entity: "e"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		n     int
		value int
	)
	if err := db.QueryRow(`SELECT COUNT(*) FROM edits WHERE map_id='m1'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Fatalf("edits: got %d want 4", n)
	}
	if err := db.QueryRow(`SELECT value FROM edits WHERE map_id='m1' AND seq=3`).Scan(&value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if value != 3 {
		t.Fatalf("value: got %d want 3", value)
	}
}

func TestSQLiteIndex_EditCount(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordEdit(tlog.EditEntry{Seq: 1, MapID: "m1", Op: tlog.OpSetTile, X: 1, Y: 1})
	idx.RecordEdit(tlog.EditEntry{Seq: 2, MapID: "m1", Op: tlog.OpSetTile, X: 1, Y: 1})
	// A snapshot row forces a commit of everything queued before it.
	idx.RecordSnapshot(SnapshotRow{MapID: "m1", Revision: 2, Path: "p", Topology: "square"})

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := idx.EditCount(context.Background(), "m1", 1, 1)
		if err != nil {
			t.Fatalf("EditCount: %v", err)
		}
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("EditCount: got %d want 2", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = idx.Close()
}

func TestSQLiteIndex_DropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqEdit}
	s.RecordEdit(tlog.EditEntry{Seq: 2})
	s.RecordEdit(tlog.EditEntry{Seq: 3})

	st := s.Stats()
	if st.DropEditTotal != 2 {
		t.Fatalf("DropEditTotal=%d want=2", st.DropEditTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_FailedEditKeepsBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(`CREATE TRIGGER reject_seq2 BEFORE INSERT ON edits WHEN NEW.seq = 2
		BEGIN SELECT RAISE(ABORT, 'rejected'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	_ = db.Close()

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for seq := uint64(1); seq <= 3; seq++ {
		idx.RecordEdit(tlog.EditEntry{Seq: seq, MapID: "m1", Op: tlog.OpSetTile, X: 1, Y: 1})
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st := idx.Stats(); st.DropEditTotal != 1 {
		t.Fatalf("DropEditTotal: got %d want 1", st.DropEditTotal)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	n, err := idx.EditCount(context.Background(), "m1", 1, 1)
	if err != nil {
		t.Fatalf("EditCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("EditCount: got %d want 2", n)
	}
}

func TestSQLiteIndex_RecordAfterClose(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for seq := uint64(1); seq <= 2000; seq++ {
			idx.RecordEdit(tlog.EditEntry{Seq: seq, MapID: "m1", Op: tlog.OpSetTile})
			if seq%100 == 0 {
				idx.RecordSnapshot(SnapshotRow{MapID: "m1", Revision: seq, Path: "p", Topology: "square"})
			}
		}
	}()
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-done
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	idx.RecordEdit(tlog.EditEntry{Seq: 2001, MapID: "m1"})
	idx.RecordSnapshot(SnapshotRow{MapID: "m1", Revision: 2001})
}
