// Package service hosts tilemaps for the tile server: it owns locking,
// the edit journal, snapshots and the chunk view cache.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"sparsetile.ai/internal/persistence/indexdb"
	tlog "sparsetile.ai/internal/persistence/log"
	"sparsetile.ai/internal/persistence/snapshot"
	"sparsetile.ai/internal/protocol"
	"sparsetile.ai/internal/slots"
	"sparsetile.ai/internal/tilemap"
)

var (
	ErrNoDataDir = errors.New("map has no data dir")
	ErrMapClosed = errors.New("map closed")
)

type Options struct {
	// DataDir holds maps/<id>/{snapshots,edits}. Empty keeps the map in memory only.
	DataDir string
	// SnapshotEvery writes a snapshot after that many edits. Zero disables periodic snapshots.
	SnapshotEvery int
	// CacheMB bounds the chunk view cache. Zero disables it.
	CacheMB int
	Index   *indexdb.SQLiteIndex
	Logger  *log.Logger
}

// BuildFunc produces the initial chunk grid of a map that has no snapshot yet.
type BuildFunc[C tilemap.Converter] func(ctx context.Context) (*tilemap.Built[uint16, C], error)

// Map is one hosted tilemap. All engine access goes through mu.
type Map[C tilemap.Converter] struct {
	mu      sync.Mutex
	snapMu  sync.Mutex
	id      string
	dir     string
	world   *slots.World[uint16, C]
	handle  tilemap.Handle
	names   *tilemap.LayerNames
	size    tilemap.Size
	rev     uint64
	snapRev uint64
	closed  bool

	snapEvery int
	journal   *tlog.EditLog
	index     *indexdb.SQLiteIndex
	cache     *ristretto.Cache[string, *protocol.ChunkView]
	logger    *log.Logger
}

func MapDir(dataDir, mapID string) string { return filepath.Join(dataDir, "maps", mapID) }
func SnapshotDir(mapDir string) string    { return filepath.Join(mapDir, "snapshots") }

// Open resumes mapID from its latest snapshot plus newer journal entries, or
// builds it with build when no snapshot exists.
func Open[C tilemap.Converter](ctx context.Context, mapID string, layerNames []string, opts Options, build BuildFunc[C]) (*Map[C], error) {
	m := &Map[C]{
		id:        mapID,
		world:     slots.New[uint16, C](),
		names:     tilemap.NewLayerNames(layerNames...),
		snapEvery: opts.SnapshotEvery,
		index:     opts.Index,
		logger:    opts.Logger,
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard, "", 0)
	}
	if opts.DataDir != "" {
		m.dir = MapDir(opts.DataDir, mapID)
	}

	fresh, err := m.load(ctx, build)
	if err != nil {
		return nil, err
	}
	if m.dir != "" {
		if err := m.replay(); err != nil {
			return nil, err
		}
		m.journal = tlog.NewEditLog(m.dir)
	}

	mgr, err := tilemap.NewManager[uint16, C](m.world, m.handle)
	if err != nil {
		return nil, err
	}
	if m.size, err = mgr.Dimensions(); err != nil {
		return nil, err
	}

	if opts.CacheMB > 0 {
		m.cache, err = ristretto.NewCache[string, *protocol.ChunkView](&ristretto.Config[string, *protocol.ChunkView]{
			NumCounters: 100_000,
			MaxCost:     int64(opts.CacheMB) << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("chunk cache: %w", err)
		}
	}

	if fresh && m.dir != "" {
		if _, err := m.Snapshot(); err != nil {
			return nil, fmt.Errorf("initial snapshot: %w", err)
		}
	}
	return m, nil
}

func (m *Map[C]) load(ctx context.Context, build BuildFunc[C]) (fresh bool, err error) {
	path, ok, err := m.latestSnapshot(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		snap, err := snapshot.Read[uint16](path)
		if err != nil {
			return false, fmt.Errorf("read snapshot: %w", err)
		}
		if snap.Header.MapID != m.id {
			return false, fmt.Errorf("snapshot %s belongs to map %q", path, snap.Header.MapID)
		}
		h, err := tilemap.ImportTilemap[uint16, C](snap, m.world)
		if err != nil {
			return false, fmt.Errorf("import %s: %w", path, err)
		}
		m.world.AdoptAll(h)
		m.handle = h
		m.rev = snap.Header.Revision
		m.snapRev = m.rev
		m.logger.Printf("map %s: resumed from %s (revision %d)", m.id, filepath.Base(path), m.rev)
		return false, nil
	}

	built, err := build(ctx)
	if err != nil {
		return false, err
	}
	m.handle = built.Spawn(m.world)
	m.logger.Printf("map %s: built %s map in %dx%d chunks", m.id, built.MapSize, built.Chunks.Width(), built.Chunks.Height())
	return true, nil
}

// latestSnapshot prefers the index and falls back to the newest file on disk.
func (m *Map[C]) latestSnapshot(ctx context.Context) (string, bool, error) {
	if m.dir == "" {
		return "", false, nil
	}
	if m.index != nil {
		row, ok, err := m.index.LatestSnapshot(ctx, m.id)
		if err != nil {
			return "", false, fmt.Errorf("index: %w", err)
		}
		if ok {
			if _, err := os.Stat(row.Path); err == nil {
				return row.Path, true, nil
			}
			m.logger.Printf("map %s: indexed snapshot %s missing, scanning %s", m.id, row.Path, SnapshotDir(m.dir))
		}
	}
	paths, err := filepath.Glob(filepath.Join(SnapshotDir(m.dir), "*"+snapshot.Ext))
	if err != nil {
		return "", false, err
	}
	if len(paths) == 0 {
		return "", false, nil
	}
	sort.Strings(paths)
	return paths[len(paths)-1], true, nil
}

func (m *Map[C]) replay() error {
	entries, err := tlog.ReadJournalSince(tlog.JournalDir(m.dir), m.rev)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	mgr, err := tilemap.NewManager[uint16, C](m.world, m.handle)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Seq != m.rev+1 {
			m.logger.Printf("map %s: journal gap at seq %d (revision %d)", m.id, e.Seq, m.rev)
		}
		if err := applyEdit(m.world, mgr, e); err != nil {
			return fmt.Errorf("replay seq %d: %w", e.Seq, err)
		}
		m.rev = e.Seq
	}
	m.logger.Printf("map %s: replayed %d edits to revision %d", m.id, len(entries), m.rev)
	return nil
}

func applyEdit[C tilemap.Converter](w *slots.World[uint16, C], mgr *tilemap.Manager[uint16, C], e tlog.EditEntry) error {
	id := tilemap.LayerID(e.Layer)
	if !id.Valid() {
		return fmt.Errorf("%w: layer %#x", tilemap.ErrInvalidLayerID, e.Layer)
	}
	mgr.SetLayer(id)
	cell := tilemap.Cell{X: e.X, Y: e.Y}
	switch e.Op {
	case tlog.OpSetTile:
		return mgr.SetTileData(cell, e.Value)
	case tlog.OpSetEntity:
		ent, err := tilemap.ParseEntity(e.Entity)
		if err != nil {
			return err
		}
		w.Adopt(ent)
		return mgr.SetTileEntity(cell, ent)
	case tlog.OpRemoveEntity:
		_, err := mgr.RemoveTileEntity(cell)
		return err
	default:
		return fmt.Errorf("unknown op %q", e.Op)
	}
}

// commit records an applied edit. The caller holds mu. It reports whether a
// periodic snapshot is due.
func (m *Map[C]) commit(op string, layer tilemap.LayerID, cell tilemap.Cell, value uint16, ent tilemap.Entity) bool {
	m.rev++
	e := tlog.EditEntry{
		Seq:   m.rev,
		Time:  time.Now().UTC(),
		MapID: m.id,
		Op:    op,
		Layer: uint32(layer),
		X:     cell.X,
		Y:     cell.Y,
		Value: value,
	}
	if !ent.IsNil() {
		e.Entity = ent.String()
	}
	if m.journal != nil {
		if err := m.journal.WriteEdit(e); err != nil {
			m.logger.Printf("map %s: journal seq %d: %v", m.id, e.Seq, err)
		}
	}
	m.index.RecordEdit(e)
	return m.snapEvery > 0 && m.dir != "" && m.rev-m.snapRev >= uint64(m.snapEvery)
}

// Snapshot writes the current state and records it in the index.
func (m *Map[C]) Snapshot() (string, error) {
	if m.dir == "" {
		return "", ErrNoDataDir
	}
	m.snapMu.Lock()
	defer m.snapMu.Unlock()
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return "", ErrMapClosed
	}
	return m.writeSnapshot()
}

// writeSnapshot exports and writes the map. The caller holds snapMu.
func (m *Map[C]) writeSnapshot() (string, error) {
	m.mu.Lock()
	rev := m.rev
	snap, err := tilemap.ExportTilemap[uint16, C](m.world, m.handle, m.id, rev)
	m.mu.Unlock()
	if err != nil {
		return "", err
	}

	path := snapshot.Path(SnapshotDir(m.dir), rev)
	if err := snapshot.Write(path, snap); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if m.journal != nil {
		if err := m.journal.Sync(); err != nil {
			m.logger.Printf("map %s: journal sync: %v", m.id, err)
		}
	}

	m.mu.Lock()
	if rev > m.snapRev {
		m.snapRev = rev
	}
	m.mu.Unlock()

	layers := 0
	if len(snap.Chunks) > 0 {
		layers = len(snap.Chunks[0].Layers)
	}
	m.index.RecordSnapshot(indexdb.SnapshotRow{
		MapID:    m.id,
		Revision: rev,
		Path:     path,
		Topology: snap.Topology,
		Width:    m.size.X,
		Height:   m.size.Y,
		Chunks:   len(snap.Chunks),
		Layers:   layers,
	})
	return path, nil
}

func (m *Map[C]) ID() string { return m.id }

func (m *Map[C]) Revision() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rev
}

func (m *Map[C]) Info() protocol.MapInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := protocol.MapInfo{
		MapID:    m.id,
		Width:    m.size.X,
		Height:   m.size.Y,
		Layers:   m.names.Names(),
		Revision: m.rev,
	}
	if tm, ok := m.world.Tilemap(m.handle); ok {
		conv := tm.Converter()
		cs := conv.MaxChunkSize()
		info.Topology = string(conv.Topology())
		info.ChunkSize = [2]int{cs.X, cs.Y}
		if hex, ok := any(conv).(tilemap.HexSettings); ok {
			info.Orientation = hex.Orientation.String()
		}
	}
	return info
}

// Close writes a final snapshot when edits are pending and closes the journal.
// Requests and snapshots after Close fail with ErrMapClosed.
func (m *Map[C]) Close() error {
	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	dirty := m.rev > m.snapRev
	m.mu.Unlock()

	var err error
	if dirty && m.dir != "" {
		if _, serr := m.writeSnapshot(); serr != nil {
			err = serr
		}
	}
	if m.journal != nil {
		err = errors.Join(err, m.journal.Close())
	}
	if m.cache != nil {
		m.cache.Close()
	}
	return err
}
