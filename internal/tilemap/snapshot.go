package tilemap

import (
	"fmt"

	"sparsetile.ai/internal/encoding"
	"sparsetile.ai/internal/persistence/snapshot"
)

// ExportTilemap copies the tilemap stored under target, with every chunk, into a snapshot.
func ExportTilemap[T comparable, C Converter](host Host[T, C], target Handle, mapID string, revision uint64) (snapshot.TilemapV1[T], error) {
	var snap snapshot.TilemapV1[T]
	tm, ok := host.Tilemap(target)
	if !ok {
		return snap, fmt.Errorf("%w: handle %d", ErrTilemapNotFound, target)
	}
	conv := tm.Converter()
	chunkSize := conv.MaxChunkSize()
	counts := tm.Chunks().ChunkCounts()
	snap = snapshot.TilemapV1[T]{
		Header:   snapshot.Header{Version: snapshot.Version, MapID: mapID, Revision: revision},
		Topology: string(conv.Topology()),
		ChunkW:   chunkSize.X,
		ChunkH:   chunkSize.Y,
		ChunksX:  counts.X,
		ChunksY:  counts.Y,
		Chunks:   make([]snapshot.ChunkV1[T], 0, counts.Area()),
	}
	if hex, ok := any(conv).(HexSettings); ok {
		snap.Orientation = hex.Orientation.String()
	}

	var err error
	tm.Chunks().Handles().Each(func(x, y int, h Handle) {
		if err != nil {
			return
		}
		ch, ok := host.Chunk(h)
		if !ok {
			err = fmt.Errorf("%w: chunk(%d,%d) handle %d", ErrChunkDoesNotExist, x, y, h)
			return
		}
		snap.Chunks = append(snap.Chunks, exportChunk(ch))
	})
	return snap, err
}

func exportChunk[T comparable, C Converter](ch *Chunk[T, C]) snapshot.ChunkV1[T] {
	dims := ch.Dimensions()
	out := snapshot.ChunkV1[T]{X: ch.pos.X, Y: ch.pos.Y, W: dims.X, H: dims.Y}
	for _, id := range ch.mask.Layers() {
		st := ch.layers[id]
		lv := snapshot.LayerV1[T]{ID: uint32(id)}
		switch st.Kind() {
		case StorageDense:
			lv.Kind = snapshot.KindDense
			lv.Runs = encoding.EncodeRuns(st.dense)
		default:
			lv.Kind = snapshot.KindSparse
			for _, e := range st.SparseEntries() {
				lv.Tiles = append(lv.Tiles, snapshot.TileV1[T]{X: e.Pos.X, Y: e.Pos.Y, Value: e.Value})
			}
		}
		for _, e := range st.Entities() {
			lv.Entities = append(lv.Entities, snapshot.EntityV1{X: e.Pos.X, Y: e.Pos.Y, ID: e.Entity.String()})
		}
		out.Layers = append(out.Layers, lv)
	}
	return out
}

// ConverterFromSnapshot rebuilds the conversion settings recorded in snap as C.
func ConverterFromSnapshot[T comparable, C Converter](snap snapshot.TilemapV1[T]) (C, error) {
	var conv C
	size := Size{X: snap.ChunkW, Y: snap.ChunkH}
	if size.X <= 0 || size.Y <= 0 {
		return conv, fmt.Errorf("%w: max chunk size %s", ErrBadSnapshot, size)
	}
	var built Converter
	switch any(conv).(type) {
	case SquareSettings:
		built = SquareSettings{ChunkSize: size}
	case HexSettings:
		o, err := ParseHexOrientation(snap.Orientation)
		if err != nil {
			return conv, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		built = HexSettings{ChunkSize: size, Orientation: o}
	default:
		return conv, fmt.Errorf("%w: unsupported converter %T", ErrBadSnapshot, conv)
	}
	if string(built.Topology()) != snap.Topology {
		return conv, fmt.Errorf("%w: topology %q, want %q", ErrBadSnapshot, snap.Topology, built.Topology())
	}
	return built.(C), nil
}

// ImportTilemap validates snap, stores its chunks and tilemap in host and returns the
// tilemap handle. Nothing is inserted when validation fails.
func ImportTilemap[T comparable, C Converter](snap snapshot.TilemapV1[T], host Host[T, C]) (Handle, error) {
	conv, err := ConverterFromSnapshot[T, C](snap)
	if err != nil {
		return 0, err
	}
	if snap.ChunksX <= 0 || snap.ChunksY <= 0 || len(snap.Chunks) != snap.ChunksX*snap.ChunksY {
		return 0, fmt.Errorf("%w: %d chunks for a %dx%d grid", ErrBadSnapshot, len(snap.Chunks), snap.ChunksX, snap.ChunksY)
	}
	grid := NewGrid[*Chunk[T, C]](snap.ChunksX, snap.ChunksY)
	for i := range snap.Chunks {
		cv := &snap.Chunks[i]
		if !grid.InBounds(cv.X, cv.Y) {
			return 0, fmt.Errorf("%w: chunk(%d,%d) outside grid", ErrBadSnapshot, cv.X, cv.Y)
		}
		if prev, _ := grid.Get(cv.X, cv.Y); prev != nil {
			return 0, fmt.Errorf("%w: duplicate chunk(%d,%d)", ErrBadSnapshot, cv.X, cv.Y)
		}
		ch, err := importChunk(cv, conv)
		if err != nil {
			return 0, err
		}
		grid.Set(cv.X, cv.Y, ch)
	}
	last, _ := grid.Get(snap.ChunksX-1, snap.ChunksY-1)
	chunkSize := conv.MaxChunkSize()
	mapSize := chunkSize.Mul(Size{X: snap.ChunksX - 1, Y: snap.ChunksY - 1}).Add(last.Dimensions())
	grid.Each(func(_, _ int, ch *Chunk[T, C]) {
		if want := EdgeChunkSize(ch.pos, mapSize, chunkSize); err == nil && ch.Dimensions() != want {
			err = fmt.Errorf("%w: %s is %s, want %s for a %s map", ErrBadSnapshot, ch.pos, ch.Dimensions(), want, mapSize)
		}
	})
	if err != nil {
		return 0, err
	}
	built := &Built[T, C]{Chunks: grid, MapSize: mapSize, Converter: conv}
	return built.Spawn(host), nil
}

func importChunk[T comparable, C Converter](cv *snapshot.ChunkV1[T], conv C) (*Chunk[T, C], error) {
	pos := ChunkPos{X: cv.X, Y: cv.Y}
	chunkSize := conv.MaxChunkSize()
	if cv.W <= 0 || cv.H <= 0 || cv.W > chunkSize.X || cv.H > chunkSize.Y {
		return nil, fmt.Errorf("%w: %s size %dx%d", ErrBadSnapshot, pos, cv.W, cv.H)
	}
	ch := &Chunk[T, C]{pos: pos, layers: map[LayerID]*LayerStorage[T]{}, settings: conv}
	for _, lv := range cv.Layers {
		id := LayerID(lv.ID)
		if !id.Valid() {
			return nil, fmt.Errorf("%w: %s layer id %#x", ErrBadSnapshot, pos, lv.ID)
		}
		st, err := importLayer(lv, cv.W, cv.H)
		if err != nil {
			return nil, fmt.Errorf("%s layer %d: %w", pos, id.Index(), err)
		}
		ch.putLayer(id, st)
	}
	if !ch.HasLayer(MainLayer) {
		return nil, fmt.Errorf("%w: %s has no default layer", ErrBadSnapshot, pos)
	}
	ch.revision = 0
	return ch, nil
}

func importLayer[T comparable](lv snapshot.LayerV1[T], w, h int) (*LayerStorage[T], error) {
	var st *LayerStorage[T]
	switch lv.Kind {
	case snapshot.KindDense:
		if n := encoding.RunsLen(lv.Runs); n != w*h {
			return nil, fmt.Errorf("%w: dense runs cover %d tiles, want %d", ErrBadSnapshot, n, w*h)
		}
		vals, err := encoding.DecodeRuns(lv.Runs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		st = &LayerStorage[T]{kind: StorageDense, w: w, h: h, dense: vals}
	case snapshot.KindSparse:
		st = NewSparseEmpty[T](w, h)
		for _, tv := range lv.Tiles {
			p := ChunkLocalPos{X: tv.X, Y: tv.Y}
			if !st.Contains(p) {
				return nil, fmt.Errorf("%w: tile %s outside %dx%d", ErrBadSnapshot, p, w, h)
			}
			st.Set(p, tv.Value)
		}
	default:
		return nil, fmt.Errorf("%w: layer kind %q", ErrBadSnapshot, lv.Kind)
	}
	for _, ev := range lv.Entities {
		p := ChunkLocalPos{X: ev.X, Y: ev.Y}
		if !st.Contains(p) {
			return nil, fmt.Errorf("%w: entity %s outside %dx%d", ErrBadSnapshot, p, w, h)
		}
		e, err := ParseEntity(ev.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: entity %s: %v", ErrBadSnapshot, p, err)
		}
		st.SetEntity(p, e)
	}
	return st, nil
}
