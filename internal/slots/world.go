// Package slots is an in-memory host for tilemaps: chunks and tilemaps live in slot
// maps keyed by handles, and tile entities are random uuids.
package slots

import (
	"github.com/google/uuid"

	"sparsetile.ai/internal/tilemap"
)

type World[T any, C tilemap.Converter] struct {
	nextHandle tilemap.Handle

	chunks   map[tilemap.Handle]*tilemap.Chunk[T, C]
	tilemaps map[tilemap.Handle]*tilemap.Tilemap[C]
	live     map[tilemap.Entity]struct{}
}

func New[T any, C tilemap.Converter]() *World[T, C] {
	return &World[T, C]{
		nextHandle: 1,
		chunks:     map[tilemap.Handle]*tilemap.Chunk[T, C]{},
		tilemaps:   map[tilemap.Handle]*tilemap.Tilemap[C]{},
		live:       map[tilemap.Entity]struct{}{},
	}
}

func (w *World[T, C]) alloc() tilemap.Handle {
	h := w.nextHandle
	w.nextHandle++
	return h
}

func (w *World[T, C]) InsertChunk(ch *tilemap.Chunk[T, C]) tilemap.Handle {
	h := w.alloc()
	w.chunks[h] = ch
	return h
}

func (w *World[T, C]) Chunk(h tilemap.Handle) (*tilemap.Chunk[T, C], bool) {
	ch, ok := w.chunks[h]
	return ch, ok
}

func (w *World[T, C]) InsertTilemap(tm *tilemap.Tilemap[C]) tilemap.Handle {
	h := w.alloc()
	w.tilemaps[h] = tm
	return h
}

func (w *World[T, C]) Tilemap(h tilemap.Handle) (*tilemap.Tilemap[C], bool) {
	tm, ok := w.tilemaps[h]
	return tm, ok
}

// RemoveTilemap drops the tilemap and every chunk it references.
func (w *World[T, C]) RemoveTilemap(h tilemap.Handle) bool {
	tm, ok := w.tilemaps[h]
	if !ok {
		return false
	}
	tm.Chunks().Handles().Each(func(_, _ int, ch tilemap.Handle) {
		delete(w.chunks, ch)
	})
	delete(w.tilemaps, h)
	return true
}

func (w *World[T, C]) SpawnEntity() tilemap.Entity {
	e := tilemap.Entity(uuid.New())
	w.live[e] = struct{}{}
	return e
}

// DespawnEntity releases e. Unknown or already released entities are ignored.
func (w *World[T, C]) DespawnEntity(e tilemap.Entity) {
	delete(w.live, e)
}

// Adopt marks entities restored from a snapshot as live.
func (w *World[T, C]) Adopt(e tilemap.Entity) {
	if !e.IsNil() {
		w.live[e] = struct{}{}
	}
}

func (w *World[T, C]) Live(e tilemap.Entity) bool {
	_, ok := w.live[e]
	return ok
}

func (w *World[T, C]) LiveEntities() int { return len(w.live) }
func (w *World[T, C]) ChunkCount() int   { return len(w.chunks) }
func (w *World[T, C]) TilemapCount() int { return len(w.tilemaps) }

// AdoptAll marks every tile entity of the tilemap under h as live.
func (w *World[T, C]) AdoptAll(h tilemap.Handle) {
	tm, ok := w.tilemaps[h]
	if !ok {
		return
	}
	tm.Chunks().Handles().Each(func(_, _ int, chh tilemap.Handle) {
		ch, ok := w.chunks[chh]
		if !ok {
			return
		}
		for _, id := range ch.Layers().Layers() {
			st, _ := ch.Storage(id)
			for _, e := range st.Entities() {
				w.Adopt(e.Entity)
			}
		}
	})
}

var _ tilemap.Host[uint16, tilemap.SquareSettings] = (*World[uint16, tilemap.SquareSettings])(nil)
