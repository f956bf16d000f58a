package tilemap

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

type testHost[T any, C Converter] struct {
	next     Handle
	chunks   map[Handle]*Chunk[T, C]
	tilemaps map[Handle]*Tilemap[C]
	live     map[Entity]bool
}

func newTestHost[T any, C Converter]() *testHost[T, C] {
	return &testHost[T, C]{
		chunks:   map[Handle]*Chunk[T, C]{},
		tilemaps: map[Handle]*Tilemap[C]{},
		live:     map[Entity]bool{},
	}
}

func (h *testHost[T, C]) InsertChunk(ch *Chunk[T, C]) Handle {
	h.next++
	h.chunks[h.next] = ch
	return h.next
}

func (h *testHost[T, C]) Chunk(k Handle) (*Chunk[T, C], bool) {
	ch, ok := h.chunks[k]
	return ch, ok
}

func (h *testHost[T, C]) InsertTilemap(tm *Tilemap[C]) Handle {
	h.next++
	h.tilemaps[h.next] = tm
	return h.next
}

func (h *testHost[T, C]) Tilemap(k Handle) (*Tilemap[C], bool) {
	tm, ok := h.tilemaps[k]
	return tm, ok
}

func (h *testHost[T, C]) SpawnEntity() Entity {
	e := Entity(uuid.New())
	h.live[e] = true
	return e
}

func (h *testHost[T, C]) DespawnEntity(e Entity) { delete(h.live, e) }

// mustViolate runs fn and fails unless it panics with a ContractError wrapping want.
func mustViolate(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v", want)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %T (%v) is not an error", r, r)
		}
		var ce *ContractError
		if !errors.As(err, &ce) || !errors.Is(err, want) {
			t.Fatalf("panic: got %v want %v", err, want)
		}
	}()
	fn()
}

func rowsOf(w, h int) [][]uint16 {
	rows := make([][]uint16, h)
	for y := range rows {
		rows[y] = make([]uint16, w)
		for x := range rows[y] {
			rows[y][x] = uint16(x + y*w)
		}
	}
	return rows
}
