package tilemap

import "sort"

type StorageKind uint8

const (
	StorageDense StorageKind = iota + 1
	StorageSparse
)

func (k StorageKind) String() string {
	switch k {
	case StorageDense:
		return "dense"
	case StorageSparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// LayerStorage holds one layer of one chunk. Dense storage keeps every position in a
// row-major slice; sparse storage keeps only set positions. Both keep tile entities in
// a separate sparse map, since most tiles never have one.
type LayerStorage[T any] struct {
	kind   StorageKind
	w, h   int
	dense  []T
	sparse map[ChunkLocalPos]*T

	entities map[ChunkLocalPos]Entity
}

func NewDenseDefault[T any](w, h int) *LayerStorage[T] {
	checkDims(w, h)
	return &LayerStorage[T]{
		kind:  StorageDense,
		w:     w,
		h:     h,
		dense: make([]T, w*h),
	}
}

func NewDenseUniform[T any](w, h int, v T) *LayerStorage[T] {
	s := NewDenseDefault[T](w, h)
	for i := range s.dense {
		s.dense[i] = v
	}
	return s
}

// NewDenseFromRows copies rows[y][x]. Ragged or empty rows panic with ErrMalformedInputGrid.
func NewDenseFromRows[T any](rows [][]T) *LayerStorage[T] {
	w, h := rectangular(rows)
	s := NewDenseDefault[T](w, h)
	for y, row := range rows {
		copy(s.dense[y*w:(y+1)*w], row)
	}
	return s
}

func NewSparseEmpty[T any](w, h int) *LayerStorage[T] {
	checkDims(w, h)
	return &LayerStorage[T]{
		kind:   StorageSparse,
		w:      w,
		h:      h,
		sparse: map[ChunkLocalPos]*T{},
	}
}

func NewSparseFromMap[T any](m map[ChunkLocalPos]T, w, h int) *LayerStorage[T] {
	s := NewSparseEmpty[T](w, h)
	for k, v := range m {
		v := v
		s.sparse[k] = &v
	}
	return s
}

func checkDims(w, h int) {
	if w < 0 || h < 0 {
		violate(ErrMalformedInputGrid, "negative layer size %dx%d", w, h)
	}
}

func (s *LayerStorage[T]) Kind() StorageKind { return s.kind }
func (s *LayerStorage[T]) Dimensions() Size  { return Size{X: s.w, Y: s.h} }

// Len is the number of stored tile values.
func (s *LayerStorage[T]) Len() int {
	if s.kind == StorageDense {
		return len(s.dense)
	}
	return len(s.sparse)
}

func (s *LayerStorage[T]) Contains(p ChunkLocalPos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.w && p.Y < s.h
}

func (s *LayerStorage[T]) index(p ChunkLocalPos) int {
	if !s.Contains(p) {
		panic("tilemap: " + p.String() + " outside dense layer " + s.Dimensions().String())
	}
	return p.X + p.Y*s.w
}

// Get returns the value at p. Sparse layers report false for unset positions.
func (s *LayerStorage[T]) Get(p ChunkLocalPos) (T, bool) {
	switch s.kind {
	case StorageDense:
		return s.dense[s.index(p)], true
	default:
		if v, ok := s.sparse[p]; ok {
			return *v, true
		}
		var zero T
		return zero, false
	}
}

// GetPtr returns a pointer for in-place mutation, or nil for an unset sparse position.
func (s *LayerStorage[T]) GetPtr(p ChunkLocalPos) *T {
	switch s.kind {
	case StorageDense:
		return &s.dense[s.index(p)]
	default:
		return s.sparse[p]
	}
}

func (s *LayerStorage[T]) Set(p ChunkLocalPos, v T) {
	switch s.kind {
	case StorageDense:
		s.dense[s.index(p)] = v
	default:
		if cur, ok := s.sparse[p]; ok {
			*cur = v
			return
		}
		s.sparse[p] = &v
	}
}

func (s *LayerStorage[T]) Entity(p ChunkLocalPos) (Entity, bool) {
	e, ok := s.entities[p]
	return e, ok
}

func (s *LayerStorage[T]) SetEntity(p ChunkLocalPos, e Entity) {
	if s.entities == nil {
		s.entities = map[ChunkLocalPos]Entity{}
	}
	s.entities[p] = e
}

func (s *LayerStorage[T]) ClearEntity(p ChunkLocalPos) {
	delete(s.entities, p)
}

func (s *LayerStorage[T]) EntityCount() int { return len(s.entities) }

// Values returns a row-major copy of a dense layer, nil for sparse layers.
func (s *LayerStorage[T]) Values() []T {
	if s.kind != StorageDense {
		return nil
	}
	return append([]T(nil), s.dense...)
}

type SparseEntry[T any] struct {
	Pos   ChunkLocalPos
	Value T
}

type EntityEntry struct {
	Pos    ChunkLocalPos
	Entity Entity
}

// SparseEntries lists set positions of a sparse layer ordered by (y, x).
func (s *LayerStorage[T]) SparseEntries() []SparseEntry[T] {
	out := make([]SparseEntry[T], 0, len(s.sparse))
	for p, v := range s.sparse {
		out = append(out, SparseEntry[T]{Pos: p, Value: *v})
	}
	sort.Slice(out, func(i, j int) bool { return localLess(out[i].Pos, out[j].Pos) })
	return out
}

// Entities lists tile entities ordered by (y, x).
func (s *LayerStorage[T]) Entities() []EntityEntry {
	out := make([]EntityEntry, 0, len(s.entities))
	for p, e := range s.entities {
		out = append(out, EntityEntry{Pos: p, Entity: e})
	}
	sort.Slice(out, func(i, j int) bool { return localLess(out[i].Pos, out[j].Pos) })
	return out
}

func localLess(a, b ChunkLocalPos) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
