package tilemap

// TilemapLayer is one whole-map layer handed to a Builder before it is split into chunks.
type TilemapLayer[T any] struct {
	kind     StorageKind
	rows     [][]T
	cells    map[Cell]T
	size     Size
	entities map[Cell]Entity
}

// NewDenseLayer takes rows[y][x] covering the whole map. Ragged or empty rows panic.
func NewDenseLayer[T any](rows [][]T, entities map[Cell]Entity) TilemapLayer[T] {
	w, h := rectangular(rows)
	return TilemapLayer[T]{
		kind:     StorageDense,
		rows:     rows,
		size:     Size{X: w, Y: h},
		entities: entities,
	}
}

// NewDenseUniformLayer is a dense layer of w*h copies of v.
func NewDenseUniformLayer[T any](w, h int, v T, entities map[Cell]Entity) TilemapLayer[T] {
	checkDims(w, h)
	rows := make([][]T, h)
	for y := range rows {
		row := make([]T, w)
		for x := range row {
			row[x] = v
		}
		rows[y] = row
	}
	return NewDenseLayer(rows, entities)
}

// NewSparseLayer holds the set cells of a w*h map.
func NewSparseLayer[T any](w, h int, cells map[Cell]T, entities map[Cell]Entity) TilemapLayer[T] {
	checkDims(w, h)
	if cells == nil {
		cells = map[Cell]T{}
	}
	return TilemapLayer[T]{
		kind:     StorageSparse,
		cells:    cells,
		size:     Size{X: w, Y: h},
		entities: entities,
	}
}

func (l TilemapLayer[T]) Kind() StorageKind         { return l.kind }
func (l TilemapLayer[T]) Dimensions() Size          { return l.size }
func (l TilemapLayer[T]) Entities() map[Cell]Entity { return l.entities }
