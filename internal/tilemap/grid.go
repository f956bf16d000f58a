package tilemap

// Grid is a row-major rectangle of values.
type Grid[T any] struct {
	w, h  int
	cells []T
}

func NewGrid[T any](w, h int) *Grid[T] {
	if w < 0 || h < 0 {
		violate(ErrMalformedInputGrid, "negative grid size %dx%d", w, h)
	}
	return &Grid[T]{w: w, h: h, cells: make([]T, w*h)}
}

// NewGridFromRows copies rows into a grid. Rows must be rectangular.
func NewGridFromRows[T any](rows [][]T) *Grid[T] {
	w, h := rectangular(rows)
	g := NewGrid[T](w, h)
	for y, row := range rows {
		copy(g.cells[y*w:(y+1)*w], row)
	}
	return g
}

func (g *Grid[T]) Width() int  { return g.w }
func (g *Grid[T]) Height() int { return g.h }
func (g *Grid[T]) Size() Size  { return Size{X: g.w, Y: g.h} }

func (g *Grid[T]) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.w && y < g.h
}

func (g *Grid[T]) Get(x, y int) (T, bool) {
	if !g.InBounds(x, y) {
		var zero T
		return zero, false
	}
	return g.cells[x+y*g.w], true
}

func (g *Grid[T]) Set(x, y int, v T) {
	if !g.InBounds(x, y) {
		violate(ErrMalformedInputGrid, "grid position (%d,%d) outside %dx%d", x, y, g.w, g.h)
	}
	g.cells[x+y*g.w] = v
}

// Each visits every value in row-major order.
func (g *Grid[T]) Each(fn func(x, y int, v T)) {
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			fn(x, y, g.cells[x+y*g.w])
		}
	}
}

// rectangular returns the width and height of rows, panicking on ragged or empty input.
func rectangular[T any](rows [][]T) (w, h int) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		violate(ErrMalformedInputGrid, "empty rows")
	}
	w = len(rows[0])
	total := 0
	for _, row := range rows {
		total += len(row)
	}
	if total != w*len(rows) {
		violate(ErrMalformedInputGrid, "ragged rows: %d values, want %d rows of %d", total, len(rows), w)
	}
	for y, row := range rows {
		if len(row) != w {
			violate(ErrMalformedInputGrid, "row %d has %d values, want %d", y, len(row), w)
		}
	}
	return w, len(rows)
}
