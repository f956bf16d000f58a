package tilemap

import "sparsetile.ai/internal/mathx"

// EdgeChunkSize is the extent of the chunk at pos. Interior chunks get the full max size;
// chunks on the right and bottom edges are clipped to what is left of the map.
func EdgeChunkSize(pos ChunkPos, mapSize, maxChunkSize Size) Size {
	return Size{
		X: clipAxis(pos.X, mapSize.X, maxChunkSize.X),
		Y: clipAxis(pos.Y, mapSize.Y, maxChunkSize.Y),
	}
}

func clipAxis(chunk, mapLen, chunkSize int) int {
	left := mapLen - chunk*chunkSize
	if left <= 0 {
		return 0
	}
	return mathx.MinInt(left, chunkSize)
}

// ChunkRows cuts the rows belonging to the chunk at pos out of whole-map rows.
func ChunkRows[T any](rows [][]T, pos ChunkPos, maxChunkSize Size) [][]T {
	w, h := rectangular(rows)
	return chunkRows(rows, Size{X: w, Y: h}, pos, maxChunkSize)
}

func chunkRows[T any](rows [][]T, mapSize Size, pos ChunkPos, maxChunkSize Size) [][]T {
	size := EdgeChunkSize(pos, mapSize, maxChunkSize)
	x0, y0 := pos.X*maxChunkSize.X, pos.Y*maxChunkSize.Y
	out := make([][]T, size.Y)
	for y := range out {
		out[y] = append([]T(nil), rows[y0+y][x0:x0+size.X]...)
	}
	return out
}

// BreakDenseIntoChunks splits whole-map rows into a row-major grid of chunks holding
// the rows as their dense main layer.
func BreakDenseIntoChunks[T any, C Converter](rows [][]T, conv C) *Grid[*Chunk[T, C]] {
	chunkSize := conv.MaxChunkSize()
	checkChunkSize(chunkSize)
	w, h := rectangular(rows)
	mapSize := Size{X: w, Y: h}
	counts := ChunkCountsFor(mapSize, chunkSize)
	grid := NewGrid[*Chunk[T, C]](counts.X, counts.Y)
	for cy := 0; cy < counts.Y; cy++ {
		for cx := 0; cx < counts.X; cx++ {
			pos := ChunkPos{X: cx, Y: cy}
			data := chunkRows(rows, mapSize, pos, chunkSize)
			grid.Set(cx, cy, NewChunk(pos, Size{X: len(data[0]), Y: len(data)}, DenseData(data), conv))
		}
	}
	return grid
}

// BreakSparseIntoChunks allocates every chunk of a mapSize map with empty sparse storage,
// then stores each cell's value in layer id. Cells outside the map panic.
func BreakSparseIntoChunks[T any, C Converter](id LayerID, cells map[Cell]T, mapSize Size, conv C) *Grid[*Chunk[T, C]] {
	chunkSize := conv.MaxChunkSize()
	checkChunkSize(chunkSize)
	counts := ChunkCountsFor(mapSize, chunkSize)
	grid := NewGrid[*Chunk[T, C]](counts.X, counts.Y)
	for cy := 0; cy < counts.Y; cy++ {
		for cx := 0; cx < counts.X; cx++ {
			pos := ChunkPos{X: cx, Y: cy}
			ch := NewChunk(pos, EdgeChunkSize(pos, mapSize, chunkSize), SparseData[T](nil), conv)
			if id != MainLayer {
				ch.AddLayer(id, SparseData[T](nil))
			}
			grid.Set(cx, cy, ch)
		}
	}
	for cell, v := range cells {
		ch := chunkAt(grid, cell, mapSize, conv)
		if err := ch.SetTileDataFromCell(id, cell, v); err != nil {
			violate(ErrMalformedInputGrid, "%s: %v", cell, err)
		}
	}
	return grid
}

// AddEntitiesToLayer attaches entities to layer id of the chunks owning each cell.
func AddEntitiesToLayer[T any, C Converter](id LayerID, grid *Grid[*Chunk[T, C]], entities map[Cell]Entity, mapSize Size, conv C) {
	for cell, e := range entities {
		ch := chunkAt(grid, cell, mapSize, conv)
		if err := ch.SetTileEntityFromCell(id, cell, e); err != nil {
			violate(ErrMalformedInputGrid, "entity at %s: %v", cell, err)
		}
	}
}

func chunkAt[T any, C Converter](grid *Grid[*Chunk[T, C]], cell Cell, mapSize Size, conv C) *Chunk[T, C] {
	if cell.X < 0 || cell.Y < 0 || cell.X >= mapSize.X || cell.Y >= mapSize.Y {
		violate(ErrMalformedInputGrid, "%s outside %s map", cell, mapSize)
	}
	pos := conv.ChunkPosition(cell)
	ch, _ := grid.Get(pos.X, pos.Y)
	return ch
}
