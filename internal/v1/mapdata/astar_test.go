package mapdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenGrid(w, h int) *Grid {
	return &Grid{Width: w, Height: h, TileWidth: 32, TileHeight: 32, Cells: make([]byte, w*h)}
}

func TestFindPath_StraightLine(t *testing.T) {
	g := newOpenGrid(10, 10)
	start := g.TileCenter(Tile{X: 0, Y: 0})
	target := g.TileCenter(Tile{X: 5, Y: 0})

	path, err := FindPath(g, start, target)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	assert.Equal(t, g.PixelToTile(start), g.PixelToTile(path[0]))
	assert.Equal(t, g.PixelToTile(target), g.PixelToTile(path[len(path)-1]))

	for i := 1; i < len(path); i++ {
		a := g.PixelToTile(path[i-1])
		b := g.PixelToTile(path[i])
		dist := manhattan(a, b)
		assert.Equal(t, 1, dist, "consecutive waypoints must be 4-neighbours")
	}

	// Manhattan distance bound: path length - 1 == manhattan distance for an open grid.
	assert.Equal(t, manhattan(g.PixelToTile(start), g.PixelToTile(target)), len(path)-1)
}

func TestFindPath_SameTileReturnsSingleWaypoint(t *testing.T) {
	g := newOpenGrid(10, 10)
	p := g.TileCenter(Tile{X: 3, Y: 3})
	path, err := FindPath(g, p, Point{X: p.X + 1, Y: p.Y + 1})
	require.NoError(t, err)
	require.Len(t, path, 1)
}

func TestFindPath_NoPathWhenBlocked(t *testing.T) {
	g := newOpenGrid(5, 5)
	for x := 0; x < 5; x++ {
		g.setBlocked(Tile{X: x, Y: 2})
	}
	start := g.TileCenter(Tile{X: 0, Y: 0})
	target := g.TileCenter(Tile{X: 0, Y: 4})

	path, err := FindPath(g, start, target)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestFindPath_PathAvoidsBlockedTiles(t *testing.T) {
	g := newOpenGrid(5, 5)
	for x := 0; x < 4; x++ {
		g.setBlocked(Tile{X: x, Y: 2})
	}
	start := g.TileCenter(Tile{X: 0, Y: 0})
	target := g.TileCenter(Tile{X: 0, Y: 4})

	path, err := FindPath(g, start, target)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	for _, p := range path {
		tile := g.PixelToTile(p)
		assert.False(t, g.blocked(tile), "every waypoint must be walkable")
	}
}

func TestPrecomputedGrid_HashMismatchDetected(t *testing.T) {
	g := newOpenGrid(3, 3)
	g.setBlocked(Tile{X: 1, Y: 1})

	mapBytes := []byte(`{"width":3,"height":3}`)
	rows := [][]byte{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	}
	sidecar := &PrecomputedGrid{
		Width: 3, Height: 3, TileWidth: 32, TileHeight: 32,
		MapHash:  hashBytes(mapBytes),
		GridHash: hashBytes([]byte(stringifyGridRows(rows))),
		Cells:    rows,
	}

	loaded, err := LoadPrecomputedGrid(sidecar, mapBytes)
	require.NoError(t, err)
	assert.Equal(t, g.Cells, loaded.Cells)

	// Mutate a byte of the grid: hash check must now fail.
	sidecar.Cells[0][0] = 1
	_, err = LoadPrecomputedGrid(sidecar, mapBytes)
	assert.Error(t, err)

	// Restore, then mutate the map bytes instead.
	sidecar.Cells[0][0] = 0
	_, err = LoadPrecomputedGrid(sidecar, []byte(`{"width":3,"height":4}`))
	assert.Error(t, err)
}
