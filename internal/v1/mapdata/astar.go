package mapdata

import "fmt"

type openEntry struct {
	tile     Tile
	g        int
	f        int
	order    int // insertion order, used to break f ties deterministically
}

// FindPath runs 4-connected A* from start to target pixel coordinates and
// returns the waypoint pixel centers, or nil if no path exists.
func FindPath(grid *Grid, start, target Point) ([]Point, error) {
	if grid == nil {
		return nil, fmt.Errorf("mapdata: nil grid")
	}

	startTile := grid.PixelToTile(start)
	targetTile := grid.PixelToTile(target)

	if startTile == targetTile {
		return []Point{grid.TileCenter(targetTile)}, nil
	}

	open := map[string]*openEntry{}
	closed := map[string]bool{}
	cameFrom := map[string]Tile{}
	gScore := map[string]int{}

	key := func(t Tile) string { return fmt.Sprintf("%d,%d", t.X, t.Y) }

	startKey := key(startTile)
	gScore[startKey] = 0
	open[startKey] = &openEntry{tile: startTile, g: 0, f: manhattan(startTile, targetTile), order: 0}

	insertCounter := 1

	for len(open) > 0 {
		curKey, cur := popLowestF(open)
		delete(open, curKey)

		if cur.tile == targetTile {
			return reconstructPath(grid, cameFrom, cur.tile, startTile, key), nil
		}
		closed[curKey] = true

		for _, next := range neighbours(cur.tile) {
			if !grid.inBounds(next) || grid.blocked(next) {
				continue
			}
			nKey := key(next)
			if closed[nKey] {
				continue
			}
			tentativeG := cur.g + 1
			existingG, seen := gScore[nKey]
			if seen && tentativeG >= existingG {
				continue
			}
			gScore[nKey] = tentativeG
			cameFrom[nKey] = cur.tile
			f := tentativeG + manhattan(next, targetTile)
			if existing, ok := open[nKey]; ok {
				existing.g = tentativeG
				existing.f = f
			} else {
				open[nKey] = &openEntry{tile: next, g: tentativeG, f: f, order: insertCounter}
				insertCounter++
			}
		}
	}

	return nil, nil
}

func popLowestF(open map[string]*openEntry) (string, *openEntry) {
	var bestKey string
	var best *openEntry
	for k, e := range open {
		if best == nil || e.f < best.f || (e.f == best.f && e.order < best.order) {
			bestKey = k
			best = e
		}
	}
	return bestKey, best
}

func neighbours(t Tile) []Tile {
	return []Tile{
		{X: t.X, Y: t.Y - 1},
		{X: t.X, Y: t.Y + 1},
		{X: t.X - 1, Y: t.Y},
		{X: t.X + 1, Y: t.Y},
	}
}

func manhattan(a, b Tile) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func reconstructPath(grid *Grid, cameFrom map[string]Tile, goal, start Tile, key func(Tile) string) []Point {
	var tiles []Tile
	cur := goal
	for {
		tiles = append(tiles, cur)
		if cur == start {
			break
		}
		prev, ok := cameFrom[key(cur)]
		if !ok {
			break
		}
		cur = prev
	}
	// reverse
	for i, j := 0, len(tiles)-1; i < j; i, j = i+1, j-1 {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
	points := make([]Point, len(tiles))
	for i, t := range tiles {
		points[i] = grid.TileCenter(t)
	}
	return points
}
