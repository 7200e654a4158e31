package mapdata

import "math"

const rasterEpsilon = 1e-4

// rasteriseObject marks every tile an object-layer object blocks, dispatching
// on its kind per spec §4.A.
func rasteriseObject(grid *Grid, obj Object) {
	switch {
	case len(obj.Polygon) >= 3:
		rasterisePolygonObject(grid, obj)
	case obj.Ellipse:
		rasteriseEllipse(grid, obj)
	case obj.Rotation != 0:
		rasteriseRotatedRect(grid, obj)
	default:
		rasteriseRect(grid, obj)
	}
}

func rectBounds(obj Object) (left, top float64) {
	left = obj.X
	top = obj.Y
	if obj.GID != nil {
		// Tile objects are anchored at bottom-left in Tiled; shift up by height.
		top = obj.Y - obj.Height
	}
	return left, top
}

// rasteriseRect marks every tile intersected by [left,left+w) x [top,top+h).
func rasteriseRect(grid *Grid, obj Object) {
	left, top := rectBounds(obj)
	markAxisAlignedRect(grid, left, top, obj.Width, obj.Height)
}

func markAxisAlignedRect(grid *Grid, left, top, w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	right := left + w - rasterEpsilon
	bottom := top + h - rasterEpsilon

	x0 := int(math.Floor(left / float64(grid.TileWidth)))
	x1 := int(math.Floor(right / float64(grid.TileWidth)))
	y0 := int(math.Floor(top / float64(grid.TileHeight)))
	y1 := int(math.Floor(bottom / float64(grid.TileHeight)))

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			grid.setBlocked(Tile{X: x, Y: y})
		}
	}
}

func rotatePoint(px, py, pivotX, pivotY, degrees float64) (float64, float64) {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	dx, dy := px-pivotX, py-pivotY
	return pivotX + dx*cos - dy*sin, pivotY + dx*sin + dy*cos
}

// rasteriseRotatedRect converts the rectangle to a 4-vertex polygon rotated
// about (left, top), then polygon-rasterises it.
func rasteriseRotatedRect(grid *Grid, obj Object) {
	left, top := rectBounds(obj)
	corners := []Vertex{
		{X: left, Y: top},
		{X: left + obj.Width, Y: top},
		{X: left + obj.Width, Y: top + obj.Height},
		{X: left, Y: top + obj.Height},
	}
	rotated := make([]Vertex, len(corners))
	for i, c := range corners {
		rx, ry := rotatePoint(c.X, c.Y, left, top, obj.Rotation)
		rotated[i] = Vertex{X: rx, Y: ry}
	}
	polygonRasterise(grid, rotated)
}

// rasterisePolygonObject rotates each vertex about (rawX, rawY) and
// polygon-rasterises the result.
func rasterisePolygonObject(grid *Grid, obj Object) {
	verts := make([]Vertex, len(obj.Polygon))
	for i, v := range obj.Polygon {
		absX := obj.X + v.X
		absY := obj.Y + v.Y
		rx, ry := rotatePoint(absX, absY, obj.X, obj.Y, obj.Rotation)
		verts[i] = Vertex{X: rx, Y: ry}
	}
	polygonRasterise(grid, verts)
}

// polygonRasterise fills a polygon using a row-scanline pass, then adds
// extra robustness by also marking any tile whose center falls inside the
// polygon and any tile containing a vertex, per spec §4.A.
func polygonRasterise(grid *Grid, verts []Vertex) {
	if len(verts) < 3 {
		return
	}

	minX, minY, maxX, maxY := verts[0].X, verts[0].Y, verts[0].X, verts[0].Y
	for _, v := range verts {
		minX = math.Min(minX, v.X)
		maxX = math.Max(maxX, v.X)
		minY = math.Min(minY, v.Y)
		maxY = math.Max(maxY, v.Y)
	}

	tw, th := float64(grid.TileWidth), float64(grid.TileHeight)
	y0 := int(math.Floor(minY / th))
	y1 := int(math.Floor(maxY / th))
	x0 := int(math.Floor(minX / tw))
	x1 := int(math.Floor(maxX / tw))

	// Scanline at each row's vertical midpoint.
	for ty := y0; ty <= y1; ty++ {
		yMid := float64(ty)*th + th/2
		xs := scanlineIntersections(verts, yMid)
		if len(xs) < 2 {
			continue
		}
		for i := 0; i+1 < len(xs); i += 2 {
			xStart := int(math.Floor(xs[i] / tw))
			xEnd := int(math.Floor(xs[i+1] / tw))
			for tx := xStart; tx <= xEnd; tx++ {
				grid.setBlocked(Tile{X: tx, Y: ty})
			}
		}
	}

	// Point-in-polygon check for every tile center in the bbox, for robustness
	// against thin/degenerate polygons the scanline pass can miss.
	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			cx := float64(tx)*tw + tw/2
			cy := float64(ty)*th + th/2
			if pointInPolygon(verts, cx, cy) {
				grid.setBlocked(Tile{X: tx, Y: ty})
			}
		}
	}

	// Mark every tile containing a vertex.
	for _, v := range verts {
		grid.setBlocked(Tile{X: int(math.Floor(v.X / tw)), Y: int(math.Floor(v.Y / th))})
	}
}

// scanlineIntersections returns the sorted x-coordinates where the polygon's
// edges cross the horizontal line y=yMid.
func scanlineIntersections(verts []Vertex, yMid float64) []float64 {
	var xs []float64
	n := len(verts)
	for i := 0; i < n; i++ {
		a := verts[i]
		b := verts[(i+1)%n]
		if a.Y == b.Y {
			continue
		}
		if (a.Y <= yMid && b.Y > yMid) || (b.Y <= yMid && a.Y > yMid) {
			t := (yMid - a.Y) / (b.Y - a.Y)
			xs = append(xs, a.X+t*(b.X-a.X))
		}
	}
	sortFloats(xs)
	return xs
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// pointInPolygon is a standard ray-casting test.
func pointInPolygon(verts []Vertex, px, py float64) bool {
	inside := false
	n := len(verts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := verts[i], verts[j]
		if (vi.Y > py) != (vj.Y > py) &&
			px < (vj.X-vi.X)*(py-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}

// rasteriseEllipse marks every tile whose center falls inside the ellipse
// inscribed in the object's bounding box.
func rasteriseEllipse(grid *Grid, obj Object) {
	if obj.Width <= 0 || obj.Height <= 0 {
		return
	}
	cx := obj.X + obj.Width/2
	cy := obj.Y + obj.Height/2
	rx := obj.Width / 2
	ry := obj.Height / 2

	tw, th := float64(grid.TileWidth), float64(grid.TileHeight)
	x0 := int(math.Floor(obj.X / tw))
	x1 := int(math.Floor((obj.X + obj.Width) / tw))
	y0 := int(math.Floor(obj.Y / th))
	y1 := int(math.Floor((obj.Y + obj.Height) / th))

	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			px := float64(tx)*tw + tw/2
			py := float64(ty)*th + th/2
			dx := (px - cx) / rx
			dy := (py - cy) / ry
			if dx*dx+dy*dy <= 1 {
				grid.setBlocked(Tile{X: tx, Y: ty})
			}
		}
	}
}
