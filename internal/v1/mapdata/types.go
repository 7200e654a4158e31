// Package mapdata builds a walkable tile grid from a tile-map document and
// runs A* pathfinding over it. This is self-contained computational geometry
// with no natural third-party library home in the retrieval pack — see
// DESIGN.md's stdlib justification.
package mapdata

import "encoding/json"

// TileMapDoc is the subset of a Tiled-style JSON map this package consumes.
type TileMapDoc struct {
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	TileWidth  int          `json:"tilewidth"`
	TileHeight int          `json:"tileheight"`
	Tilesets   []Tileset    `json:"tilesets"`
	Layers     []Layer      `json:"layers"`
}

type Tileset struct {
	FirstGID int        `json:"firstgid"`
	Tiles    []TileDef  `json:"tiles"`
}

type TileDef struct {
	ID         int        `json:"id"`
	Properties []Property `json:"properties"`
}

type Property struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Layer is either a tile layer (Data populated) or an object layer (Objects
// populated), distinguished by Type.
type Layer struct {
	Type    string   `json:"type"` // "tilelayer" | "objectgroup"
	Name    string   `json:"name"`
	Data    []int64  `json:"data,omitempty"`
	Objects []Object `json:"objects,omitempty"`
}

type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Object struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Rotation float64  `json:"rotation"`
	GID      *int64   `json:"gid,omitempty"`
	Polygon  []Vertex `json:"polygon,omitempty"`
	Ellipse  bool     `json:"ellipse,omitempty"`
}

// objectLayerNames is the fixed set of object-layer names that contribute
// blocking geometry, per spec §4.A.
var objectLayerNames = map[string]bool{
	"Wall":                   true,
	"Objects":                true,
	"ObjectsOnCollide":       true,
	"GenericObjects":         true,
	"GenericObjectsOnCollide": true,
	"Computer":               true,
	"Whiteboard":              true,
	"VendingMachine":          true,
	"Chair":                   true,
}

// gidFlipMask strips the three high flip bits Tiled stores in tile-layer data.
const gidFlipMask = 0x1FFFFFFF

// Point is a pixel coordinate.
type Point struct {
	X float64
	Y float64
}

// Tile is a tile-grid coordinate.
type Tile struct {
	X int
	Y int
}

// Grid is a rasterised walkable/blocked tile grid.
type Grid struct {
	Width      int
	Height     int
	TileWidth  int
	TileHeight int
	Cells      []byte // 0 = walkable, 1 = blocked, row-major (y*Width+x)
}

func (g *Grid) inBounds(t Tile) bool {
	return t.X >= 0 && t.Y >= 0 && t.X < g.Width && t.Y < g.Height
}

func (g *Grid) blocked(t Tile) bool {
	if !g.inBounds(t) {
		return true
	}
	return g.Cells[t.Y*g.Width+t.X] == 1
}

func (g *Grid) setBlocked(t Tile) {
	if !g.inBounds(t) {
		return
	}
	g.Cells[t.Y*g.Width+t.X] = 1
}

// PixelToTile converts a pixel point to a grid tile, clamped to bounds.
func (g *Grid) PixelToTile(p Point) Tile {
	tx := int(p.X / float64(g.TileWidth))
	ty := int(p.Y / float64(g.TileHeight))
	if tx < 0 {
		tx = 0
	}
	if tx >= g.Width {
		tx = g.Width - 1
	}
	if ty < 0 {
		ty = 0
	}
	if ty >= g.Height {
		ty = g.Height - 1
	}
	return Tile{X: tx, Y: ty}
}

// TileCenter returns the pixel center of a tile.
func (g *Grid) TileCenter(t Tile) Point {
	return Point{
		X: float64(t.X)*float64(g.TileWidth) + float64(g.TileWidth)/2,
		Y: float64(t.Y)*float64(g.TileHeight) + float64(g.TileHeight)/2,
	}
}
