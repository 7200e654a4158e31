package mapdata

import (
	"encoding/json"
	"fmt"
)

// BuildGridFromTileMap rasterises a tile-map document into a walkable grid.
func BuildGridFromTileMap(doc *TileMapDoc) (*Grid, error) {
	if doc.Width <= 0 || doc.Height <= 0 || doc.TileWidth <= 0 || doc.TileHeight <= 0 {
		return nil, fmt.Errorf("mapdata: tile-map has invalid dimensions")
	}

	grid := &Grid{
		Width:      doc.Width,
		Height:     doc.Height,
		TileWidth:  doc.TileWidth,
		TileHeight: doc.TileHeight,
		Cells:      make([]byte, doc.Width*doc.Height),
	}

	blockingGIDs := collectBlockingGIDs(doc.Tilesets)

	for _, layer := range doc.Layers {
		switch layer.Type {
		case "tilelayer":
			applyTileLayer(grid, layer, blockingGIDs)
		case "objectgroup":
			if objectLayerNames[layer.Name] {
				for _, obj := range layer.Objects {
					rasteriseObject(grid, obj)
				}
			}
		}
	}

	return grid, nil
}

// collectBlockingGIDs computes the absolute GID of every tile whose
// properties carry {name:"collides", value:true}.
func collectBlockingGIDs(tilesets []Tileset) map[int64]bool {
	blocking := make(map[int64]bool)
	for _, ts := range tilesets {
		for _, tile := range ts.Tiles {
			if tileCollides(tile) {
				blocking[int64(ts.FirstGID+tile.ID)] = true
			}
		}
	}
	return blocking
}

func tileCollides(tile TileDef) bool {
	for _, p := range tile.Properties {
		if p.Name != "collides" {
			continue
		}
		var b bool
		if err := json.Unmarshal(p.Value, &b); err == nil && b {
			return true
		}
	}
	return false
}

func applyTileLayer(grid *Grid, layer Layer, blockingGIDs map[int64]bool) {
	w := grid.Width
	for i, rawGID := range layer.Data {
		gid := rawGID & gidFlipMask
		if gid == 0 || !blockingGIDs[gid] {
			continue
		}
		x := i % w
		y := i / w
		grid.setBlocked(Tile{X: x, Y: y})
	}
}
