package mapdata

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// PrecomputedGrid is the sidecar document carrying a previously rasterised
// grid plus hashes tying it to the source tile-map.
type PrecomputedGrid struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	TileWidth    int    `json:"tileWidth"`
	TileHeight   int    `json:"tileHeight"`
	MapHash      string `json:"mapHash"`
	GridHash     string `json:"gridHash"`
	Version      int    `json:"version"`
	GeneratedAt  string `json:"generatedAt"`
	Cells        [][]byte `json:"cells"`
}

// LoadPrecomputedGrid validates a precomputed-grid sidecar against the raw
// tile-map bytes it was derived from and returns a usable Grid, or an error
// the caller can use to fall back to BuildGridFromTileMap.
func LoadPrecomputedGrid(sidecar *PrecomputedGrid, tileMapBytes []byte) (*Grid, error) {
	if sidecar.Width <= 0 || sidecar.Height <= 0 {
		return nil, fmt.Errorf("mapdata: precomputed grid has invalid dimensions")
	}
	if len(sidecar.Cells) != sidecar.Height {
		return nil, fmt.Errorf("mapdata: precomputed grid row count %d does not match height %d", len(sidecar.Cells), sidecar.Height)
	}
	for _, row := range sidecar.Cells {
		if len(row) != sidecar.Width {
			return nil, fmt.Errorf("mapdata: precomputed grid row width mismatch")
		}
	}

	mapHash := hashBytes(tileMapBytes)
	if !strings.EqualFold(mapHash, sidecar.MapHash) {
		return nil, fmt.Errorf("mapdata: precomputed grid mapHash mismatch (expected %s, got %s)", mapHash, sidecar.MapHash)
	}

	gridString := stringifyGridRows(sidecar.Cells)
	gridHash := hashBytes([]byte(gridString))
	if !strings.EqualFold(gridHash, sidecar.GridHash) {
		return nil, fmt.Errorf("mapdata: precomputed grid gridHash mismatch (expected %s, got %s)", gridHash, sidecar.GridHash)
	}

	flat := make([]byte, sidecar.Width*sidecar.Height)
	for y, row := range sidecar.Cells {
		copy(flat[y*sidecar.Width:(y+1)*sidecar.Width], row)
	}

	return &Grid{
		Width:      sidecar.Width,
		Height:     sidecar.Height,
		TileWidth:  sidecar.TileWidth,
		TileHeight: sidecar.TileHeight,
		Cells:      flat,
	}, nil
}

// ValidatePrecomputedDimensions checks the sidecar's declared dimensions
// against a freshly-parsed tile-map document, used before trusting the grid
// for anything beyond the hash check.
func ValidatePrecomputedDimensions(sidecar *PrecomputedGrid, doc *TileMapDoc) error {
	if sidecar.Width != doc.Width || sidecar.Height != doc.Height {
		return fmt.Errorf("mapdata: precomputed grid dimensions %dx%d do not match tile-map %dx%d",
			sidecar.Width, sidecar.Height, doc.Width, doc.Height)
	}
	if sidecar.TileWidth != doc.TileWidth || sidecar.TileHeight != doc.TileHeight {
		return fmt.Errorf("mapdata: precomputed grid tile size %dx%d does not match tile-map %dx%d",
			sidecar.TileWidth, sidecar.TileHeight, doc.TileWidth, doc.TileHeight)
	}
	return nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// stringifyGridRows deterministically renders grid rows for gridHash, one
// row per line of comma-separated cell values.
func stringifyGridRows(rows [][]byte) string {
	var sb strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(int(cell)))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// MarshalCellsForHash is exposed so callers that build a grid from scratch
// can compute the same gridHash a sidecar would carry.
func MarshalCellsForHash(g *Grid) string {
	rows := make([][]byte, g.Height)
	for y := 0; y < g.Height; y++ {
		rows[y] = g.Cells[y*g.Width : (y+1)*g.Width]
	}
	return stringifyGridRows(rows)
}
