package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/mapdata"
	"go.uber.org/zap"
)

// loadWalkableGrid loads the pathfinding grid for the admin API's /api/pathfind
// endpoint. It prefers a precomputed sidecar (map.grid.json next to
// map.json) for instant startup, falling back to rasterising the raw tile
// map, and returns a nil grid (pathfinding disabled) if neither is present.
func loadWalkableGrid(ctx context.Context, dataDir string) *mapdata.Grid {
	mapPath := filepath.Join(dataDir, "map.json")
	mapBytes, err := os.ReadFile(mapPath)
	if err != nil {
		logging.Warn(ctx, "presence: no tile map found, pathfinding disabled", zap.String("path", mapPath))
		return nil
	}

	sidecarPath := filepath.Join(dataDir, "map.grid.json")
	if sidecarBytes, err := os.ReadFile(sidecarPath); err == nil {
		var sidecar mapdata.PrecomputedGrid
		var sidecarDoc mapdata.TileMapDoc
		if err := json.Unmarshal(sidecarBytes, &sidecar); err == nil && json.Unmarshal(mapBytes, &sidecarDoc) == nil {
			if err := mapdata.ValidatePrecomputedDimensions(&sidecar, &sidecarDoc); err != nil {
				logging.Warn(ctx, "presence: precomputed grid rejected, rasterising tile map", zap.Error(err))
			} else if grid, err := mapdata.LoadPrecomputedGrid(&sidecar, mapBytes); err == nil {
				logging.Info(ctx, "presence: loaded precomputed walkable grid", zap.String("path", sidecarPath))
				return grid
			} else {
				logging.Warn(ctx, "presence: precomputed grid rejected, rasterising tile map", zap.Error(err))
			}
		}
	}

	var doc mapdata.TileMapDoc
	if err := json.Unmarshal(mapBytes, &doc); err != nil {
		logging.Warn(ctx, "presence: failed to parse tile map, pathfinding disabled", zap.Error(err))
		return nil
	}
	grid, err := mapdata.BuildGridFromTileMap(&doc)
	if err != nil {
		logging.Warn(ctx, "presence: failed to rasterise tile map, pathfinding disabled", zap.Error(err))
		return nil
	}
	logging.Info(ctx, "presence: rasterised walkable grid from tile map", zap.String("path", mapPath))
	return grid
}
