// Package topojson writes merged county rows as a quantized, simplified
// TopoJSON file using the topojson-server and topojson-simplify command-line
// tools.
package topojson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/tool"
)

// Layer is the TopoJSON object name holding the counties.
const Layer = "counties"

const (
	quantization   = "1e5"
	simplifyWeight = "1e-7"
)

// Emitter converts merged rows into a TopoJSON file.
type Emitter struct {
	runner tool.Runner
	npx    string
	logger *slog.Logger
}

// NewEmitter returns an Emitter running tools through npx (or npxPath if set).
func NewEmitter(runner tool.Runner, npxPath string, logger *slog.Logger) *Emitter {
	if npxPath == "" {
		npxPath = "npx"
	}
	return &Emitter{runner: runner, npx: npxPath, logger: logger}
}

// Emit writes rows to out. Intermediate GeoJSON and unsimplified topology live
// in a temporary directory removed on return.
func (e *Emitter) Emit(ctx context.Context, rows []domain.MergedRow, out string) error {
	tmp, err := os.MkdirTemp("", "redraw-topo-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	geoPath := filepath.Join(tmp, "tmp.json")
	topoPath := filepath.Join(tmp, "tmp.topo.json")

	f, err := os.Create(geoPath)
	if err != nil {
		return fmt.Errorf("create geojson: %w", err)
	}
	if err := WriteGeoJSON(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close geojson: %w", err)
	}

	if err := e.runner.Run(ctx, e.npx, "geo2topo", "-q", quantization, Layer+"="+geoPath, "-o", topoPath); err != nil {
		return fmt.Errorf("geo2topo: %w", err)
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := e.runner.Run(ctx, e.npx, "toposimplify", "-f", "-s", simplifyWeight, "-o", out, topoPath); err != nil {
		return fmt.Errorf("toposimplify: %w", err)
	}

	e.logger.Info("wrote topology", "path", out, "counties", len(rows))
	return nil
}

// WriteGeoJSON encodes rows as a FeatureCollection whose properties carry the
// six party columns and population.
func WriteGeoJSON(w io.Writer, rows []domain.MergedRow) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(rows))}
	for _, r := range rows {
		if r.Geometry == nil {
			return fmt.Errorf("county %s has no geometry", r.ID)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.ID,
			Geometry:   r.Geometry,
			Properties: properties(r),
		})
	}
	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	return nil
}

func properties(r domain.MergedRow) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"name":       r.Name,
		"state":      r.State,
		"county":     r.County,
		"dem":        r.Votes.Dem,
		"gop":        r.Votes.GOP,
		"lib":        r.Votes.Lib,
		"grn":        r.Votes.Green,
		"una":        r.Votes.Una,
		"oth":        r.Votes.Other,
		"population": r.Population,
	}
}
