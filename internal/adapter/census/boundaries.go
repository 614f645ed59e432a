// Package census loads county boundaries from the Census Bureau's cartographic
// boundary files and decennial population counts from the Census API.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/fetch"
	"github.com/couchcryptid/election-map-etl/internal/tool"
)

// DefaultTigerBase is the Census TIGER/cartographic file host.
const DefaultTigerBase = "https://www2.census.gov/geo/tiger"

// BoundaryFile is one downloadable boundary archive and how to read county ids
// from its attributes.
type BoundaryFile struct {
	URL string
	ID  func(props map[string]any) string
}

// BoundaryFiles picks the cartographic boundary files for an election year:
//
//	2013 on:    cb_{year}_us_county_5m.zip, GEOID
//	2010-2012:  gz_2010_us_050_00_500k.zip, last five of GEO_ID
//	2000-2009:  co{ss}_d00_shp.zip per state, STATE + COUNTY
func BoundaryFiles(base string, year int) ([]BoundaryFile, error) {
	switch {
	case year >= 2013:
		return []BoundaryFile{{
			URL: fmt.Sprintf("%s/GENZ%d/shp/cb_%d_us_county_5m.zip", base, year, year),
			ID:  func(p map[string]any) string { return prop(p, "GEOID") },
		}}, nil
	case year >= 2010:
		return []BoundaryFile{{
			URL: base + "/GENZ2010/gz_2010_us_050_00_500k.zip",
			ID: func(p map[string]any) string {
				id := prop(p, "GEO_ID")
				if len(id) < 5 {
					return id
				}
				return id[len(id)-5:]
			},
		}}, nil
	case year >= 2000:
		files := make([]BoundaryFile, 0, len(domain.States))
		for _, st := range domain.States {
			files = append(files, BoundaryFile{
				URL: fmt.Sprintf("%s/PREVGENZ/co/co00shp/co%s_d00_shp.zip", base, st.FIPS),
				ID:  func(p map[string]any) string { return prop(p, "STATE") + prop(p, "COUNTY") },
			})
		}
		return files, nil
	default:
		return nil, fmt.Errorf("%w: no county boundaries for %d", domain.ErrUnsupportedYear, year)
	}
}

func prop(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// BoundaryLoader downloads boundary archives into a cache directory, converts them
// to GeoJSON with ogr2ogr and decodes the features.
type BoundaryLoader struct {
	client   *fetch.Client
	runner   tool.Runner
	ogr2ogr  string
	cacheDir string
	base     string
	force    bool
	logger   *slog.Logger
}

// BoundaryOption configures a BoundaryLoader.
type BoundaryOption func(*BoundaryLoader)

// WithTigerBase overrides the download host.
func WithTigerBase(base string) BoundaryOption {
	return func(l *BoundaryLoader) { l.base = strings.TrimRight(base, "/") }
}

// WithForce re-downloads and re-converts archives already in the cache.
func WithForce(force bool) BoundaryOption {
	return func(l *BoundaryLoader) { l.force = force }
}

// WithOgr2ogr sets the ogr2ogr executable.
func WithOgr2ogr(path string) BoundaryOption {
	return func(l *BoundaryLoader) {
		if path != "" {
			l.ogr2ogr = path
		}
	}
}

// NewBoundaryLoader returns a loader caching into cacheDir.
func NewBoundaryLoader(client *fetch.Client, runner tool.Runner, cacheDir string, logger *slog.Logger, opts ...BoundaryOption) *BoundaryLoader {
	l := &BoundaryLoader{
		client:   client,
		runner:   runner,
		ogr2ogr:  "ogr2ogr",
		cacheDir: cacheDir,
		base:     DefaultTigerBase,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the flattened county boundaries for an election year.
func (l *BoundaryLoader) Load(ctx context.Context, year int) ([]domain.GeographyRecord, error) {
	files, err := BoundaryFiles(l.base, year)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	units := make([]string, len(files))
	for i, f := range files {
		units[i] = path.Base(f.URL)
	}
	paths, err := fetch.Batch(ctx, units, func(ctx context.Context, name string) (string, error) {
		for _, f := range files {
			if path.Base(f.URL) == name {
				return l.download(ctx, f.URL)
			}
		}
		return "", fmt.Errorf("unknown boundary file %s", name)
	})
	if err != nil {
		return nil, err
	}

	var records []domain.GeographyRecord
	for i, zipPath := range paths {
		geojsonPath, err := l.convert(ctx, zipPath)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(geojsonPath)
		if err != nil {
			return nil, fmt.Errorf("read converted boundaries: %w", err)
		}
		recs, err := DecodeBoundaries(data, files[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", units[i], err)
		}
		records = append(records, recs...)
	}
	l.logger.Info("loaded boundaries", "year", year, "files", len(files), "features", len(records))

	return domain.FlattenCounties(records, year)
}

func (l *BoundaryLoader) download(ctx context.Context, url string) (string, error) {
	dest := filepath.Join(l.cacheDir, path.Base(url))
	if !l.force {
		if _, err := os.Stat(dest); err == nil {
			l.logger.Debug("boundary archive cached", "path", dest)
			return dest, nil
		}
	}
	body, err := l.client.Get(ctx, path.Base(url), url)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(dest, body); err != nil {
		return "", err
	}
	l.logger.Info("downloaded boundary archive", "url", url, "bytes", len(body))
	return dest, nil
}

// convert runs ogr2ogr on a zipped shapefile, writing GeoJSON in WGS 84 next to it.
func (l *BoundaryLoader) convert(ctx context.Context, zipPath string) (string, error) {
	out := strings.TrimSuffix(zipPath, filepath.Ext(zipPath)) + ".geojson"
	if !l.force {
		if _, err := os.Stat(out); err == nil {
			return out, nil
		}
	}
	_ = os.Remove(out)
	if err := l.runner.Run(ctx, l.ogr2ogr, "-f", "GeoJSON", "-t_srs", "EPSG:4326", out, "/vsizip/"+zipPath); err != nil {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(zipPath), err)
	}
	return out, nil
}

// DecodeBoundaries reads a GeoJSON FeatureCollection of counties. Files written
// from Latin-1 shapefiles are transcoded to UTF-8 first so names such as
// "Doña Ana" survive.
func DecodeBoundaries(data []byte, id func(map[string]any) string) ([]domain.GeographyRecord, error) {
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("transcode latin-1: %w", err)
		}
		data = decoded
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	records := make([]domain.GeographyRecord, 0, len(fc.Features))
	for i, f := range fc.Features {
		rid := id(f.Properties)
		if rid == "" {
			return nil, fmt.Errorf("feature %d has no county id", i)
		}
		var g geom.T
		if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
			if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
				return nil, fmt.Errorf("feature %s geometry: %w", rid, err)
			}
		}
		records = append(records, domain.GeographyRecord{
			ID:       rid,
			Name:     prop(f.Properties, "NAME"),
			Geometry: g,
		})
	}
	return records, nil
}

// featureCollection keeps geometries raw so feature ids of any JSON type are
// ignored rather than rejected.
type featureCollection struct {
	Features []struct {
		Properties map[string]any  `json:"properties"`
		Geometry   json.RawMessage `json:"geometry"`
	} `json:"features"`
}

func writeFileAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return os.Rename(tmp.Name(), dest)
}
