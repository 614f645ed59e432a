package census

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/LindsayBradford/go-dbf/godbf"

	"github.com/couchcryptid/election-map-etl/internal/domain"
)

// DefaultCounty1990URL is the CDC copy of the 1990 census county summary.
const DefaultCounty1990URL = "https://www2.cdc.gov/nceh/lead/census90/house11/files/cnty.zip"

const county1990Table = "CNTY.dbf"

// load1990 reads the 1990 counts, which the Census API does not serve.
func (l *PopulationLoader) load1990(ctx context.Context, year int) ([]domain.PopulationRecord, error) {
	archive, err := l.client.Get(ctx, "cnty-1990", l.url1990)
	if err != nil {
		return nil, err
	}
	table, err := unzipFile(archive, county1990Table)
	if err != nil {
		return nil, err
	}
	records, err := Counties1990(table)
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded populations", "year", year, "decennial", 1990, "counties", len(records))
	return domain.FlattenPopulation(records, year), nil
}

// Counties1990 reads county populations from the 1990 summary DBF table
// (P0010001 keyed by STATEFP and CNTY).
func Counties1990(dbf []byte) ([]domain.PopulationRecord, error) {
	t, err := godbf.NewFromByteArray(dbf, "UTF8")
	if err != nil {
		return nil, fmt.Errorf("census: read %s: %w", county1990Table, err)
	}

	out := make([]domain.PopulationRecord, 0, t.NumberOfRecords())
	for i := 0; i < t.NumberOfRecords(); i++ {
		var vals [3]string
		for j, field := range []string{"STATEFP", "CNTY", "P0010001"} {
			v, err := t.FieldValueByName(i, field)
			if err != nil {
				return nil, fmt.Errorf("census: %s row %d: %w", county1990Table, i, err)
			}
			vals[j] = strings.TrimSpace(v)
		}

		id := vals[0] + vals[1]
		if !domain.ValidFIPS(id) {
			return nil, fmt.Errorf("census: %s row %d has county id %q", county1990Table, i, id)
		}
		n, err := strconv.ParseFloat(vals[2], 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("census: %s row %d: population %q is not a count", county1990Table, i, vals[2])
		}
		out = append(out, domain.PopulationRecord{ID: id, Population: int(n)})
	}
	return out, nil
}

// unzipFile returns the contents of the archive member whose base name matches
// name, ignoring case.
func unzipFile(archive []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("census: open zip: %w", err)
	}
	for _, f := range zr.File {
		if !strings.EqualFold(path.Base(f.Name), name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("census: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("census: read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("census: zip has no %s", name)
}
