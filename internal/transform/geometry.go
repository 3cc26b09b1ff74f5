package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"odwatch/internal/dataset"
	"odwatch/internal/logging"
)

// CRS of both the dataset coordinates and the filter geometry. Nothing is
// reprojected: the geometry file must already be in lon/lat degrees.
const CRS = "EPSG:4326"

// FilterByGeometry keeps the rows whose (lonColumn, latColumn) point lies
// strictly inside any polygon of the GeoJSON file at geometryPath. Points on
// a ring do not match, nor do rows without numeric coordinates.
//
// Every anomaly returns ds unchanged, including a filter that would remove
// every row (ErrEmptyResult).
func FilterByGeometry(ds *dataset.Dataset, lonColumn, latColumn, geometryPath string) (*dataset.Dataset, error) {
	lon, okLon := ds.ColumnIndex(lonColumn)
	lat, okLat := ds.ColumnIndex(latColumn)
	if !okLon || !okLat {
		return ds, fmt.Errorf("%w: %q or %q", ErrMissingColumn, lonColumn, latColumn)
	}

	area, err := LoadPolygons(geometryPath)
	if err != nil {
		return ds, err
	}
	if len(area) == 0 {
		return ds, fmt.Errorf("%w: %s", ErrEmptyGeometry, geometryPath)
	}
	logging.L().Debug("geometry loaded", "path", geometryPath, "polygons", len(area), "crs", CRS)

	out := ds.Filter(func(row []dataset.Value) bool {
		x, ok := row[lon].Float()
		if !ok {
			return false
		}
		y, ok := row[lat].Float()
		if !ok {
			return false
		}
		return within(area, orb.Point{x, y})
	})
	if out.Len() == 0 {
		return ds, fmt.Errorf("%w: no point of %d inside %s", ErrEmptyResult, ds.Len(), geometryPath)
	}
	return out, nil
}

// within reports whether p is in the interior of area.
func within(area orb.MultiPolygon, p orb.Point) bool {
	return planar.MultiPolygonContains(area, p) && !onBoundary(area, p)
}

func onBoundary(area orb.MultiPolygon, p orb.Point) bool {
	for _, poly := range area {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				if onSegment(ring[i-1], ring[i], p) {
					return true
				}
			}
		}
	}
	return false
}

func onSegment(a, b, p orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if cross != 0 {
		return false
	}
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

// LoadPolygons reads every polygon of a GeoJSON FeatureCollection, Feature
// or bare geometry. Non areal geometries are ignored.
func LoadPolygons(path string) (orb.MultiPolygon, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrGeometryFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometryFile, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrGeometryFile, path, err)
	}

	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrGeometryFile, path, err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrGeometryFile, path, err)
		}
		geoms = append(geoms, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrGeometryFile, path, err)
		}
		geoms = append(geoms, g.Geometry())
	}

	var mp orb.MultiPolygon
	for _, g := range geoms {
		mp = appendPolygons(mp, g)
	}
	return mp, nil
}

func appendPolygons(mp orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch t := g.(type) {
	case orb.Polygon:
		if len(t) > 0 {
			mp = append(mp, t)
		}
	case orb.MultiPolygon:
		for _, p := range t {
			mp = appendPolygons(mp, p)
		}
	case orb.Collection:
		for _, c := range t {
			mp = appendPolygons(mp, c)
		}
	}
	return mp
}
