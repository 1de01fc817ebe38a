// Package geometry clips and measures GeoJSON geometries.
//
// GeoJSON is parsed with orb, handed to GEOS as WKT for the overlay and
// converted back the same way, so callers only ever see GeoJSON maps.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulsmith/gogeos/geos"
)

// ErrEmptyIntersection signals that two geometries do not overlap.
var ErrEmptyIntersection = errors.New("no intersection between image and AOI")

// Polygon builds a GeoJSON polygon from a ring list in STAC nesting.
func Polygon(rings [][][]float64) map[string]any {
	coords := make([]any, 0, len(rings))
	for _, ring := range rings {
		r := make([]any, 0, len(ring))
		for _, pt := range ring {
			p := make([]any, 0, len(pt))
			for _, v := range pt {
				p = append(p, v)
			}
			r = append(r, p)
		}
		coords = append(coords, r)
	}
	return map[string]any{"type": "Polygon", "coordinates": coords}
}

// Intersection returns footprint ∩ aoi as GeoJSON. ErrEmptyIntersection is
// returned when the result is empty.
func Intersection(footprint, aoi map[string]any) (map[string]any, error) {
	a, err := toGEOS(footprint)
	if err != nil {
		return nil, fmt.Errorf("footprint: %w", err)
	}
	b, err := toGEOS(aoi)
	if err != nil {
		return nil, fmt.Errorf("aoi: %w", err)
	}
	clipped, err := a.Intersection(b)
	if err != nil {
		return nil, fmt.Errorf("intersect: %w", err)
	}
	empty, err := clipped.IsEmpty()
	if err != nil {
		return nil, fmt.Errorf("intersect: %w", err)
	}
	if empty {
		return nil, ErrEmptyIntersection
	}
	return fromGEOS(clipped)
}

// AreaKm2 returns the geodesic area of a GeoJSON geometry in square kilometres.
func AreaKm2(g map[string]any) (float64, error) {
	og, err := toOrb(g)
	if err != nil {
		return 0, err
	}
	return math.Abs(geo.Area(og)) / 1e6, nil
}

// RoundUpArea rounds an area estimate up to the next whole unit.
func RoundUpArea(area float64) int {
	return int(math.Ceil(area))
}

func toOrb(g map[string]any) (orb.Geometry, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}
	parsed, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	og := parsed.Geometry()
	if og == nil {
		return nil, errors.New("decode geojson: empty geometry")
	}
	return og, nil
}

func toGEOS(g map[string]any) (*geos.Geometry, error) {
	og, err := toOrb(g)
	if err != nil {
		return nil, err
	}
	return geos.FromWKT(wkt.MarshalString(og))
}

func fromGEOS(g *geos.Geometry) (map[string]any, error) {
	text, err := g.ToWKT()
	if err != nil {
		return nil, fmt.Errorf("encode wkt: %w", err)
	}
	og, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("decode wkt: %w", err)
	}
	data, err := json.Marshal(geojson.NewGeometry(og))
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	return out, nil
}
