// Package planet estimates Planet order sizes from catalogue footprints.
package planet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"example.com/resource-catalogue/internal/geometry"
	"example.com/resource-catalogue/internal/stac"
)

// Units of every Planet estimate.
const Units = "km2"

// Minimum billable area per collection, in square kilometres.
var minimumOrderKm2 = map[string]int{
	"SkySatScene": 3,
}

var ErrNoGeometry = errors.New("item has no geometry")

// DocumentFetcher loads STAC documents.
type DocumentFetcher interface {
	Document(ctx context.Context, url string) (stac.Document, error)
}

// Client estimates areas for Planet acquisitions listed in the public catalogue.
type Client struct {
	fetcher DocumentFetcher
	baseURL string
	logger  *slog.Logger
}

// NewClient configures a client reading items below baseURL, the public
// catalogue API root.
func NewClient(fetcher DocumentFetcher, baseURL string, logger *slog.Logger) *Client {
	return &Client{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func (c *Client) itemURL(collection, acquisitionID string) string {
	return fmt.Sprintf("%s/stac/catalogs/supported-datasets/catalogs/planet/collections/%s/items/%s",
		c.baseURL, url.PathEscape(collection), url.PathEscape(acquisitionID))
}

// AreaEstimate returns the billable area of an acquisition in whole km²:
// the full footprint, or its intersection with aoi when one is given.
func (c *Client) AreaEstimate(ctx context.Context, acquisitionID, collection string, aoi [][][]float64) (int, error) {
	item, err := c.fetcher.Document(ctx, c.itemURL(collection, acquisitionID))
	if err != nil {
		return 0, fmt.Errorf("fetch planet item %s: %w", acquisitionID, err)
	}
	footprint := item.Geometry()
	if footprint == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoGeometry, acquisitionID)
	}

	target := footprint
	if len(aoi) > 0 {
		target, err = geometry.Intersection(footprint, geometry.Polygon(aoi))
		if err != nil {
			return 0, err
		}
	}
	area, err := geometry.AreaKm2(target)
	if err != nil {
		return 0, fmt.Errorf("area of %s: %w", acquisitionID, err)
	}
	rounded := geometry.RoundUpArea(area)
	c.logger.Debug("planet area estimate", "acquisition_id", acquisitionID, "collection", collection, "area_km2", area, "rounded", rounded)
	return rounded, nil
}

// Quote sums the estimates for the acquisitions and applies the collection
// minimum order size.
func (c *Client) Quote(ctx context.Context, collection string, acquisitionIDs []string, aoi [][][]float64) (int, error) {
	total := 0
	for _, id := range acquisitionIDs {
		area, err := c.AreaEstimate(ctx, id, collection, aoi)
		if err != nil {
			return 0, err
		}
		total += area
	}
	return ApplyMinimum(collection, total), nil
}

// ApplyMinimum raises area to the collection's minimum order size.
func ApplyMinimum(collection string, area int) int {
	if floor, ok := minimumOrderKm2[collection]; ok && area < floor {
		return floor
	}
	return area
}
