// Package quote prices commercial items before they are ordered.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"example.com/resource-catalogue/internal/order"
	"example.com/resource-catalogue/internal/provider/airbus"
	"example.com/resource-catalogue/internal/provider/planet"
	"example.com/resource-catalogue/internal/registry"
	"example.com/resource-catalogue/internal/stac"
)

// Request is the body of a quote request.
type Request struct {
	Coordinates [][][]float64 `json:"coordinates,omitempty"`
	Licence     string        `json:"licence,omitempty"`
}

// Target names the item being priced.
type Target struct {
	Parent     string
	Catalog    string
	Collection string
	Item       string
	Workspace  string
}

// Response is a price (Airbus) or a billable area (Planet).
type Response struct {
	Value decimal.Decimal
	Units string
}

// MarshalJSON renders the value as a JSON number.
func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value json.Number `json:"value"`
		Units string      `json:"units"`
	}{Value: json.Number(r.Value.String()), Units: r.Units})
}

// MsgQuoteNotFound is returned when Airbus prices other acquisitions only.
const MsgQuoteNotFound = "Quote not found for given acquisition ID"

// AirbusPricer is the Airbus side of quoting.
type AirbusPricer interface {
	QuoteSAR(ctx context.Context, acquisitionID, licenceWire string) (airbus.Quote, error)
	QuoteOptical(ctx context.Context, body map[string]any) (airbus.Quote, error)
	ContractID(ctx context.Context, workspace string, family registry.Family) (string, error)
}

// AreaEstimator is the Planet side of quoting.
type AreaEstimator interface {
	Quote(ctx context.Context, collection string, acquisitionIDs []string, aoi [][][]float64) (int, error)
}

// Service prices items through the provider APIs.
type Service struct {
	registry      *registry.Registry
	airbus        AirbusPricer
	planet        AreaEstimator
	fetcher       order.DocumentFetcher
	sourceBaseURL string
	logger        *slog.Logger
}

func NewService(reg *registry.Registry, ab AirbusPricer, pl AreaEstimator, fetcher order.DocumentFetcher, sourceBaseURL string, logger *slog.Logger) *Service {
	return &Service{
		registry:      reg,
		airbus:        ab,
		planet:        pl,
		fetcher:       fetcher,
		sourceBaseURL: sourceBaseURL,
		logger:        logger,
	}
}

// Quote prices target. Errors are *order.Error so the transport maps them
// the same way as order failures.
func (s *Service) Quote(ctx context.Context, target Target, req Request) (Response, error) {
	if !registry.ValidParent(target.Parent) {
		return Response{}, &order.Error{Kind: order.KindNotFound, Message: "Not Found"}
	}
	col, err := s.registry.Lookup(target.Catalog, target.Collection)
	if err != nil {
		return Response{}, &order.Error{Kind: order.KindNotFound, Message: fmt.Sprintf("Collection %s not recognised", target.Collection), Err: err}
	}
	_, wire, err := order.LicenceFor(col, req.Licence)
	if err != nil {
		return Response{}, err
	}

	switch {
	case col.Family == registry.FamilyRadar:
		q, err := s.airbus.QuoteSAR(ctx, target.Item, wire)
		return s.airbusResponse(q, err)
	case col.Family.Optical():
		return s.quoteOptical(ctx, target, col, wire, req.Coordinates)
	default:
		area, err := s.planet.Quote(ctx, col.ID, []string{target.Item}, req.Coordinates)
		if err != nil {
			return Response{}, &order.Error{Kind: order.KindValidation, Message: err.Error(), Err: err}
		}
		return Response{Value: decimal.NewFromInt(int64(area)), Units: planet.Units}, nil
	}
}

func (s *Service) quoteOptical(ctx context.Context, target Target, col registry.Collection, wire string, coordinates [][][]float64) (Response, error) {
	var (
		item     stac.Document
		itemUUID string
		strip    string
	)
	fetchItem := func() error {
		if item != nil {
			return nil
		}
		url := fmt.Sprintf("%s/stac/catalogs/%s/catalogs/%s/collections/%s/items/%s",
			s.sourceBaseURL, target.Parent, target.Catalog, target.Collection, target.Item)
		doc, err := s.fetcher.Document(ctx, url)
		if err != nil {
			return &order.Error{Kind: order.KindUpstream, Message: "Unable to fetch source item", Err: err}
		}
		item = doc
		return nil
	}

	if col.Family == registry.FamilyOpticalPNEO {
		if err := fetchItem(); err != nil {
			return Response{}, err
		}
		if len(item.ComposedOf()) > 0 {
			return Response{}, &order.Error{Kind: order.KindUnsupported, Message: order.MsgCompositeUnsupported}
		}
		v, _ := item.Property("id")
		itemUUID, _ = v.(string)
	} else {
		strip = target.Item
	}

	var aoi any = coordinates
	if len(coordinates) == 0 {
		if err := fetchItem(); err != nil {
			return Response{}, err
		}
		geom := item.Geometry()
		if geom == nil {
			return Response{}, &order.Error{Kind: order.KindUpstream, Message: "Item has no geometry"}
		}
		aoi = geom["coordinates"]
	}

	contractID, err := s.airbus.ContractID(ctx, target.Workspace, col.Family)
	if err != nil {
		return Response{}, &order.Error{Kind: order.KindUpstream, Message: err.Error(), Err: err}
	}
	body, err := airbus.OpticalPriceRequest(col.Family, contractID, aoi, wire, itemUUID, strip)
	if err != nil {
		return Response{}, &order.Error{Kind: order.KindUnsupported, Message: err.Error(), Err: err}
	}
	q, err := s.airbus.QuoteOptical(ctx, body)
	return s.airbusResponse(q, err)
}

func (s *Service) airbusResponse(q airbus.Quote, err error) (Response, error) {
	if errors.Is(err, airbus.ErrQuoteMissing) {
		return Response{}, &order.Error{Kind: order.KindNotFound, Message: MsgQuoteNotFound, Err: err}
	}
	if err != nil {
		s.logger.Error("airbus quote failed", "error", err)
		return Response{}, &order.Error{Kind: order.KindUpstream, Message: err.Error(), Err: err}
	}
	return Response{Value: q.Value, Units: q.Units}, nil
}
