// Package registry declares the closed set of orderable collections and the
// enumerations and provider wire values that go with them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Provider string

const (
	ProviderAirbus Provider = "airbus"
	ProviderPlanet Provider = "planet"
)

// Family selects the validation and payload rules applied to an order.
type Family int

const (
	FamilyRadar Family = iota + 1
	FamilyOpticalPNEO
	FamilyOpticalPHR
	FamilyOpticalSPOT
	FamilyPlanet
)

func (f Family) String() string {
	switch f {
	case FamilyRadar:
		return "radar"
	case FamilyOpticalPNEO:
		return "optical-pneo"
	case FamilyOpticalPHR:
		return "optical-phr"
	case FamilyOpticalSPOT:
		return "optical-spot"
	case FamilyPlanet:
		return "planet"
	default:
		return "unknown"
	}
}

// Optical reports whether the family is one of the Airbus optical lines.
func (f Family) Optical() bool {
	return f == FamilyOpticalPNEO || f == FamilyOpticalPHR || f == FamilyOpticalSPOT
}

// Airbus collection identifiers.
const (
	CollectionSAR  = "airbus_sar_data"
	CollectionPNEO = "airbus_pneo_data"
	CollectionPHR  = "airbus_phr_data"
	CollectionSPOT = "airbus_spot_data"
)

// Parent catalogues under which commercial catalogues are served.
var ParentCatalogues = []string{"supported-datasets", "commercial"}

// Collection is one orderable collection.
type Collection struct {
	ID       string
	Provider Provider
	Family   Family
	Licences []string
	Bundles  []string
	// Adaptor is the workflow executed to fulfil an order.
	Adaptor string
	// CommercialBucket is where the adaptor stages purchased data. Empty
	// means the workspace bucket.
	CommercialBucket string
}

var (
	ErrUnknownCatalog    = errors.New("catalog not recognised")
	ErrUnknownCollection = errors.New("collection not recognised")
)

// Registry resolves (catalog, collection) pairs.
type Registry struct {
	byProvider map[Provider]map[string]Collection
}

// New builds the registry from the fixed Airbus collections plus the
// configured Planet collections.
func New(planetCollections []string) (*Registry, error) {
	r := &Registry{byProvider: map[Provider]map[string]Collection{
		ProviderAirbus: {},
		ProviderPlanet: {},
	}}
	airbus := []Collection{
		{ID: CollectionSAR, Family: FamilyRadar, Licences: RadarLicences, Bundles: RadarBundles,
			Adaptor: "airbus-sar-adaptor", CommercialBucket: "commercial-data-airbus"},
		{ID: CollectionPNEO, Family: FamilyOpticalPNEO, Licences: OpticalLicences, Bundles: OpticalBundles,
			Adaptor: "airbus-optical-adaptor", CommercialBucket: "airbus-commercial-data"},
		{ID: CollectionPHR, Family: FamilyOpticalPHR, Licences: OpticalLicences, Bundles: OpticalBundles,
			Adaptor: "airbus-optical-adaptor", CommercialBucket: "airbus-commercial-data"},
		{ID: CollectionSPOT, Family: FamilyOpticalSPOT, Licences: OpticalLicences, Bundles: OpticalBundles,
			Adaptor: "airbus-optical-adaptor", CommercialBucket: "airbus-commercial-data"},
	}
	for _, c := range airbus {
		c.Provider = ProviderAirbus
		r.byProvider[ProviderAirbus][c.ID] = c
	}
	for _, id := range planetCollections {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, clash := r.byProvider[ProviderAirbus][id]; clash {
			return nil, fmt.Errorf("planet collection %q clashes with an airbus collection", id)
		}
		r.byProvider[ProviderPlanet][id] = Collection{
			ID:       id,
			Provider: ProviderPlanet,
			Family:   FamilyPlanet,
			Bundles:  OpticalBundles,
			Adaptor:  "planet-adaptor",
		}
	}
	if len(r.byProvider[ProviderPlanet]) == 0 {
		return nil, errors.New("at least one planet collection is required")
	}
	return r, nil
}

// Lookup resolves a collection within a catalog.
func (r *Registry) Lookup(catalog, collection string) (Collection, error) {
	cols, ok := r.byProvider[Provider(catalog)]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %s", ErrUnknownCatalog, catalog)
	}
	c, ok := cols[collection]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %s/%s", ErrUnknownCollection, catalog, collection)
	}
	return c, nil
}

// Collections lists the collections of a provider, sorted by id.
func (r *Registry) Collections(p Provider) []Collection {
	out := make([]Collection, 0, len(r.byProvider[p]))
	for _, c := range r.byProvider[p] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ValidParent reports whether a parent catalogue segment is served.
func ValidParent(parent string) bool {
	for _, p := range ParentCatalogues {
		if p == parent {
			return true
		}
	}
	return false
}
