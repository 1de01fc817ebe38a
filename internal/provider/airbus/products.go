package airbus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"example.com/resource-catalogue/internal/credentials"
	"example.com/resource-catalogue/internal/registry"
)

// Default optical contracts used when a workspace has none linked.
const (
	DefaultPNEOContract   = "CTR24005241"
	DefaultLegacyContract = "UNIVERSITY_OF_LEICESTER_Orders"
)

// ErrNoContract is returned when a workspace has contracts but none for the
// requested product line.
var ErrNoContract = errors.New("airbus contract ID not found")

// ProductType returns the Airbus product type for an optical family.
func ProductType(family registry.Family) (string, bool) {
	switch family {
	case registry.FamilyOpticalPNEO:
		return "PleiadesNeoArchiveMono", true
	case registry.FamilyOpticalPHR:
		return "PleiadesArchiveMono", true
	case registry.FamilyOpticalSPOT:
		return "SPOTArchive1.5Mono", true
	default:
		return "", false
	}
}

// SelectContract picks the optical contract whose label carries the family
// marker (PNEO or LEGACY). Radar takes any SAR contract. Ties go to the
// lowest contract ID.
func SelectContract(contracts credentials.Contracts, family registry.Family) (string, error) {
	pool, marker := contracts.Optical, "LEGACY"
	switch family {
	case registry.FamilyRadar:
		pool, marker = contracts.SAR, ""
	case registry.FamilyOpticalPNEO:
		marker = "PNEO"
	}
	var match string
	for id, label := range pool {
		if strings.Contains(label, marker) && (match == "" || id < match) {
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrNoContract, family)
	}
	return match, nil
}

// ContractID resolves the contract for a workspace, falling back to the
// service defaults when the workspace has no linked contracts.
func (c *Client) ContractID(ctx context.Context, workspace string, family registry.Family) (string, error) {
	contracts, err := c.creds.Contracts(ctx, workspace, providerName)
	if err == nil {
		return SelectContract(contracts, family)
	}
	if !errors.Is(err, credentials.ErrNotFound) {
		return "", err
	}
	if family == registry.FamilyOpticalPNEO {
		return DefaultPNEOContract, nil
	}
	return DefaultLegacyContract, nil
}

// OpticalPriceRequest builds the body of an optical price request. PNEO
// items are referenced by catalogue UUID, PHR and SPOT by datastrip.
func OpticalPriceRequest(family registry.Family, contractID string, coordinates any, licenceWire, itemUUID, datastripID string) (map[string]any, error) {
	productType, ok := ProductType(family)
	if !ok {
		return nil, fmt.Errorf("no optical product type for %s", family)
	}
	item := map[string]any{
		"notifications": []any{},
		"stations":      []any{},
		"productTypeId": productType,
		"aoiId":         1,
		"properties":    []any{},
	}
	if family == registry.FamilyOpticalPNEO && itemUUID != "" {
		item["dataSourceIds"] = []map[string]string{{"catalogId": "PublicMOC", "catalogItemId": itemUUID}}
	}
	if family != registry.FamilyOpticalPNEO && datastripID != "" {
		item["datastripIds"] = []string{datastripID}
	}

	option := func(k, v string) map[string]string { return map[string]string{"key": k, "value": v} }
	return map[string]any{
		"aoi": []map[string]any{{
			"id":       1,
			"name":     "Polygon 1",
			"geometry": map[string]any{"type": "Polygon", "coordinates": coordinates},
		}},
		"programReference":  "",
		"contractId":        contractID,
		"items":             []map[string]any{item},
		"primaryMarket":     "NQUAL",
		"secondaryMarket":   "",
		"customerReference": "Polygon 1",
		"optionsPerProductType": []map[string]any{{
			"productTypeId": productType,
			"options": []map[string]string{
				option("delivery_method", "on_the_flow"),
				option("fullStrip", "false"),
				option("image_format", "dimap_geotiff"),
				option("licence", licenceWire),
				option("pixel_coding", "12bits"),
				option("priority", "standard"),
				option("processing_level", "primary"),
				option("radiometric_processing", "reflectance"),
				option("spectral_processing", "bundle"),
			},
		}},
		"orderGroup": "",
		"delivery":   map[string]string{"type": "network"},
	}, nil
}
