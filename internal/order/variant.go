package order

import (
	"context"
	"errors"

	"example.com/resource-catalogue/internal/provider/airbus"
	"example.com/resource-catalogue/internal/registry"
)

// CountryValidator checks end-user country codes against the provider.
type CountryValidator interface {
	ValidateCountry(ctx context.Context, code string) error
}

// terms is what a variant resolves from a request.
type terms struct {
	Bundle      string
	Licence     string
	LicenceWire string
	Radar       *RadarBundle
	EndUsers    []EndUser
}

// variant carries the rules of one collection family. It is selected once
// per order from the registry entry.
type variant interface {
	resolve(ctx context.Context, req Request, username string, countries CountryValidator) (terms, error)
}

func variantFor(family registry.Family) variant {
	switch family {
	case registry.FamilyRadar:
		return radarVariant{}
	case registry.FamilyOpticalPNEO:
		return opticalVariant{endUsersRequired: true}
	case registry.FamilyOpticalPHR, registry.FamilyOpticalSPOT:
		return opticalVariant{}
	default:
		return planetVariant{}
	}
}

type radarVariant struct{}

func (radarVariant) resolve(_ context.Context, req Request, _ string, _ CountryValidator) (terms, error) {
	licence, wire, err := resolveLicence(req.Licence, registry.RadarLicences, "a radar item")
	if err != nil {
		return terms{}, err
	}
	if !registry.Contains(registry.RadarBundles, req.ProductBundle) {
		return terms{}, validationf("Invalid product bundle for a radar item. Valid bundles are: %s", registry.FormatSet(registry.RadarBundles))
	}
	radar, err := resolveRadarOptions(req.RadarOptions, req.ProductBundle)
	if err != nil {
		return terms{}, err
	}
	return terms{Bundle: req.ProductBundle, Licence: licence, LicenceWire: wire, Radar: radar}, nil
}

type opticalVariant struct {
	endUsersRequired bool
}

func (v opticalVariant) resolve(ctx context.Context, req Request, username string, countries CountryValidator) (terms, error) {
	licence, wire, err := resolveLicence(req.Licence, registry.OpticalLicences, "an optical item")
	if err != nil {
		return terms{}, err
	}
	bundle, err := resolveBundle(req.ProductBundle)
	if err != nil {
		return terms{}, err
	}

	endUsers := []EndUser{}
	if code := req.EndUserCountry; code != "" {
		if err := countries.ValidateCountry(ctx, code); err != nil {
			var countryErr *airbus.CountryError
			if errors.As(err, &countryErr) {
				return terms{}, &Error{Kind: KindValidation, Message: countryErr.Error(), Err: err}
			}
			return terms{}, upstream("Unable to validate end user country", err)
		}
		endUsers = []EndUser{{EndUserName: username, Country: code}}
	}
	if v.endUsersRequired && len(endUsers) == 0 {
		return terms{}, validationf("End users must be supplied for PNEO orders")
	}
	return terms{Bundle: bundle, Licence: licence, LicenceWire: wire, EndUsers: endUsers}, nil
}

// planetVariant has no licence and no end users.
type planetVariant struct{}

func (planetVariant) resolve(_ context.Context, req Request, _ string, _ CountryValidator) (terms, error) {
	bundle, err := resolveBundle(req.ProductBundle)
	if err != nil {
		return terms{}, err
	}
	return terms{Bundle: bundle}, nil
}

func resolveLicence(licence string, allowed []string, what string) (string, string, error) {
	if licence == "" {
		return "", "", validationf("Licence is required for %s. Valid licences are: %s", what, registry.FormatSet(allowed))
	}
	if !registry.Contains(allowed, licence) {
		return "", "", validationf("Invalid licence for %s. Valid licences are: %s", what, registry.FormatSet(allowed))
	}
	wire, _ := registry.LicenceWireValue(licence)
	return licence, wire, nil
}

func resolveBundle(bundle string) (string, error) {
	if !registry.Contains(registry.OpticalBundles, bundle) {
		return "", validationf("Invalid product bundle. Valid bundles are: %s", registry.FormatSet(registry.OpticalBundles))
	}
	return bundle, nil
}

// resolveRadarOptions enforces the bundle dependent radar fields: SSC takes
// no resolution variant, SSC and MGD take no projection, and every other
// bundle requires both.
func resolveRadarOptions(opts *RadarOptions, bundle string) (*RadarBundle, error) {
	if opts == nil {
		return nil, validationf("Radar options missing for a radar item.")
	}
	if opts.Orbit == "" {
		return nil, validationf("Orbit is required for a radar item.")
	}
	if !registry.Contains(registry.Orbits, opts.Orbit) {
		return nil, validationf("Invalid orbit for a radar item. Valid orbits are: %s", registry.FormatSet(registry.Orbits))
	}

	ssc := bundle == registry.BundleSSC
	noProjection := ssc || bundle == registry.BundleMGD

	switch {
	case !ssc && opts.ResolutionVariant == "":
		return nil, validationf("Resolution variant is required for a radar item when the product bundle is not SSC.")
	case ssc && opts.ResolutionVariant != "":
		return nil, validationf("Resolution variant should not be provided for a radar item when the product bundle is SSC.")
	case !noProjection && opts.Projection == "":
		return nil, validationf("Projection is required for a radar item when the product bundle is not SSC or MGD.")
	case noProjection && opts.Projection != "":
		return nil, validationf("Projection should not be provided for a radar item when the product bundle is SSC or MGD.")
	}

	if opts.ResolutionVariant != "" && !registry.Contains(registry.ResolutionVariants, opts.ResolutionVariant) {
		return nil, validationf("Invalid resolution variant for a radar item. Valid variants are: %s", registry.FormatSet(registry.ResolutionVariants))
	}
	out := &RadarBundle{Orbit: opts.Orbit, ResolutionVariant: opts.ResolutionVariant, ProductType: bundle}
	if opts.Projection != "" {
		wire, ok := registry.ProjectionWireValue(opts.Projection)
		if !ok {
			return nil, validationf("Invalid projection for a radar item. Valid projections are: %s", registry.FormatSet(registry.Projections))
		}
		out.Projection = wire
	}
	return out, nil
}

// LicenceFor validates a licence against a collection and returns it with
// its provider wire value. Collections without licences accept anything.
func LicenceFor(col registry.Collection, licence string) (string, string, error) {
	switch {
	case col.Family == registry.FamilyRadar:
		return resolveLicence(licence, registry.RadarLicences, "a radar item")
	case col.Family.Optical():
		return resolveLicence(licence, registry.OpticalLicences, "an optical item")
	default:
		return "", "", nil
	}
}
