package registry

import "strings"

// Product bundles.
var (
	OpticalBundles = []string{"General use", "Visual", "Basic", "Analytic"}
	RadarBundles   = []string{BundleSSC, BundleMGD, "GEC", "EEC"}
)

const (
	BundleSSC = "SSC"
	BundleMGD = "MGD"
)

// Licences as presented to users.
var (
	RadarLicences = []string{
		"Single User Licence",
		"Multi User (2 - 5) Licence",
		"Multi User (6 - 30) Licence",
	}
	OpticalLicences = []string{
		"Standard",
		"Background Layer",
		"Standard + Background Layer",
		"Academic",
		"Media Licence",
		"Standard Multi End-Users (2-5)",
		"Standard Multi End-Users (6-10)",
		"Standard Multi End-Users (11-30)",
		"Standard Multi End-Users (>30)",
	}
)

// Radar acquisition options.
var (
	Orbits             = []string{"rapid", "science"}
	ResolutionVariants = []string{"RE", "SE"}
	Projections        = []string{"Auto", "UTM", "UPS"}
)

var licenceWire = map[string]string{
	"Single User Licence":              "Single User License",
	"Multi User (2 - 5) Licence":       "Multi User (2 - 5) License",
	"Multi User (6 - 30) Licence":      "Multi User (6 - 30) License",
	"Standard":                         "standard",
	"Background Layer":                 "background_layer",
	"Standard + Background Layer":      "stand_background_layer",
	"Academic":                         "educ",
	"Media Licence":                    "media",
	"Standard Multi End-Users (2-5)":   "standard_1_5",
	"Standard Multi End-Users (6-10)":  "standard_6_10",
	"Standard Multi End-Users (11-30)": "standard_11_30",
	"Standard Multi End-Users (>30)":   "standard_up_30",
}

var projectionWire = map[string]string{
	"Auto": "auto",
	"UTM":  "UTM",
	"UPS":  "UPS",
}

// LicenceWireValue maps a licence onto the value the provider API expects.
func LicenceWireValue(licence string) (string, bool) {
	v, ok := licenceWire[licence]
	return v, ok
}

// ProjectionWireValue maps a projection onto the value the provider API expects.
func ProjectionWireValue(projection string) (string, bool) {
	v, ok := projectionWire[projection]
	return v, ok
}

// Contains reports whether v is one of values.
func Contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// FormatSet renders an allowed-values set for error messages.
func FormatSet(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}
