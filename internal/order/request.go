// Package order implements the commercial order pipeline: request
// validation, the STAC hierarchy snapshot, workflow dispatch and failure
// reconciliation.
package order

import (
	"example.com/resource-catalogue/internal/registry"
	"example.com/resource-catalogue/internal/stac"
)

// RadarOptions are the SAR acquisition options supplied by the user.
type RadarOptions struct {
	Orbit             string `json:"orbit"`
	ResolutionVariant string `json:"resolutionVariant,omitempty"`
	Projection        string `json:"projection,omitempty"`
}

// Request is the body of an order request.
type Request struct {
	ProductBundle  string        `json:"productBundle"`
	Coordinates    [][][]float64 `json:"coordinates,omitempty"`
	EndUserCountry string        `json:"endUserCountry,omitempty"`
	Licence        string        `json:"licence,omitempty"`
	RadarOptions   *RadarOptions `json:"radarOptions,omitempty"`
}

// Submission is a request together with the caller and the item it targets.
type Submission struct {
	Parent        string  `json:"parent"`
	Catalog       string  `json:"catalog"`
	Collection    string  `json:"collection"`
	Item          string  `json:"item"`
	Workspace     string  `json:"workspace"`
	Username      string  `json:"username"`
	Authorization string  `json:"authorization"`
	Request       Request `json:"request"`
}

// RadarBundle is the product description sent to the SAR adaptor in place
// of a plain bundle name.
type RadarBundle struct {
	Orbit             string `json:"orbit"`
	ResolutionVariant string `json:"resolutionVariant,omitempty"`
	Projection        string `json:"projection,omitempty"`
	ProductType       string `json:"product_type"`
}

// EndUser identifies who the purchased data is licensed to.
type EndUser struct {
	EndUserName string `json:"endUserName"`
	Country     string `json:"country"`
}

// Options is stored on the order record as properties.order_options.
type Options struct {
	ProductBundle string        `json:"product_bundle"`
	Coordinates   [][][]float64 `json:"coordinates"`
	EndUser       OptionEndUser `json:"endUser"`
	Licence       *string       `json:"licence"`
	RadarOptions  *RadarBundle  `json:"radarOptions,omitempty"`
}

type OptionEndUser struct {
	Country     *string `json:"country"`
	EndUserName string  `json:"endUserName"`
}

// Descriptor is a validated, provider-ready order.
type Descriptor struct {
	Submission  Submission          `json:"submission"`
	Collection  registry.Collection `json:"collection"`
	Bundle      string              `json:"bundle"`
	Licence     string              `json:"licence,omitempty"`
	LicenceWire string              `json:"licence_wire,omitempty"`
	Radar       *RadarBundle        `json:"radar,omitempty"`
	EndUsers    []EndUser           `json:"end_users"`
	Tag         string              `json:"tag"`
	BaseItemURL string              `json:"base_item_url"`
	Location    string              `json:"location"`
}

// Options renders the order_options property for the record.
func (d Descriptor) Options() Options {
	opts := Options{
		ProductBundle: d.Bundle,
		Coordinates:   d.Submission.Request.Coordinates,
		EndUser:       OptionEndUser{EndUserName: d.Submission.Username},
		RadarOptions:  d.Radar,
	}
	if c := d.Submission.Request.EndUserCountry; c != "" {
		opts.EndUser.Country = &c
	}
	if d.LicenceWire != "" {
		wire := d.LicenceWire
		opts.Licence = &wire
	}
	return opts
}

// Prepared is the outcome of validating a submission and writing its
// pending record.
type Prepared struct {
	Order              Descriptor    `json:"order"`
	ShortCircuit       bool          `json:"short_circuit"`
	Status             stac.Status   `json:"status"`
	Item               stac.Document `json:"item"`
	AddedKeys          []string      `json:"added_keys"`
	ItemKey            string        `json:"item_key"`
	TransformedItemKey string        `json:"transformed_item_key"`
	LedgerID           string        `json:"ledger_id,omitempty"`
}

// Outcome is what the transport layer returns to the caller.
type Outcome struct {
	Created  bool          `json:"created"`
	Status   stac.Status   `json:"status"`
	Item     stac.Document `json:"item"`
	Location string        `json:"location"`
	Message  string        `json:"message,omitempty"`
}
