package stac

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OrderExtensionURL identifies the STAC Order extension schema.
const OrderExtensionURL = "https://stac-extensions.github.io/order/v1.1.0/schema.json"

// Property keys written by the Order extension.
const (
	PropOrderStatus = "order:status"
	PropOrderID     = "order:id"
)

// Status is an order status from the STAC Order extension.
type Status string

const (
	StatusOrderable Status = "orderable"
	StatusOrdered   Status = "ordered"
	StatusPending   Status = "pending"
	StatusShipping  Status = "shipping"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Blocking reports whether a record in this status must not be ordered again.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusSucceeded
}

// ErrNotObject is returned when a payload parses as JSON but is not an object.
var ErrNotObject = errors.New("stac document is not a JSON object")

// Document is a STAC catalog, collection or item kept as raw JSON so that
// fields this service does not model survive a round trip untouched.
type Document map[string]any

// Parse decodes a STAC document from JSON.
func Parse(data []byte) (Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode stac document: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Document(obj), nil
}

// Bytes encodes the document as JSON.
func (d Document) Bytes() ([]byte, error) {
	return json.Marshal(map[string]any(d))
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	data, err := d.Bytes()
	if err != nil {
		return Document{}
	}
	out, err := Parse(data)
	if err != nil {
		return Document{}
	}
	return out
}

func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

func (d Document) SetID(id string) {
	d["id"] = id
}

// Properties returns the properties map, creating it when missing.
func (d Document) Properties() map[string]any {
	props, ok := d["properties"].(map[string]any)
	if !ok {
		props = map[string]any{}
		d["properties"] = props
	}
	return props
}

// Property reads a single property without mutating the document.
func (d Document) Property(key string) (any, bool) {
	props, ok := d["properties"].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := props[key]
	return v, ok
}

// OrderStatus returns the order:status property, or "" when absent.
func (d Document) OrderStatus() Status {
	v, _ := d.Property(PropOrderStatus)
	s, _ := v.(string)
	return Status(s)
}

// SetOrderStatus records the order status (and id when non-empty) and makes
// sure the Order extension is declared exactly once. Repeated calls with the
// same arguments leave the document unchanged.
func (d Document) SetOrderStatus(status Status, orderID string) {
	props := d.Properties()
	if orderID != "" {
		props[PropOrderID] = orderID
	}
	props[PropOrderStatus] = string(status)

	var extensions []any
	switch v := d["stac_extensions"].(type) {
	case []any:
		extensions = v
	case []string:
		for _, ext := range v {
			extensions = append(extensions, ext)
		}
	}
	for _, ext := range extensions {
		if ext == OrderExtensionURL {
			d["stac_extensions"] = extensions
			return
		}
	}
	d["stac_extensions"] = append(extensions, OrderExtensionURL)
}

// Geometry returns the raw GeoJSON geometry, or nil when absent.
func (d Document) Geometry() map[string]any {
	g, _ := d["geometry"].(map[string]any)
	if len(g) == 0 {
		return nil
	}
	return g
}

func (d Document) SetGeometry(g map[string]any) {
	d["geometry"] = g
}

// LinkHref returns the href of the first link with the given rel.
func (d Document) LinkHref(rel string) (string, bool) {
	links, _ := d["links"].([]any)
	for _, raw := range links {
		link, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if r, _ := link["rel"].(string); r != rel {
			continue
		}
		if href, _ := link["href"].(string); href != "" {
			return href, true
		}
	}
	return "", false
}

func (d Document) ClearLinks() {
	d["links"] = []any{}
}

func (d Document) ClearAssets() {
	d["assets"] = map[string]any{}
}

// AssetHref returns the href of a named asset.
func (d Document) AssetHref(name string) (string, bool) {
	assets, _ := d["assets"].(map[string]any)
	asset, _ := assets[name].(map[string]any)
	href, _ := asset["href"].(string)
	return href, href != ""
}

// ComposedOf returns the acquisition identifiers of a multi or stereo
// acquisition, or nil for a single acquisition.
func (d Document) ComposedOf() []any {
	v, ok := d.Property("composed_of_acquisition_identifiers")
	if !ok {
		return nil
	}
	switch ids := v.(type) {
	case []any:
		if len(ids) == 0 {
			return nil
		}
		return ids
	case string:
		if ids == "" {
			return nil
		}
		return []any{ids}
	default:
		return nil
	}
}
