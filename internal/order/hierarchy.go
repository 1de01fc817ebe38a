package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"example.com/resource-catalogue/internal/blobstore"
	"example.com/resource-catalogue/internal/geometry"
	"example.com/resource-catalogue/internal/stac"
)

// CatalogName is the workspace catalogue holding order records.
const CatalogName = "commercial-data"

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// DocumentFetcher loads STAC documents.
type DocumentFetcher interface {
	Document(ctx context.Context, url string) (stac.Document, error)
}

// Keys are the blob keys of one order record hierarchy. The reference tree
// is what the workspace owner browses; the transformed tree feeds ingestion.
type Keys struct {
	Catalog               string
	Collection            string
	Item                  string
	TransformedCatalog    string
	TransformedCollection string
	TransformedItem       string
}

// KeysFor lays out the six keys of an order record.
func KeysFor(workspace, catalog, collection, item, tag string) Keys {
	ref := fmt.Sprintf("%s/%s/%s", workspace, CatalogName, catalog)
	transformed := fmt.Sprintf("transformed/catalogs/user/catalogs/%s/catalogs/%s/catalogs/%s", workspace, CatalogName, catalog)
	return Keys{
		Catalog:               ref + ".json",
		Collection:            ref + "/" + collection + ".json",
		Item:                  ref + "/" + collection + "/" + item + tag + ".json",
		TransformedCatalog:    transformed + ".json",
		TransformedCollection: transformed + "/collections/" + collection + ".json",
		TransformedItem:       transformed + "/collections/" + collection + "/items/" + item + tag + ".json",
	}
}

// Added lists the transformed keys in write order.
func (k Keys) Added() []string {
	return []string{k.TransformedCatalog, k.TransformedCollection, k.TransformedItem}
}

// Snapshot is the result of an upload.
type Snapshot struct {
	Status             stac.Status
	ShortCircuit       bool
	AddedKeys          []string
	ItemKey            string
	TransformedItemKey string
	Item               stac.Document
}

// Uploader writes the item, collection and catalog of an order record.
type Uploader struct {
	fetcher DocumentFetcher
	store   blobstore.Store
	bucket  string
	now     func() time.Time
	logger  *slog.Logger
}

func NewUploader(fetcher DocumentFetcher, store blobstore.Store, bucket string, logger *slog.Logger) *Uploader {
	return &Uploader{
		fetcher: fetcher,
		store:   store,
		bucket:  bucket,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Upload snapshots the hierarchy of d as a pending order. An existing
// pending or succeeded record at d.Location is returned untouched. inspect,
// when set, sees the source item before anything is written and may veto
// the order.
func (u *Uploader) Upload(ctx context.Context, d Descriptor, inspect func(stac.Document) error) (Snapshot, error) {
	if existing, err := u.fetcher.Document(ctx, d.Location); err == nil {
		if status := existing.OrderStatus(); status.Blocking() {
			u.logger.Info("order record already exists", "location", d.Location, "status", status)
			return Snapshot{Status: status, ShortCircuit: true, Item: existing}, nil
		}
	}

	source, err := u.fetcher.Document(ctx, d.BaseItemURL)
	if err != nil {
		return Snapshot{}, upstream("Unable to fetch source item", err)
	}
	if inspect != nil {
		if err := inspect(source); err != nil {
			return Snapshot{}, err
		}
	}

	item, err := u.BuildRecord(source, d, stac.StatusPending)
	if err != nil {
		return Snapshot{}, err
	}

	collectionURL, ok := source.LinkHref("collection")
	if !ok {
		return Snapshot{}, upstream("Collection URL not found in item links", nil)
	}
	collection, err := u.fetcher.Document(ctx, collectionURL)
	if err != nil {
		return Snapshot{}, upstream("Unable to fetch source collection", err)
	}
	catalogURL, ok := collection.LinkHref("parent")
	if !ok {
		return Snapshot{}, upstream("Catalog URL not found in collection links", nil)
	}
	catalog, err := u.fetcher.Document(ctx, catalogURL)
	if err != nil {
		return Snapshot{}, upstream("Unable to fetch source catalog", err)
	}

	sub := d.Submission
	collection["description"] = recordsDescription(strings.ReplaceAll(capitalize(sub.Collection), "_", " "))
	catalog["description"] = recordsDescription(capitalize(sub.Catalog))
	catalog.ClearLinks()
	collection.ClearLinks()

	keys := KeysFor(sub.Workspace, sub.Catalog, sub.Collection, sub.Item, d.Tag)
	writes := []struct {
		key string
		doc stac.Document
	}{
		{keys.Catalog, catalog},
		{keys.Collection, collection},
		{keys.Item, item},
		{keys.TransformedCatalog, catalog},
		{keys.TransformedCollection, collection},
		{keys.TransformedItem, item},
	}
	for _, w := range writes {
		if err := u.put(ctx, w.key, w.doc); err != nil {
			return Snapshot{}, err
		}
	}
	u.logger.Info("order record written", "workspace", sub.Workspace, "item_key", keys.Item)

	return Snapshot{
		Status:             stac.StatusPending,
		AddedKeys:          keys.Added(),
		ItemKey:            keys.Item,
		TransformedItemKey: keys.TransformedItem,
		Item:               item,
	}, nil
}

// BuildRecord turns a source item into the order record for d with the
// given status. The source is left untouched.
func (u *Uploader) BuildRecord(source stac.Document, d Descriptor, status stac.Status) (stac.Document, error) {
	item := source.Clone()
	item.SetID(item.ID() + d.Tag)
	item.SetOrderStatus(status, "")
	item.ClearAssets()
	item.ClearLinks()

	props := item.Properties()
	props["order_options"] = d.Options()

	title := "Order: " + d.Submission.Item
	if d.Bundle != "" {
		title += " - " + d.Bundle
	}
	coords := d.Submission.Request.Coordinates
	if len(coords) > 0 {
		title += " (Clipped)"
	}
	props["title"] = title

	stamp := u.now().Format(timestampLayout)
	props["created"] = stamp
	props["updated"] = stamp

	if len(coords) > 0 {
		aoi := geometry.Polygon(coords)
		footprint := item.Geometry()
		if footprint == nil {
			item.SetGeometry(aoi)
			return item, nil
		}
		clipped, err := geometry.Intersection(footprint, aoi)
		if errors.Is(err, geometry.ErrEmptyIntersection) {
			return nil, &Error{Kind: KindValidation, Message: MsgNoIntersection, Err: err}
		}
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: "Invalid AOI coordinates", Err: err}
		}
		item.SetGeometry(clipped)
	}
	return item, nil
}

// WriteItem stores item under both item keys of the snapshot.
func (u *Uploader) WriteItem(ctx context.Context, itemKey, transformedItemKey string, item stac.Document) error {
	if err := u.put(ctx, itemKey, item); err != nil {
		return err
	}
	return u.put(ctx, transformedItemKey, item)
}

func (u *Uploader) put(ctx context.Context, key string, doc stac.Document) error {
	body, err := doc.Bytes()
	if err != nil {
		return upstream("Unable to encode order record", err)
	}
	if _, err := u.store.Put(ctx, u.bucket, key, body); err != nil {
		return upstream("Unable to store order record", err)
	}
	return nil
}

func recordsDescription(subject string) string {
	return "Order records for " + subject + ", including completed purchases with their associated assets, as well as records of ongoing and failed orders."
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
