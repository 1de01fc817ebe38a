package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/resource-catalogue/internal/registry"
	"example.com/resource-catalogue/internal/stac"
)

func TestKeysFor(t *testing.T) {
	k := KeysFor("ws", "planet", "PSScene", "item-1", "_Visual")
	assert.Equal(t, "ws/commercial-data/planet.json", k.Catalog)
	assert.Equal(t, "ws/commercial-data/planet/PSScene.json", k.Collection)
	assert.Equal(t, "ws/commercial-data/planet/PSScene/item-1_Visual.json", k.Item)
	assert.Equal(t, "transformed/catalogs/user/catalogs/ws/catalogs/commercial-data/catalogs/planet.json", k.TransformedCatalog)
	assert.Equal(t, "transformed/catalogs/user/catalogs/ws/catalogs/commercial-data/catalogs/planet/collections/PSScene.json", k.TransformedCollection)
	assert.Equal(t, "transformed/catalogs/user/catalogs/ws/catalogs/commercial-data/catalogs/planet/collections/PSScene/items/item-1_Visual.json", k.TransformedItem)
	assert.Equal(t, []string{k.TransformedCatalog, k.TransformedCollection, k.TransformedItem}, k.Added())
}

func TestBuildRecord_LeavesSourceUntouched(t *testing.T) {
	f := newFixture(t)
	itemURL := f.seed("planet", "PSScene", "ps-1", nil)
	source := f.fetcher.docs[itemURL]

	d := Descriptor{
		Submission: Submission{Item: "ps-1", Username: "alice", Request: Request{ProductBundle: "Visual"}},
		Collection: registry.Collection{Family: registry.FamilyPlanet},
		Bundle:     "Visual",
		Tag:        "_Visual",
	}
	record, err := f.pipeline.deps.Uploader.BuildRecord(source, d, stac.StatusPending)
	require.NoError(t, err)

	assert.Equal(t, "ps-1_Visual", record.ID())
	assert.Equal(t, "ps-1", source.ID())
	assert.Empty(t, source.OrderStatus())
	assert.NotEmpty(t, source["assets"])

	created, _ := record.Property("created")
	assert.Equal(t, "2024-05-01T12:00:00.000000Z", created)
	title, _ := record.Property("title")
	assert.Equal(t, "Order: ps-1 - Visual", title)
	assert.Equal(t, source.Geometry(), record.Geometry())
}

func TestBuildRecord_UsesAOIWithoutFootprint(t *testing.T) {
	f := newFixture(t)
	aoi := [][][]float64{{{1, 1}, {1, 3}, {3, 3}, {3, 1}, {1, 1}}}
	d := Descriptor{
		Submission: Submission{Item: "x", Request: Request{ProductBundle: "Visual", Coordinates: aoi}},
		Bundle:     "Visual",
	}
	record, err := f.pipeline.deps.Uploader.BuildRecord(stac.Document{"id": "x", "properties": map[string]any{}}, d, stac.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "Polygon", record.Geometry()["type"])
}

func TestUpload_StoreFailureIsUpstream(t *testing.T) {
	f := newFixture(t)
	f.seed("planet", "PSScene", "ps-1", nil)
	f.store.err = assert.AnError

	_, err := f.pipeline.Order(context.Background(), Submission{
		Parent: "supported-datasets", Catalog: "planet", Collection: "PSScene", Item: "ps-1", Workspace: "ws",
		Request: Request{ProductBundle: "Visual"},
	})
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, "Unable to store order record", err.Error())
}
