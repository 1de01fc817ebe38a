package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"example.com/resource-catalogue/internal/auth"
	"example.com/resource-catalogue/internal/registry"
)

// handleAsset proxies an external Airbus asset (thumbnail or quicklook)
// referenced by the source item.
func (s *Server) handleAsset(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.deps.Policy.LoggedIn(auth.FromContext(r.Context())) {
			writeError(w, http.StatusForbidden, msgAccessDenied)
			return
		}
		if !airbusCollectionRoute(r) {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}

		collection, item := chi.URLParam(r, "collection"), chi.URLParam(r, "item")
		itemURL := fmt.Sprintf("%s/stac/catalogs/supported-datasets/catalogs/airbus/collections/%s/items/%s",
			s.settings.SourceBaseURL, collection, item)
		doc, err := s.deps.Fetcher.Document(r.Context(), itemURL)
		if err != nil {
			s.logger.Error("fetch item for asset failed", "url", itemURL, "error", err)
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		href, ok := doc.AssetHref("external_" + name)
		if !ok {
			writeError(w, http.StatusNotFound, "External %s link not found in item", name)
			return
		}

		body, contentType, err := s.deps.Airbus.FetchAsset(r.Context(), href)
		if err != nil {
			s.logger.Error("fetch asset failed", "asset", name, "href", href, "error", err)
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// handleCollectionThumbnail serves {StaticPath}/{collection}.jpg.
func (s *Server) handleCollectionThumbnail(w http.ResponseWriter, r *http.Request) {
	if !airbusCollectionRoute(r) {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	collection := chi.URLParam(r, "collection")
	if collection == "" || collection != filepath.Base(collection) || collection == ".." {
		writeError(w, http.StatusNotFound, "Thumbnail not found")
		return
	}
	path := filepath.Join(s.settings.StaticPath, collection+".jpg")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "Thumbnail not found")
		return
	}
	http.ServeFile(w, r, path)
}

func airbusCollectionRoute(r *http.Request) bool {
	return registry.ValidParent(chi.URLParam(r, "parent")) &&
		chi.URLParam(r, "catalog") == string(registry.ProviderAirbus)
}
