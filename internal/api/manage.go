package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"example.com/resource-catalogue/internal/datasets"
	"example.com/resource-catalogue/internal/ledger"
)

type datasetAction struct {
	name    string
	message string
}

var (
	datasetCreate = datasetAction{name: datasets.ActionCreate, message: "Item created successfully"}
	datasetUpdate = datasetAction{name: datasets.ActionUpdate, message: "Item updated successfully"}
)

type itemRequest struct {
	URL string `json:"url"`
}

func decodeItemRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload itemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: %v", err)
		return "", false
	}
	if strings.TrimSpace(payload.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return "", false
	}
	return payload.URL, true
}

func (s *Server) handleSaveDataset(action datasetAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok := decodeItemRequest(w, r)
		if !ok {
			return
		}
		workspace := chi.URLParam(r, "workspace")
		if _, err := s.deps.Datasets.Save(r.Context(), workspace, url, action.name); err != nil {
			s.logger.Error("save dataset failed", "workspace", workspace, "url", url, "error", err)
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": action.message})
	}
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	url, ok := decodeItemRequest(w, r)
	if !ok {
		return
	}
	workspace := chi.URLParam(r, "workspace")
	if _, err := s.deps.Datasets.Remove(r.Context(), workspace, url); err != nil {
		s.logger.Error("delete dataset failed", "workspace", workspace, "url", url, "error", err)
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Item deleted successfully"})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	workspace := chi.URLParam(r, "workspace")
	limit := ledger.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	entries, err := s.deps.Ledger.List(r.Context(), workspace, limit)
	if err != nil {
		s.logger.Error("list orders failed", "workspace", workspace, "error", err)
		writeError(w, http.StatusInternalServerError, "list orders: %v", err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": entries})
}
