package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"example.com/resource-catalogue/internal/auth"
	"example.com/resource-catalogue/internal/order"
	"example.com/resource-catalogue/internal/quote"
)

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	user := auth.FromContext(r.Context())
	if !s.deps.Policy.AnyWorkspace(user) {
		writeError(w, http.StatusForbidden, msgAccessDenied)
		return
	}

	var req order.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: %v", err)
		return
	}

	sub := order.Submission{
		Parent:        chi.URLParam(r, "parent"),
		Catalog:       chi.URLParam(r, "catalog"),
		Collection:    chi.URLParam(r, "collection"),
		Item:          chi.URLParam(r, "item"),
		Workspace:     user.Workspace(),
		Username:      user.Username,
		Authorization: r.Header.Get("Authorization"),
		Request:       req,
	}
	out, err := s.deps.Orders.Order(r.Context(), sub)
	if err != nil {
		s.logger.Warn("order failed", "item", sub.Item, "workspace", sub.Workspace, "kind", order.KindOf(err), "error", err)
		s.writeOrderError(w, err)
		return
	}

	w.Header().Set("Location", out.Location)
	if !out.Created {
		w.Header().Set("Message", out.Message)
		writeJSON(w, http.StatusOK, out.Item)
		return
	}
	s.logger.Info("order placed", "item", sub.Item, "workspace", sub.Workspace, "location", out.Location)
	writeJSON(w, http.StatusCreated, out.Item)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	user := auth.FromContext(r.Context())
	if !s.deps.Policy.LoggedIn(user) {
		writeError(w, http.StatusForbidden, msgAccessDenied)
		return
	}

	var req quote.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json: %v", err)
		return
	}

	target := quote.Target{
		Parent:     chi.URLParam(r, "parent"),
		Catalog:    chi.URLParam(r, "catalog"),
		Collection: chi.URLParam(r, "collection"),
		Item:       chi.URLParam(r, "item"),
		Workspace:  user.Workspace(),
	}
	resp, err := s.deps.Quotes.Quote(r.Context(), target, req)
	if err != nil {
		s.logger.Warn("quote failed", "item", target.Item, "collection", target.Collection, "error", err)
		s.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
