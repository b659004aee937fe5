package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/selection"
)

// HandleToggleSelection flips one selected image for a product.
func (h *Handler) HandleToggleSelection(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var request struct {
		EAN  string         `json:"ean"`
		Item selection.Item `json:"item"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	switch request.Item.Type {
	case selection.KindURL:
		if request.Item.URL == "" {
			h.writeError(w, "url item requires url", http.StatusBadRequest)
			return
		}
	case selection.KindUpload:
		if request.Item.Data == "" {
			h.writeError(w, "upload item requires data", http.StatusBadRequest)
			return
		}
	default:
		h.writeError(w, "item type must be 'url' or 'upload'", http.StatusBadRequest)
		return
	}

	if err := session.Toggle(request.EAN, request.Item); err != nil {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, map[string]any{
		"ean":      request.EAN,
		"selected": session.IsSelected(request.EAN, request.Item),
	})
}

// HandleSearchMore fetches another portion of candidate images for a
// product. Failures are transient and only surface in this response.
func (h *Handler) HandleSearchMore(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var request struct {
		EAN string `json:"ean"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	sources, err := session.SearchMore(r.Context(), request.EAN)
	if err != nil {
		h.writeError(w, "Image search failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, map[string]any{"sources": sources})
}
