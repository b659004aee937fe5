// Package handlers exposes the batch workflow over HTTP: session lifecycle,
// selection edits, generation and the CSV export.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/config"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/metrics"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/storage"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/workflow"
)

type Handler struct {
	store   *storage.SessionStore
	backend workflow.Backend
	cfg     *config.Config
	metrics *metrics.Metrics

	proxyCache  *lru.Cache[string, proxiedImage]
	proxyClient *http.Client
}

func New(backend workflow.Backend, cfg *config.Config, m *metrics.Metrics) (*Handler, error) {
	cache, err := lru.New[string, proxiedImage](cfg.ProxyCacheSize)
	if err != nil {
		return nil, err
	}
	return &Handler{
		store:      storage.New(),
		backend:    backend,
		cfg:        cfg,
		metrics:    m,
		proxyCache: cache,
		proxyClient: &http.Client{
			Timeout: time.Duration(cfg.HTTPTimeout),
		},
	}, nil
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*workflow.Session, bool) {
	sessionID := r.PathValue("id")
	session, exists := h.store.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}
