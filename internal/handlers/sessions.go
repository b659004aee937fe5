package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/workflow"
)

func (h *Handler) sessionOptions() workflow.Options {
	return workflow.Options{
		SeedCount:         h.cfg.SeedSelection,
		GenerationTimeout: time.Duration(h.cfg.GenerationTimeout),
		Metrics:           h.metrics,
	}
}

// HandleCreateSession parses the operator's identifier input, loads the
// product catalog in one batched backend call and stores the new session.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Eans string `json:"eans"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	session := workflow.NewSession(uuid.NewString(), h.backend, h.sessionOptions())
	if err := session.Load(r.Context(), request.Eans); err != nil {
		if errors.Is(err, workflow.ErrNoIdentifiers) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, "Failed to load products: "+err.Error(), http.StatusBadGateway)
		return
	}

	h.store.Set(session.ID, session)
	h.metrics.SetActiveSessions(h.store.Len())
	slog.Info("Session created", "session_id", session.ID)
	h.writeJSON(w, session.Snapshot())
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.store.GetAll()
	snapshots := make([]workflow.Snapshot, 0, len(sessions))
	for _, session := range sessions {
		snapshots = append(snapshots, session.Snapshot())
	}
	h.writeJSON(w, snapshots)
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, session.Snapshot())
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.getSessionOrError(w, r); !ok {
		return
	}
	h.store.Delete(r.PathValue("id"))
	h.metrics.SetActiveSessions(h.store.Len())
	h.writeJSON(w, map[string]any{"message": "Session deleted"})
}

// HandleStateChange performs the operator back-transitions between stages.
func (h *Handler) HandleStateChange(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var request struct {
		State workflow.State `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := session.Back(request.State); err != nil {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	h.writeJSON(w, session.Snapshot())
}

// HandleGenerate starts the generation run. The run continues after this
// request returns; progress is visible through the session detail endpoint.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if state := session.State(); state != workflow.StateValidatingSelection {
		h.writeError(w, "Cannot generate in state "+string(state), http.StatusConflict)
		return
	}

	go func() {
		observer := func(row models.ResultRow, completed, total int) {
			slog.Info("Generation progress", "session_id", session.ID, "ean", row.EAN, "progress", completed, "total", total)
		}
		if err := session.Generate(context.Background(), observer); err != nil {
			slog.Error("Generation run rejected", "session_id", session.ID, "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	h.writeJSON(w, map[string]any{"message": "Generation started"})
}
