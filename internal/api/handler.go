package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/questgraph/internal/asset"
	"github.com/gyaneshwarpardhi/questgraph/internal/config"
	"github.com/gyaneshwarpardhi/questgraph/internal/metrics"
	"github.com/gyaneshwarpardhi/questgraph/internal/quest"
	"github.com/gyaneshwarpardhi/questgraph/internal/session"
	"github.com/gyaneshwarpardhi/questgraph/internal/storage"
)

const maxBodyBytes = 1 << 20

// WorldLister lists worlds that have a saved snapshot.
type WorldLister interface {
	Worlds(ctx context.Context) ([]string, error)
}

// Deps are the handler's collaborators. Saved and Loader are optional.
type Deps struct {
	Sessions *session.Manager
	Assets   asset.Registry
	Writer   *storage.Writer
	Loader   *config.Loader
	Saved    WorldLister
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	Deps
	mux *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(d Deps) http.Handler {
	h := &Handler{Deps: d, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/worlds", h.listWorlds)
	h.mux.HandleFunc("GET /v1/worlds/{world}/graph", h.graph)
	h.mux.HandleFunc("GET /v1/worlds/{world}/snapshot", h.snapshot)
	h.mux.HandleFunc("GET /v1/worlds/{world}/forest", h.forest)
	h.mux.HandleFunc("PUT /v1/worlds/{world}/viewport", h.setViewport)
	h.mux.HandleFunc("POST /v1/worlds/{world}/close", h.closeWorld)
	h.mux.HandleFunc("POST /v1/worlds/{world}/cards", h.addCard)
	h.mux.HandleFunc("PATCH /v1/worlds/{world}/cards/{id}", h.editCard)
	h.mux.HandleFunc("DELETE /v1/worlds/{world}/cards/{id}", h.deleteCard)
	h.mux.HandleFunc("POST /v1/worlds/{world}/cards/{id}/assets", h.linkAsset)
	h.mux.HandleFunc("POST /v1/worlds/{world}/cards/{id}/toggle", h.toggle)
	h.mux.HandleFunc("GET /v1/worlds/{world}/cards/{id}/descendants", h.descendants)
	h.mux.HandleFunc("GET /v1/worlds/{world}/cards/{id}/parents", h.parents)
	h.mux.HandleFunc("POST /v1/worlds/{world}/edges", h.connect)
	h.mux.HandleFunc("GET /v1/worlds/{world}/assets", h.listAssets)
	h.mux.HandleFunc("GET /v1/worlds/{world}/assets/{name}", h.getAsset)
	h.mux.HandleFunc("PUT /v1/worlds/{world}/assets/{name}", h.putAsset)
	h.mux.HandleFunc("GET /v1/quest-types", h.questTypes)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return false
	}
	return true
}

// open resolves {world} to a live session, writing the error response on failure.
func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.Sessions.Open(r.Context(), r.PathValue("world"))
	if err != nil {
		writeFailure(w, err)
		return nil, false
	}
	return s, true
}

// writeFailure maps domain errors onto status codes.
func writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrBadWorld):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNoCard), errors.Is(err, asset.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrRejected),
		errors.Is(err, session.ErrUnknownAsset),
		errors.Is(err, session.ErrUnknownQuestType):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrClosed):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}

// GET /v1/worlds: open worlds, plus saved ones when the store can list them.
func (h *Handler) listWorlds(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"open": h.Sessions.Worlds()}
	if h.Saved != nil {
		saved, err := h.Saved.Worlds(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["saved"] = saved
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/worlds/{world}/graph: visible cards and edges.
func (h *Handler) graph(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	v, err := s.Visible()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GET /v1/worlds/{world}/snapshot[?format=yaml]: the full persisted shape.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		writeFailure(w, err)
		return
	}
	if r.URL.Query().Get("format") != "yaml" {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	data, err := storage.EncodeYAML(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeYAML(w, http.StatusOK, data)
}

// GET /v1/worlds/{world}/forest: the hierarchy panel.
func (h *Handler) forest(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	f, err := s.Forest()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"roots": f})
}

// PUT /v1/worlds/{world}/viewport
func (h *Handler) setViewport(w http.ResponseWriter, r *http.Request) {
	var vp quest.Viewport
	if !decode(w, r, &vp) {
		return
	}
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := s.SetViewport(vp); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vp)
}

// POST /v1/worlds/{world}/close: flush and unload.
func (h *Handler) closeWorld(w http.ResponseWriter, r *http.Request) {
	if !h.Sessions.Close(r.PathValue("world")) {
		writeError(w, http.StatusNotFound, "world not open")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}

type addCardRequest struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	Asset bool   `json:"asset"`
}

// POST /v1/worlds/{world}/cards
func (h *Handler) addCard(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if !decode(w, r, &req) {
		return
	}
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	var (
		n   *quest.Node
		err error
	)
	if req.Asset {
		n, err = s.AddAssetCard(req.Title)
	} else {
		n, err = s.AddCard(req.Title, req.Type)
	}
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// PATCH /v1/worlds/{world}/cards/{id}
func (h *Handler) editCard(w http.ResponseWriter, r *http.Request) {
	var patch session.CardPatch
	if !decode(w, r, &patch) {
		return
	}
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	n, err := s.EditCard(r.PathValue("id"), patch)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DELETE /v1/worlds/{world}/cards/{id}
func (h *Handler) deleteCard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := s.DeleteCard(r.PathValue("id")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/worlds/{world}/cards/{id}/assets: body {"name": "..."}.
func (h *Handler) linkAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	linked, err := s.LinkAsset(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"linked": linked})
}

// POST /v1/worlds/{world}/cards/{id}/toggle
func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	t, err := s.ToggleDescendants(r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GET /v1/worlds/{world}/cards/{id}/descendants
func (h *Handler) descendants(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	ids, allHidden, err := s.Descendants(r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"descendants": ids,
		"all_hidden":  allHidden,
	})
}

// GET /v1/worlds/{world}/cards/{id}/parents
func (h *Handler) parents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	ids, err := s.Parents(r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"parents": ids})
}

// POST /v1/worlds/{world}/edges: body {"source": "...", "target": "..."}.
func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var e quest.Edge
	if !decode(w, r, &e) {
		return
	}
	s, ok := h.open(w, r)
	if !ok {
		return
	}
	added, err := s.Connect(e.Source, e.Target)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// GET /v1/worlds/{world}/assets
func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	names, err := h.Assets.Names(r.Context(), r.PathValue("world"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"names": names})
}

// GET /v1/worlds/{world}/assets/{name}
func (h *Handler) getAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.Assets.Get(r.Context(), r.PathValue("world"), r.PathValue("name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// PUT /v1/worlds/{world}/assets/{name}: world and name come from the path.
func (h *Handler) putAsset(w http.ResponseWriter, r *http.Request) {
	var a asset.Asset
	if !decode(w, r, &a) {
		return
	}
	a.World, a.Name = r.PathValue("world"), r.PathValue("name")
	if !session.ValidWorld(a.World) {
		writeError(w, http.StatusBadRequest, "invalid world name")
		return
	}
	if err := a.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.Assets.Put(r.Context(), &a); err != nil {
		writeFailure(w, err)
		return
	}
	stored, err := h.Assets.Get(r.Context(), a.World, a.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// GET /v1/quest-types
func (h *Handler) questTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quest_types": h.Sessions.Palette().Types(),
	})
}

// POST /v1/config/reload: re-read the config file and apply hot settings.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.Loader == nil {
		writeError(w, http.StatusNotFound, "no config file loaded")
		return
	}
	cfg, err := h.Loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.Sessions.Apply(cfg)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":          true,
		"quest_types_count": len(cfg.QuestTypes),
	})
}

// GET /healthz: always 200 (liveness).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the snapshot writer queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := float64(h.Writer.QueueLen()) / float64(h.Writer.QueueCap())
	metrics.WriterQueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
