package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/gorilla/mux"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/storage"
	"github.com/hairizuanbinnoorazman/security-e2e/testrun"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// RunHandler serves the run history and its artifacts.
type RunHandler struct {
	runs    testrun.Store
	assets  testrun.AssetStore
	storage storage.Store
	links   *LinkSigner
	logger  logger.Logger
}

// NewRunHandler creates a run handler.
func NewRunHandler(runs testrun.Store, assets testrun.AssetStore, store storage.Store, links *LinkSigner, log logger.Logger) *RunHandler {
	return &RunHandler{
		runs:    runs,
		assets:  assets,
		storage: store,
		links:   links,
		logger:  log,
	}
}

// Register mounts the run routes on router.
func (h *RunHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/runs", h.List).Methods("GET")
	router.HandleFunc("/api/v1/runs/{id}", h.Get).Methods("GET")
	router.HandleFunc("/artifacts/{token}", h.Artifact).Methods("GET")
}

// AssetView is an asset with a link a browser can follow.
type AssetView struct {
	*testrun.RunAsset
	URL string `json:"url"`
}

// RunView is one run with everything it produced.
type RunView struct {
	*testrun.TestRun
	Annotations []testrun.RunAnnotation `json:"annotations"`
	Assets      []AssetView             `json:"assets"`
}

// List handles listing runs, newest first.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 || limit > maxLimit {
		limit = maxLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	status := testrun.Status(q.Get("status"))
	if status != "" && !status.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	runs, err := h.runs.List(r.Context(), testrun.Filter{
		Batch:   q.Get("batch"),
		CaseID:  q.Get("case_id"),
		Project: q.Get("project"),
		Status:  status,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		h.logger.Error(r.Context(), "failed to list runs", logger.Fields{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{Items: runs, Total: len(runs), Limit: limit, Offset: offset})
}

// Get handles fetching one run with its annotations and signed asset links.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "run")
	if !ok {
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, testrun.ErrTestRunNotFound) {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	annotations, err := h.runs.ListAnnotations(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list annotations")
		return
	}

	assets, err := h.assets.ListByTestRun(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}

	view := RunView{TestRun: run, Annotations: annotations, Assets: make([]AssetView, 0, len(assets))}
	for _, a := range assets {
		token, err := h.links.Sign(a.StorageKey)
		if err != nil {
			h.logger.Error(r.Context(), "failed to sign artifact link", logger.Fields{
				"error":    err.Error(),
				"asset_id": a.ID,
			})
			respondError(w, http.StatusInternalServerError, "failed to sign artifact link")
			return
		}
		view.Assets = append(view.Assets, AssetView{RunAsset: a, URL: "/artifacts/" + token})
	}

	respondJSON(w, http.StatusOK, view)
}

// Artifact streams the artifact a signed token points at.
func (h *RunHandler) Artifact(w http.ResponseWriter, r *http.Request) {
	key, err := h.links.Verify(mux.Vars(r)["token"])
	if err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}

	rc, err := h.storage.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "artifact not found")
			return
		}
		h.logger.Error(r.Context(), "failed to open artifact", logger.Fields{"error": err.Error(), "key": key})
		respondError(w, http.StatusInternalServerError, "failed to open artifact")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType(key))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn(r.Context(), "artifact stream interrupted", logger.Fields{"error": err.Error(), "key": key})
	}
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
