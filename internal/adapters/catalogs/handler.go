// Package catalogs exposes the catalog registry over HTTP and runs
// asynchronous exports into the blob store.
package catalogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"catalogexplorer/docs/schema/openapi"
	"catalogexplorer/internal/blob"
	"catalogexplorer/internal/catalog"
	"catalogexplorer/internal/index"
	"catalogexplorer/internal/observability"
	"catalogexplorer/internal/prefs"
	"catalogexplorer/internal/transfer"
	"catalogexplorer/pkg/domain"
)

// MaxImportBytes bounds an imported document.
const MaxImportBytes = 32 << 20

// ArtifactSource opens stored export artifacts.
type ArtifactSource interface {
	Open(ctx context.Context, exportID, artifactID string) (ExportArtifact, []byte, error)
}

// Handler provides HTTP access to catalogs, exports and preferences.
type Handler struct {
	Registry  *catalog.Registry
	Exports   ExportScheduler
	Artifacts ArtifactSource
	Metrics   *observability.Metrics
	Logger    *zap.Logger

	router *mux.Router
}

// NewHandler constructs the HTTP handler. exports may be nil, in which case
// the export routes answer 404.
func NewHandler(reg *catalog.Registry, exports *Worker, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{Registry: reg, Metrics: metrics, Logger: logger}
	if exports != nil {
		h.Exports = exports
		h.Artifacts = exports
	}
	h.router = h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		writeError(w, http.StatusInternalServerError, "catalog registry not configured")
		return
	}
	if h.router == nil {
		h.router = h.routes()
	}
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.observe)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", h.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openapi.Document())
	}).Methods(http.MethodGet)
	api.HandleFunc("/catalogs", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{name}", h.handleDescribe).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{name}/records", h.handleRecords).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{name}/groups", h.handleGroups).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{name}/import", h.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/catalogs/{name}/export", h.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{name}/view", h.handleView).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{name}/view", h.handleUpdateView).Methods(http.MethodPut)
	api.HandleFunc("/catalogs/{name}/compat/{mode:projects|kits}", h.handleCompatNames).Methods(http.MethodGet)
	api.HandleFunc("/catalogs/{name}/compat/{mode:projects|kits}/{item}", h.handleCompatDetail).Methods(http.MethodGet)
	api.HandleFunc("/exports", h.handleExportCreate).Methods(http.MethodPost)
	api.HandleFunc("/exports/{id}", h.handleExportGet).Methods(http.MethodGet)
	api.HandleFunc("/exports/{id}/artifacts/{artifact}", h.handleArtifact).Methods(http.MethodGet)
	api.HandleFunc("/prefs", h.handlePrefsList).Methods(http.MethodGet)
	api.HandleFunc("/prefs/{key}", h.handlePrefGet).Methods(http.MethodGet)
	api.HandleFunc("/prefs/{key}", h.handlePrefPut).Methods(http.MethodPut)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		h.Metrics.ObserveRequest(route, r.Method, rec.status, elapsed)
		h.Logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed))
	})
}

func (h *Handler) catalogFor(w http.ResponseWriter, r *http.Request) (*catalog.Catalog, bool) {
	c, err := h.Registry.Get(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusNotFound, "catalog not found")
		return nil, false
	}
	return c, true
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"catalogs": h.Registry.List()})
}

func (h *Handler) handleDescribe(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"catalog": c.Describe()})
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	q, class := r.URL.Query().Get("q"), r.URL.Query().Get("class")
	switch c.Kind() {
	case domain.KindTable:
		recs, _ := c.Records(q, class)
		if recs == nil {
			recs = []domain.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
	case domain.KindModules:
		mods, _ := c.Modules(q, class)
		if mods == nil {
			mods = []domain.Module{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": mods, "count": len(mods)})
	default:
		writeError(w, http.StatusBadRequest, "compat catalogs list names under /compat/{projects|kits}")
	}
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	switch c.Kind() {
	case domain.KindTable:
		g, _ := c.GroupRecords(r.URL.Query().Get("by"))
		writeJSON(w, http.StatusOK, map[string]any{"grouping": g})
	case domain.KindModules:
		g, _ := c.GroupModules()
		writeJSON(w, http.StatusOK, map[string]any{"grouping": g})
	default:
		idx, _ := c.Compat()
		writeJSON(w, http.StatusOK, map[string]any{"compat": idx})
	}
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "import payload too large")
		return
	}
	if err := c.Import(r.Context(), body); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"catalog": c.Info()})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	format := transfer.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := transfer.ParseFormat(strings.ToLower(f))
		if err != nil {
			writeError(w, http.StatusNotAcceptable, err.Error())
			return
		}
		format = parsed
	}
	payload, err := c.Encode(format)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.Filename(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": c.View()})
}

func (h *Handler) handleUpdateView(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	var upd catalog.ViewUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid view payload")
		return
	}
	v, err := c.UpdateView(r.Context(), upd)
	if err != nil {
		if errors.Is(err, catalog.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": v})
}

func (h *Handler) handleCompatNames(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	mode, _ := index.ParseMode(mux.Vars(r)["mode"])
	names, err := c.CompatNames(mode, r.URL.Query().Get("q"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "names": names})
}

func (h *Handler) handleCompatDetail(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	mode, _ := index.ParseMode(vars["mode"])
	d, err := c.CompatDetail(mode, vars["item"])
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"detail": d})
}

type exportRequest struct {
	Catalog     string   `json:"catalog"`
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
	Reason      string   `json:"reason"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeError(w, http.StatusNotFound, "exports not configured")
		return
	}
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats := make([]transfer.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		format, err := transfer.ParseFormat(strings.ToLower(strings.TrimSpace(f)))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unsupported export format")
			return
		}
		formats = append(formats, format)
	}
	record, err := h.Exports.EnqueueExport(r.Context(), ExportInput{
		Catalog:     req.Catalog,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrCatalogNotFound):
			writeError(w, http.StatusNotFound, "catalog not found")
		case errors.Is(err, ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExportGet(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeError(w, http.StatusNotFound, "exports not configured")
		return
	}
	record, ok := h.Exports.GetExport(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (h *Handler) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if h.Artifacts == nil {
		writeError(w, http.StatusNotFound, "exports not configured")
		return
	}
	vars := mux.Vars(r)
	artifact, payload, err := h.Artifacts.Open(r.Context(), vars["id"], vars["artifact"])
	if err != nil {
		h.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) prefsStore(w http.ResponseWriter) (prefs.Store, bool) {
	s := h.Registry.Prefs()
	if s == nil {
		writeError(w, http.StatusNotFound, "preferences not configured")
		return nil, false
	}
	return s, true
}

func (h *Handler) handlePrefsList(w http.ResponseWriter, r *http.Request) {
	s, ok := h.prefsStore(w)
	if !ok {
		return
	}
	names, err := s.Names(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": names})
}

func (h *Handler) handlePrefGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.prefsStore(w)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	v, found, err := s.Get(r.Context(), key)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "preference not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": v})
}

func (h *Handler) handlePrefPut(w http.ResponseWriter, r *http.Request) {
	s, ok := h.prefsStore(w)
	if !ok {
		return
	}
	var body struct {
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeError(w, http.StatusBadRequest, `expected {"value": "..."}`)
		return
	}
	key := mux.Vars(r)["key"]
	if err := s.Put(r.Context(), key, *body.Value); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": *body.Value})
}

// writeErr maps domain errors onto status codes.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var ie *transfer.ImportError
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Message)
	case errors.Is(err, catalog.ErrCatalogNotFound),
		errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, blob.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrUnsupported):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
