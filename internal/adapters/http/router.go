package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

const (
	userIDHeader      = "X-User-Id"
	defaultMaxUpload  = 64 << 20
	defaultQueueDelay = 100 * time.Millisecond
)

// Options tunes the traffic-control middleware. Zero values disable
// the corresponding guard.
type Options struct {
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueTimeout   time.Duration
}

type Router struct {
	ingestor ports.DocumentIngestor
	searcher ports.DocumentSearcher
	manager  ports.DocumentManager
	metrics  http.Handler
	log      *slog.Logger
	opts     Options
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	searcher ports.DocumentSearcher,
	manager ports.DocumentManager,
	metrics http.Handler,
	log *slog.Logger,
	opts Options,
) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = defaultQueueDelay
	}
	return &Router{
		ingestor: ingestor,
		searcher: searcher,
		manager:  manager,
		metrics:  metrics,
		log:      log,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentSubroute)
	mux.HandleFunc("/v1/search", rt.search)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.QueueTimeout)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-User-Id header is required"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		userID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, r, "upload document", err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

// documentSubroute dispatches /v1/documents/{id}[/progress|/reprocess].
func (rt *Router) documentSubroute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			rt.getDocument(w, r, id)
		case http.MethodDelete:
			rt.deleteDocument(w, r, id)
		default:
			writeMethodNotAllowed(w)
		}
	case "progress":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		rt.getProgress(w, r, id)
	case "reprocess":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		rt.reprocessDocument(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.manager.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getProgress(w http.ResponseWriter, r *http.Request, id string) {
	progress, err := rt.manager.Progress(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get progress", err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.manager.Delete(r.Context(), id); err != nil {
		rt.writeError(w, r, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.manager.Reprocess(r.Context(), id); err != nil {
		rt.writeError(w, r, "reprocess document", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(domain.StatusUploaded)})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	response, err := rt.searcher.Search(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 && rt.log != nil {
		rt.log.Error(operation,
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
