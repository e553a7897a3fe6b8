// Package httpadapter exposes ingestion, archival, record administration
// and chat over HTTP.
package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
	"github.com/engevia/fichas-inspecao/internal/core/ports"
	"github.com/engevia/fichas-inspecao/internal/observability/metrics"
)

const defaultMaxUploadBytes = 64 << 20

type Options struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
	MaxUploadBytes int64
	MetricsHandler http.Handler
}

type Router struct {
	ingestor ports.FichaIngestor
	archiver ports.ReportArchiver
	admin    ports.FichaAdmin
	browser  ports.ArchiveBrowser
	chat     ports.ChatService
	metrics  *metrics.ServerMetrics
	opts     Options
}

func NewRouter(
	ingestor ports.FichaIngestor,
	archiver ports.ReportArchiver,
	admin ports.FichaAdmin,
	browser ports.ArchiveBrowser,
	chat ports.ChatService,
	m *metrics.ServerMetrics,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Router{
		ingestor: ingestor,
		archiver: archiver,
		admin:    admin,
		browser:  browser,
		chat:     chat,
		metrics:  m,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", rt.opts.MetricsHandler)
	}

	mux.HandleFunc("POST /v1/fichas/batch", rt.ingestFichas)
	mux.HandleFunc("POST /v1/relatorios/batch", rt.archiveReports)
	mux.HandleFunc("GET /v1/fichas", rt.listFichas)
	mux.HandleFunc("GET /v1/fichas/{id}", rt.getFicha)
	mux.HandleFunc("PUT /v1/fichas/{id}", rt.updateFicha)
	mux.HandleFunc("DELETE /v1/fichas/{id}", rt.deleteFicha)

	mux.HandleFunc("GET /v1/arquivos", rt.listArchive)
	mux.HandleFunc("GET /v1/arquivos/{key...}", rt.headArchiveObject)
	mux.HandleFunc("DELETE /v1/arquivos/{key...}", rt.deleteArchiveObject)

	mux.HandleFunc("POST /v1/chat/sessions", rt.startChatSession)
	mux.HandleFunc("POST /v1/chat/sessions/{session_id}/query", rt.askChat)
	mux.HandleFunc("DELETE /v1/chat/sessions/{session_id}", rt.endChatSession)

	var handler http.Handler = mux
	if rt.opts.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, 50*time.Millisecond)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ingestFichas(w http.ResponseWriter, r *http.Request) {
	files, err := rt.readUploadBatch(r)
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "read upload batch", err))
		return
	}

	report, err := rt.ingestor.IngestBatch(r.Context(), files)
	if err != nil {
		rt.recordBatch("error", nil)
		writeError(w, err)
		return
	}

	rt.recordBatch("ok", report.Files)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) archiveReports(w http.ResponseWriter, r *http.Request) {
	files, err := rt.readUploadBatch(r)
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "read upload batch", err))
		return
	}

	report, err := rt.archiver.ArchiveReports(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) listFichas(w http.ResponseWriter, r *http.Request) {
	fichas, err := rt.admin.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if fichas == nil {
		fichas = []domain.Ficha{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fichas": fichas, "total": len(fichas)})
}

func (rt *Router) getFicha(w http.ResponseWriter, r *http.Request) {
	id, err := fichaID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ficha, err := rt.admin.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ficha)
}

func (rt *Router) updateFicha(w http.ResponseWriter, r *http.Request) {
	id, err := fichaID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var ficha domain.Ficha
	if err := json.NewDecoder(r.Body).Decode(&ficha); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode ficha", err))
		return
	}
	ficha.ID = id

	if err := rt.admin.Update(r.Context(), ficha); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "updated": true})
}

func (rt *Router) deleteFicha(w http.ResponseWriter, r *http.Request) {
	id, err := fichaID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := rt.admin.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (rt *Router) listArchive(w http.ResponseWriter, r *http.Request) {
	max := 0
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "parse max", err))
			return
		}
		max = n
	}

	keys, err := rt.browser.ListObjects(r.Context(), r.URL.Query().Get("prefix"), max)
	if err != nil {
		writeError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "total": len(keys)})
}

func (rt *Router) headArchiveObject(w http.ResponseWriter, r *http.Request) {
	info, err := rt.browser.HeadObject(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (rt *Router) deleteArchiveObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := rt.browser.DeleteObject(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "deleted": true})
}

func (rt *Router) startChatSession(w http.ResponseWriter, r *http.Request) {
	session, err := rt.chat.StartSession(r.Context())
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordSessionBuild(rt.opts.Service, "error", 0)
		}
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSessionBuild(rt.opts.Service, "ok", session.Documents)
	}
	writeJSON(w, http.StatusCreated, session)
}

func (rt *Router) askChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode question", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode question",
			errors.New("question is required")))
		return
	}

	start := time.Now()
	answer, err := rt.chat.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordQuestion(rt.opts.Service, "error", 0, 0)
		}
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuestion(rt.opts.Service, "ok", len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) endChatSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if err := rt.chat.EndSession(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "ended": true})
}

// readUploadBatch accepts the multipart field "files" (repeated) and, for
// single-file clients, falls back to "file".
func (rt *Router) readUploadBatch(r *http.Request) ([]domain.UploadFile, error) {
	if err := r.ParseMultipartForm(rt.opts.MaxUploadBytes); err != nil {
		return nil, err
	}
	if r.MultipartForm == nil {
		return nil, errors.New("multipart form is required")
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		return nil, errors.New("multipart field 'files' is required")
	}

	files := make([]domain.UploadFile, 0, len(headers))
	for _, header := range headers {
		data, err := readMultipartFile(header)
		if err != nil {
			return nil, err
		}
		files = append(files, domain.UploadFile{
			Filename: header.Filename,
			Data:     data,
		})
	}
	return files, nil
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (rt *Router) recordBatch(result string, outcomes []domain.FileOutcome) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordIngestBatch(rt.opts.Service, result)
	for _, out := range outcomes {
		rt.metrics.RecordIngestedFile(rt.opts.Service, string(out.Status))
	}
}

func fichaID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse ficha id", err)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
