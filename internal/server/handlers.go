package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/dataset"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

const defaultMaxUpload = 32 << 20

type createDatasetRequest struct {
	Path string `json:"path" validate:"required"`
	Name string `json:"name"`
	// Columns selects the indexed columns; omitted means all.
	Columns []string `json:"columns" validate:"omitempty,dive,required"`
}

func (s *Server) loadOptions() dataset.Options {
	if s.config == nil {
		return dataset.Options{}
	}
	return dataset.Options{Encoding: s.config.Dataset.Encoding}
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		req session.CreateRequest
		ok  bool
	)
	if mediaType == "multipart/form-data" {
		req, ok = s.readUpload(w, r)
	} else {
		req, ok = s.readPathRequest(w, r)
	}
	if !ok {
		return
	}

	s.logger.Debug("create dataset request",
		zap.String("name", req.Name),
		zap.String("path", req.SourcePath),
		zap.Strings("columns", req.Columns))
	ds, err := s.sessions.Create(r.Context(), req)
	if err != nil {
		s.logger.Error("create dataset failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ds)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (session.CreateRequest, bool) {
	limit := int64(defaultMaxUpload)
	if s.config != nil && s.config.Server.MaxUploadBytes > 0 {
		limit = s.config.Server.MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return session.CreateRequest{}, false
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return session.CreateRequest{}, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return session.CreateRequest{}, false
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return session.CreateRequest{}, false
	}
	tbl, err := dataset.LoadBytes(content, filepath.Ext(header.Filename), s.loadOptions())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return session.CreateRequest{}, false
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}
	var columns []string
	if _, present := r.MultipartForm.Value["columns"]; present {
		columns = utils.SplitList(r.FormValue("columns"))
		if columns == nil {
			columns = []string{}
		}
	}
	return session.CreateRequest{Name: name, Columns: columns, Table: tbl}, true
}

func (s *Server) readPathRequest(w http.ResponseWriter, r *http.Request) (session.CreateRequest, bool) {
	var body createDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return session.CreateRequest{}, false
	}
	if err := s.validate.Struct(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return session.CreateRequest{}, false
	}
	abs, status, msg := s.resolveDatasetPath(body.Path)
	if status != 0 {
		s.respondError(w, status, msg)
		return session.CreateRequest{}, false
	}
	tbl, err := dataset.Load(abs, s.loadOptions())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return session.CreateRequest{}, false
	}
	return session.CreateRequest{Name: body.Name, SourcePath: abs, Columns: body.Columns, Table: tbl}, true
}

// resolveDatasetPath maps a requested path to a real file under dataset.root. Relative paths
// are taken from the root. A non-zero status reports why the path was refused.
func (s *Server) resolveDatasetPath(path string) (string, int, string) {
	var root string
	if s.config != nil {
		root = s.config.Dataset.Root
	}
	if root == "" {
		return "", http.StatusForbidden, "loading datasets by path is disabled; set dataset.root"
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		s.logger.Error("dataset root unavailable", zap.String("root", root), zap.Error(err))
		return "", http.StatusInternalServerError, "dataset root unavailable"
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if !utils.InDir(filepath.Clean(root), path) && !utils.InDir(realRoot, path) {
		return "", http.StatusForbidden, "path is outside dataset.root"
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", http.StatusNotFound, "file not found"
		}
		return "", http.StatusInternalServerError, err.Error()
	}
	if !utils.InDir(realRoot, resolved) {
		return "", http.StatusForbidden, "path is outside dataset.root"
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", http.StatusInternalServerError, err.Error()
	}
	if info.IsDir() {
		return "", http.StatusBadRequest, "path is a directory"
	}
	return resolved, 0, ""
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets := s.sessions.List(r.Context())
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"datasets": datasets})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ds)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete dataset request", zap.String("id", id))
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (models.QueryRequest, bool) {
	var q models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return q, false
	}
	if err := s.validate.Struct(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return q, false
	}
	return q, true
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	s.logger.Debug("retrieve request", zap.String("id", id), zap.String("query", q.Query), zap.Int("top_k", q.TopK))
	res, err := s.sessions.Retrieve(r.Context(), id, q.Query, q.TopK)
	if err != nil {
		s.logger.Error("retrieve failed", zap.String("id", id), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	s.logger.Debug("ask request", zap.String("id", id), zap.String("query", q.Query), zap.Int("top_k", q.TopK))
	res, err := s.sessions.Ask(r.Context(), id, q.Query, q.TopK)
	if err != nil {
		s.logger.Error("ask failed", zap.String("id", id), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetCount, err := s.store.CountDatasets(ctx)
	if err != nil {
		s.logger.Error("status: count datasets failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recordCount, err := s.store.CountRecords(ctx)
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"datasets": datasetCount,
		"records":  recordCount,
		"loaded":   s.sessions.Stats(),
	}
	if du, ok := s.store.(interface{ DiskUsage() (int64, error) }); ok {
		if bytes, err := du.DiskUsage(); err == nil {
			resp["disk_usage_bytes"] = bytes
		}
	}

	// Add configuration info
	configInfo := map[string]interface{}{
		"faiss_available": s.faissAvailable,
	}
	if s.embedder != nil {
		configInfo["embedding_backend"] = s.embedder.Backend()
		configInfo["embedding_loaded"] = s.embedder.Loaded()
	}
	if s.config != nil {
		configInfo["vector_index_type"] = s.config.Vector.IndexType
		configInfo["default_top_k"] = s.config.Retrieval.DefaultTopK
		configInfo["max_top_k"] = s.config.Retrieval.MaxTopK
		configInfo["llm_model"] = s.config.LLM.Model
		configInfo["database_path"] = s.config.Storage.DatabasePath
		configInfo["watch_enabled"] = s.config.Watch.Enabled
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidQuery),
		errors.Is(err, dataset.ErrNoColumns),
		errors.Is(err, dataset.ErrUnknownColumn),
		errors.Is(err, dataset.ErrEmptyTable),
		errors.Is(err, dataset.ErrUnsupportedFormat),
		errors.Is(err, vector.ErrEmptyCorpus):
		return http.StatusBadRequest
	case errors.Is(err, answer.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	case errors.Is(err, embedding.ErrEmbedding), errors.Is(err, answer.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, strings.ToLower(fe.Field())+": failed "+fe.Tag())
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}
