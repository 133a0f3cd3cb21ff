package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/claude/healthmerge/internal/importer"
	"github.com/claude/healthmerge/internal/ingest/withings"
	"github.com/claude/healthmerge/internal/models"
	"github.com/claude/healthmerge/internal/stats"
	"github.com/claude/healthmerge/internal/store"
)

// maxUploadBytes bounds an uploaded export archive.
const maxUploadBytes = 256 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sourceID := r.URL.Query().Get("source")
	if sourceID == "" {
		sourceID = s.defaults.SourceID
	}

	result, err := s.importer.ImportReader(r.Context(), bytes.NewReader(body), int64(len(body)), sourceID)
	if err != nil {
		if errors.Is(err, withings.ErrInvalidArchive) || errors.Is(err, withings.ErrNotExport) || errors.Is(err, store.ErrInvalidSourceID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("import error", "request", requestID(r), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readUpload returns the archive bytes from a raw body or from the "file"
// field of a multipart form.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("multipart upload needs a file field")
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty request body")
	}
	return body, nil
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.repo.LoadData(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats.FilterData(data, start, end))
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	current, err := s.repo.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, store.Summaries(current))
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.importer.RemoveSource(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	current, err := s.repo.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, current.Events)
}

func (s *Server) handlePutEvents(w http.ResponseWriter, r *http.Request) {
	var events []models.PatternEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	saved, err := s.importer.UpdateEvents(r.Context(), events)
	if err != nil {
		if errors.Is(err, importer.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	logs, err := s.repo.QueryImportLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseDateRange reads the optional YYYY-MM-DD start and end parameters.
func parseDateRange(r *http.Request) (start, end string, err error) {
	start = r.URL.Query().Get("start")
	end = r.URL.Query().Get("end")
	if err := stats.ValidateRange(start, end); err != nil {
		return "", "", err
	}
	return start, end, nil
}
