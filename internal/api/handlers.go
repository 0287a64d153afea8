package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/capture"
	"github.com/sells-group/leadscan/internal/export"
	"github.com/sells-group/leadscan/internal/model"
)

// maxUpload bounds badge photo uploads.
const maxUpload = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api: request failed",
		zap.String("component", "api"),
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Status.Collect(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Records.LoadHistory(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(entries) {
			entries = entries[:n]
		}
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) historyXLSX(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Records.LoadHistory(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	if err := export.WriteHistory(w, entries); err != nil {
		zap.L().Error("api: write xlsx", zap.Error(err))
	}
}

func (s *Server) putIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.deps.Records.SaveIdentity(r.Context(), req.Name); err != nil {
		s.internalError(w, r, err)
		return
	}
	name, err := s.deps.Records.LoadIdentity(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

type leadResponse struct {
	Timestamp string `json:"timestamp"`
	Delivered bool   `json:"delivered"`
}

func (s *Server) postLead(w http.ResponseWriter, r *http.Request) {
	var fields model.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if err := s.deps.Capture.Review(fields); err != nil {
		s.internalError(w, r, err)
		return
	}
	res, err := s.deps.Capture.Submit(r.Context())
	if err != nil {
		// Anything that stopped the submit leaves the flow Reviewing.
		s.deps.Capture.Cancel()
		if isValidation(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, leadResponse{Timestamp: res.Lead.Timestamp, Delivered: res.Delivered})
}

type scanResponse struct {
	Fields   model.Fields `json:"fields"`
	Lines    []string     `json:"lines"`
	Fallback bool         `json:"fallback"`
	Warning  string       `json:"warning,omitempty"`
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}

	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if err := s.deps.Capture.Begin(capture.NewReaderSource(file)); err != nil {
		file.Close() //nolint:errcheck,gosec
		s.internalError(w, r, err)
		return
	}
	ext, err := s.deps.Capture.Extract(r.Context())
	// The browser submits the reviewed fields through /api/leads.
	s.deps.Capture.Cancel()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if ext.Lines == nil {
		ext.Lines = []string{}
	}
	writeJSON(w, http.StatusOK, scanResponse{
		Fields:   ext.Fields,
		Lines:    ext.Lines,
		Fallback: ext.Fallback,
		Warning:  ext.Warning,
	})
}

func (s *Server) retryQueue(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Queue.Drain(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func isValidation(err error) bool {
	return errors.Is(err, model.ErrNameRequired) ||
		errors.Is(err, model.ErrInvalidRating) ||
		errors.Is(err, capture.ErrIdentityRequired)
}
