package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"shelfaudit/internal/library"
	"shelfaudit/internal/logging"
	"shelfaudit/internal/sweep"
	"shelfaudit/internal/task"
)

const statusCacheKey = "dashboard"

type statusPayload struct {
	Books       int    `json:"books"`
	Scanned     int    `json:"scanned"`
	Healthy     int    `json:"healthy"`
	Unhealthy   int    `json:"unhealthy"`
	LastScan    string `json:"last_scan,omitempty"`
	RefreshBusy bool   `json:"refresh_running"`
}

type refreshResponse struct {
	TaskID  string `json:"task_id"`
	Started bool   `json:"started"`
}

type refreshStatusResponse struct {
	Running  bool    `json:"running"`
	Complete bool    `json:"complete"`
	Failed   bool    `json:"failed"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

type auditStartResponse struct {
	SessionID string `json:"session_id"`
	Total     int    `json:"total"`
}

type fixResponse struct {
	Fixed int `json:"fixed"`
}

type unhealthyBook struct {
	BookID              int64    `json:"book_id"`
	Title               string   `json:"title"`
	Authors             []string `json:"authors"`
	Series              string   `json:"series"`
	HasOriginal         bool     `json:"has_original"`
	HasTranslation      bool     `json:"has_translation"`
	HasViewable         bool     `json:"has_viewable"`
	Extraneous          []string `json:"extraneous"`
	DescriptionLanguage string   `json:"description_language"`
	RecoveredISBN       string   `json:"recovered_isbn,omitempty"`
	ISBNMissing         bool     `json:"isbn_missing"`
	LastScan            string   `json:"last_scan"`
}

// handleStatus serves the dashboard aggregates, memoized between polls so
// frequent UI refreshes do not hammer the stores.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := s.statusCache.GetOrCompute(statusCacheKey, func() (statusPayload, error) {
		return s.buildStatus(r)
	})
	if err != nil {
		s.logger.Error("status aggregation failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	payload.RefreshBusy = s.refreshRunning()
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) buildStatus(r *http.Request) (statusPayload, error) {
	ctx := r.Context()
	books, err := s.lib.ListBooks(ctx)
	if err != nil {
		return statusPayload{}, err
	}
	healthy, scanned, err := s.health.Counts(ctx)
	if err != nil {
		return statusPayload{}, err
	}
	lastScan, err := s.health.MaxScanTime(ctx)
	if err != nil {
		return statusPayload{}, err
	}
	payload := statusPayload{
		Books:     len(books),
		Scanned:   scanned,
		Healthy:   healthy,
		Unhealthy: scanned - healthy,
	}
	if !lastScan.IsZero() {
		payload.LastScan = lastScan.UTC().Format(time.RFC3339)
	}
	return payload, nil
}

// handleRefresh triggers a background incremental sweep and returns
// immediately. While one refresh is pending or running, further triggers
// return the existing task.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refresh != nil && !s.refresh.Status().State.Terminal() {
		s.writeJSON(w, http.StatusOK, refreshResponse{TaskID: s.refresh.ID(), Started: false})
		return
	}

	sweeper := sweep.New(s.cfg, s.lib, s.health, s.policy, s.logger)
	handle, err := s.runner.Submit("library refresh", true, sweeper.Run)
	if err != nil {
		s.logger.Error("refresh submit failed", logging.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "refresh unavailable")
		return
	}
	s.refresh = handle
	s.statusCache.Invalidate(statusCacheKey)
	s.writeJSON(w, http.StatusAccepted, refreshResponse{TaskID: handle.ID(), Started: true})
}

// handleRefreshStatus reports the state of the most recent refresh.
func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	handle := s.refresh
	s.mu.Unlock()
	if handle == nil {
		s.writeJSON(w, http.StatusOK, refreshStatusResponse{})
		return
	}
	status := handle.Status()
	s.writeJSON(w, http.StatusOK, refreshStatusResponse{
		Running:  status.State == task.StateWaiting || status.State == task.StateRunning,
		Complete: status.State == task.StateSucceeded,
		Failed:   status.State == task.StateFailed,
		Progress: status.Progress,
		Message:  status.Message,
	})
}

// handleAuditStart opens an interactive full-mode audit session over an
// optional author/series selection.
func (s *Server) handleAuditStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	author := strings.TrimSpace(r.URL.Query().Get("author"))
	series := strings.TrimSpace(r.URL.Query().Get("series"))

	session, err := sweep.NewSession(r.Context(), s.cfg, s.lib, s.health, s.policy, s.logger, author, series)
	if err != nil {
		s.logger.Error("audit session start failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "audit unavailable")
		return
	}
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, auditStartResponse{SessionID: id, Total: session.Progress().Total})
}

// handleAuditProcess advances a session by one chunk and returns the
// accumulated progress. Callers poll it until complete.
func (s *Server) handleAuditProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("session"))

	s.mu.Lock()
	session, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	progress, err := session.Advance(r.Context())
	if err != nil {
		s.logger.Error("audit session chunk failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "audit failed")
		return
	}
	if progress.Complete {
		// The final response carries the full result set, so a finished
		// session has nothing left to serve.
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		s.statusCache.Invalidate(statusCacheKey)
	}
	s.writeJSON(w, http.StatusOK, progress)
}

// handleFix remediates one book (?book=ID) or every cached unhealthy book.
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	var books []*library.BookRecord
	if raw := strings.TrimSpace(r.URL.Query().Get("book")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid book id")
			return
		}
		book, err := s.lib.GetBook(ctx, id)
		if err != nil {
			s.logger.Error("fix lookup failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "fix failed")
			return
		}
		if book == nil {
			s.writeError(w, http.StatusNotFound, "unknown book")
			return
		}
		books = append(books, book)
	} else {
		entries, err := s.health.AllUnhealthy(ctx)
		if err != nil {
			s.logger.Error("fix selection failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "fix failed")
			return
		}
		for _, entry := range entries {
			book, err := s.lib.GetBook(ctx, entry.BookID)
			if err != nil {
				s.logger.Error("fix lookup failed", logging.Error(err))
				s.writeError(w, http.StatusInternalServerError, "fix failed")
				return
			}
			if book != nil {
				books = append(books, book)
			}
		}
	}

	fixed, err := s.policy.FixAll(ctx, s.lib, s.health, books, s.cfg.Paths.LibraryDir)
	if err != nil {
		s.logger.Error("fix failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "fix failed")
		return
	}
	s.statusCache.Invalidate(statusCacheKey)
	s.writeJSON(w, http.StatusOK, fixResponse{Fixed: fixed})
}

// handleUnhealthy lists cached unhealthy books joined with their metadata.
func (s *Server) handleUnhealthy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	entries, err := s.health.AllUnhealthy(ctx)
	if err != nil {
		s.logger.Error("unhealthy listing failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "listing unavailable")
		return
	}
	books, err := s.lib.ListBooks(ctx)
	if err != nil {
		s.logger.Error("unhealthy listing failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "listing unavailable")
		return
	}
	index := make(map[int64]*library.BookRecord, len(books))
	for _, book := range books {
		index[book.ID] = book
	}

	rows := make([]unhealthyBook, 0, len(entries))
	for _, entry := range entries {
		row := unhealthyBook{
			BookID:              entry.BookID,
			HasOriginal:         entry.HasOriginal,
			HasTranslation:      entry.HasTranslation,
			HasViewable:         entry.HasViewable,
			Extraneous:          entry.ExtraFormats,
			DescriptionLanguage: entry.DescriptionLanguage,
			RecoveredISBN:       entry.RecoveredISBN,
			ISBNMissing:         entry.ISBNMissing,
			LastScan:            entry.LastScan.UTC().Format(time.RFC3339),
		}
		if book, ok := index[entry.BookID]; ok {
			row.Title = book.Title
			row.Authors = book.Authors
			row.Series = book.Series
		}
		rows = append(rows, row)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"books": rows})
}

// handleCacheClear wipes the health cache; required when the application is
// re-pointed at a different library.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.health.Clear(r.Context()); err != nil {
		s.logger.Error("cache clear failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	s.statusCache.Purge()
	s.writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) refreshRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh != nil && !s.refresh.Status().State.Terminal()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
