package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/monitoring"
	"github.com/leolhan1425/bc-tracker/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	dateLayout        = "2006-01-02"
	defaultPostLimit  = 20
	defaultErrorLimit = 50
	maxLimit          = 500
	maxExplainBytes   = 64 << 10
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": msg})
}

// serverError logs err and hides it from the client.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	logrus.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// parseFilter reads from, to (inclusive days, UTC) and sub.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{Community: strings.TrimSpace(q.Get("sub"))}

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return f, fmt.Errorf("invalid from date %q", v)
		}
		f.Start = &t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return f, fmt.Errorf("invalid to date %q", v)
		}
		end := t.Add(24 * time.Hour)
		f.End = &end
	}
	return f, nil
}

func parseLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return min(n, maxLimit), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type statusResponse struct {
	monitoring.Status
	Interval string     `json:"interval,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	PrevRun  *time.Time `json:"previous_run,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: s.ingestor.Status()}
	if s.schedule != nil {
		sch := s.schedule.Status()
		resp.Interval = sch.Interval
		resp.NextRun = sch.Next
		resp.PrevRun = sch.Prev
	}
	writeJSON(w, http.StatusOK, resp)
}

type dataResponse struct {
	MentionCounts []models.CategoryCount `json:"mention_counts"`
	Daily         models.DailySeries     `json:"daily"`
	Stats         *models.Stats          `json:"stats"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	var resp dataResponse
	if resp.MentionCounts, err = s.store.CategoryCounts(ctx, f); err != nil {
		serverError(w, r, err)
		return
	}
	if resp.Daily, err = s.store.DailySeries(ctx, f); err != nil {
		serverError(w, r, err)
		return
	}
	if resp.Stats, err = s.store.Stats(ctx); err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.store.SentimentByCategory(r.Context(), f)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSideEffects(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.store.SideEffectCounts(r.Context(), f, r.URL.Query().Get("type"))
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.store.EffectMatrix(r.Context(), f)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r, defaultPostLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category := r.URL.Query().Get("type")
	if category == "" {
		writeJSON(w, http.StatusOK, []models.PostSummary{})
		return
	}
	out, err := s.store.TopPosts(r.Context(), category, f, limit)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("post_id")
	if postID == "" {
		writeJSON(w, http.StatusOK, []models.CommentSummary{})
		return
	}
	out, err := s.store.CommentsForPost(r.Context(), postID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostEffects(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("id")
	if postID == "" {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	out, err := s.store.PostSideEffects(r.Context(), postID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type explainRequest struct {
	Text string `json:"text"`
}

// handleExplain takes text from the query string, or a JSON body on POST.
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if r.Method == http.MethodPost {
		var req explainRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExplainBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		text = req.Text
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, s.ingestor.Explain(text))
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	section := r.URL.Query().Get("section")
	if section == "" {
		section = store.SectionSentiment
	}
	out, err := s.ingestor.ValidationExamples(r.Context(), section, monitoring.DefaultValidationLimit)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultErrorLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.store.RecentErrors(r.Context(), limit)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	err := s.ingestor.StartIngestion(s.baseCtx, monitoring.RunOptions{})
	switch {
	case errors.Is(err, monitoring.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		serverError(w, r, err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "message": "ingestion started"})
	}
}
