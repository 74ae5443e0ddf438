package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/osusume-io/osusume/internal/indexer"
)

type textSearchRequest struct {
	UserID int64  `json:"user_id,omitempty"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
}

type imageSearchRequest struct {
	UserID int64  `json:"user_id,omitempty"`
	Path   string `json:"path"`
	Limit  int    `json:"limit,omitempty"`
}

type clickRequest struct {
	UserID int64 `json:"user_id"`
	Index  int   `json:"index"`
	Count  int   `json:"count,omitempty"` // recommendation clicks: refreshed list size
}

func (s *Server) handleTextSearch(w http.ResponseWriter, r *http.Request) {
	var req textSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limit := s.clampLimit(req.Limit)
	s.logger.Debug("text search", zap.Int64("user_id", req.UserID), zap.String("query", req.Query), zap.Int("limit", limit))
	resp, err := s.searches.TextSearch(r.Context(), req.UserID, req.Query, limit)
	if err != nil {
		s.logger.Error("text search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImageSearch(w http.ResponseWriter, r *http.Request) {
	var req imageSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	limit := s.clampLimit(req.Limit)
	s.logger.Debug("image search", zap.Int64("user_id", req.UserID), zap.String("path", req.Path), zap.Int("limit", limit))
	resp, err := s.searches.ImageSearch(r.Context(), req.UserID, req.Path, limit)
	if err != nil {
		s.logger.Error("image search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}
	count := s.config.Recommend.DefaultCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			count = parsed
		}
	}
	rec, err := s.recs.Recommend(r.Context(), userID, count)
	if err != nil {
		s.logger.Error("recommendation failed", zap.Int64("user_id", userID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSearchClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path, err := s.searches.ResolveClick(r.Context(), req.UserID, req.Index)
	if err != nil {
		s.logger.Error("search click failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// A stale index resolves to nothing; report it rather than erroring.
	s.respondJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleRecommendationClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	count := req.Count
	if count <= 0 {
		count = s.config.Recommend.DefaultCount
	}
	rec, err := s.recs.ResolveClick(r.Context(), req.UserID, req.Index, count)
	if err != nil {
		s.logger.Error("recommendation click failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}
	events, err := s.behaviors.History(r.Context(), userID)
	if err != nil {
		s.logger.Error("history failed", zap.Int64("user_id", userID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}
	if err := s.behaviors.DeleteAll(r.Context(), userID); err != nil {
		s.logger.Error("delete history failed", zap.Int64("user_id", userID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.builder.Build(r.Context()); err != nil {
		if errors.Is(err, indexer.ErrEmptyCatalog) {
			s.respondError(w, http.StatusConflict, "catalog is empty")
			return
		}
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	itemCount, err := s.catalog.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count catalog failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"catalog_items":     itemCount,
		"global_index_size": s.global.Size(),
		"partitions":        s.registry.Sizes(),
		"config": map[string]interface{}{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"recommend_count":      s.config.Recommend.DefaultCount,
			"recent_events":        s.config.Recommend.RecentEvents,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) clampLimit(limit int) int {
	if limit <= 0 {
		return s.config.Search.DefaultLimit
	}
	if limit > s.config.Search.MaxLimit {
		return s.config.Search.MaxLimit
	}
	return limit
}

func (s *Server) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return userID, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
