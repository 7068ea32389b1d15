package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hyperjump/medrag/internal/models"
	"github.com/hyperjump/medrag/internal/retriever"
	"go.uber.org/zap"
)

type retrieveRequest struct {
	Query             string   `json:"query"`
	NResults          int      `json:"n_results"`
	MinRelevanceScore *float64 `json:"min_relevance_score,omitempty"`
	MaxChunks         int      `json:"max_chunks"`
}

type retrieveResponse struct {
	Results []models.RetrievalResult `json:"results"`
	Context string                   `json:"context"`
}

type formatRequest struct {
	Results   []models.RetrievalResult `json:"results"`
	MaxChunks int                      `json:"max_chunks"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	resp := retrieveResponse{Results: []models.RetrievalResult{}}
	if s.retriever == nil {
		s.respondJSON(w, http.StatusOK, resp)
		return
	}
	minRelevance := -1.0
	if req.MinRelevanceScore != nil {
		minRelevance = *req.MinRelevanceScore
	}
	s.logger.Debug("retrieve request", zap.Int("n_results", req.NResults), zap.Float64("min_relevance", minRelevance))
	resp.Results = s.retriever.RetrieveRelevantContext(r.Context(), req.Query, req.NResults, minRelevance)
	resp.Context = s.retriever.FormatContextForLLM(resp.Results, req.MaxChunks)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var text string
	if s.retriever != nil {
		text = s.retriever.FormatContextForLLM(req.Results, req.MaxChunks)
	} else {
		text = retriever.FormatContext(req.Results, req.MaxChunks)
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"context": text})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		s.respondError(w, http.StatusServiceUnavailable, "retrieval disabled")
		return
	}
	stats, err := s.manager.Stats(r.Context(), s.collection)
	if err != nil {
		s.logger.Error("collection stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		s.respondError(w, http.StatusServiceUnavailable, "retrieval disabled")
		return
	}
	s.logger.Info("collection reset requested", zap.String("collection", s.collection))
	if _, err := s.manager.Reset(r.Context(), s.collection); err != nil {
		s.logger.Error("collection reset failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := s.manager.Stats(r.Context(), s.collection)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"retrieval_enabled": s.retriever != nil,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
