// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pdiddy/corpus-engine/internal/prompt"
)

type contextRequest struct {
	Utterance string `json:"utterance"`
}

type contextResponse struct {
	Kind         string          `json:"kind"`
	Instructions string          `json:"instructions"`
	Article      *articleSummary `json:"article,omitempty"`
}

// articleSummary identifies the anchored article without repeating its body;
// the full text already rides inside the instructions.
type articleSummary struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (s *Server) handleGreeting(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"greeting": s.eng.InitialGreeting()})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "body must be JSON with an utterance field")
		return
	}

	payload := s.eng.ResponseContext(req.Utterance)
	resp := contextResponse{Kind: "digest_only", Instructions: payload.Instructions()}
	if anchored, ok := payload.(prompt.ArticleAnchored); ok {
		resp.Kind = "article_anchored"
		resp.Article = &articleSummary{
			Index:  anchored.Article.Index,
			Title:  anchored.Article.Title,
			Author: anchored.Article.Author,
			URL:    anchored.Article.URL,
		}
	}
	s.metrics.contextRequests.WithLabelValues(resp.Kind).Inc()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.eng.CorpusStatus()
	s.setCorpusGauges(status)
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAvatar(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.eng.VoiceSettings())
}

// handleRefresh kicks off a refresh in the background and returns
// immediately. When an admin token is configured the caller must present it
// as a bearer token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if token := s.cfg.AdminToken; token != "" {
		got := bearerToken(r)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "invalid or missing admin token")
			return
		}
	}
	go s.runRefresh(context.Background(), "http")
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}

func bearerToken(r *http.Request) string {
	if t, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return t
	}
	return ""
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("writing response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
