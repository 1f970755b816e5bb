package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vinylclub/api/internal/metrics"
	"vinylclub/api/internal/search"
	"vinylclub/api/internal/session"
	"vinylclub/api/internal/votebus"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    *metrics.Metrics
}

func NewHTTPServer(service *Service, corsOrigin string, m *metrics.Metrics) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, metrics: m}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.metrics.Handler().ServeHTTP(w, r)
		return
	}

	// Session probe - anonymous is a valid answer, never an error
	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		sess := s.optionalSession(r)
		if !sess.Authenticated() {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "voterName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"voterId":       sess.VoterID,
			"voterName":     sess.DisplayName,
			"role":          sess.Role,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/votes/ranking" {
		s.handleRanking(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/votes/events" {
		s.handleVoteEvents(w, r)
		return
	}

	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/votes/user/") {
		albumID := strings.TrimPrefix(r.URL.Path, "/api/votes/user/")
		s.handleHasVoted(w, r, albumID)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/votes" {
		s.handleCastVote(w, r)
		return
	}

	if r.Method == http.MethodDelete && r.URL.Path == "/api/votes" {
		s.handleRetractVote(w, r)
		return
	}

	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/votes/") {
		albumID := strings.TrimPrefix(r.URL.Path, "/api/votes/")
		if albumID != "" && !strings.Contains(albumID, "/") {
			s.handleCountVotes(w, r, albumID)
			return
		}
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/user/votes" {
		s.handleVoterHistory(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/musicbrainz/artists" {
		s.handleSearchArtists(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/musicbrainz/releases" {
		s.handleArtistReleases(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/suggestions" {
		s.handleSubmitSuggestion(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/suggestions" {
		s.handleOwnSuggestions(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/admin/suggestions/search" {
		s.handleSearchSuggestions(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/admin/suggestions" {
		s.handleListSuggestions(w, r)
		return
	}

	if r.Method == http.MethodPatch && r.URL.Path == "/api/admin/suggestions" {
		s.handleReviewSuggestion(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCastVote(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var body struct {
		AlbumID string `json:"albumId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	status, err := s.service.CastVote(r.Context(), sess, body.AlbumID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *HTTPServer) handleRetractVote(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	albumID := strings.TrimSpace(r.URL.Query().Get("albumId"))
	status, err := s.service.RetractVote(r.Context(), sess, albumID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handleHasVoted(w http.ResponseWriter, r *http.Request, albumID string) {
	sess := s.optionalSession(r)
	status, err := s.service.HasVoted(r.Context(), sess, albumID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *HTTPServer) handleCountVotes(w http.ResponseWriter, r *http.Request, albumID string) {
	count, err := s.service.CountVotes(r.Context(), albumID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"albumId": albumID, "count": count})
}

func (s *HTTPServer) handleRanking(w http.ResponseWriter, r *http.Request) {
	limit := s.service.DefaultLimit()
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	ranking, err := s.service.Ranking(r.Context(), limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranking": ranking})
}

func (s *HTTPServer) handleVoterHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	votes, err := s.service.VoterHistory(r.Context(), sess)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}

// handleVoteEvents streams vote-state changes over SSE so every open
// surface updates without a reload. The bus is same-process only; a
// reconnecting client re-reads ranking and per-album state instead of
// expecting replay.
func (s *HTTPServer) handleVoteEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Streaming unsupported", nil)
		return
	}

	// Buffered so a slow client never blocks publishers; if it falls this
	// far behind we end the stream and let it reconnect and re-fetch.
	events := make(chan votebus.Event, 64)
	overflow := make(chan struct{})
	var overflowOnce bool

	// Subscribe before the client sees headers, so nothing published after
	// the 200 arrives can be missed.
	sub := s.service.Bus().Subscribe(func(e votebus.Event) {
		select {
		case events <- e:
		default:
			if !overflowOnce {
				overflowOnce = true
				close(overflow)
			}
		}
	})
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-overflow:
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: vote-updated\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) handleSearchArtists(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	artists, err := s.service.SearchArtists(r.Context(), query)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artists": artists})
}

func (s *HTTPServer) handleArtistReleases(w http.ResponseWriter, r *http.Request) {
	artistID := strings.TrimSpace(r.URL.Query().Get("artistId"))
	releases, err := s.service.ArtistReleases(r.Context(), artistID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"releases": releases})
}

func (s *HTTPServer) handleSubmitSuggestion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var body SuggestionInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	suggestion, err := s.service.SubmitSuggestion(r.Context(), sess, body)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"suggestion": suggestion})
}

func (s *HTTPServer) handleOwnSuggestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	suggestions, err := s.service.ListOwnSuggestions(r.Context(), sess)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *HTTPServer) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	suggestions, err := s.service.ListAllSuggestions(r.Context(), sess, status)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *HTTPServer) handleSearchSuggestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	query := search.Query{
		Text:   strings.TrimSpace(r.URL.Query().Get("q")),
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		query.Limit = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		query.Offset = parsed
	}

	response, err := s.service.SearchSuggestions(r.Context(), sess, query)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleReviewSuggestion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var body struct {
		SuggestionID string `json:"suggestionId"`
		Status       string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	if err := s.service.ReviewSuggestion(r.Context(), sess, body.SuggestionID, body.Status); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return sess, true
}

// optionalSession resolves the caller's session if a valid token is
// present, and treats everything else as anonymous so that read paths
// never fail on auth.
func (s *HTTPServer) optionalSession(r *http.Request) Session {
	token := bearerToken(r)
	if token == "" {
		return Session{}
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			log.Printf("session lookup failed, serving anonymous: %v", err)
		}
		return Session{}
	}
	return sess
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		elapsed := time.Since(started)
		s.metrics.ObserveRequest(r.Method, writer.status, elapsed.Seconds())
		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			elapsed.Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

// decodeBody fills target from the request body. A missing or empty body
// leaves target zero-valued so field validation reports what is actually
// missing; only malformed JSON is a body error.
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, session.ErrNoSession) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
