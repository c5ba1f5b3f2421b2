package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"giftai/internal/app"
	"giftai/internal/ratelimit"
	"giftai/internal/util"
	"giftai/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	GenerateRateLimitPerMinute int
}

// Server exposes the book pipeline over HTTP.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	generateLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	limit := cfg.GenerateRateLimitPerMinute
	if limit <= 0 {
		limit = 5
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "giftai:ratelimit:generate", limit, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init generate limiter: %w", err)
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		generateLimiter: limiter,
	}
	s.routes()
	return s, nil
}

// NewWithLimiter constructs the server with an externally built limiter,
// used by tests that run without Redis.
func NewWithLimiter(a *app.App, limiter *ratelimit.FixedWindowLimiter) *Server {
	s := &Server{
		app:             a,
		mux:             http.NewServeMux(),
		generateLimiter: limiter,
	}
	s.routes()
	return s
}

// Router returns the configured handler with common middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/api/book/generate", s.authenticated(s.handleGenerate))
	s.mux.Handle("/api/book/history", s.authenticated(s.handleHistory))
	s.mux.HandleFunc("/api/book/discover", s.handleDiscover)
	s.mux.HandleFunc("/api/book/", s.handleBookByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// callerID resolves the caller on routes where authentication is
// optional. Missing or invalid credentials read as anonymous.
func (s *Server) callerID(r *http.Request) string {
	token, ok := bearerToken(r)
	if !ok {
		return ""
	}
	user, ok := s.app.UserFromToken(token)
	if !ok {
		return ""
	}
	return user.ID
}

// POST /api/book/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, user.ID, "too many generation requests") {
		return
	}
	var req domain.BookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	book, err := s.app.GenerateBook(r.Context(), user.ID, req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// GET /api/book/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.UserBooks(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

// GET /api/book/discover
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.PublicBooks()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

// /api/book/{id} and its subresources.
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/book/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}
	caller := s.callerID(r)

	switch sub {
	case "":
		if r.Method == http.MethodDelete {
			s.handleDeleteBook(w, r, id, caller)
			return
		}
		s.handleGetBook(w, r, id, caller)
	case "pdf":
		s.handleBookPDF(w, r, id, caller, false)
	case "download":
		s.handleBookPDF(w, r, id, caller, true)
	case "status":
		s.handleBookStatus(w, r, id, caller)
	case "view":
		s.handleBookView(w, r, id, caller)
	case "visibility":
		s.handleBookVisibility(w, r, id, caller)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request, id, caller string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	book, err := s.app.GetBook(id, caller)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleBookStatus(w http.ResponseWriter, r *http.Request, id, caller string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	book, err := s.app.Status(id, caller)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bookId":   book.ID,
		"pdfReady": book.PDFReady,
		"pdfPath":  book.PDFPath,
	})
}

func (s *Server) handleBookView(w http.ResponseWriter, r *http.Request, id, caller string) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	book, err := s.app.ViewBook(r.Context(), id, caller)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// handleBookPDF streams the rendered artifact, inline for reading and as
// an attachment for downloads. Downloads bump the counter and redirect
// to a presigned mirror link when an artifact store is configured.
func (s *Server) handleBookPDF(w http.ResponseWriter, r *http.Request, id, caller string, download bool) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var (
		book domain.Book
		err  error
	)
	if download {
		book, err = s.app.DownloadPDF(r.Context(), id, caller)
	} else {
		book, err = s.app.GetBook(id, caller)
		if err == nil && (!book.PDFReady || book.PDFPath == "") {
			err = app.ErrNotReady
		}
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	if download {
		if url, ok := s.app.ArtifactURL(r.Context(), book); ok {
			http.Redirect(w, r, url, http.StatusTemporaryRedirect)
			return
		}
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	disposition := "inline"
	if download {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("%s; filename=%q", disposition, filepath.Base(book.PDFPath)))
	http.ServeFile(w, r, book.PDFPath)
}

// DELETE /api/book/{id}
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, id, caller string) {
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.DeleteBook(r.Context(), id, caller); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type visibilityRequest struct {
	IsPublic *bool `json:"isPublic"`
}

func (s *Server) handleBookVisibility(w http.ResponseWriter, r *http.Request, id, caller string) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req visibilityRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.IsPublic == nil {
		writeError(w, http.StatusBadRequest, "isPublic is required")
		return
	}
	book, err := s.app.SetVisibility(id, caller, *req.IsPublic)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, userID, msg string) bool {
	if s.generateLimiter == nil {
		return true
	}
	key := userID
	if key == "" {
		key = clientIP(r)
	}
	if s.generateLimiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrNotReady):
		writeError(w, http.StatusNotFound, "pdf not ready")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
