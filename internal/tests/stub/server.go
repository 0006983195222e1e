// Package stub runs an in-process authentication backend for end-to-end tests.
package stub

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"zentry/internal/model"
	"zentry/internal/token"
)

const (
	LoginPath   = "/api/authentication/login"
	RefreshPath = "/api/authentication/refresh"
	LogoutPath  = "/api/authentication/logout"
	MePath      = "/api/me"
)

type user struct {
	id       string
	userName string
	role     string
	hash     []byte
}

type Server struct {
	*httptest.Server

	tokens *token.JWTManager

	mu      sync.Mutex
	users   map[string]*user
	live    map[string]string // access token -> user id
	refresh map[string]string // refresh token -> user id

	failRefresh  atomic.Bool
	refreshDelay atomic.Int64

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

func New() *Server {
	s := &Server{
		tokens:  token.NewJWTManager(uuid.NewString(), uuid.NewString(), 15*time.Minute, 24*time.Hour),
		users:   make(map[string]*user),
		live:    make(map[string]string),
		refresh: make(map[string]string),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc(LoginPath, s.login).Methods(http.MethodPost)
	r.HandleFunc(RefreshPath, s.refreshTokens).Methods(http.MethodPost)
	r.HandleFunc(LogoutPath, s.logout).Methods(http.MethodPost)
	r.HandleFunc(MePath, s.me).Methods(http.MethodGet)
	r.HandleFunc("/api/echo", s.echo).Methods(http.MethodPost)

	return r
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(userName, password, role string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	u := &user{id: uuid.NewString(), userName: userName, role: role, hash: hash}

	s.mu.Lock()
	s.users[userName] = u
	s.mu.Unlock()

	return u.id
}

// ExpireAccessTokens makes every access token issued so far answer 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live = make(map[string]string)
}

func (s *Server) FailRefresh(fail bool) {
	s.failRefresh.Store(fail)
}

func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

func (s *Server) LogoutCalls() int {
	return int(s.logoutCalls.Load())
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Message: "Invalid request format"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.UserName]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Message: "Invalid user name or password"})
		return
	}

	access, refresh, err := s.issue(u.id, u.role)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "server_error"})
		return
	}

	writeJSON(w, http.StatusOK, model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       u.id,
		Role:         u.role,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	})
}

func (s *Server) refreshTokens(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		time.Sleep(d)
	}

	var req model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid_request"})
		return
	}
	if s.failRefresh.Load() {
		writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{
			Error:            "invalid_grant",
			ErrorDescription: "Refresh token expired",
		})
		return
	}
	if _, err := s.tokens.VerifyRefreshToken(req.RefreshToken); err != nil {
		writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Error: "invalid_grant"})
		return
	}

	s.mu.Lock()
	userID, ok := s.refresh[req.RefreshToken]
	if ok {
		delete(s.refresh, req.RefreshToken)
	}
	role := s.roleOf(userID)
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Error: "invalid_grant"})
		return
	}

	access, refresh, err := s.issue(userID, role)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "server_error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)

	userID, ok := s.authorized(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	for t, id := range s.live {
		if id == userID {
			delete(s.live, t)
		}
	}
	for t, id := range s.refresh {
		if id == userID {
			delete(s.refresh, t)
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorized(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Message: "Unauthorized"})
		return
	}

	s.mu.Lock()
	role := s.roleOf(userID)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "role": role})
}

// echo returns the request body to an authorized caller.
func (s *Server) echo(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorized(r); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, r.Body)
}

func (s *Server) authorized(r *http.Request) (string, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return "", false
	}
	if _, err := s.tokens.VerifyAccessToken(raw); err != nil {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.live[raw]
	return userID, ok
}

func (s *Server) issue(userID, role string) (string, string, error) {
	access, err := s.tokens.GenerateAccessToken(userID, role)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.GenerateRefreshToken(userID)
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.live[access] = userID
	s.refresh[refresh] = userID
	s.mu.Unlock()

	return access, refresh, nil
}

// roleOf must be called with s.mu held.
func (s *Server) roleOf(userID string) string {
	for _, u := range s.users {
		if u.id == userID {
			return u.role
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
