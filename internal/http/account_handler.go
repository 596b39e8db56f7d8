package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/domain"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Me(ctx context.Context, s auth.Session) (domain.User, error)
	Signup(ctx context.Context, req auth.SignupRequest) (auth.Session, error)
}

type AccountHandler struct {
	auth    Authenticator
	timeout time.Duration
	now     func() time.Time
}

func NewAccountHandler(a Authenticator, timeout time.Duration) *AccountHandler {
	return &AccountHandler{auth: a, timeout: timeout, now: time.Now}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponseDTO struct {
	Token     string           `json:"token,omitempty"`
	User      domain.User      `json:"user"`
	Dashboard domain.Dashboard `json:"dashboard"`
}

// POST /api/v1/auth/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	s, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleError(w, err)
		return
	}
	dashboard, err := s.Dashboard()
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SessionResponseDTO{Token: s.Token, User: s.User, Dashboard: dashboard})
}

type SignupRequestDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Photo    string `json:"photo,omitempty"`
}

// POST /api/v1/auth/signup
//
// The new account is logged in only when the backend hands back a token and
// a user. Otherwise the response asks the client to log in.
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SignupRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name, email and password are required")
		return
	}

	s, err := h.auth.Signup(ctx, auth.SignupRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Photo:    req.Photo,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	if s.Token == "" || !s.User.Role.Valid() {
		respondJSON(w, http.StatusCreated, map[string]bool{"login_required": true})
		return
	}
	dashboard, err := s.Dashboard()
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, SessionResponseDTO{Token: s.Token, User: s.User, Dashboard: dashboard})
}

// GET /api/v1/auth/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := resolveSession(ctx, r, h.auth, h.now())
	if err != nil {
		handleError(w, err)
		return
	}
	dashboard, err := s.Dashboard()
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SessionResponseDTO{User: s.User, Dashboard: dashboard})
}

// resolveSession builds the caller's session from the bearer token and the
// backend's view of the user.
func resolveSession(ctx context.Context, r *http.Request, a Authenticator, now time.Time) (auth.Session, error) {
	s := auth.Session{Token: bearerToken(r)}
	if s.Token == "" {
		return s, auth.ErrUnauthenticated
	}
	if s.Expired(now) {
		return s, auth.ErrSessionExpired
	}
	user, err := a.Me(ctx, s)
	if err != nil {
		return s, err
	}
	s.User = user
	return s, nil
}
