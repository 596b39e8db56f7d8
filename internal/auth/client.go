package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")
	// ErrSignupRejected covers a taken email or a form the backend refused.
	ErrSignupRejected = errors.New("signup rejected")
)

type Client struct {
	api *apiclient.Client
}

// NewClient expects api to point at the auth root, e.g. http://host/api.
func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Photo    string `json:"photo,omitempty"`
}

type tokenResponse struct {
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
	Message string       `json:"message"`
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp tokenResponse
	err := c.api.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if apiclient.IsStatus(err, http.StatusUnauthorized) || apiclient.IsStatus(err, http.StatusBadRequest) {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return Session{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, resp.Message)
	}

	s := Session{Token: resp.Token}
	if resp.User != nil {
		s.User = *resp.User
		return s, nil
	}
	// older backends only return the token
	user, err := c.Me(ctx, s)
	if err != nil {
		return Session{}, err
	}
	s.User = user
	return s, nil
}

// Signup creates an account. The returned session is empty when the backend
// does not log the new user in.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (Session, error) {
	var resp tokenResponse
	err := c.api.Post(ctx, "/auth/signup", req, &resp)
	if apiclient.IsStatus(err, http.StatusBadRequest) || apiclient.IsStatus(err, http.StatusConflict) {
		return Session{}, fmt.Errorf("%w: %v", ErrSignupRejected, err)
	}
	if err != nil {
		return Session{}, fmt.Errorf("signup: %w", err)
	}
	if resp.Token == "" {
		return Session{}, nil
	}
	s := Session{Token: resp.Token}
	if resp.User != nil {
		s.User = *resp.User
	}
	return s, nil
}

// Me fetches the current user for the session's token.
func (c *Client) Me(ctx context.Context, s Session) (domain.User, error) {
	if s.Token == "" {
		return domain.User{}, ErrUnauthenticated
	}
	var user domain.User
	err := c.api.WithToken(s.Token).Get(ctx, "/auth/me", &user)
	if apiclient.IsStatus(err, http.StatusUnauthorized) || apiclient.IsStatus(err, http.StatusForbidden) {
		return domain.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch current user: %w", err)
	}
	return user, nil
}
