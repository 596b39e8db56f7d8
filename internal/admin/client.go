package admin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/domain"
	"go.uber.org/zap"
)

// Client runs the admin dashboard operations. Every call checks the
// session locally before any request is sent; the backend still enforces
// the same rules.
type Client struct {
	api *apiclient.Client
	log *zap.Logger
	now func() time.Time
}

func NewClient(api *apiclient.Client, log *zap.Logger) *Client {
	return &Client{api: api, log: log, now: time.Now}
}

// RequireRole fails unless the session is live and holds want.
func RequireRole(s auth.Session, want domain.Role, now time.Time) error {
	if s.Expired(now) {
		return auth.ErrSessionExpired
	}
	if s.User.Role != want {
		return fmt.Errorf("%w: have %s", ErrForbidden, s.User.Role)
	}
	return nil
}

func (c *Client) as(s auth.Session) (*apiclient.Client, error) {
	if err := RequireRole(s, domain.RoleAdmin, c.now()); err != nil {
		return nil, err
	}
	return c.api.WithToken(s.Token), nil
}

func (c *Client) ListOrders(ctx context.Context, s auth.Session) ([]domain.Order, error) {
	api, err := c.as(s)
	if err != nil {
		return nil, err
	}
	var dtos []orderDTO
	if err := api.Get(ctx, "/orders", &dtos); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]domain.Order, len(dtos))
	for i, dto := range dtos {
		orders[i] = dto.toDomain()
	}
	return orders, nil
}

func (c *Client) ApproveOrder(ctx context.Context, s auth.Session, orderID string) error {
	return c.reviewOrder(ctx, s, orderID, "approve")
}

func (c *Client) DeclineOrder(ctx context.Context, s auth.Session, orderID string) error {
	return c.reviewOrder(ctx, s, orderID, "decline")
}

func (c *Client) reviewOrder(ctx context.Context, s auth.Session, orderID, action string) error {
	api, err := c.as(s)
	if err != nil {
		return err
	}
	err = api.Put(ctx, "/orders/"+url.PathEscape(orderID)+"/"+action, nil, nil)
	if apiclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return fmt.Errorf("%s order %s: %w", action, orderID, err)
	}
	c.log.Info("order reviewed",
		zap.String("order_id", orderID),
		zap.String("action", action),
		zap.String("admin_id", s.User.ID))
	return nil
}

// ListUsers fails if any user carries a role outside the known set.
func (c *Client) ListUsers(ctx context.Context, s auth.Session) ([]domain.User, error) {
	api, err := c.as(s)
	if err != nil {
		return nil, err
	}
	var users []domain.User
	if err := api.Get(ctx, "/users", &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

type roleRequest struct {
	Role domain.Role `json:"role"`
}

func (c *Client) SetUserRole(ctx context.Context, s auth.Session, userID string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	api, err := c.as(s)
	if err != nil {
		return err
	}
	err = api.Put(ctx, "/users/"+url.PathEscape(userID)+"/role", roleRequest{Role: role}, nil)
	if apiclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("set role for %s: %w", userID, err)
	}
	c.log.Info("user role changed",
		zap.String("user_id", userID),
		zap.Stringer("role", role),
		zap.String("admin_id", s.User.ID))
	return nil
}

func (c *Client) DeleteUser(ctx context.Context, s auth.Session, userID string) error {
	api, err := c.as(s)
	if err != nil {
		return err
	}
	err = api.Delete(ctx, "/users/"+url.PathEscape(userID))
	if apiclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	c.log.Info("user deleted", zap.String("user_id", userID), zap.String("admin_id", s.User.ID))
	return nil
}
