package http

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/admin"
	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
)

var errBackendDown = errors.New("backend down")

type SessionsMock struct {
	mu     sync.Mutex
	stores map[string]*cart.Store
	err    error
}

func newSessionsMock() *SessionsMock {
	return &SessionsMock{stores: make(map[string]*cart.Store)}
}

func (m *SessionsMock) Open(_ context.Context, sessionID string) (*cart.Store, error) {
	if m.err != nil {
		return nil, m.err
	}
	if sessionID == "" {
		return nil, cart.ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[sessionID]
	if !ok {
		s = cart.NewStore(nil, nil, nil)
		m.stores[sessionID] = s
	}
	return s, nil
}

func (m *SessionsMock) Discard(_ context.Context, sessionID string) error {
	if m.err != nil {
		return m.err
	}
	if sessionID == "" {
		return cart.ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, sessionID)
	return nil
}

type ProductsMock struct {
	products []domain.Product
	err      error
}

func (m ProductsMock) ListProducts(context.Context) ([]domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

func (m ProductsMock) GetProduct(_ context.Context, id string) (domain.Product, error) {
	if m.err != nil {
		return domain.Product{}, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, catalog.ErrProductNotFound
}

type CheckoutMock struct {
	receipt *checkout.Receipt
	err     error
	got     checkout.Request
	store   *cart.Store
	// ctxErr and deadline describe the context Checkout ran under.
	ctxErr   error
	deadline time.Time
}

func (m *CheckoutMock) Checkout(ctx context.Context, store *cart.Store, req checkout.Request) (*checkout.Receipt, error) {
	m.got = req
	m.store = store
	m.ctxErr = ctx.Err()
	m.deadline, _ = ctx.Deadline()
	return m.receipt, m.err
}

// AuthMock knows one token per user.
type AuthMock struct {
	users    map[string]domain.User
	loginErr error
	// signupToken, when set, logs new accounts straight in.
	signupToken string
}

func (m AuthMock) Login(_ context.Context, email, password string) (auth.Session, error) {
	if m.loginErr != nil {
		return auth.Session{}, m.loginErr
	}
	for token, u := range m.users {
		if u.Email == email {
			return auth.Session{Token: token, User: u}, nil
		}
	}
	return auth.Session{}, auth.ErrInvalidCredentials
}

func (m AuthMock) Me(_ context.Context, s auth.Session) (domain.User, error) {
	u, ok := m.users[s.Token]
	if !ok {
		return domain.User{}, auth.ErrUnauthenticated
	}
	return u, nil
}

func (m AuthMock) Signup(_ context.Context, req auth.SignupRequest) (auth.Session, error) {
	for _, u := range m.users {
		if u.Email == req.Email {
			return auth.Session{}, fmt.Errorf("%w: email taken", auth.ErrSignupRejected)
		}
	}
	if m.signupToken == "" {
		return auth.Session{}, nil
	}
	return auth.Session{
		Token: m.signupToken,
		User:  domain.User{ID: "new", Name: req.Name, Email: req.Email, Role: domain.RoleCustomer},
	}, nil
}

// AdminMock records calls and enforces the admin role like the real client.
type AdminMock struct {
	orders   []domain.Order
	users    []domain.User
	err      error
	approved []string
	declined []string
	roles    map[string]domain.Role
	deleted  []string
	created  []admin.ProductInput
	updated  map[string]admin.ProductInput
	removed  []string
}

func (m *AdminMock) check(s auth.Session) error {
	if m.err != nil {
		return m.err
	}
	if s.User.Role != domain.RoleAdmin {
		return admin.ErrForbidden
	}
	return nil
}

func (m *AdminMock) ListOrders(_ context.Context, s auth.Session) ([]domain.Order, error) {
	if err := m.check(s); err != nil {
		return nil, err
	}
	return m.orders, nil
}

func (m *AdminMock) ApproveOrder(_ context.Context, s auth.Session, id string) error {
	if err := m.check(s); err != nil {
		return err
	}
	m.approved = append(m.approved, id)
	return nil
}

func (m *AdminMock) DeclineOrder(_ context.Context, s auth.Session, id string) error {
	if err := m.check(s); err != nil {
		return err
	}
	m.declined = append(m.declined, id)
	return nil
}

func (m *AdminMock) ListUsers(_ context.Context, s auth.Session) ([]domain.User, error) {
	if err := m.check(s); err != nil {
		return nil, err
	}
	return m.users, nil
}

func (m *AdminMock) SetUserRole(_ context.Context, s auth.Session, id string, role domain.Role) error {
	if err := m.check(s); err != nil {
		return err
	}
	if m.roles == nil {
		m.roles = make(map[string]domain.Role)
	}
	m.roles[id] = role
	return nil
}

func (m *AdminMock) DeleteUser(_ context.Context, s auth.Session, id string) error {
	if err := m.check(s); err != nil {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *AdminMock) CreateProduct(_ context.Context, s auth.Session, in admin.ProductInput) (string, error) {
	if err := m.check(s); err != nil {
		return "", err
	}
	if in.Photo == nil {
		return "", fmt.Errorf("%w: photo is required", admin.ErrInvalidProduct)
	}
	m.created = append(m.created, in)
	return fmt.Sprintf("p-%d", len(m.created)), nil
}

func (m *AdminMock) UpdateProduct(_ context.Context, s auth.Session, id string, in admin.ProductInput) error {
	if err := m.check(s); err != nil {
		return err
	}
	if id == "missing" {
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
	}
	if m.updated == nil {
		m.updated = make(map[string]admin.ProductInput)
	}
	m.updated[id] = in
	return nil
}

func (m *AdminMock) DeleteProduct(_ context.Context, s auth.Session, id string) error {
	if err := m.check(s); err != nil {
		return err
	}
	m.removed = append(m.removed, id)
	return nil
}

func product(id string, price domain.Money) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: price}
}

func errUnavailable() error {
	return fmt.Errorf("list products: %w", apiclient.ErrUnavailable)
}

func errStatus(status int) error {
	return fmt.Errorf("get product: %w", &apiclient.Error{Status: status})
}
