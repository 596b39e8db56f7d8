package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/admin"
	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// maxUploadSize bounds a product form including its photo.
const maxUploadSize = 8 << 20

// AdminOps is the admin dashboard backend. Implementations check the
// session role themselves.
type AdminOps interface {
	ListOrders(ctx context.Context, s auth.Session) ([]domain.Order, error)
	ApproveOrder(ctx context.Context, s auth.Session, orderID string) error
	DeclineOrder(ctx context.Context, s auth.Session, orderID string) error
	ListUsers(ctx context.Context, s auth.Session) ([]domain.User, error)
	SetUserRole(ctx context.Context, s auth.Session, userID string, role domain.Role) error
	DeleteUser(ctx context.Context, s auth.Session, userID string) error
	CreateProduct(ctx context.Context, s auth.Session, in admin.ProductInput) (string, error)
	UpdateProduct(ctx context.Context, s auth.Session, productID string, in admin.ProductInput) error
	DeleteProduct(ctx context.Context, s auth.Session, productID string) error
}

type AdminHandler struct {
	auth    Authenticator
	admin   AdminOps
	timeout time.Duration
	now     func() time.Time
}

func NewAdminHandler(a Authenticator, ops AdminOps, timeout time.Duration) *AdminHandler {
	return &AdminHandler{auth: a, admin: ops, timeout: timeout, now: time.Now}
}

type OrderItemDTO struct {
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
}

type OrderResponseDTO struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id,omitempty"`
	Status          domain.OrderStatus     `json:"status"`
	PaymentID       string                 `json:"payment_id,omitempty"`
	TotalPrice      json.Number            `json:"total_price"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	Items           []OrderItemDTO         `json:"items"`
}

type SetRoleRequestDTO struct {
	Role string `json:"role"`
}

func toOrderResponse(o domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     moneyJSON(it.Price),
		})
	}
	return OrderResponseDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		PaymentID:       o.PaymentID,
		TotalPrice:      moneyJSON(o.TotalPrice),
		ShippingAddress: o.ShippingAddress,
		Items:           items,
	}
}

// session runs under ctx and writes the error response itself.
func (h *AdminHandler) session(ctx context.Context, w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	s, err := resolveSession(ctx, r, h.auth, h.now())
	if err != nil {
		handleError(w, err)
		return s, false
	}
	return s, true
}

// GET /api/v1/admin/orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	orders, err := h.admin.ListOrders(ctx, s)
	if err != nil {
		handleError(w, err)
		return
	}
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderResponse(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// PUT /api/v1/admin/orders/{id}/approve
func (h *AdminHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	h.reviewOrder(w, r, h.admin.ApproveOrder, domain.OrderStatusApproved)
}

// PUT /api/v1/admin/orders/{id}/decline
func (h *AdminHandler) DeclineOrder(w http.ResponseWriter, r *http.Request) {
	h.reviewOrder(w, r, h.admin.DeclineOrder, domain.OrderStatusDeclined)
}

func (h *AdminHandler) reviewOrder(w http.ResponseWriter, r *http.Request,
	review func(context.Context, auth.Session, string) error, status domain.OrderStatus) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")
	if err := review(ctx, s, orderID); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": orderID, "status": string(status)})
}

// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	users, err := h.admin.ListUsers(ctx, s)
	if err != nil {
		handleError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

// PUT /api/v1/admin/users/{id}/role
func (h *AdminHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetRoleRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_role", err.Error())
		return
	}

	s, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "id")
	if err := h.admin.SetUserRole(ctx, s, userID, role); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": userID, "role": role.String()})
}

// DELETE /api/v1/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteUser(ctx, s, chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/admin/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	in, err := readProductForm(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
		return
	}
	s, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	id, err := h.admin.CreateProduct(ctx, s, in)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// PUT /api/v1/admin/products/{id}
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	in, err := readProductForm(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
		return
	}
	s, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "id")
	if err := h.admin.UpdateProduct(ctx, s, productID, in); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": productID})
}

// DELETE /api/v1/admin/products/{id}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteProduct(ctx, s, chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readProductForm reads a multipart product form. Price is in major units;
// categories may repeat or arrive as one JSON encoded array.
func readProductForm(w http.ResponseWriter, r *http.Request) (admin.ProductInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return admin.ProductInput{}, fmt.Errorf("expected a multipart form: %w", err)
	}

	in := admin.ProductInput{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: r.FormValue("description"),
	}
	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return in, fmt.Errorf("price %q is not a number", raw)
		}
		in.Price = domain.MoneyFromDecimal(price)
	}
	for _, v := range r.MultipartForm.Value["categories"] {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var list []string
			if err := json.Unmarshal([]byte(v), &list); err != nil {
				return in, fmt.Errorf("categories: %w", err)
			}
			in.Categories = append(in.Categories, list...)
			continue
		}
		if v != "" {
			in.Categories = append(in.Categories, v)
		}
	}

	f, hdr, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, fmt.Errorf("photo: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return in, fmt.Errorf("photo: %w", err)
	}
	in.Photo = &admin.Photo{Filename: hdr.Filename, Data: data}
	return in, nil
}
