package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_storefront/internal/admin"
	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain and backend errors to HTTP responses.
func handleError(w http.ResponseWriter, err error) {
	var (
		fieldErrs   domain.FieldErrors
		checkoutErr *checkout.Error
		apiErr      *apiclient.Error
	)

	switch {
	case errors.As(err, &fieldErrs):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid shipping address",
			Code:    "invalid_address",
			Details: fieldErrs.Error(),
		})
	case errors.Is(err, cart.ErrInvalidSession):
		respondError(w, http.StatusBadRequest, "invalid_session", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, admin.ErrOrderNotFound),
		errors.Is(err, admin.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.As(err, &checkoutErr):
		respondCheckoutError(w, checkoutErr)
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrSessionExpired):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, admin.ErrForbidden):
		respondError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, admin.ErrInvalidRole):
		respondError(w, http.StatusBadRequest, "invalid_role", err.Error())
	case errors.Is(err, admin.ErrInvalidProduct):
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
	case errors.Is(err, auth.ErrSignupRejected):
		respondError(w, http.StatusBadRequest, "signup_rejected", err.Error())
	case errors.Is(err, cart.ErrStorageUnavailable):
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "cart storage is unavailable")
	case errors.Is(err, apiclient.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "backend did not answer in time")
	case errors.As(err, &apiErr):
		respondError(w, http.StatusBadGateway, "backend_error", apiErr.Error())
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func respondCheckoutError(w http.ResponseWriter, err *checkout.Error) {
	resp := ErrorResponse{Error: err.Error(), Details: err.Error()}
	if err.Kind != nil {
		resp.Error = err.Kind.Error()
	}
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, checkout.ErrPaymentDeclined):
		status = http.StatusPaymentRequired
		resp.Code = "payment_declined"
	case errors.Is(err, checkout.ErrAuthorizationFailed):
		resp.Code = "authorization_failed"
	case errors.Is(err, checkout.ErrOrderPersistenceFailedAfterPayment):
		// the customer was charged; support needs the payment id
		resp.Code = "order_persistence_failed"
		resp.Details = "payment " + err.PaymentID + " was taken but the order was not saved"
	default:
		status = http.StatusInternalServerError
		resp.Code = "internal_error"
	}
	respondJSON(w, status, resp)
}
