package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this cart")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
	ErrMissingSecret      = errors.New("client secret is missing")

	ErrAuthorizationFailed                = errors.New("payment authorization failed")
	ErrPaymentDeclined                    = errors.New("payment declined")
	ErrOrderPersistenceFailedAfterPayment = errors.New("order could not be saved after payment was taken")
)

type Step string

const (
	StepAuthorize    Step = "authorize"
	StepConfirm      Step = "confirm"
	StepPersistOrder Step = "persist_order"
)

// Error describes which step failed. Kind is one of the payment sentinels;
// PaymentID is set once the processor has confirmed the charge.
type Error struct {
	Step      Step
	Kind      error
	PaymentID string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("checkout %s: %v", e.Step, e.Kind)
	if e.PaymentID != "" {
		msg += " (payment " + e.PaymentID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
