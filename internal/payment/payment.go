package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
)

var ErrMissingPaymentID = errors.New("processor returned no payment id")

// Refusal is a known decline reason.
type Refusal int

const (
	RefusalUnknown Refusal = iota
	RefusalInsufficientFunds
	RefusalCardExpired
	RefusalCardDeclined
	RefusalFraudSuspected
	RefusalLimitExceeded
)

func (r Refusal) String() string {
	switch r {
	case RefusalInsufficientFunds:
		return "insufficient_funds"
	case RefusalCardExpired:
		return "expired_card"
	case RefusalCardDeclined:
		return "card_declined"
	case RefusalFraudSuspected:
		return "fraudulent"
	case RefusalLimitExceeded:
		return "card_velocity_exceeded"
	default:
		return "unknown"
	}
}

func refusalFromCode(code string) Refusal {
	for r := RefusalInsufficientFunds; r <= RefusalLimitExceeded; r++ {
		if r.String() == code {
			return r
		}
	}
	return RefusalUnknown
}

// DeclinedError is a processor refusal.
type DeclinedError struct {
	Refusal Refusal
	Reason  string
}

func (e *DeclinedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment declined (%s): %s", e.Refusal, e.Reason)
	}
	return fmt.Sprintf("payment declined (%s)", e.Refusal)
}

// Method identifies the card, e.g. a tokenized payment method id.
type Method struct {
	Token string `json:"token"`
}

type BillingDetails struct {
	Name  string
	Email string
}

type ConfirmRequest struct {
	ClientSecret string
	Method       Method
	Billing      BillingDetails
	Amount       domain.Money
	Currency     string
}

type Confirmation struct {
	PaymentID string
	Status    string
}

// Processor confirms a payment intent created by the backend.
type Processor interface {
	Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error)
}
