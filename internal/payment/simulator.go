package payment

import (
	"context"
	"math/rand"

	"github.com/google/uuid"
)

// StatusSource decides the fate of a simulated charge.
type StatusSource interface {
	Next() (approved bool, refusal Refusal, reason string)
}

type RandomStatus struct{}

func (RandomStatus) Next() (bool, Refusal, string) {
	return calcStatus(rand.Intn(101)) // 101 because Intn is exclusive of the upper bound
}

// calcStatus approves below 95; 96..100 map to a known refusal.
func calcStatus(n int) (bool, Refusal, string) {
	if n < 95 {
		return true, RefusalUnknown, ""
	}
	other := n - 95
	if other == 0 || other > int(RefusalLimitExceeded) {
		return false, RefusalUnknown, "unknown reason"
	}
	return false, Refusal(other), ""
}

// Well known test cards that bypass the random source.
const (
	TestCardApproved = "pm_card_visa"
	TestCardDeclined = "pm_card_chargeDeclined"
)

// Simulator stands in for the card processor in local runs.
type Simulator struct {
	status StatusSource
}

func NewSimulator(s StatusSource) *Simulator {
	if s == nil {
		s = RandomStatus{}
	}
	return &Simulator{status: s}
}

func (s *Simulator) Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}
	if req.ClientSecret == "" {
		return Confirmation{}, &DeclinedError{Refusal: RefusalUnknown, Reason: "missing client secret"}
	}
	if req.Amount <= 0 {
		return Confirmation{}, &DeclinedError{Refusal: RefusalUnknown, Reason: "invalid amount"}
	}

	approved, refusal, reason := s.status.Next()
	switch req.Method.Token {
	case "":
		approved, refusal, reason = false, RefusalCardDeclined, "missing payment method"
	case TestCardApproved:
		approved = true
	case TestCardDeclined:
		approved, refusal, reason = false, RefusalCardDeclined, ""
	}

	if !approved {
		return Confirmation{}, &DeclinedError{Refusal: refusal, Reason: reason}
	}
	return Confirmation{PaymentID: "pi_sim_" + uuid.NewString(), Status: "succeeded"}, nil
}
