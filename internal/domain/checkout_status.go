package domain

type CheckoutStatus string

const (
	CheckoutStatusInitiated         CheckoutStatus = "INITIATED"
	CheckoutStatusPaymentAuthorized CheckoutStatus = "PAYMENT_AUTHORIZED"
	CheckoutStatusPaymentConfirmed  CheckoutStatus = "PAYMENT_CONFIRMED"
	CheckoutStatusCompleted         CheckoutStatus = "COMPLETED"
	CheckoutStatusFailed            CheckoutStatus = "FAILED"
	// CheckoutStatusUnreconciled means the processor confirmed the payment but
	// the order record was not stored.
	CheckoutStatusUnreconciled CheckoutStatus = "UNRECONCILED"
)

var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusInitiated:         {CheckoutStatusPaymentAuthorized, CheckoutStatusFailed},
	CheckoutStatusPaymentAuthorized: {CheckoutStatusPaymentConfirmed, CheckoutStatusFailed},
	CheckoutStatusPaymentConfirmed:  {CheckoutStatusCompleted, CheckoutStatusUnreconciled},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted || s == CheckoutStatusFailed || s == CheckoutStatusUnreconciled
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
