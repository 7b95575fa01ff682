package domain

import "time"

type CheckoutState string

const (
	CheckoutStateCollectingInfo      CheckoutState = "COLLECTING_INFO"
	CheckoutStateCheckingIdentity    CheckoutState = "CHECKING_IDENTITY"
	CheckoutStateAwaitingPassword    CheckoutState = "AWAITING_PASSWORD"
	CheckoutStateAwaitingOtp         CheckoutState = "AWAITING_OTP"
	CheckoutStateAwaitingNewPassword CheckoutState = "AWAITING_NEW_PASSWORD"
	CheckoutStateSubmittingOrder     CheckoutState = "SUBMITTING_ORDER"
	CheckoutStateSucceeded           CheckoutState = "SUCCEEDED"
	CheckoutStateFailed              CheckoutState = "FAILED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateCollectingInfo:      {CheckoutStateCheckingIdentity, CheckoutStateSubmittingOrder},
	CheckoutStateCheckingIdentity:    {CheckoutStateAwaitingPassword, CheckoutStateAwaitingOtp, CheckoutStateCollectingInfo},
	CheckoutStateAwaitingPassword:    {CheckoutStateSubmittingOrder, CheckoutStateCollectingInfo},
	CheckoutStateAwaitingOtp:         {CheckoutStateAwaitingNewPassword, CheckoutStateCollectingInfo},
	CheckoutStateAwaitingNewPassword: {CheckoutStateSubmittingOrder, CheckoutStateCollectingInfo},
	CheckoutStateSubmittingOrder:     {CheckoutStateSucceeded, CheckoutStateFailed},
	CheckoutStateFailed:              {CheckoutStateCollectingInfo},
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, allowed := range checkoutTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSucceeded
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

type ShippingInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
}

// CheckoutSession lives from the moment checkout is opened until the
// order succeeds or the buyer abandons the flow. The snapshot is
// captured when the shipping form is submitted so that identity
// transitions during resolution cannot change what is being bought.
type CheckoutSession struct {
	ID            string         `json:"id"`
	State         CheckoutState  `json:"state"`
	Email         string         `json:"email"`
	Shipping      ShippingInfo   `json:"shipping"`
	PaymentMethod string         `json:"payment_method"`
	Snapshot      CartSnapshot   `json:"snapshot"`
	Coupon        *AppliedCoupon `json:"coupon,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
