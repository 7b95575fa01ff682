package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	legal := []struct {
		from, to CheckoutState
	}{
		{CheckoutStateCollectingInfo, CheckoutStateCheckingIdentity},
		{CheckoutStateCollectingInfo, CheckoutStateSubmittingOrder},
		{CheckoutStateCheckingIdentity, CheckoutStateAwaitingPassword},
		{CheckoutStateCheckingIdentity, CheckoutStateAwaitingOtp},
		{CheckoutStateCheckingIdentity, CheckoutStateCollectingInfo},
		{CheckoutStateAwaitingPassword, CheckoutStateSubmittingOrder},
		{CheckoutStateAwaitingPassword, CheckoutStateCollectingInfo},
		{CheckoutStateAwaitingOtp, CheckoutStateAwaitingNewPassword},
		{CheckoutStateAwaitingOtp, CheckoutStateCollectingInfo},
		{CheckoutStateAwaitingNewPassword, CheckoutStateSubmittingOrder},
		{CheckoutStateAwaitingNewPassword, CheckoutStateCollectingInfo},
		{CheckoutStateSubmittingOrder, CheckoutStateSucceeded},
		{CheckoutStateSubmittingOrder, CheckoutStateFailed},
		{CheckoutStateFailed, CheckoutStateCollectingInfo},
	}
	for _, tc := range legal {
		assert.True(t, CanTransitionTo(tc.from, tc.to), "%v -> %v should be legal", tc.from, tc.to)
	}

	illegal := []struct {
		from, to CheckoutState
	}{
		{CheckoutStateCollectingInfo, CheckoutStateAwaitingPassword},
		{CheckoutStateCollectingInfo, CheckoutStateSucceeded},
		{CheckoutStateAwaitingOtp, CheckoutStateSubmittingOrder},
		{CheckoutStateAwaitingPassword, CheckoutStateAwaitingOtp},
		{CheckoutStateSubmittingOrder, CheckoutStateCollectingInfo},
		{CheckoutStateSucceeded, CheckoutStateCollectingInfo},
		{CheckoutStateSucceeded, CheckoutStateSubmittingOrder},
		{CheckoutStateFailed, CheckoutStateSubmittingOrder},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransitionTo(tc.from, tc.to), "%v -> %v should be illegal", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, CheckoutStateSucceeded.IsTerminal())

	for _, s := range []CheckoutState{
		CheckoutStateCollectingInfo,
		CheckoutStateCheckingIdentity,
		CheckoutStateAwaitingPassword,
		CheckoutStateAwaitingOtp,
		CheckoutStateAwaitingNewPassword,
		CheckoutStateSubmittingOrder,
		CheckoutStateFailed,
	} {
		assert.False(t, s.IsTerminal(), "%v is not terminal", s)
	}
}
