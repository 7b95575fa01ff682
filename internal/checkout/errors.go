package checkout

import "errors"

var (
	ErrInvalidInput       = errors.New("checkout: invalid input")
	ErrWrongState         = errors.New("checkout: operation not allowed in current state")
	ErrCooldownActive     = errors.New("checkout: resend cooldown has not elapsed")
	ErrSubmissionInFlight = errors.New("checkout: a request for this session is already in flight")
)
