package escrow

import "errors"

// Business-rule failures are sentinel errors so callers can map each kind
// to a stable response with errors.Is. Store and downstream failures are
// wrapped with %w instead and surface as internal errors; the engine never
// retries them implicitly.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("trade not found")

	// ErrInvalidStateTransition indicates the trade is not in the required
	// source state for the requested transition. No mutation is performed.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNotClaimable indicates the trade is not in a claimable state.
	ErrNotClaimable = errors.New("trade is not claimable")

	// ErrNotJoinable indicates the trade is no longer open for joining.
	ErrNotJoinable = errors.New("trade is not open for joining")

	// ErrPaymentRequired indicates the trade has no eligible payment and
	// therefore must not consume middleman attention.
	ErrPaymentRequired = errors.New("trade has no eligible payment")

	// ErrAlreadyAssignedToOther indicates another middleman owns the trade;
	// a concurrent claim lost the race. Distinguishable from not-found and
	// eligibility failures so the caller can move on to another trade.
	ErrAlreadyAssignedToOther = errors.New("trade already assigned to another middleman")

	// ErrAlreadyAssignedToSelf indicates a duplicate claim by the owning
	// middleman. Reported as a client error, not silently accepted.
	ErrAlreadyAssignedToSelf = errors.New("trade already assigned to this middleman")

	// ErrAlreadyJoined indicates the user is already a participant.
	ErrAlreadyJoined = errors.New("user already joined this trade")

	// ErrSelfJoinForbidden indicates the creator tried to join their own trade.
	ErrSelfJoinForbidden = errors.New("creator cannot join own trade")

	// ErrUnauthorized indicates a failed credential or ownership check.
	ErrUnauthorized = errors.New("not authorized for this trade")

	// ErrInvalidInput indicates malformed input to an engine operation,
	// wrapped with a user-facing message.
	ErrInvalidInput = errors.New("invalid input")
)
