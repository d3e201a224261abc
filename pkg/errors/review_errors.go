package errors

import (
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Error reasons for the review governance core. Every expected failure is
// surfaced to the caller as a typed Kratos error with one of these reasons;
// only storage unavailability is treated as fatal.
const (
	ReasonNotFound           = "REVIEW_NOT_FOUND"
	ReasonInvalidState       = "INVALID_STATE"
	ReasonAlreadyClaimed     = "ALREADY_CLAIMED"
	ReasonInsufficientRole   = "INSUFFICIENT_ROLE"
	ReasonOutOfBounds        = "OUT_OF_BOUNDS"
	ReasonForbiddenAction    = "FORBIDDEN_ACTION"
	ReasonNotYetEligible     = "NOT_YET_ELIGIBLE"
	ReasonAlreadyEvaluated   = "ALREADY_EVALUATED"
	ReasonStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// NewNotFoundError reports an unknown event or decision identifier.
func NewNotFoundError(kind, id string) error {
	return kerrors.New(404, ReasonNotFound, fmt.Sprintf("%s %s not found", kind, id))
}

// NewInvalidStateError reports an operation that is illegal in the event's
// current state machine position.
func NewInvalidStateError(eventID, status, op string) error {
	return kerrors.New(409, ReasonInvalidState,
		fmt.Sprintf("operation %s not allowed on event %s in status %s", op, eventID, status))
}

// NewAlreadyClaimedError reports a lost claim race.
func NewAlreadyClaimedError(eventID, holder string) error {
	return kerrors.New(409, ReasonAlreadyClaimed,
		fmt.Sprintf("event %s is already claimed by %s", eventID, holder))
}

// NewInsufficientRoleError reports an action outside the caller's permitted set.
func NewInsufficientRoleError(role, action string) error {
	return kerrors.New(403, ReasonInsufficientRole,
		fmt.Sprintf("role %s may not perform action %s", role, action))
}

// NewOutOfBoundsError reports a numeric bound violation.
func NewOutOfBoundsError(format string, args ...interface{}) error {
	return kerrors.New(400, ReasonOutOfBounds, fmt.Sprintf(format, args...))
}

// NewForbiddenActionError reports a hard-blocked action attempt.
func NewForbiddenActionError(action string) error {
	return kerrors.New(403, ReasonForbiddenAction,
		fmt.Sprintf("action %s is forbidden and was rejected", action))
}

// NewNotYetEligibleError reports an outcome submission before the
// observation window has elapsed.
func NewNotYetEligibleError(decisionID string, remaining string) error {
	return kerrors.New(425, ReasonNotYetEligible,
		fmt.Sprintf("decision %s is not yet eligible for evaluation, %s remaining", decisionID, remaining))
}

// NewAlreadyEvaluatedError reports a duplicate terminal verdict.
func NewAlreadyEvaluatedError(decisionID string) error {
	return kerrors.New(409, ReasonAlreadyEvaluated,
		fmt.Sprintf("decision %s already has a terminal outcome evaluation", decisionID))
}

// NewStorageUnavailableError wraps a fatal persistence failure. The caller
// must treat the system as unavailable, never report success.
func NewStorageUnavailableError(err error) error {
	return kerrors.New(503, ReasonStorageUnavailable,
		fmt.Sprintf("storage unavailable: %v", err))
}

// IsNotFound reports whether err carries the REVIEW_NOT_FOUND reason.
func IsNotFound(err error) bool {
	return kerrors.Reason(err) == ReasonNotFound
}

// IsInvalidState reports whether err carries the INVALID_STATE reason.
func IsInvalidState(err error) bool {
	return kerrors.Reason(err) == ReasonInvalidState
}

// IsAlreadyClaimed reports whether err carries the ALREADY_CLAIMED reason.
func IsAlreadyClaimed(err error) bool {
	return kerrors.Reason(err) == ReasonAlreadyClaimed
}

// IsInsufficientRole reports whether err carries the INSUFFICIENT_ROLE reason.
func IsInsufficientRole(err error) bool {
	return kerrors.Reason(err) == ReasonInsufficientRole
}

// IsOutOfBounds reports whether err carries the OUT_OF_BOUNDS reason.
func IsOutOfBounds(err error) bool {
	return kerrors.Reason(err) == ReasonOutOfBounds
}

// IsForbiddenAction reports whether err carries the FORBIDDEN_ACTION reason.
func IsForbiddenAction(err error) bool {
	return kerrors.Reason(err) == ReasonForbiddenAction
}

// IsNotYetEligible reports whether err carries the NOT_YET_ELIGIBLE reason.
func IsNotYetEligible(err error) bool {
	return kerrors.Reason(err) == ReasonNotYetEligible
}

// IsAlreadyEvaluated reports whether err carries the ALREADY_EVALUATED reason.
func IsAlreadyEvaluated(err error) bool {
	return kerrors.Reason(err) == ReasonAlreadyEvaluated
}

// IsStorageUnavailable reports whether err carries the STORAGE_UNAVAILABLE reason.
func IsStorageUnavailable(err error) bool {
	return kerrors.Reason(err) == ReasonStorageUnavailable
}
