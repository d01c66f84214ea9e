package community

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by Service wraps exactly one of these,
// so callers classify with errors.Is.
var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrInvalidInput       = errors.New("invalid input")
)

// Specific failures, each wrapping its kind.
var (
	ErrSlugTaken          = fmt.Errorf("%w: slug already taken", ErrConflict)
	ErrAlreadyRequested   = fmt.Errorf("%w: membership already requested", ErrConflict)
	ErrAlreadyMember      = fmt.Errorf("%w: already a member", ErrConflict)
	ErrMembershipRejected = fmt.Errorf("%w: membership request was rejected", ErrConflict)
	ErrAlreadyDecided     = fmt.Errorf("%w: membership request already decided", ErrConflict)

	ErrNotOwner           = fmt.Errorf("%w: only the community owner may do this", ErrForbidden)
	ErrCommunityIsPublic  = fmt.Errorf("%w: community is public, join it directly", ErrForbidden)
	ErrCommunityIsPrivate = fmt.Errorf("%w: community is private, request membership instead", ErrForbidden)
	ErrOwnerMembership    = fmt.Errorf("%w: the owner's membership cannot be changed", ErrForbidden)
	ErrOwnerCannotLeave   = fmt.Errorf("%w: the owner cannot leave their own community", ErrForbidden)
	ErrMembersOnly        = fmt.Errorf("%w: community content is visible to members only", ErrForbidden)

	ErrCommunityNotFound  = fmt.Errorf("%w: community", ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("%w: membership", ErrNotFound)
)

// Kind names the failure kind of err for logs and transport mapping.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	}
	return "backend_unavailable"
}

// backend wraps an unexpected store failure.
func backend(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
