// internal/app/exchange/errors.go
package exchange

import (
	"errors"
	"fmt"
	"strings"

	groupstore "github.com/dalemusser/giftexchange/internal/app/store/groups"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
)

var (
	// ErrNotFound means the code or id does not resolve to a group.
	ErrNotFound = errors.New("group not found")
	// ErrAlreadyMember means the user is already in member_ids.
	ErrAlreadyMember = errors.New("already a member")
	// ErrForbidden means a non-owner attempted an owner-only action, or a
	// non-member tried to view a group.
	ErrForbidden = errors.New("forbidden")
	// ErrInsufficientMembers means a draw was requested with fewer than two members.
	ErrInsufficientMembers = errors.New("a draw needs at least two members")
	// ErrDrawInProgress means another draw for the same group has not finished.
	ErrDrawInProgress = errors.New("a draw for this group is already running")
)

// IncompleteResponsesError lists the custom fields left blank at join time.
type IncompleteResponsesError struct {
	Labels []string
}

func (e *IncompleteResponsesError) Error() string {
	return "missing responses: " + strings.Join(e.Labels, ", ")
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// StoreError wraps a failure of the group store (StoreUnavailable).
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Category is the single user-facing class of an error. Its string value is
// used as the API error code and as the metrics outcome label.
type Category string

const (
	CategoryOK                  Category = "ok"
	CategoryNotFound            Category = "not_found"
	CategoryAlreadyMember       Category = "already_member"
	CategoryIncompleteResponses Category = "incomplete_responses"
	CategoryForbidden           Category = "forbidden"
	CategoryInsufficientMembers Category = "insufficient_members"
	CategoryDrawInProgress      Category = "draw_in_progress"
	CategoryValidation          Category = "validation_error"
	CategoryStoreUnavailable    Category = "store_unavailable"
	CategoryAuthFailure         Category = "auth_failure"
)

// Classify maps err to exactly one Category. Errors the core does not
// recognize are treated as store failures, since the store is the only
// external dependency of every operation.
func Classify(err error) Category {
	var (
		incomplete *IncompleteResponsesError
		invalid    *ValidationError
	)
	switch {
	case err == nil:
		return CategoryOK
	case errors.As(err, &incomplete):
		return CategoryIncompleteResponses
	case errors.As(err, &invalid):
		return CategoryValidation
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrAlreadyMember):
		return CategoryAlreadyMember
	case errors.Is(err, ErrForbidden):
		return CategoryForbidden
	case errors.Is(err, ErrInsufficientMembers):
		return CategoryInsufficientMembers
	case errors.Is(err, ErrDrawInProgress):
		return CategoryDrawInProgress
	case errors.Is(err, auth.ErrAuthFailure):
		return CategoryAuthFailure
	default:
		return CategoryStoreUnavailable
	}
}

// storeErr translates group store sentinels into core errors and wraps
// everything else as a StoreError.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, groupstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, groupstore.ErrAlreadyMember):
		return ErrAlreadyMember
	case errors.Is(err, groupstore.ErrNotOwner):
		return ErrForbidden
	default:
		return &StoreError{Op: op, Err: err}
	}
}
