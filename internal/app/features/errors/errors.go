// internal/app/features/errors/errors.go
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	"github.com/dalemusser/giftexchange/internal/app/system/auth"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Request-level categories. exchange.Classify never returns them; handlers
// raise them before any group operation runs.
const (
	CategoryMalformedRequest exchange.Category = "malformed_request"
	CategoryRateLimited      exchange.Category = "rate_limited"
)

type outcome struct {
	status  int
	message string
}

// outcomes holds the one status and one user message per category.
var outcomes = map[exchange.Category]outcome{
	exchange.CategoryNotFound:            {http.StatusNotFound, "We couldn't find a group with that code."},
	exchange.CategoryAlreadyMember:       {http.StatusConflict, "You're already in this group."},
	exchange.CategoryIncompleteResponses: {http.StatusUnprocessableEntity, "Please answer every question before joining."},
	exchange.CategoryForbidden:           {http.StatusForbidden, "Only the organizer can do that."},
	exchange.CategoryInsufficientMembers: {http.StatusConflict, "You need at least two members to draw names."},
	exchange.CategoryDrawInProgress:      {http.StatusConflict, "A draw is already running for this group."},
	exchange.CategoryValidation:          {http.StatusBadRequest, "Please check the highlighted field and try again."},
	exchange.CategoryStoreUnavailable:    {http.StatusServiceUnavailable, "Something went wrong on our side. Please try again."},
	exchange.CategoryAuthFailure:         {http.StatusUnauthorized, auth.FailureMessage},
	CategoryMalformedRequest:             {http.StatusBadRequest, "The request could not be read."},
	CategoryRateLimited:                  {http.StatusTooManyRequests, "Slow down a little and try again."},
}

// Status returns the HTTP status for c.
func Status(c exchange.Category) int {
	if o, ok := outcomes[c]; ok {
		return o.status
	}
	return http.StatusOK
}

// Message returns the user-facing message for c.
func Message(c exchange.Category) string {
	return outcomes[c].message
}

// BodyFor builds the response body for err. Internal detail never reaches
// the body; only the category, its message, and the field names the user
// has to fix.
func BodyFor(err error) Body {
	c := exchange.Classify(err)
	b := Body{Error: string(c), Message: Message(c)}

	var (
		incomplete *exchange.IncompleteResponsesError
		invalid    *exchange.ValidationError
	)
	switch {
	case stderrors.As(err, &incomplete):
		b.Missing = append([]string(nil), incomplete.Labels...)
	case stderrors.As(err, &invalid):
		b.Field = invalid.Field
	}
	return b
}
