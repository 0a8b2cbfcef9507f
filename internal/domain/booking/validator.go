package booking

import (
	"fmt"
	"strings"

	"github.com/rigshare/service-booking/pkg/domain"
)

// TransitionContext carries the precondition facts asserted by the caller.
type TransitionContext struct {
	IsPaymentComplete    bool
	IsInspectionComplete bool
}

// ValidationResult is the outcome of Validate. Transition is set only when Valid.
type ValidationResult struct {
	Valid      bool
	Transition *Transition
	Kind       domain.ErrorKind
	Error      string
}

// Err converts an invalid result into an *domain.AppError, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &domain.AppError{Kind: r.Kind, Message: r.Error}
}

func invalid(kind domain.ErrorKind, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Kind: kind, Error: fmt.Sprintf(format, args...)}
}

// Validate checks a requested transition. The first failing check wins:
// graph edge, actor permission, payment, inspection.
func Validate(from, to BookingStatus, actor ActorRole, tc TransitionContext) ValidationResult {
	t, ok := LookupTransition(from, to)
	if !ok {
		return invalid(domain.KindInvalidTransition,
			"invalid transition from %s to %s; valid next states: %s",
			from, to, joinStatuses(ValidNextStates(from)))
	}

	if !t.Allows(actor) {
		return invalid(domain.KindUnauthorizedActor,
			"actor %s is not allowed to transition booking from %s to %s; allowed actors: %s",
			actor, from, to, joinActors(t.AllowedActors))
	}

	if t.RequiresPayment && !tc.IsPaymentComplete {
		return invalid(domain.KindPreconditionNotMet,
			"payment must be completed before moving booking from %s to %s", from, to)
	}

	if t.RequiresInspection && !tc.IsInspectionComplete {
		return invalid(domain.KindPreconditionNotMet,
			"return inspection must be completed before moving booking from %s to %s", from, to)
	}

	return ValidationResult{Valid: true, Transition: &t}
}

func joinStatuses(ss []BookingStatus) string {
	if len(ss) == 0 {
		return "none"
	}
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func joinActors(as []ActorRole) string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}
