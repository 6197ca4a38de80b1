package engine

import (
	"errors"
	"fmt"
)

// SequencingError represents a sequencing exception: a navigation request
// that cannot be honored given the current tracking state.
//
// Exceptions are expected outcomes, not failures. They are returned as
// values so callers can branch on the code, and the session guarantees that
// no tracking state changed on an exception path.
//
// Codes follow the IMS Simple Sequencing exception numbering and form a
// closed set; the constants below are the complete vocabulary. The literal
// code strings are part of the wire contract and must never be renamed.
type SequencingError struct {
	// Code identifies the exception.
	Code Code

	// Activity is the activity the exception concerns, when one applies.
	Activity string

	// Message is a human-readable description.
	Message string
}

// Code identifies a sequencing exception. The first segment names the
// process family that raised it: NB for navigation request processing,
// SB for sequencing request processing, TB for termination request
// processing, DB for delivery request processing.
type Code string

const (
	// ErrCodeNavSessionStarted rejects start/resumeAll while an activity is current.
	ErrCodeNavSessionStarted Code = "NB.2.1-1"

	// ErrCodeNavSessionNotStarted rejects requests that need a current activity.
	ErrCodeNavSessionNotStarted Code = "NB.2.1-2"

	// ErrCodeNavNothingSuspended rejects resumeAll without a suspended activity.
	ErrCodeNavNothingSuspended Code = "NB.2.1-3"

	// ErrCodeNavFlowNotEnabled rejects continue in a cluster without flow.
	ErrCodeNavFlowNotEnabled Code = "NB.2.1-4"

	// ErrCodeNavBackwardBlocked rejects previous in a cluster without flow or
	// with forward-only traversal.
	ErrCodeNavBackwardBlocked Code = "NB.2.1-5"

	// ErrCodeNavUnsupported rejects a request outside the navigation vocabulary.
	ErrCodeNavUnsupported Code = "NB.2.1-7"

	// ErrCodeNavUnknownTarget rejects choice/jump targets not present in the tree.
	ErrCodeNavUnknownTarget Code = "NB.2.1-8"

	// ErrCodeNavNotActive rejects exit/abandon when the current attempt is not open.
	ErrCodeNavNotActive Code = "NB.2.1-11"

	// ErrCodeNavFlowExhausted signals that continue found nothing further to deliver.
	ErrCodeNavFlowExhausted Code = "NB.2.1-12"

	// ErrCodeSeqStartBlocked signals that start identified no deliverable activity.
	ErrCodeSeqStartBlocked Code = "SB.2.1-1"

	// ErrCodeSeqResumeInvalid signals that the suspended activity is missing or
	// no longer deliverable.
	ErrCodeSeqResumeInvalid Code = "SB.2.2-1"

	// ErrCodeSeqChoiceUnavailable signals a choice target that is disabled or
	// outside its limit conditions.
	ErrCodeSeqChoiceUnavailable Code = "SB.2.4-1"

	// ErrCodeSeqChoiceHidden signals a choice target hidden from choice.
	ErrCodeSeqChoiceHidden Code = "SB.2.4-2"

	// ErrCodeSeqChoiceNotEnabled signals a cluster on the target path that
	// does not permit choice.
	ErrCodeSeqChoiceNotEnabled Code = "SB.2.4-3"

	// ErrCodeSeqChoiceExitBlocked signals a constrained activity barring
	// choice away from the current subtree.
	ErrCodeSeqChoiceExitBlocked Code = "SB.2.4-4"

	// ErrCodeSeqChoiceEmpty signals a chosen cluster with nothing deliverable.
	ErrCodeSeqChoiceEmpty Code = "SB.2.4-5"

	// ErrCodeSeqPreviousExhausted signals that previous found nothing earlier
	// to deliver.
	ErrCodeSeqPreviousExhausted Code = "SB.2.8-1"

	// ErrCodeSeqPreviousBlocked signals a forward-only cluster on the
	// backward traversal path.
	ErrCodeSeqPreviousBlocked Code = "SB.2.8-2"

	// ErrCodeSeqRetryNotEnded rejects retry while the attempt is open or suspended.
	ErrCodeSeqRetryNotEnded Code = "SB.2.10-1"

	// ErrCodeSeqRetryBlocked rejects retry barred by rules or limit conditions.
	ErrCodeSeqRetryBlocked Code = "SB.2.10-2"

	// ErrCodeSeqRetryEmpty signals a retried cluster with nothing deliverable.
	ErrCodeSeqRetryEmpty Code = "SB.2.10-3"

	// ErrCodeSeqJumpUnavailable signals a jump target that is not available.
	ErrCodeSeqJumpUnavailable Code = "SB.2.13-1"

	// ErrCodeSeqJumpEmpty signals a jump target cluster with nothing deliverable.
	ErrCodeSeqJumpEmpty Code = "SB.2.13-2"

	// ErrCodeTermNothingToEnd rejects termination without a current activity.
	ErrCodeTermNothingToEnd Code = "TB.2.1-1"

	// ErrCodeTermUnsupported rejects a request outside the termination vocabulary.
	ErrCodeTermUnsupported Code = "TB.2.3-1"

	// ErrCodeTermAbandonInactive rejects abandon on an attempt that already ended.
	ErrCodeTermAbandonInactive Code = "TB.2.3-2"

	// ErrCodeTermNothingToAbandon rejects abandonAll with no open attempts.
	ErrCodeTermNothingToAbandon Code = "TB.2.3-3"

	// ErrCodeTermNothingToSuspend rejects suspendAll with nothing to suspend.
	ErrCodeTermNothingToSuspend Code = "TB.2.3-4"

	// ErrCodeDeliveryNotLeaf rejects delivery of a cluster or a leaf without
	// a content resource.
	ErrCodeDeliveryNotLeaf Code = "DB.1.1-1"

	// ErrCodeDeliveryBlocked rejects delivery of an activity disabled on its path.
	ErrCodeDeliveryBlocked Code = "DB.1.1-2"

	// ErrCodeDeliveryLimited rejects delivery violating limit conditions on the path.
	ErrCodeDeliveryLimited Code = "DB.1.1-3"

	// ErrCodeDeliveryUnknown rejects delivery of an activity outside the tree.
	ErrCodeDeliveryUnknown Code = "DB.2-1"
)

// Family returns the process family segment of the code ("NB", "SB", "TB"
// or "DB").
func (c Code) Family() string {
	for i := 0; i < len(c); i++ {
		if c[i] == '.' {
			return string(c[:i])
		}
	}
	return string(c)
}

// Error implements the error interface.
func (e *SequencingError) Error() string {
	if e.Activity != "" {
		return fmt.Sprintf("%s: %s (activity=%s)", e.Code, e.Message, e.Activity)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsException returns true if the error is a sequencing exception.
// Uses errors.As to handle wrapped errors.
func IsException(err error) bool {
	var se *SequencingError
	return errors.As(err, &se)
}

// CodeOf extracts the exception code from an error.
// Returns false if the error is not a sequencing exception.
func CodeOf(err error) (Code, bool) {
	var se *SequencingError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}

// exception creates a SequencingError for the given code and activity.
func exception(code Code, activityID, format string, args ...any) *SequencingError {
	return &SequencingError{
		Code:     code,
		Activity: activityID,
		Message:  fmt.Sprintf(format, args...),
	}
}
