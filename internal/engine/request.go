package engine

import (
	"fmt"
	"strings"
)

// NavigationRequestType enumerates the external navigation vocabulary.
// Navigation requests are what a player or API caller submits; the session
// translates them into termination and sequencing work internally.
type NavigationRequestType int

const (
	NavStart NavigationRequestType = iota
	NavResumeAll
	NavContinue
	NavPrevious
	NavChoice
	NavJump
	NavExit
	NavExitAll
	NavSuspendAll
	NavAbandon
	NavAbandonAll
)

// String returns the wire token for the request type.
func (t NavigationRequestType) String() string {
	switch t {
	case NavStart:
		return "start"
	case NavResumeAll:
		return "resumeAll"
	case NavContinue:
		return "continue"
	case NavPrevious:
		return "previous"
	case NavChoice:
		return "choice"
	case NavJump:
		return "jump"
	case NavExit:
		return "exit"
	case NavExitAll:
		return "exitAll"
	case NavSuspendAll:
		return "suspendAll"
	case NavAbandon:
		return "abandon"
	case NavAbandonAll:
		return "abandonAll"
	}
	return fmt.Sprintf("navigation(%d)", int(t))
}

// NavigationRequest is a single navigation request. Target is required for
// choice and jump and must be empty otherwise.
type NavigationRequest struct {
	Type   NavigationRequestType
	Target string
}

// String returns the wire form of the request, "choice:target" for targeted
// requests and the bare token otherwise.
func (r NavigationRequest) String() string {
	if r.Target != "" {
		return r.Type.String() + ":" + r.Target
	}
	return r.Type.String()
}

// ParseNavigationRequest parses the wire form of a navigation request.
// Targeted requests carry the target after a colon, e.g. "choice:lesson-02".
func ParseNavigationRequest(s string) (NavigationRequest, error) {
	token, target, targeted := strings.Cut(s, ":")
	var req NavigationRequest
	switch token {
	case "start":
		req.Type = NavStart
	case "resumeAll":
		req.Type = NavResumeAll
	case "continue":
		req.Type = NavContinue
	case "previous":
		req.Type = NavPrevious
	case "choice":
		req.Type = NavChoice
	case "jump":
		req.Type = NavJump
	case "exit":
		req.Type = NavExit
	case "exitAll":
		req.Type = NavExitAll
	case "suspendAll":
		req.Type = NavSuspendAll
	case "abandon":
		req.Type = NavAbandon
	case "abandonAll":
		req.Type = NavAbandonAll
	default:
		return NavigationRequest{}, fmt.Errorf("unknown navigation request %q", token)
	}
	if targeted {
		if target == "" {
			return NavigationRequest{}, fmt.Errorf("navigation request %q has an empty target", token)
		}
		req.Target = target
	}
	switch req.Type {
	case NavChoice, NavJump:
		if req.Target == "" {
			return NavigationRequest{}, fmt.Errorf("navigation request %q requires a target", token)
		}
	default:
		if req.Target != "" {
			return NavigationRequest{}, fmt.Errorf("navigation request %q does not take a target", token)
		}
	}
	return req, nil
}

// sequencingRequestType enumerates the internal sequencing vocabulary.
// Retry and retryAll have no external counterpart; they originate from
// post-condition rules.
type sequencingRequestType int

const (
	seqNone sequencingRequestType = iota
	seqStart
	seqResumeAll
	seqContinue
	seqPrevious
	seqChoice
	seqJump
	seqRetry
	seqRetryAll
	seqExit
)

func (t sequencingRequestType) String() string {
	switch t {
	case seqNone:
		return "none"
	case seqStart:
		return "start"
	case seqResumeAll:
		return "resumeAll"
	case seqContinue:
		return "continue"
	case seqPrevious:
		return "previous"
	case seqChoice:
		return "choice"
	case seqJump:
		return "jump"
	case seqRetry:
		return "retry"
	case seqRetryAll:
		return "retryAll"
	case seqExit:
		return "exit"
	}
	return fmt.Sprintf("sequencing(%d)", int(t))
}

// sequencingRequest pairs a sequencing request type with its target. Target
// is set for choice, jump and retry; retry carries the activity whose new
// attempt is being requested.
type sequencingRequest struct {
	typ    sequencingRequestType
	target string
}

// terminationRequestType enumerates the internal termination vocabulary.
type terminationRequestType int

const (
	termExit terminationRequestType = iota
	termExitAll
	termSuspendAll
	termAbandon
	termAbandonAll
)

func (t terminationRequestType) String() string {
	switch t {
	case termExit:
		return "exit"
	case termExitAll:
		return "exitAll"
	case termSuspendAll:
		return "suspendAll"
	case termAbandon:
		return "abandon"
	case termAbandonAll:
		return "abandonAll"
	}
	return fmt.Sprintf("termination(%d)", int(t))
}
