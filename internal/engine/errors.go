package engine

import (
	"errors"
	"strings"
)

// Kind classifies engine failures. Callers branch on the kind; the HTTP
// layer uses it as the error code.
type Kind string

const (
	KindUnauthorized             Kind = "unauthorized"
	KindInvalidProject           Kind = "invalid_project"
	KindInvalidActivity          Kind = "invalid_activity"
	KindInvalidType              Kind = "invalid_type"
	KindInvalidArgument          Kind = "invalid_argument"
	KindNotVerified              Kind = "not_verified"
	KindAlreadyAccepted          Kind = "already_accepted"
	KindAlreadyDistributed       Kind = "already_distributed"
	KindRewardAlreadyDistributed Kind = "reward_already_distributed"
	KindAlreadyStarted           Kind = "already_started"
	KindAlreadyVerified          Kind = "already_verified"
	KindVerificationNotReady     Kind = "verification_not_ready"
	KindVerificationFailed       Kind = "verification_failed"
	KindNoAcceptedAuthors        Kind = "no_accepted_authors"
	KindTransferFailed           Kind = "transfer_failed"
)

var messages = map[Kind]string{
	KindUnauthorized:             "caller is not allowed to perform this operation",
	KindInvalidProject:           "project does not exist",
	KindInvalidActivity:          "activity does not exist",
	KindInvalidType:              "activity type has no registered verifier",
	KindInvalidArgument:          "invalid argument",
	KindNotVerified:              "completed activity is not verified",
	KindAlreadyAccepted:          "completed activity already accepted",
	KindAlreadyDistributed:       "reward already distributed",
	KindRewardAlreadyDistributed: "project reward already distributed; acceptance is closed",
	KindAlreadyStarted:           "verification already started",
	KindAlreadyVerified:          "verification already finished",
	KindVerificationNotReady:     "verification is not ready",
	KindVerificationFailed:       "verification check failed",
	KindNoAcceptedAuthors:        "project has no accepted authors",
	KindTransferFailed:           "reward transfer failed",
}

// Error is returned by every engine operation that fails for a reason the
// caller can act on. Details carries the offending identifiers.
type Error struct {
	Kind    Kind
	Op      string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Message is the error text without the operation prefix.
func (e *Error) Message() string {
	if msg, ok := messages[e.Kind]; ok {
		return msg
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) ErrorKind() string { return string(e.Kind) }

var (
	ErrUnauthorized             = &Error{Kind: KindUnauthorized}
	ErrInvalidProject           = &Error{Kind: KindInvalidProject}
	ErrInvalidActivity          = &Error{Kind: KindInvalidActivity}
	ErrInvalidType              = &Error{Kind: KindInvalidType}
	ErrInvalidArgument          = &Error{Kind: KindInvalidArgument}
	ErrNotVerified              = &Error{Kind: KindNotVerified}
	ErrAlreadyAccepted          = &Error{Kind: KindAlreadyAccepted}
	ErrAlreadyDistributed       = &Error{Kind: KindAlreadyDistributed}
	ErrRewardAlreadyDistributed = &Error{Kind: KindRewardAlreadyDistributed}
	ErrAlreadyStarted           = &Error{Kind: KindAlreadyStarted}
	ErrAlreadyVerified          = &Error{Kind: KindAlreadyVerified}
	ErrVerificationNotReady     = &Error{Kind: KindVerificationNotReady}
	ErrVerificationFailed       = &Error{Kind: KindVerificationFailed}
	ErrNoAcceptedAuthors        = &Error{Kind: KindNoAcceptedAuthors}
	ErrTransferFailed           = &Error{Kind: KindTransferFailed}
)

func newError(kind Kind, op string, details map[string]any, cause error) *Error {
	return &Error{Kind: kind, Op: op, Details: details, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
