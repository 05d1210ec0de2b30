package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/igoriakovlev/JumpToLine/internal/analysis"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/supertype"
	"github.com/igoriakovlev/JumpToLine/internal/transform"
)

// Kind classifies a failure.
type Kind string

const (
	NotSuspended             Kind = "not-suspended"
	WrongThreadState         Kind = "wrong-thread-state"
	Unsupported              Kind = "unsupported"
	InProgress               Kind = "in-progress"
	NoTarget                 Kind = "no-target"
	NeedsConfirmation        Kind = "needs-confirmation"
	AmbiguousOrMissingMethod Kind = "ambiguous-or-missing-method"
	UnresolvableType         Kind = "unresolvable-type"
	ClassBytesUnavailable    Kind = "class-bytes-unavailable"
	Timeout                  Kind = "timeout"
	Canceled                 Kind = "canceled"
	Unexpected               Kind = "unexpected"
)

// User-facing reasons.
const (
	ReasonNotSuspended    = "Process is not suspended"
	ReasonTopFrame        = "Jump to line is available for top frame only"
	ReasonMainFunction    = "Jump to line is not available for the main function"
	ReasonCoroutine       = "Jump to line is not available for Kotlin coroutine"
	ReasonNoDebugInfo     = "Jump to line is not available for methods without debug information"
	ReasonThreads         = "Jump to line is available only when all the threads are suspended"
	ReasonAvailable       = "Drag and drop the arrow to set an execution point"
	ReasonInProgress      = "Lines are still being analyzed"
	ReasonNoTarget        = "Cannot jump to the selected line"
	ReasonUnsafe          = "This jump could be potentially unsafe"
	ReasonDefaults        = "Some local variables were initialized to default values."
	ReasonUnexpected      = "Unexpected jump error"
	ReasonTimeout         = "Jump to line timed out"
	ReasonCanceled        = "Jump to line was canceled"
	ReasonNoClass         = "Cannot get class file"
	ReasonMethod          = "Cannot locate the method in the class file"
	ReasonUnresolvable    = "Cannot resolve the types used by the method"
	ReasonRedefineAborted = "Failed to redefine class"
)

// Failure is a rejected or failed operation. Reason is always set.
type Failure struct {
	Kind   Kind
	Reason string
	Step   string // apply step that failed, if any
	Err    error
}

func (f *Failure) Error() string {
	msg := f.Reason
	if f.Step != "" {
		msg += " (" + f.Step + ")"
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(kind Kind, reason string, err error) *Failure {
	return &Failure{Kind: kind, Reason: reason, Err: err}
}

// classify maps a pipeline or collaborator error onto a failure.
func classify(err error) *Failure {
	var f *Failure
	var re *supertype.ResolveError
	switch {
	case errors.As(err, &f):
		return f
	case errors.Is(err, context.DeadlineExceeded):
		return fail(Timeout, ReasonTimeout, err)
	case errors.Is(err, context.Canceled):
		return fail(Canceled, ReasonCanceled, err)
	case errors.Is(err, classfile.ErrMethodNotFound), errors.Is(err, classfile.ErrMethodAmbiguous):
		return fail(AmbiguousOrMissingMethod, ReasonMethod, err)
	case errors.As(err, &re):
		return fail(UnresolvableType, fmt.Sprintf("%s: %s and %s", ReasonUnresolvable, re.A, re.B), err)
	case errors.Is(err, transform.ErrMarkNotPlaced), errors.Is(err, transform.ErrFrameMismatch):
		return fail(Unexpected, ReasonRedefineAborted, err)
	case errors.Is(err, analysis.ErrNoLines):
		return fail(Unsupported, ReasonNoDebugInfo, err)
	}
	return fail(Unexpected, ReasonUnexpected, err)
}

var coroutineDesc = regexp.MustCompile(`^\(Lkotlin/coroutines/Continuation;.*?\)Ljava/lang/Object;$`)

// isCoroutine reports whether a method is a compiled suspend function or
// coroutine state machine.
func isCoroutine(id classfile.MethodID) bool {
	if coroutineDesc.MatchString(id.Descriptor) {
		return true
	}
	return id.Name == "invokeSuspend" && id.Descriptor == "(Ljava/lang/Object;)Ljava/lang/Object;"
}

// Check returns nil when a jump may be attempted from snap.
func Check(snap *Snapshot) *Failure {
	switch {
	case !snap.Suspended:
		return fail(NotSuspended, ReasonNotSuspended, nil)
	case !snap.TopFrameSelected:
		return fail(WrongThreadState, ReasonTopFrame, nil)
	case !snap.AllThreadsSuspended:
		return fail(WrongThreadState, ReasonThreads, nil)
	case snap.FrameCount < 2:
		return fail(WrongThreadState, ReasonMainFunction, nil)
	case isCoroutine(snap.Method):
		return fail(Unsupported, ReasonCoroutine, nil)
	case snap.Line < 0 || len(snap.Lines) == 0:
		return fail(Unsupported, ReasonNoDebugInfo, nil)
	}
	return nil
}
