package engine

import (
	"context"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
)

// Value is a debuggee value as the host represents it.
type Value any

// Snapshot describes the suspended thread and its selected frame.
type Snapshot struct {
	Suspended           bool // process and thread
	AllThreadsSuspended bool
	TopFrameSelected    bool
	FrameCount          int

	Class       string // internal name of the declaring class
	Method      classfile.MethodID
	Line        int   // current class file line, -1 when unknown
	Lines       []int // class file lines of the method
	Constructor bool
	ParamSlots  int

	Recursive   bool // the method appears again lower on some stack
	CanEvaluate bool // the host can evaluate code in the frame

	Translator lines.Translator // nil = identity
}

// Frame is the top frame at a trigger.
type Frame interface {
	SetLocal(name string, v Value) error
}

// Trigger runs once when execution reaches its location.
type Trigger func(ctx context.Context, f Frame) error

// Process is the process-control collaborator. Methods may block; they
// receive a context bounded by the engine's timeouts.
type Process interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	// ClassBytes returns the class file of an internal class name.
	ClassBytes(ctx context.Context, class string) ([]byte, error)

	// Locals reads the named locals of the top frame. Locals that are not
	// visible are omitted.
	Locals(ctx context.Context, names []string) (map[string]Value, error)
	SuspendBreakpoints(ctx context.Context) error
	ResumeBreakpoints(ctx context.Context) error
	PopFrame(ctx context.Context) error
	Redefine(ctx context.Context, class string, data []byte) error
	// Arm installs a single-fire trigger at a code offset of method.
	Arm(ctx context.Context, class string, method classfile.MethodID, offset int, t Trigger) error
	// RunToLine resumes until the re-entered method reaches line.
	RunToLine(ctx context.Context, line int) error
	Resume(ctx context.Context) error
}
