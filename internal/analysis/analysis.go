// Package analysis runs the per-method pipeline: decode, infer frames, find
// line targets and classify the locals at each one.
package analysis

import (
	"errors"
	"fmt"
	"slices"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/frame"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
)

// ErrNoLines is returned for a method without a line number table.
var ErrNoLines = errors.New("analysis: method has no line information")

// Options configures Analyze.
type Options struct {
	JumpFromLine     int
	IncludeFirstLine bool
	Translator       lines.Translator // nil = identity
	Merger           frame.Merger     // nil = merge references to java/lang/Object
	MaxSteps         int              // 0 = frame.DefaultMaxSteps
}

// Method is a decoded method ready for analysis.
type Method struct {
	Class  *classfile.Class
	Method *classfile.Method
	Stream *bytecode.Stream
}

// Load parses class bytes and decodes the method identified by id.
func Load(class []byte, id classfile.MethodID) (*Method, error) {
	c, err := classfile.Parse(class)
	if err != nil {
		return nil, err
	}
	m, err := c.LoadMethod(id)
	if err != nil {
		return nil, err
	}
	s, err := bytecode.Load(m)
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", id, err)
	}
	return &Method{Class: c, Method: m, Stream: s}, nil
}

// FirstLine returns the lowest line of the method.
func (m *Method) FirstLine() (int, bool) {
	return FirstLine(m.Method)
}

// FirstLine returns the lowest line in the method's line number table.
func FirstLine(m *classfile.Method) (int, bool) {
	if len(m.Lines) == 0 {
		return 0, false
	}
	low := int(m.Lines[0].Line)
	for _, l := range m.Lines[1:] {
		low = min(low, int(l.Line))
	}
	return low, true
}

// Lines returns the distinct lines of the method, ascending.
func (m *Method) Lines() []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range m.Stream.Elements {
		if e.Kind == bytecode.ElemLine && !seen[e.Line] {
			seen[e.Line] = true
			out = append(out, e.Line)
		}
	}
	slices.Sort(out)
	return out
}

// Result is the analysis of one method.
type Result struct {
	Method   classfile.MethodID
	Owner    string
	Frames   *frame.Result
	Lines    *lines.Result
	Liveness *liveness.Result
}

// Targets returns the analyzed targets.
func (r *Result) Targets() []liveness.Target { return r.Liveness.Targets }

// Analyze runs the pipeline on m.
func (m *Method) Analyze(opts Options) (*Result, error) {
	if len(m.Method.Lines) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoLines, m.Method.ID())
	}
	fr, err := frame.Analyze(m.Method, m.Stream, opts.Merger, frame.Options{MaxSteps: opts.MaxSteps})
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", m.Method.ID(), err)
	}
	lr, err := lines.Analyze(m.Stream, opts.JumpFromLine, opts.IncludeFirstLine, opts.Translator)
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", m.Method.ID(), err)
	}
	lv, err := liveness.Analyze(m.Method, m.Stream, fr, lr)
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", m.Method.ID(), err)
	}
	return &Result{Method: m.Method.ID(), Owner: m.Method.Owner(), Frames: fr, Lines: lr, Liveness: lv}, nil
}

// Analyze loads the method identified by id from class and analyzes it.
func Analyze(class []byte, id classfile.MethodID, opts Options) (*Result, error) {
	m, err := Load(class, id)
	if err != nil {
		return nil, err
	}
	return m.Analyze(opts)
}
