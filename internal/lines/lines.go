// Package lines finds the candidate jump targets of a method: the distinct
// instruction indexes carrying line number markers.
package lines

import (
	"errors"
	"fmt"
	"slices"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
)

// ErrLineNotFound is returned when the jump-from line has no marker in the method.
var ErrLineNotFound = errors.New("lines: jump-from line not found in method")

// LineInfo pairs a line from the class file with the source line it maps to.
type LineInfo struct {
	BytecodeLine int `json:"bytecode_line" msgpack:"bytecode_line"`
	SourceLine   int `json:"source_line" msgpack:"source_line"`
}

// Target is one candidate jump target.
type Target struct {
	Index    int        `json:"index" msgpack:"index"`
	Offset   int        `json:"offset" msgpack:"offset"`
	Lines    []LineInfo `json:"lines" msgpack:"lines"`
	HasFrame bool       `json:"has_frame" msgpack:"has_frame"`
}

// HasSourceLine reports whether any marker of t maps to line.
func (t *Target) HasSourceLine(line int) bool {
	for _, l := range t.Lines {
		if l.SourceLine == line {
			return true
		}
	}
	return false
}

// Result is the output of Analyze.
type Result struct {
	Targets                 []Target // ascending Index, unique
	JumpFromIndexes         []int    // ascending
	FrameOnFirstInstruction bool
}

// Target returns the target at instruction index i, or nil.
func (r *Result) Target(i int) *Target {
	for k := range r.Targets {
		if r.Targets[k].Index == i {
			return &r.Targets[k]
		}
	}
	return nil
}

// Translator maps class file lines to source lines. ok=false drops the marker.
type Translator interface {
	Translate(line int) (source int, ok bool)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(line int) (int, bool)

func (f TranslatorFunc) Translate(line int) (int, bool) { return f(line) }

// Identity maps every line to itself.
var Identity Translator = TranslatorFunc(func(line int) (int, bool) { return line, true })

// Analyze walks the line markers of s. Markers at the index of the first
// translated marker are skipped unless includeFirstLine is set; markers
// sharing an index merge into one target.
func Analyze(s *bytecode.Stream, jumpFromLine int, includeFirstLine bool, tr Translator) (*Result, error) {
	if tr == nil {
		tr = Identity
	}
	res := &Result{}
	byIndex := make(map[int]*Target)
	var order []int
	fromSeen := make(map[int]bool)
	firstIndex := -1

	for _, e := range s.Elements {
		switch e.Kind {
		case bytecode.ElemFrame:
			if e.Index == 0 {
				res.FrameOnFirstInstruction = true
			}
			continue
		case bytecode.ElemInst:
			continue
		}

		if e.Line == jumpFromLine && !fromSeen[e.Index] {
			fromSeen[e.Index] = true
			res.JumpFromIndexes = append(res.JumpFromIndexes, e.Index)
		}
		src, ok := tr.Translate(e.Line)
		if !ok {
			continue
		}
		if firstIndex < 0 {
			firstIndex = e.Index
		}
		if e.Index == firstIndex && !includeFirstLine {
			continue
		}
		if e.Index >= s.Len() {
			// A marker at the end of the code has no instruction to jump to.
			continue
		}
		info := LineInfo{BytecodeLine: e.Line, SourceLine: src}
		t := byIndex[e.Index]
		if t == nil {
			t = &Target{Index: e.Index, Offset: e.Offset, HasFrame: s.FrameAt(e.Index) != nil}
			byIndex[e.Index] = t
			order = append(order, e.Index)
		}
		if !slices.Contains(t.Lines, info) {
			t.Lines = append(t.Lines, info)
		}
	}

	if len(res.JumpFromIndexes) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrLineNotFound, jumpFromLine)
	}
	slices.Sort(res.JumpFromIndexes)
	slices.Sort(order)
	res.Targets = make([]Target, 0, len(order))
	for _, i := range order {
		res.Targets = append(res.Targets, *byIndex[i])
	}
	return res, nil
}

// SourceLines returns the distinct source lines of the targets, ascending.
func (r *Result) SourceLines() []int {
	var out []int
	for _, t := range r.Targets {
		for _, l := range t.Lines {
			out = append(out, l.SourceLine)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
