package bytecode

import (
	"sort"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

// ElementKind tags an element of a method stream.
type ElementKind uint8

const (
	ElemLine  ElementKind = iota // line number marker
	ElemFrame                    // explicit stack map frame
	ElemInst                     // real instruction
)

// Element is one visited item of a method body. Index is the instruction
// index at that point: for an instruction its own index, for a marker or
// frame the index of the instruction that follows it.
type Element struct {
	Kind   ElementKind
	Index  int
	Offset int
	Line   int
	Frame  *classfile.Frame
	Inst   *Inst
}

// Stream is a method body in visitation order: at each code offset, line
// markers first, then the frame, then the instruction.
type Stream struct {
	Insts    []Inst
	Elements []Element
	CodeLen  int

	frameAt map[int]*classfile.Frame // by instruction index
}

// NewStream interleaves instructions with line markers and frames. Markers
// and frames whose offset is not an instruction boundary are dropped.
func NewStream(insts []Inst, codeLen int, lines []classfile.LineNumber, frames []classfile.Frame) *Stream {
	s := &Stream{Insts: insts, CodeLen: codeLen, frameAt: make(map[int]*classfile.Frame)}

	linesAt := make(map[int][]int)
	for _, ln := range lines {
		linesAt[int(ln.StartPC)] = append(linesAt[int(ln.StartPC)], int(ln.Line))
	}
	framesAt := make(map[int]*classfile.Frame, len(frames))
	for i := range frames {
		framesAt[frames[i].Offset] = &frames[i]
	}

	emit := func(offset, index int) {
		for _, l := range linesAt[offset] {
			s.Elements = append(s.Elements, Element{Kind: ElemLine, Index: index, Offset: offset, Line: l})
		}
		if f := framesAt[offset]; f != nil {
			s.Elements = append(s.Elements, Element{Kind: ElemFrame, Index: index, Offset: offset, Frame: f})
			s.frameAt[index] = f
		}
	}
	for i := range insts {
		emit(insts[i].Offset, i)
		s.Elements = append(s.Elements, Element{Kind: ElemInst, Index: i, Offset: insts[i].Offset, Inst: &insts[i]})
	}
	emit(codeLen, len(insts))
	return s
}

// Load decodes the method's code and builds its stream.
func Load(m *classfile.Method) (*Stream, error) {
	insts, err := Decode(m.Code.Bytecode)
	if err != nil {
		return nil, err
	}
	return NewStream(insts, len(m.Code.Bytecode), m.Lines, m.Frames), nil
}

// Len returns the number of instructions.
func (s *Stream) Len() int { return len(s.Insts) }

// IndexOf returns the instruction index of a code offset: the number of
// instructions that start before it.
func (s *Stream) IndexOf(offset int) int {
	return sort.Search(len(s.Insts), func(i int) bool { return s.Insts[i].Offset >= offset })
}

// OffsetOf returns the code offset of instruction index i; CodeLen for len(Insts).
func (s *Stream) OffsetOf(i int) int {
	if i >= len(s.Insts) {
		return s.CodeLen
	}
	return s.Insts[i].Offset
}

// FrameAt returns the explicit frame preceding instruction index i, or nil.
func (s *Stream) FrameAt(i int) *classfile.Frame { return s.frameAt[i] }
