// Package frame infers verification types of locals and operand stack
// entries at every instruction of a method by abstract interpretation.
package frame

import (
	"fmt"
	"slices"
	"strings"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

// RootClass is the universal reference supertype.
const RootClass = "java/lang/Object"

// Merger resolves the nearest common supertype of two internal class names.
type Merger interface {
	CommonSuperType(a, b string) (string, error)
}

// State is the inferred frame before an instruction. Locals and Stack use
// one entry per slot: a long or double is followed by a Top entry.
type State struct {
	Locals []classfile.VType
	Stack  []classfile.VType
}

func (s *State) clone() *State {
	return &State{Locals: slices.Clone(s.Locals), Stack: slices.Clone(s.Stack)}
}

// FrameLocals returns the locals in stack map form with trailing Tops trimmed.
func (s *State) FrameLocals() []classfile.VType { return CompressLocals(s.Locals) }

// FrameStack returns the operand stack in stack map form.
func (s *State) FrameStack() []classfile.VType { return compress(s.Stack) }

func (s *State) String() string {
	return classfile.FormatFrame(classfile.Frame{Locals: s.FrameLocals(), Stack: s.FrameStack()})
}

// ExpandLocals converts stack map entries to one entry per slot.
func ExpandLocals(entries []classfile.VType) []classfile.VType {
	out := make([]classfile.VType, 0, len(entries))
	for _, v := range entries {
		out = append(out, v)
		if v.IsWide() {
			out = append(out, classfile.Top)
		}
	}
	return out
}

// CompressLocals converts one-entry-per-slot locals to stack map entries,
// dropping the second half of wide values and trailing Tops.
func CompressLocals(slots []classfile.VType) []classfile.VType {
	out := compress(slots)
	for len(out) > 0 && out[len(out)-1] == classfile.Top {
		out = out[:len(out)-1]
	}
	return out
}

func compress(slots []classfile.VType) []classfile.VType {
	out := make([]classfile.VType, 0, len(slots))
	for i := 0; i < len(slots); i++ {
		out = append(out, slots[i])
		if slots[i].IsWide() {
			i++
		}
	}
	return out
}

func fromFrame(f *classfile.Frame, maxLocals int) (*State, error) {
	locals := ExpandLocals(f.Locals)
	if len(locals) > maxLocals {
		return nil, fmt.Errorf("frame: frame at %d has %d local slots, max_locals %d", f.Offset, len(locals), maxLocals)
	}
	for len(locals) < maxLocals {
		locals = append(locals, classfile.Top)
	}
	return &State{Locals: locals, Stack: ExpandLocals(f.Stack)}, nil
}

type merger struct {
	m Merger
}

// state merges b into a and reports whether a changed.
func (mg merger) state(a, b *State) (*State, bool, error) {
	if len(a.Stack) != len(b.Stack) {
		return nil, false, fmt.Errorf("%w: heights %d and %d at join", ErrStack, len(a.Stack), len(b.Stack))
	}
	out := a.clone()
	changed := false
	for i := range out.Locals {
		v, err := mg.value(a.Locals[i], b.Locals[i])
		if err != nil {
			return nil, false, err
		}
		if v != a.Locals[i] {
			out.Locals[i] = v
			changed = true
		}
	}
	for i := range out.Stack {
		v, err := mg.value(a.Stack[i], b.Stack[i])
		if err != nil {
			return nil, false, err
		}
		if v != a.Stack[i] {
			out.Stack[i] = v
			changed = true
		}
	}
	return out, changed, nil
}

func (mg merger) value(a, b classfile.VType) (classfile.VType, error) {
	if a == b {
		return a, nil
	}
	switch {
	case a.Tag == classfile.VNull && b.Tag == classfile.VObject:
		return b, nil
	case a.Tag == classfile.VObject && b.Tag == classfile.VNull:
		return a, nil
	case a.Tag == classfile.VObject && b.Tag == classfile.VObject:
		c, err := mg.class(a.Class, b.Class)
		if err != nil {
			return classfile.VType{}, err
		}
		return classfile.Object(c), nil
	}
	return classfile.Top, nil
}

func (mg merger) class(a, b string) (string, error) {
	if a == b {
		return a, nil
	}
	aArr, bArr := strings.HasPrefix(a, "["), strings.HasPrefix(b, "[")
	switch {
	case aArr && bArr:
		ca, cb := a[1:], b[1:]
		if !isRefDesc(ca) || !isRefDesc(cb) {
			return RootClass, nil
		}
		c, err := mg.class(classfile.ClassOf(ca), classfile.ClassOf(cb))
		if err != nil {
			return "", err
		}
		return "[" + descOf(c), nil
	case aArr || bArr, mg.m == nil:
		return RootClass, nil
	}
	return mg.m.CommonSuperType(a, b)
}

func isRefDesc(d string) bool { return d != "" && (d[0] == 'L' || d[0] == '[') }

// descOf returns the field descriptor of an internal class or array name.
func descOf(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return "L" + name + ";"
}
