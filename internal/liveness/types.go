package liveness

import (
	"fmt"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
)

// RestoreStatus tells whether a local's value survives a jump.
type RestoreStatus uint8

const (
	// IsParameter marks an incoming argument slot.
	IsParameter RestoreStatus = iota
	// CanBeSavedAndRestored marks a slot whose declared range covers every
	// jump-from index and the target.
	CanBeSavedAndRestored
	// CanBeRestoredOnly marks a slot declared at the target but not at
	// every jump-from index.
	CanBeRestoredOnly
	// Unsafe marks a slot with no declared range at the target.
	Unsafe
)

func (s RestoreStatus) String() string {
	switch s {
	case IsParameter:
		return "parameter"
	case CanBeSavedAndRestored:
		return "save-restore"
	case CanBeRestoredOnly:
		return "restore-only"
	case Unsafe:
		return "unsafe"
	}
	return fmt.Sprintf("RestoreStatus(%d)", uint8(s))
}

// Safety classifies a target. Lower is safer.
type Safety uint8

const (
	Safe Safety = iota
	UninitializedExist
	NotSafe
)

func (s Safety) String() string {
	switch s {
	case Safe:
		return "safe"
	case UninitializedExist:
		return "uninitialized"
	case NotSafe:
		return "unsafe"
	}
	return fmt.Sprintf("Safety(%d)", uint8(s))
}

// Kind is the value kind of a local. Narrow int kinds are only known from
// the local variable table.
type Kind uint8

const (
	KindInt Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindFloat
	KindLong
	KindDouble
	KindReference
)

// ValueType is the concrete type of a local at a target.
type ValueType struct {
	Kind  Kind
	Class string // internal name or array descriptor, KindReference only
}

// Descriptor returns the field descriptor of v.
func (v ValueType) Descriptor() string {
	switch v.Kind {
	case KindBoolean:
		return "Z"
	case KindByte:
		return "B"
	case KindChar:
		return "C"
	case KindShort:
		return "S"
	case KindFloat:
		return "F"
	case KindLong:
		return "J"
	case KindDouble:
		return "D"
	case KindReference:
		if len(v.Class) > 0 && v.Class[0] == '[' {
			return v.Class
		}
		return "L" + v.Class + ";"
	}
	return "I"
}

// Size returns the number of local slots v occupies.
func (v ValueType) Size() int {
	if v.Kind == KindLong || v.Kind == KindDouble {
		return 2
	}
	return 1
}

// VType returns the verification type of v.
func (v ValueType) VType() classfile.VType { return classfile.FieldVType(v.Descriptor()) }

func (v ValueType) String() string {
	if v.Kind == KindReference {
		return v.Class
	}
	return v.Descriptor()
}

// Local describes one live slot at a target.
type Local struct {
	Slot   int
	Name   string // from the local variable table, if declared at the target
	Type   ValueType
	Status RestoreStatus
}

// Target is an analyzed jump target.
type Target struct {
	lines.Target
	Locals []Local
	Frame  []classfile.VType // locals in stack map form
	Safety Safety
}

// Result is the output of Analyze.
type Result struct {
	Targets                 []Target // ascending Index
	EntryFrame              []classfile.VType
	ParamSlots              int
	MaxLocals               int
	FrameOnFirstInstruction bool
}

// Target returns the analyzed target at instruction index i, or nil.
func (r *Result) Target(i int) *Target {
	for k := range r.Targets {
		if r.Targets[k].Index == i {
			return &r.Targets[k]
		}
	}
	return nil
}

// ForSourceLine returns the targets mapping to a source line.
func (r *Result) ForSourceLine(line int) []*Target {
	var out []*Target
	for k := range r.Targets {
		if r.Targets[k].HasSourceLine(line) {
			out = append(out, &r.Targets[k])
		}
	}
	return out
}
