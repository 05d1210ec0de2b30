package classfile

import (
	"fmt"
	"slices"
	"strings"
)

// VTag is a verification type tag as stored in StackMapTable entries.
type VTag uint8

const (
	VTop VTag = iota
	VInteger
	VFloat
	VDouble
	VLong
	VNull
	VUninitializedThis
	VObject
	VUninitialized
)

// VType is a verification type. Class is set for VObject, Offset (the code
// offset of the creating new instruction) for VUninitialized.
type VType struct {
	Tag    VTag
	Class  string
	Offset int
}

var (
	Top               = VType{Tag: VTop}
	Integer           = VType{Tag: VInteger}
	Float             = VType{Tag: VFloat}
	Long              = VType{Tag: VLong}
	Double            = VType{Tag: VDouble}
	Null              = VType{Tag: VNull}
	UninitializedThis = VType{Tag: VUninitializedThis}
)

// Object returns the verification type of an initialized reference.
func Object(class string) VType { return VType{Tag: VObject, Class: class} }

// Uninitialized returns the type of an object created by the new instruction at offset.
func Uninitialized(offset int) VType { return VType{Tag: VUninitialized, Offset: offset} }

// IsWide reports whether the type occupies two slots.
func (v VType) IsWide() bool { return v.Tag == VLong || v.Tag == VDouble }

// IsReference reports whether the type is a reference, including null and uninitialized.
func (v VType) IsReference() bool {
	switch v.Tag {
	case VNull, VObject, VUninitialized, VUninitializedThis:
		return true
	}
	return false
}

func (v VType) String() string {
	switch v.Tag {
	case VTop:
		return "top"
	case VInteger:
		return "int"
	case VFloat:
		return "float"
	case VDouble:
		return "double"
	case VLong:
		return "long"
	case VNull:
		return "null"
	case VUninitializedThis:
		return "uninitialized_this"
	case VObject:
		return v.Class
	case VUninitialized:
		return fmt.Sprintf("uninitialized(%d)", v.Offset)
	}
	return fmt.Sprintf("vtag(%d)", v.Tag)
}

// FieldVType maps a field descriptor to its verification type.
func FieldVType(desc string) VType {
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return Integer
	case 'F':
		return Float
	case 'J':
		return Long
	case 'D':
		return Double
	}
	return Object(ClassOf(desc))
}

// Frame is a stack map frame at an absolute code offset. Locals and Stack
// use the StackMapTable convention: a long or double is a single entry.
type Frame struct {
	Offset int
	Locals []VType
	Stack  []VType
}

// InitialLocals returns the implicit frame at method entry.
func InitialLocals(owner, desc string, static, ctor bool) ([]VType, error) {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}
	var out []VType
	if !static {
		if ctor && owner != "java/lang/Object" {
			out = append(out, UninitializedThis)
		} else {
			out = append(out, Object(owner))
		}
	}
	for _, p := range params {
		out = append(out, FieldVType(p))
	}
	return out, nil
}

// ParseStackMap decodes a StackMapTable body into absolute frames.
// initial is the implicit entry frame the first delta applies to.
func ParseStackMap(data []byte, pool *Pool, initial []VType) ([]Frame, error) {
	s := NewStream(data)
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	locals := slices.Clone(initial)
	offset := -1
	out := make([]Frame, 0, n)
	for i := 0; i < int(n); i++ {
		ft, err := s.ReadUint8()
		if err != nil {
			return nil, err
		}
		var delta int
		var stack []VType
		switch {
		case ft < 64:
			delta = int(ft)
		case ft < 128:
			delta = int(ft) - 64
			v, err := readVType(s, pool)
			if err != nil {
				return nil, err
			}
			stack = []VType{v}
		case ft < 247:
			return nil, fmt.Errorf("classfile: reserved frame type %d", ft)
		default:
			d, err := s.ReadUint16()
			if err != nil {
				return nil, err
			}
			delta = int(d)
			switch {
			case ft == 247:
				v, err := readVType(s, pool)
				if err != nil {
					return nil, err
				}
				stack = []VType{v}
			case ft < 251:
				k := 251 - int(ft)
				if k > len(locals) {
					return nil, fmt.Errorf("classfile: chop %d of %d locals", k, len(locals))
				}
				locals = slices.Clone(locals[:len(locals)-k])
			case ft == 251:
			case ft < 255:
				locals = slices.Clone(locals)
				for k := int(ft) - 251; k > 0; k-- {
					v, err := readVType(s, pool)
					if err != nil {
						return nil, err
					}
					locals = append(locals, v)
				}
			default:
				if locals, err = readVTypes(s, pool); err != nil {
					return nil, err
				}
				if stack, err = readVTypes(s, pool); err != nil {
					return nil, err
				}
			}
		}
		offset += delta + 1
		out = append(out, Frame{Offset: offset, Locals: locals, Stack: stack})
	}
	return out, nil
}

func readVTypes(s *Stream, pool *Pool) ([]VType, error) {
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]VType, n)
	for i := range out {
		if out[i], err = readVType(s, pool); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readVType(s *Stream, pool *Pool) (VType, error) {
	tag, err := s.ReadUint8()
	if err != nil {
		return VType{}, err
	}
	v := VType{Tag: VTag(tag)}
	switch v.Tag {
	case VObject:
		i, err := s.ReadUint16()
		if err != nil {
			return VType{}, err
		}
		if v.Class, err = pool.ClassName(i); err != nil {
			return VType{}, err
		}
	case VUninitialized:
		off, err := s.ReadUint16()
		if err != nil {
			return VType{}, err
		}
		v.Offset = int(off)
	default:
		if v.Tag > VUninitialized {
			return VType{}, fmt.Errorf("classfile: bad verification type tag %d", tag)
		}
	}
	return v, nil
}

// EncodeStackMap serializes frames (sorted by strictly increasing offset)
// as a StackMapTable body using the most compact frame type for each delta.
func EncodeStackMap(frames []Frame, pool *Pool, initial []VType) ([]byte, error) {
	var w Buffer
	w.U2(uint16(len(frames)))
	prev := initial
	prevOff := -1
	for _, f := range frames {
		delta := f.Offset - prevOff - 1
		if delta < 0 || delta > 0xFFFF {
			return nil, fmt.Errorf("classfile: frame at %d after %d", f.Offset, prevOff)
		}
		same := slices.Equal(f.Locals, prev)
		diff := len(f.Locals) - len(prev)
		var err error
		switch {
		case same && len(f.Stack) == 0:
			if delta < 64 {
				w.U1(uint8(delta))
			} else {
				w.U1(251)
				w.U2(uint16(delta))
			}
		case same && len(f.Stack) == 1:
			if delta < 64 {
				w.U1(uint8(64 + delta))
			} else {
				w.U1(247)
				w.U2(uint16(delta))
			}
			err = writeVType(&w, pool, f.Stack[0])
		case len(f.Stack) == 0 && diff > 0 && diff <= 3 && slices.Equal(f.Locals[:len(prev)], prev):
			w.U1(uint8(251 + diff))
			w.U2(uint16(delta))
			for _, v := range f.Locals[len(prev):] {
				if err = writeVType(&w, pool, v); err != nil {
					break
				}
			}
		case len(f.Stack) == 0 && diff < 0 && diff >= -3 && slices.Equal(prev[:len(f.Locals)], f.Locals):
			w.U1(uint8(251 + diff))
			w.U2(uint16(delta))
		default:
			w.U1(255)
			w.U2(uint16(delta))
			if err = writeVTypes(&w, pool, f.Locals); err == nil {
				err = writeVTypes(&w, pool, f.Stack)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("classfile: frame at %d: %w", f.Offset, err)
		}
		prev = f.Locals
		prevOff = f.Offset
	}
	return w.Bytes(), nil
}

func writeVTypes(w *Buffer, pool *Pool, vs []VType) error {
	w.U2(uint16(len(vs)))
	for _, v := range vs {
		if err := writeVType(w, pool, v); err != nil {
			return err
		}
	}
	return nil
}

func writeVType(w *Buffer, pool *Pool, v VType) error {
	w.U1(uint8(v.Tag))
	switch v.Tag {
	case VObject:
		i, err := pool.AddClass(v.Class)
		if err != nil {
			return err
		}
		w.U2(i)
	case VUninitialized:
		if v.Offset < 0 || v.Offset > 0xFFFF {
			return fmt.Errorf("%w: uninitialized offset %d", ErrTooLarge, v.Offset)
		}
		w.U2(uint16(v.Offset))
	}
	return nil
}

// FormatFrame renders a frame as "[locals] [stack]" for diagnostics.
func FormatFrame(f Frame) string {
	str := func(vs []VType) string {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = v.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("@%d %s %s", f.Offset, str(f.Locals), str(f.Stack))
}
