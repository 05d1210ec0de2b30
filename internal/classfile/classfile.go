// Package classfile reads and writes JVM class files: the constant pool,
// members, the Code attribute and the debug and verification tables the
// jump analysis depends on.
package classfile

import (
	"errors"
	"fmt"
)

const magic = 0xCAFEBABE

// Access flags used by the analysis.
const (
	AccStatic    = 0x0008
	AccBridge    = 0x0040
	AccNative    = 0x0100
	AccInterface = 0x0200
	AccAbstract  = 0x0400
	AccSynthetic = 0x1000
)

// Attribute names.
const (
	AttrCode                   = "Code"
	AttrLineNumberTable        = "LineNumberTable"
	AttrLocalVariableTable     = "LocalVariableTable"
	AttrLocalVariableTypeTable = "LocalVariableTypeTable"
	AttrStackMapTable          = "StackMapTable"
	AttrSignature              = "Signature"
	AttrSourceFile             = "SourceFile"
	AttrVisibleTypeAnnotations = "RuntimeVisibleTypeAnnotations"
	AttrHiddenTypeAnnotations  = "RuntimeInvisibleTypeAnnotations"
)

// Version at which StackMapTable frames became part of verification.
const StackMapVersion = 50

var ErrNotClass = errors.New("classfile: bad magic")

// Attribute is a raw attribute; Data excludes the name and length header.
type Attribute struct {
	Name string
	Data []byte
}

// Member is a field or method.
type Member struct {
	Access     uint16
	Name       string
	Descriptor string
	Attributes []Attribute
}

// Attribute returns the first attribute called name, or nil.
func (m *Member) Attribute(name string) *Attribute {
	return findAttribute(m.Attributes, name)
}

// IsStatic reports whether the member is static.
func (m *Member) IsStatic() bool { return m.Access&AccStatic != 0 }

// IsConstructor reports whether the member is an instance initializer.
func (m *Member) IsConstructor() bool { return m.Name == "<init>" }

// Class is a parsed class file.
type Class struct {
	Minor      uint16
	Major      uint16
	Pool       *Pool
	Access     uint16
	This       uint16
	Super      uint16
	Interfaces []uint16
	Fields     []Member
	Methods    []Member
	Attributes []Attribute
}

// Name returns the internal name of the class.
func (c *Class) Name() string {
	n, _ := c.Pool.ClassName(c.This)
	return n
}

// SuperName returns the internal name of the superclass, or "" for java/lang/Object.
func (c *Class) SuperName() string {
	if c.Super == 0 {
		return ""
	}
	n, _ := c.Pool.ClassName(c.Super)
	return n
}

// InterfaceNames returns the internal names of the direct superinterfaces.
func (c *Class) InterfaceNames() []string {
	out := make([]string, 0, len(c.Interfaces))
	for _, i := range c.Interfaces {
		if n, err := c.Pool.ClassName(i); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// IsInterface reports whether the class file declares an interface.
func (c *Class) IsInterface() bool { return c.Access&AccInterface != 0 }

// Signature returns the generic signature of a member, or "".
func (c *Class) Signature(m *Member) string {
	a := m.Attribute(AttrSignature)
	if a == nil || len(a.Data) != 2 {
		return ""
	}
	s, err := c.Pool.Utf8(uint16(a.Data[0])<<8 | uint16(a.Data[1]))
	if err != nil {
		return ""
	}
	return s
}

// Parse decodes a class file.
func Parse(data []byte) (*Class, error) {
	s := NewStream(data)
	m, err := s.ReadUint32()
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, ErrNotClass
	}
	c := &Class{}
	if c.Minor, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	if c.Major, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	if c.Pool, err = parsePool(s); err != nil {
		return nil, fmt.Errorf("classfile: constant pool: %w", err)
	}
	if c.Access, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	if c.This, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	if c.Super, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	c.Interfaces = make([]uint16, n)
	for i := range c.Interfaces {
		if c.Interfaces[i], err = s.ReadUint16(); err != nil {
			return nil, err
		}
	}
	if c.Fields, err = parseMembers(s, c.Pool); err != nil {
		return nil, fmt.Errorf("classfile: fields: %w", err)
	}
	if c.Methods, err = parseMembers(s, c.Pool); err != nil {
		return nil, fmt.Errorf("classfile: methods: %w", err)
	}
	if c.Attributes, err = parseAttributes(s, c.Pool); err != nil {
		return nil, fmt.Errorf("classfile: attributes: %w", err)
	}
	if _, err := c.Pool.ClassName(c.This); err != nil {
		return nil, fmt.Errorf("classfile: this_class: %w", err)
	}
	return c, nil
}

// Encode serializes the class. Attribute names are interned into the pool,
// so Encode may append pool entries.
func (c *Class) Encode() ([]byte, error) {
	// Intern every attribute name first: the pool is written before members.
	intern := func(attrs []Attribute) error {
		for _, a := range attrs {
			if _, err := c.Pool.AddUtf8(a.Name); err != nil {
				return err
			}
		}
		return nil
	}
	for _, ms := range [][]Member{c.Fields, c.Methods} {
		for _, m := range ms {
			if _, err := c.Pool.AddUtf8(m.Name); err != nil {
				return nil, err
			}
			if _, err := c.Pool.AddUtf8(m.Descriptor); err != nil {
				return nil, err
			}
			if err := intern(m.Attributes); err != nil {
				return nil, err
			}
		}
	}
	if err := intern(c.Attributes); err != nil {
		return nil, err
	}

	var w Buffer
	w.U4(magic)
	w.U2(c.Minor)
	w.U2(c.Major)
	c.Pool.encode(&w)
	w.U2(c.Access)
	w.U2(c.This)
	w.U2(c.Super)
	w.U2(uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		w.U2(i)
	}
	for _, ms := range [][]Member{c.Fields, c.Methods} {
		w.U2(uint16(len(ms)))
		for _, m := range ms {
			w.U2(m.Access)
			ni, _ := c.Pool.AddUtf8(m.Name)
			di, _ := c.Pool.AddUtf8(m.Descriptor)
			w.U2(ni)
			w.U2(di)
			if err := encodeAttributes(&w, c.Pool, m.Attributes); err != nil {
				return nil, err
			}
		}
	}
	if err := encodeAttributes(&w, c.Pool, c.Attributes); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func parseMembers(s *Stream, pool *Pool) ([]Member, error) {
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]Member, n)
	for i := range out {
		m := &out[i]
		if m.Access, err = s.ReadUint16(); err != nil {
			return nil, err
		}
		ni, err := s.ReadUint16()
		if err != nil {
			return nil, err
		}
		di, err := s.ReadUint16()
		if err != nil {
			return nil, err
		}
		if m.Name, err = pool.Utf8(ni); err != nil {
			return nil, err
		}
		if m.Descriptor, err = pool.Utf8(di); err != nil {
			return nil, err
		}
		if m.Attributes, err = parseAttributes(s, pool); err != nil {
			return nil, fmt.Errorf("%s%s: %w", m.Name, m.Descriptor, err)
		}
	}
	return out, nil
}

func parseAttributes(s *Stream, pool *Pool) ([]Attribute, error) {
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]Attribute, n)
	for i := range out {
		ni, err := s.ReadUint16()
		if err != nil {
			return nil, err
		}
		if out[i].Name, err = pool.Utf8(ni); err != nil {
			return nil, err
		}
		size, err := s.ReadUint32()
		if err != nil {
			return nil, err
		}
		if out[i].Data, err = s.ReadBytes(int(size)); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", out[i].Name, err)
		}
	}
	return out, nil
}

func encodeAttributes(w *Buffer, pool *Pool, attrs []Attribute) error {
	w.U2(uint16(len(attrs)))
	for _, a := range attrs {
		ni, err := pool.AddUtf8(a.Name)
		if err != nil {
			return err
		}
		w.U2(ni)
		w.U4(uint32(len(a.Data)))
		w.Write(a.Data)
	}
	return nil
}

func findAttribute(attrs []Attribute, name string) *Attribute {
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}
