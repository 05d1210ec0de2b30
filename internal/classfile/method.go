package classfile

import (
	"errors"
	"fmt"
)

var (
	ErrMethodNotFound  = errors.New("classfile: method not found")
	ErrMethodAmbiguous = errors.New("classfile: method matched more than once")
	ErrNoCode          = errors.New("classfile: method has no code")
)

// MethodID identifies a method by name, erased descriptor and optional
// generic signature as reported by a debugger.
type MethodID struct {
	Name       string
	Descriptor string
	Signature  string
}

func (id MethodID) String() string {
	if id.Signature != "" {
		return id.Name + id.Descriptor + " " + id.Signature
	}
	return id.Name + id.Descriptor
}

// Matches reports whether a declared method with the given name,
// descriptor and generic signature ("" when absent) is this method.
func (id MethodID) Matches(name, desc, sig string) bool {
	if id.Name != name {
		return false
	}
	if id.Descriptor == desc || (sig != "" && id.Descriptor == sig) {
		return true
	}
	if id.Signature != "" && (id.Signature == desc || id.Signature == sig) {
		return true
	}
	return false
}

// FindMethod returns the index in c.Methods of the only method matching id.
func (c *Class) FindMethod(id MethodID) (int, error) {
	found := -1
	for i := range c.Methods {
		m := &c.Methods[i]
		if !id.Matches(m.Name, m.Descriptor, c.Signature(m)) {
			continue
		}
		if found >= 0 {
			return -1, fmt.Errorf("%w: %s in %s", ErrMethodAmbiguous, id, c.Name())
		}
		found = i
	}
	if found < 0 {
		return -1, fmt.Errorf("%w: %s in %s", ErrMethodNotFound, id, c.Name())
	}
	return found, nil
}

// Method is a located method with its decoded code tables.
type Method struct {
	Class  *Class
	Member *Member
	Code   *Code

	Lines      []LineNumber
	Locals     []LocalVariable
	LocalTypes []LocalVariable
	Frames     []Frame
	Entry      []VType // implicit entry frame
}

// Owner returns the internal name of the declaring class.
func (m *Method) Owner() string { return m.Class.Name() }

// IsStatic reports whether the method is static.
func (m *Method) IsStatic() bool { return m.Member.IsStatic() }

// LoadMethod locates id in c and decodes its Code attribute and tables.
func (c *Class) LoadMethod(id MethodID) (*Method, error) {
	i, err := c.FindMethod(id)
	if err != nil {
		return nil, err
	}
	return c.loadMethod(&c.Methods[i])
}

func (c *Class) loadMethod(mem *Member) (*Method, error) {
	code, err := c.MethodCode(mem)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, fmt.Errorf("%w: %s%s", ErrNoCode, mem.Name, mem.Descriptor)
	}
	m := &Method{Class: c, Member: mem, Code: code}
	if m.Entry, err = InitialLocals(c.Name(), mem.Descriptor, mem.IsStatic(), mem.IsConstructor()); err != nil {
		return nil, err
	}
	if m.Lines, err = code.LineNumbers(); err != nil {
		return nil, fmt.Errorf("classfile: %s: %w", AttrLineNumberTable, err)
	}
	if m.Locals, err = code.LocalVariables(c.Pool, AttrLocalVariableTable); err != nil {
		return nil, err
	}
	if m.LocalTypes, err = code.LocalVariables(c.Pool, AttrLocalVariableTypeTable); err != nil {
		return nil, err
	}
	if a := code.Attribute(AttrStackMapTable); a != nil {
		if m.Frames, err = ParseStackMap(a.Data, c.Pool, m.Entry); err != nil {
			return nil, fmt.Errorf("classfile: %s: %w", AttrStackMapTable, err)
		}
	}
	return m, nil
}

// CodeMethods decodes every method of c that has code.
func (c *Class) CodeMethods() ([]*Method, error) {
	var out []*Method
	for i := range c.Methods {
		if c.Methods[i].Attribute(AttrCode) == nil {
			continue
		}
		m, err := c.loadMethod(&c.Methods[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ID returns the identity of the method.
func (m *Method) ID() MethodID {
	return MethodID{Name: m.Member.Name, Descriptor: m.Member.Descriptor, Signature: m.Class.Signature(m.Member)}
}
