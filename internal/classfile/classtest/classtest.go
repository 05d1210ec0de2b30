// Package classtest assembles small class files for tests.
package classtest

import (
	"testing"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

// Method describes one method of a synthetic class.
type Method struct {
	Access    uint16
	Name      string
	Desc      string
	Signature string
	MaxStack  int
	MaxLocals int
	Code      []byte
	Handlers  []classfile.ExceptionHandler
	Lines     []classfile.LineNumber
	Locals    []classfile.LocalVariable
	Frames    []classfile.Frame
}

// Builder collects methods and produces class bytes.
type Builder struct {
	pool    *classfile.Pool
	name    string
	super   string
	major   uint16
	access  uint16
	ifaces  []string
	methods []Method
}

// New returns a builder for a public class extending java/lang/Object,
// version 52.
func New(name string) *Builder {
	return &Builder{pool: classfile.NewPool(), name: name, super: "java/lang/Object", major: 52, access: 0x0021}
}

// Super sets the superclass.
func (b *Builder) Super(name string) *Builder {
	b.super = name
	return b
}

// Version sets the class file major version.
func (b *Builder) Version(major uint16) *Builder {
	b.major = major
	return b
}

// Implements adds direct superinterfaces.
func (b *Builder) Implements(names ...string) *Builder {
	b.ifaces = append(b.ifaces, names...)
	return b
}

// Interface marks the class file as an interface.
func (b *Builder) Interface() *Builder {
	b.access = classfile.AccInterface | classfile.AccAbstract | 0x0001
	return b
}

// Pool exposes the constant pool so tests can reference entries from code.
func (b *Builder) Pool() *classfile.Pool { return b.pool }

// Method adds a method.
func (b *Builder) Method(m Method) *Builder {
	b.methods = append(b.methods, m)
	return b
}

// Build encodes the class.
func (b *Builder) Build() ([]byte, error) {
	c := &classfile.Class{Major: b.major, Pool: b.pool, Access: b.access}
	var err error
	if c.This, err = b.pool.AddClass(b.name); err != nil {
		return nil, err
	}
	if b.super != "" {
		if c.Super, err = b.pool.AddClass(b.super); err != nil {
			return nil, err
		}
	}
	for _, name := range b.ifaces {
		i, err := b.pool.AddClass(name)
		if err != nil {
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, i)
	}
	for _, m := range b.methods {
		mem := classfile.Member{Access: m.Access, Name: m.Name, Descriptor: m.Desc}
		if m.Signature != "" {
			si, err := b.pool.AddUtf8(m.Signature)
			if err != nil {
				return nil, err
			}
			mem.Attributes = append(mem.Attributes, classfile.Attribute{
				Name: classfile.AttrSignature,
				Data: []byte{byte(si >> 8), byte(si)},
			})
		}
		if m.Code != nil {
			data, err := b.code(m)
			if err != nil {
				return nil, err
			}
			mem.Attributes = append(mem.Attributes, classfile.Attribute{Name: classfile.AttrCode, Data: data})
		}
		c.Methods = append(c.Methods, mem)
	}
	return c.Encode()
}

func (b *Builder) code(m Method) ([]byte, error) {
	code := &classfile.Code{
		MaxStack:  uint16(m.MaxStack),
		MaxLocals: uint16(m.MaxLocals),
		Bytecode:  m.Code,
		Handlers:  m.Handlers,
	}
	if len(m.Lines) > 0 {
		code.Attributes = append(code.Attributes, classfile.Attribute{
			Name: classfile.AttrLineNumberTable,
			Data: classfile.EncodeLineNumbers(m.Lines),
		})
	}
	if len(m.Locals) > 0 {
		data, err := classfile.EncodeLocalVariables(m.Locals, b.pool)
		if err != nil {
			return nil, err
		}
		code.Attributes = append(code.Attributes, classfile.Attribute{Name: classfile.AttrLocalVariableTable, Data: data})
	}
	if len(m.Frames) > 0 {
		entry, err := classfile.InitialLocals(b.name, m.Desc, m.Access&classfile.AccStatic != 0, m.Name == "<init>")
		if err != nil {
			return nil, err
		}
		data, err := classfile.EncodeStackMap(m.Frames, b.pool, entry)
		if err != nil {
			return nil, err
		}
		code.Attributes = append(code.Attributes, classfile.Attribute{Name: classfile.AttrStackMapTable, Data: data})
	}
	return code.Encode(b.pool)
}

// MustBuild encodes the class or fails the test.
func (b *Builder) MustBuild(t testing.TB) []byte {
	t.Helper()
	data, err := b.Build()
	if err != nil {
		t.Fatalf("build class %s: %v", b.name, err)
	}
	return data
}
