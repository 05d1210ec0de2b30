package classfile

import "fmt"

// ExceptionHandler is one exception_table entry.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 = any
}

// Code is a decoded Code attribute.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Bytecode   []byte
	Handlers   []ExceptionHandler
	Attributes []Attribute
}

// Attribute returns the first nested attribute called name, or nil.
func (c *Code) Attribute(name string) *Attribute {
	return findAttribute(c.Attributes, name)
}

// ParseCode decodes the body of a Code attribute.
func ParseCode(data []byte, pool *Pool) (*Code, error) {
	s := NewStream(data)
	c := &Code{}
	var err error
	if c.MaxStack, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = s.ReadUint16(); err != nil {
		return nil, err
	}
	n, err := s.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 || n > 65535 {
		return nil, fmt.Errorf("classfile: code_length %d out of range", n)
	}
	if c.Bytecode, err = s.ReadBytes(int(n)); err != nil {
		return nil, err
	}
	hn, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	c.Handlers = make([]ExceptionHandler, hn)
	for i := range c.Handlers {
		h := &c.Handlers[i]
		for _, p := range []*uint16{&h.StartPC, &h.EndPC, &h.HandlerPC, &h.CatchType} {
			if *p, err = s.ReadUint16(); err != nil {
				return nil, err
			}
		}
	}
	if c.Attributes, err = parseAttributes(s, pool); err != nil {
		return nil, fmt.Errorf("classfile: code attributes: %w", err)
	}
	return c, nil
}

// Encode serializes the Code attribute body.
func (c *Code) Encode(pool *Pool) ([]byte, error) {
	if len(c.Bytecode) == 0 || len(c.Bytecode) > 65535 {
		return nil, fmt.Errorf("%w: code_length %d", ErrTooLarge, len(c.Bytecode))
	}
	var w Buffer
	w.U2(c.MaxStack)
	w.U2(c.MaxLocals)
	w.U4(uint32(len(c.Bytecode)))
	w.Write(c.Bytecode)
	w.U2(uint16(len(c.Handlers)))
	for _, h := range c.Handlers {
		w.U2(h.StartPC)
		w.U2(h.EndPC)
		w.U2(h.HandlerPC)
		w.U2(h.CatchType)
	}
	if err := encodeAttributes(&w, pool, c.Attributes); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// LineNumber is one LineNumberTable entry.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// LineNumbers concatenates every LineNumberTable attached to the code in
// attribute order.
func (c *Code) LineNumbers() ([]LineNumber, error) {
	var out []LineNumber
	for _, a := range c.Attributes {
		if a.Name != AttrLineNumberTable {
			continue
		}
		ls, err := ParseLineNumbers(a.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, ls...)
	}
	return out, nil
}

// ParseLineNumbers decodes a LineNumberTable body.
func ParseLineNumbers(data []byte) ([]LineNumber, error) {
	s := NewStream(data)
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]LineNumber, n)
	for i := range out {
		if out[i].StartPC, err = s.ReadUint16(); err != nil {
			return nil, err
		}
		if out[i].Line, err = s.ReadUint16(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeLineNumbers serializes a LineNumberTable body.
func EncodeLineNumbers(ls []LineNumber) []byte {
	var w Buffer
	w.U2(uint16(len(ls)))
	for _, l := range ls {
		w.U2(l.StartPC)
		w.U2(l.Line)
	}
	return w.Bytes()
}

// LocalVariable is one LocalVariableTable or LocalVariableTypeTable entry.
// Descriptor holds the signature for LocalVariableTypeTable entries.
type LocalVariable struct {
	StartPC    uint16
	Length     uint16
	Name       string
	Descriptor string
	Slot       uint16
}

// Covers reports whether pc lies in [StartPC, StartPC+Length).
func (v LocalVariable) Covers(pc int) bool {
	return pc >= int(v.StartPC) && pc < int(v.StartPC)+int(v.Length)
}

// LocalVariables concatenates every table called name (LocalVariableTable or
// LocalVariableTypeTable) attached to the code.
func (c *Code) LocalVariables(pool *Pool, name string) ([]LocalVariable, error) {
	var out []LocalVariable
	for _, a := range c.Attributes {
		if a.Name != name {
			continue
		}
		vs, err := ParseLocalVariables(a.Data, pool)
		if err != nil {
			return nil, fmt.Errorf("classfile: %s: %w", name, err)
		}
		out = append(out, vs...)
	}
	return out, nil
}

// ParseLocalVariables decodes a LocalVariableTable body.
func ParseLocalVariables(data []byte, pool *Pool) ([]LocalVariable, error) {
	s := NewStream(data)
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]LocalVariable, n)
	for i := range out {
		v := &out[i]
		if v.StartPC, err = s.ReadUint16(); err != nil {
			return nil, err
		}
		if v.Length, err = s.ReadUint16(); err != nil {
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
		if v.Slot, err = s.ReadUint16(); err != nil {
			return nil, err
		}
		if v.Name, err = pool.Utf8(ni); err != nil {
			return nil, err
		}
		if v.Descriptor, err = pool.Utf8(di); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeLocalVariables serializes a LocalVariableTable body.
func EncodeLocalVariables(vs []LocalVariable, pool *Pool) ([]byte, error) {
	var w Buffer
	w.U2(uint16(len(vs)))
	for _, v := range vs {
		ni, err := pool.AddUtf8(v.Name)
		if err != nil {
			return nil, err
		}
		di, err := pool.AddUtf8(v.Descriptor)
		if err != nil {
			return nil, err
		}
		w.U2(v.StartPC)
		w.U2(v.Length)
		w.U2(ni)
		w.U2(di)
		w.U2(v.Slot)
	}
	return w.Bytes(), nil
}

// MethodCode parses the Code attribute of m. It returns nil, nil for
// abstract and native methods.
func (c *Class) MethodCode(m *Member) (*Code, error) {
	a := m.Attribute(AttrCode)
	if a == nil {
		return nil, nil
	}
	code, err := ParseCode(a.Data, c.Pool)
	if err != nil {
		return nil, fmt.Errorf("classfile: %s%s: %w", m.Name, m.Descriptor, err)
	}
	return code, nil
}
