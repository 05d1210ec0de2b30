package classfile

import (
	"fmt"
	"math"
	"unicode/utf16"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// Constant is one constant pool entry. Unused pool slots (index 0 and the
// slot following a long or double) have Tag 0.
type Constant struct {
	Tag  Tag
	Utf8 string // TagUtf8
	Bits uint64 // TagInteger/TagFloat (low 32 bits), TagLong/TagDouble
	A    uint16 // first reference; reference kind for TagMethodHandle
	B    uint16 // second reference

	raw []byte // original modified UTF-8 encoding
}

// Int returns the value of a TagInteger constant.
func (c *Constant) Int() int32 { return int32(uint32(c.Bits)) }

// Float returns the value of a TagFloat constant.
func (c *Constant) Float() float32 { return math.Float32frombits(uint32(c.Bits)) }

// Long returns the value of a TagLong constant.
func (c *Constant) Long() int64 { return int64(c.Bits) }

// Double returns the value of a TagDouble constant.
func (c *Constant) Double() float64 { return math.Float64frombits(c.Bits) }

// Pool is a class file constant pool. New entries may be appended; identical
// Utf8 and Class entries are reused.
type Pool struct {
	entries []Constant
	utf8s   map[string]uint16
	classes map[string]uint16
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{entries: make([]Constant, 1)}
}

// Count returns constant_pool_count (number of slots including slot 0).
func (p *Pool) Count() int { return len(p.entries) }

// At returns the entry at index i.
func (p *Pool) At(i uint16) (*Constant, error) {
	if i == 0 || int(i) >= len(p.entries) || p.entries[i].Tag == 0 {
		return nil, fmt.Errorf("classfile: bad constant pool index %d", i)
	}
	return &p.entries[i], nil
}

func (p *Pool) expect(i uint16, tags ...Tag) (*Constant, error) {
	c, err := p.At(i)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if c.Tag == t {
			return c, nil
		}
	}
	return nil, fmt.Errorf("classfile: constant %d has tag %d, want %v", i, c.Tag, tags)
}

// Utf8 returns the string of a Utf8 entry.
func (p *Pool) Utf8(i uint16) (string, error) {
	c, err := p.expect(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Utf8, nil
}

// ClassName returns the internal name referenced by a Class entry.
func (p *Pool) ClassName(i uint16) (string, error) {
	c, err := p.expect(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.A)
}

// NameAndType returns the name and descriptor of a NameAndType entry.
func (p *Pool) NameAndType(i uint16) (name, desc string, err error) {
	c, err := p.expect(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.A); err != nil {
		return "", "", err
	}
	if desc, err = p.Utf8(c.B); err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref entry.
func (p *Pool) MemberRef(i uint16) (owner, name, desc string, err error) {
	c, err := p.expect(i, TagFieldref, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return "", "", "", err
	}
	if owner, err = p.ClassName(c.A); err != nil {
		return "", "", "", err
	}
	name, desc, err = p.NameAndType(c.B)
	return owner, name, desc, err
}

// DynamicRef resolves the name and descriptor of a Dynamic or
// InvokeDynamic entry.
func (p *Pool) DynamicRef(i uint16) (name, desc string, err error) {
	c, err := p.expect(i, TagDynamic, TagInvokeDynamic)
	if err != nil {
		return "", "", err
	}
	return p.NameAndType(c.B)
}

func (p *Pool) add(c Constant) (uint16, error) {
	n := 1
	if c.Tag == TagLong || c.Tag == TagDouble {
		n = 2
	}
	if len(p.entries)+n > math.MaxUint16 {
		return 0, fmt.Errorf("%w: constant pool", ErrTooLarge)
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if n == 2 {
		p.entries = append(p.entries, Constant{})
	}
	return idx, nil
}

func (p *Pool) index() {
	if p.utf8s != nil {
		return
	}
	p.utf8s = make(map[string]uint16)
	p.classes = make(map[string]uint16)
	for i, c := range p.entries {
		if c.Tag == TagUtf8 {
			if _, ok := p.utf8s[c.Utf8]; !ok {
				p.utf8s[c.Utf8] = uint16(i)
			}
		}
	}
	for i, c := range p.entries {
		if c.Tag == TagClass && int(c.A) < len(p.entries) {
			name := p.entries[c.A].Utf8
			if _, ok := p.classes[name]; !ok {
				p.classes[name] = uint16(i)
			}
		}
	}
}

// AddUtf8 returns the index of a Utf8 entry holding s, appending one if needed.
func (p *Pool) AddUtf8(s string) (uint16, error) {
	p.index()
	if i, ok := p.utf8s[s]; ok {
		return i, nil
	}
	i, err := p.add(Constant{Tag: TagUtf8, Utf8: s})
	if err != nil {
		return 0, err
	}
	p.utf8s[s] = i
	return i, nil
}

// AddClass returns the index of a Class entry naming name, appending one if needed.
func (p *Pool) AddClass(name string) (uint16, error) {
	p.index()
	if i, ok := p.classes[name]; ok {
		return i, nil
	}
	ni, err := p.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	i, err := p.add(Constant{Tag: TagClass, A: ni})
	if err != nil {
		return 0, err
	}
	p.classes[name] = i
	return i, nil
}

// AddNameAndType appends a NameAndType entry.
func (p *Pool) AddNameAndType(name, desc string) (uint16, error) {
	ni, err := p.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	di, err := p.AddUtf8(desc)
	if err != nil {
		return 0, err
	}
	for i, c := range p.entries {
		if c.Tag == TagNameAndType && c.A == ni && c.B == di {
			return uint16(i), nil
		}
	}
	return p.add(Constant{Tag: TagNameAndType, A: ni, B: di})
}

// AddMemberRef appends a Fieldref, Methodref or InterfaceMethodref entry.
func (p *Pool) AddMemberRef(tag Tag, owner, name, desc string) (uint16, error) {
	ci, err := p.AddClass(owner)
	if err != nil {
		return 0, err
	}
	nt, err := p.AddNameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	for i, c := range p.entries {
		if c.Tag == tag && c.A == ci && c.B == nt {
			return uint16(i), nil
		}
	}
	return p.add(Constant{Tag: tag, A: ci, B: nt})
}

// AddString appends a String entry.
func (p *Pool) AddString(s string) (uint16, error) {
	ui, err := p.AddUtf8(s)
	if err != nil {
		return 0, err
	}
	return p.add(Constant{Tag: TagString, A: ui})
}

// AddInteger appends an Integer entry.
func (p *Pool) AddInteger(v int32) (uint16, error) {
	return p.add(Constant{Tag: TagInteger, Bits: uint64(uint32(v))})
}

func parsePool(s *Stream) (*Pool, error) {
	count, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("classfile: constant_pool_count is 0")
	}
	p := &Pool{entries: make([]Constant, 1, count)}
	for len(p.entries) < int(count) {
		tag, err := s.ReadUint8()
		if err != nil {
			return nil, err
		}
		c := Constant{Tag: Tag(tag)}
		switch c.Tag {
		case TagUtf8:
			n, err := s.ReadUint16()
			if err != nil {
				return nil, err
			}
			if c.raw, err = s.ReadBytes(int(n)); err != nil {
				return nil, err
			}
			c.Utf8 = decodeModifiedUTF8(c.raw)
		case TagInteger, TagFloat:
			v, err := s.ReadUint32()
			if err != nil {
				return nil, err
			}
			c.Bits = uint64(v)
		case TagLong, TagDouble:
			hi, err := s.ReadUint32()
			if err != nil {
				return nil, err
			}
			lo, err := s.ReadUint32()
			if err != nil {
				return nil, err
			}
			c.Bits = uint64(hi)<<32 | uint64(lo)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			if c.A, err = s.ReadUint16(); err != nil {
				return nil, err
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			if c.A, err = s.ReadUint16(); err != nil {
				return nil, err
			}
			if c.B, err = s.ReadUint16(); err != nil {
				return nil, err
			}
		case TagMethodHandle:
			kind, err := s.ReadUint8()
			if err != nil {
				return nil, err
			}
			c.A = uint16(kind)
			if c.B, err = s.ReadUint16(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("classfile: unknown constant tag %d at index %d", tag, len(p.entries))
		}
		p.entries = append(p.entries, c)
		if c.Tag == TagLong || c.Tag == TagDouble {
			p.entries = append(p.entries, Constant{})
		}
	}
	if len(p.entries) != int(count) {
		return nil, fmt.Errorf("classfile: wide constant overflows constant_pool_count %d", count)
	}
	return p, nil
}

func (p *Pool) encode(w *Buffer) {
	w.U2(uint16(len(p.entries)))
	for _, c := range p.entries {
		if c.Tag == 0 {
			continue
		}
		w.U1(uint8(c.Tag))
		switch c.Tag {
		case TagUtf8:
			raw := c.raw
			if raw == nil {
				raw = encodeModifiedUTF8(c.Utf8)
			}
			w.U2(uint16(len(raw)))
			w.Write(raw)
		case TagInteger, TagFloat:
			w.U4(uint32(c.Bits))
		case TagLong, TagDouble:
			w.U4(uint32(c.Bits >> 32))
			w.U4(uint32(c.Bits))
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.U2(c.A)
		case TagMethodHandle:
			w.U1(uint8(c.A))
			w.U2(c.B)
		default:
			w.U2(c.A)
			w.U2(c.B)
		}
	}
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8 (NUL as two bytes,
// supplementary characters as surrogate pairs).
func decodeModifiedUTF8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}
	return string(utf16.Decode(units))
}

func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, byte(0xC0|u>>6), byte(0x80|u&0x3F))
		default:
			out = append(out, byte(0xE0|u>>12), byte(0x80|(u>>6)&0x3F), byte(0x80|u&0x3F))
		}
	}
	return out
}
