package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrUnboundLabel = errors.New("bytecode: unbound label")

// Label names a code offset that may be bound after it is referenced.
type Label int

type fixup struct {
	at    int // operand position
	from  int // offset of the referencing instruction
	label Label
	wide  bool
}

// Assembler appends encoded instructions to a code buffer.
type Assembler struct {
	buf    []byte
	labels []int
	fixups []fixup
	err    error
}

// Len returns the current code length.
func (a *Assembler) Len() int { return len(a.buf) }

// NewLabel returns an unbound label.
func (a *Assembler) NewLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

// Mark binds l to the current offset.
func (a *Assembler) Mark(l Label) { a.labels[l] = len(a.buf) }

// MarkAt binds l to an arbitrary offset, such as code appended later.
func (a *Assembler) MarkAt(l Label, offset int) { a.labels[l] = offset }

// Offset returns the bound offset of l, or -1.
func (a *Assembler) Offset(l Label) int { return a.labels[l] }

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Op emits an instruction without operands.
func (a *Assembler) Op(op Opcode) { a.buf = append(a.buf, byte(op)) }

// Nops emits n nop instructions.
func (a *Assembler) Nops(n int) {
	for i := 0; i < n; i++ {
		a.Op(Nop)
	}
}

// Int pushes an int constant with the shortest encoding.
func (a *Assembler) Int(v int) {
	switch {
	case v >= -1 && v <= 5:
		a.Op(Opcode(int(Iconst0) + v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		a.buf = append(a.buf, byte(Bipush), byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		a.buf = append(a.buf, byte(Sipush))
		a.buf = binary.BigEndian.AppendUint16(a.buf, uint16(int16(v)))
	default:
		a.fail(fmt.Errorf("bytecode: int constant %d needs ldc", v))
	}
}

// Var emits a local variable instruction. op is the general form (iload,
// astore, ret, ...); short and wide forms are chosen from slot.
func (a *Assembler) Var(op Opcode, slot int) {
	switch {
	case slot < 0 || slot > math.MaxUint16:
		a.fail(fmt.Errorf("bytecode: local slot %d out of range", slot))
	case slot <= 3 && op >= Iload && op <= Aload:
		a.Op(Iload0 + (op-Iload)*4 + Opcode(slot))
	case slot <= 3 && op >= Istore && op <= Astore:
		a.Op(Istore0 + (op-Istore)*4 + Opcode(slot))
	case slot <= math.MaxUint8:
		a.buf = append(a.buf, byte(op), byte(slot))
	default:
		a.buf = append(a.buf, byte(Wide), byte(op))
		a.buf = binary.BigEndian.AppendUint16(a.buf, uint16(slot))
	}
}

// Iinc increments a local int.
func (a *Assembler) Iinc(slot, incr int) {
	if slot <= math.MaxUint8 && incr >= math.MinInt8 && incr <= math.MaxInt8 {
		a.buf = append(a.buf, byte(Iinc), byte(slot), byte(int8(incr)))
		return
	}
	a.buf = append(a.buf, byte(Wide), byte(Iinc))
	a.buf = binary.BigEndian.AppendUint16(a.buf, uint16(slot))
	a.buf = binary.BigEndian.AppendUint16(a.buf, uint16(int16(incr)))
}

// Jump emits a branch to l. goto_w and jsr_w take a 32-bit offset.
func (a *Assembler) Jump(op Opcode, l Label) {
	wide := op == GotoW || op == JsrW
	from := len(a.buf)
	a.buf = append(a.buf, byte(op))
	a.fixups = append(a.fixups, fixup{at: len(a.buf), from: from, label: l, wide: wide})
	if wide {
		a.buf = append(a.buf, 0, 0, 0, 0)
	} else {
		a.buf = append(a.buf, 0, 0)
	}
}

// CP emits an instruction with a two-byte constant pool operand
// (field, method, type and ldc_w/ldc2_w instructions).
func (a *Assembler) CP(op Opcode, index uint16) {
	a.buf = append(a.buf, byte(op))
	a.buf = binary.BigEndian.AppendUint16(a.buf, index)
	switch op {
	case InvokeInterface:
		a.fail(errors.New("bytecode: use InvokeInterface"))
	case InvokeDynamic:
		a.buf = append(a.buf, 0, 0)
	}
}

// Ldc loads a single-slot constant.
func (a *Assembler) Ldc(index uint16) {
	if index <= math.MaxUint8 {
		a.buf = append(a.buf, byte(Ldc), byte(index))
		return
	}
	a.CP(LdcW, index)
}

// InvokeInterface emits invokeinterface with its argument slot count.
func (a *Assembler) InvokeInterface(index uint16, count int) {
	a.buf = append(a.buf, byte(InvokeInterface))
	a.buf = binary.BigEndian.AppendUint16(a.buf, index)
	a.buf = append(a.buf, byte(count), 0)
}

// LookupSwitch emits a lookupswitch; keys must be sorted.
func (a *Assembler) LookupSwitch(def Label, keys []int32, targets []Label) {
	from := len(a.buf)
	a.buf = append(a.buf, byte(LookupSwitch))
	for len(a.buf)%4 != 0 {
		a.buf = append(a.buf, 0)
	}
	a.switchTarget(from, def)
	a.buf = binary.BigEndian.AppendUint32(a.buf, uint32(len(keys)))
	for i, k := range keys {
		a.buf = binary.BigEndian.AppendUint32(a.buf, uint32(k))
		a.switchTarget(from, targets[i])
	}
}

// TableSwitch emits a tableswitch covering low..low+len(targets)-1.
func (a *Assembler) TableSwitch(def Label, low int32, targets []Label) {
	from := len(a.buf)
	a.buf = append(a.buf, byte(TableSwitch))
	for len(a.buf)%4 != 0 {
		a.buf = append(a.buf, 0)
	}
	a.switchTarget(from, def)
	a.buf = binary.BigEndian.AppendUint32(a.buf, uint32(low))
	a.buf = binary.BigEndian.AppendUint32(a.buf, uint32(low+int32(len(targets))-1))
	for _, t := range targets {
		a.switchTarget(from, t)
	}
}

func (a *Assembler) switchTarget(from int, l Label) {
	a.fixups = append(a.fixups, fixup{at: len(a.buf), from: from, label: l, wide: true})
	a.buf = append(a.buf, 0, 0, 0, 0)
}

// Bytes resolves label references and returns the code.
func (a *Assembler) Bytes() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	for _, f := range a.fixups {
		target := a.labels[f.label]
		if target < 0 {
			return nil, fmt.Errorf("%w %d", ErrUnboundLabel, f.label)
		}
		delta := target - f.from
		if f.wide {
			binary.BigEndian.PutUint32(a.buf[f.at:], uint32(int32(delta)))
			continue
		}
		if delta < math.MinInt16 || delta > math.MaxInt16 {
			return nil, fmt.Errorf("bytecode: branch offset %d does not fit 16 bits", delta)
		}
		binary.BigEndian.PutUint16(a.buf[f.at:], uint16(int16(delta)))
	}
	return a.buf, nil
}
