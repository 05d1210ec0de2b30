// Package bytecode decodes JVM method bodies into instruction streams,
// builds basic-block control flow graphs over them and assembles short
// instruction sequences.
package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTruncated = errors.New("bytecode: truncated instruction")
	ErrOpcode    = errors.New("bytecode: invalid opcode")
	ErrTarget    = errors.New("bytecode: branch target is not an instruction")
)

// Inst is one decoded instruction.
type Inst struct {
	Offset  int
	Size    int
	Op      Opcode // for wide instructions, the widened opcode
	Wide    bool
	Var     int     // local slot (KindVar, KindIinc)
	Incr    int     // iinc increment
	Operand int     // bipush/sipush value, newarray type, dimensions, invokeinterface count
	CP      uint16  // constant pool index
	Target  int     // absolute branch target; switch default
	Keys    []int32 // switch keys, parallel to Targets
	Targets []int   // absolute switch case targets
}

// Kind returns the operand shape of the instruction.
func (in *Inst) Kind() Kind { return in.Op.Kind() }

// BaseOp folds short forms onto their general opcode: iload_2 -> iload,
// goto_w -> goto, ldc_w and ldc2_w -> ldc.
func (in *Inst) BaseOp() Opcode {
	op := in.Op
	switch {
	case op >= Iload0 && op <= Aload3:
		return Iload + (op-Iload0)/4
	case op >= Istore0 && op <= Astore3:
		return Istore + (op-Istore0)/4
	case op == GotoW:
		return Goto
	case op == JsrW:
		return Jsr
	case op == LdcW || op == Ldc2W:
		return Ldc
	}
	return op
}

// IsLoad reports whether the instruction reads local Var.
func (in *Inst) IsLoad() bool {
	op := in.BaseOp()
	return op >= Iload && op <= Aload
}

// IsStore reports whether the instruction writes local Var.
func (in *Inst) IsStore() bool {
	op := in.BaseOp()
	return op >= Istore && op <= Astore
}

func (in *Inst) String() string {
	var b strings.Builder
	if in.Wide {
		b.WriteString("wide ")
	}
	b.WriteString(in.Op.Name())
	switch in.Kind() {
	case KindInt:
		fmt.Fprintf(&b, " %d", in.Operand)
	case KindVar:
		if in.Op < Iload0 || in.Op > Astore3 || (in.Op > Aload3 && in.Op < Istore0) {
			fmt.Fprintf(&b, " %d", in.Var)
		}
	case KindIinc:
		fmt.Fprintf(&b, " %d %d", in.Var, in.Incr)
	case KindJump:
		fmt.Fprintf(&b, " %d", in.Target)
	case KindTableSwitch, KindLookupSwitch:
		fmt.Fprintf(&b, " default:%d", in.Target)
		for i, k := range in.Keys {
			fmt.Fprintf(&b, " %d:%d", k, in.Targets[i])
		}
	case KindLdc, KindField, KindMethod, KindInvokeDynamic, KindType:
		fmt.Fprintf(&b, " #%d", in.CP)
	case KindMultiANewArray:
		fmt.Fprintf(&b, " #%d %d", in.CP, in.Operand)
	}
	return b.String()
}

// Decode decodes a method's code array.
func Decode(code []byte) ([]Inst, error) {
	var insts []Inst
	starts := make(map[int]bool)
	for pc := 0; pc < len(code); {
		in, err := decodeOne(code, pc)
		if err != nil {
			return nil, fmt.Errorf("%w at offset %d", err, pc)
		}
		starts[pc] = true
		insts = append(insts, in)
		pc += in.Size
	}
	for _, in := range insts {
		for _, t := range in.branchTargets() {
			if !starts[t] {
				return nil, fmt.Errorf("%w: %d from offset %d", ErrTarget, t, in.Offset)
			}
		}
	}
	return insts, nil
}

func (in *Inst) branchTargets() []int {
	switch in.Kind() {
	case KindJump:
		return []int{in.Target}
	case KindTableSwitch, KindLookupSwitch:
		return append([]int{in.Target}, in.Targets...)
	}
	return nil
}

func decodeOne(code []byte, pc int) (Inst, error) {
	in := Inst{Offset: pc, Op: Opcode(code[pc])}
	need := func(n int) error {
		if pc+n > len(code) {
			return ErrTruncated
		}
		return nil
	}
	u1 := func(at int) int { return int(code[at]) }
	u2 := func(at int) int { return int(binary.BigEndian.Uint16(code[at:])) }
	s2 := func(at int) int { return int(int16(binary.BigEndian.Uint16(code[at:]))) }
	s4 := func(at int) int { return int(int32(binary.BigEndian.Uint32(code[at:]))) }

	switch in.Op.Kind() {
	case KindInvalid:
		return in, fmt.Errorf("%w 0x%02x", ErrOpcode, code[pc])
	case KindInsn:
		in.Size = 1
	case KindInt:
		switch in.Op {
		case Bipush:
			in.Size = 2
			if err := need(2); err != nil {
				return in, err
			}
			in.Operand = int(int8(code[pc+1]))
		case Sipush:
			in.Size = 3
			if err := need(3); err != nil {
				return in, err
			}
			in.Operand = s2(pc + 1)
		default: // newarray
			in.Size = 2
			if err := need(2); err != nil {
				return in, err
			}
			in.Operand = u1(pc + 1)
		}
	case KindLdc:
		if in.Op == Ldc {
			in.Size = 2
			if err := need(2); err != nil {
				return in, err
			}
			in.CP = uint16(u1(pc + 1))
		} else {
			in.Size = 3
			if err := need(3); err != nil {
				return in, err
			}
			in.CP = uint16(u2(pc + 1))
		}
	case KindVar:
		switch {
		case in.Op >= Iload0 && in.Op <= Aload3:
			in.Size = 1
			in.Var = int(in.Op-Iload0) % 4
		case in.Op >= Istore0 && in.Op <= Astore3:
			in.Size = 1
			in.Var = int(in.Op-Istore0) % 4
		default:
			in.Size = 2
			if err := need(2); err != nil {
				return in, err
			}
			in.Var = u1(pc + 1)
		}
	case KindIinc:
		in.Size = 3
		if err := need(3); err != nil {
			return in, err
		}
		in.Var = u1(pc + 1)
		in.Incr = int(int8(code[pc+2]))
	case KindJump:
		if in.Op == GotoW || in.Op == JsrW {
			in.Size = 5
			if err := need(5); err != nil {
				return in, err
			}
			in.Target = pc + s4(pc+1)
		} else {
			in.Size = 3
			if err := need(3); err != nil {
				return in, err
			}
			in.Target = pc + s2(pc+1)
		}
	case KindTableSwitch, KindLookupSwitch:
		return decodeSwitch(code, in)
	case KindField, KindMethod, KindType:
		in.Size = 3
		if in.Op == InvokeInterface {
			in.Size = 5
		}
		if err := need(in.Size); err != nil {
			return in, err
		}
		in.CP = uint16(u2(pc + 1))
		if in.Op == InvokeInterface {
			in.Operand = u1(pc + 3)
		}
	case KindInvokeDynamic:
		in.Size = 5
		if err := need(5); err != nil {
			return in, err
		}
		in.CP = uint16(u2(pc + 1))
	case KindMultiANewArray:
		in.Size = 4
		if err := need(4); err != nil {
			return in, err
		}
		in.CP = uint16(u2(pc + 1))
		in.Operand = u1(pc + 3)
	case KindWide:
		if err := need(4); err != nil {
			return in, err
		}
		in.Wide = true
		in.Op = Opcode(code[pc+1])
		switch k := in.Op.Kind(); {
		case k == KindIinc:
			in.Size = 6
			if err := need(6); err != nil {
				return in, err
			}
			in.Var = u2(pc + 2)
			in.Incr = s2(pc + 4)
		case k == KindVar && (in.Op < Iload0 || in.Op > Astore3 || (in.Op > Aload3 && in.Op < Istore0)):
			in.Size = 4
			in.Var = u2(pc + 2)
		default:
			return in, fmt.Errorf("%w: wide %s", ErrOpcode, in.Op.Name())
		}
	}
	return in, nil
}

func decodeSwitch(code []byte, in Inst) (Inst, error) {
	pc := in.Offset
	at := pc + 1 + (4-(pc+1)%4)%4
	s4 := func() (int, error) {
		if at+4 > len(code) {
			return 0, ErrTruncated
		}
		v := int(int32(binary.BigEndian.Uint32(code[at:])))
		at += 4
		return v, nil
	}
	def, err := s4()
	if err != nil {
		return in, err
	}
	in.Target = pc + def
	if in.Op == TableSwitch {
		low, err := s4()
		if err != nil {
			return in, err
		}
		high, err := s4()
		if err != nil {
			return in, err
		}
		if high < low || high-low >= 1<<16 {
			return in, fmt.Errorf("%w: tableswitch range %d..%d", ErrOpcode, low, high)
		}
		for k := low; k <= high; k++ {
			off, err := s4()
			if err != nil {
				return in, err
			}
			in.Keys = append(in.Keys, int32(k))
			in.Targets = append(in.Targets, pc+off)
		}
	} else {
		n, err := s4()
		if err != nil {
			return in, err
		}
		if n < 0 || n >= 1<<16 {
			return in, fmt.Errorf("%w: lookupswitch npairs %d", ErrOpcode, n)
		}
		for i := 0; i < n; i++ {
			key, err := s4()
			if err != nil {
				return in, err
			}
			off, err := s4()
			if err != nil {
				return in, err
			}
			in.Keys = append(in.Keys, int32(key))
			in.Targets = append(in.Targets, pc+off)
		}
	}
	in.Size = at - pc
	return in, nil
}
