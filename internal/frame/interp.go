package frame

import (
	"errors"
	"fmt"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

var (
	ErrUnsupported = errors.New("frame: unsupported instruction")
	ErrStack       = errors.New("frame: operand stack mismatch")
	ErrLocal       = errors.New("frame: local slot out of range")
)

var (
	javaString       = classfile.Object("java/lang/String")
	javaClass        = classfile.Object("java/lang/Class")
	javaMethodType   = classfile.Object("java/lang/invoke/MethodType")
	javaMethodHandle = classfile.Object("java/lang/invoke/MethodHandle")
)

// newarray element codes.
var primitiveArrays = map[int]string{4: "[Z", 5: "[C", 6: "[F", 7: "[D", 8: "[B", 9: "[S", 10: "[I", 11: "[J"}

// machine executes one instruction over a working copy of a state.
type machine struct {
	owner string
	pool  *classfile.Pool
	news  map[int]string // offset of new -> created class
	st    *State
	in    *bytecode.Inst
}

func (m *machine) fail(format string, args ...any) error {
	return fmt.Errorf("frame: %s at %d: %s", m.in.Op.Name(), m.in.Offset, fmt.Sprintf(format, args...))
}

func (m *machine) push(v classfile.VType) {
	m.st.Stack = append(m.st.Stack, v)
	if v.IsWide() {
		m.st.Stack = append(m.st.Stack, classfile.Top)
	}
}

func (m *machine) popWords(n int) error {
	if len(m.st.Stack) < n {
		return fmt.Errorf("%w: %s at %d pops %d of %d", ErrStack, m.in.Op.Name(), m.in.Offset, n, len(m.st.Stack))
	}
	m.st.Stack = m.st.Stack[:len(m.st.Stack)-n]
	return nil
}

// pop removes one value (one or two words) and returns it.
func (m *machine) pop() (classfile.VType, error) {
	n := len(m.st.Stack)
	if n == 0 {
		return classfile.VType{}, fmt.Errorf("%w: %s at %d pops empty stack", ErrStack, m.in.Op.Name(), m.in.Offset)
	}
	if n >= 2 && m.st.Stack[n-1] == classfile.Top && m.st.Stack[n-2].IsWide() {
		v := m.st.Stack[n-2]
		m.st.Stack = m.st.Stack[:n-2]
		return v, nil
	}
	v := m.st.Stack[n-1]
	m.st.Stack = m.st.Stack[:n-1]
	return v, nil
}

func (m *machine) popDesc(desc string) error {
	return m.popWords(classfile.SlotSize(desc))
}

func (m *machine) load(slot int) (classfile.VType, error) {
	if slot < 0 || slot >= len(m.st.Locals) {
		return classfile.VType{}, fmt.Errorf("%w: %d at %d", ErrLocal, slot, m.in.Offset)
	}
	return m.st.Locals[slot], nil
}

func (m *machine) store(slot int, v classfile.VType) error {
	size := 1
	if v.IsWide() {
		size = 2
	}
	if slot < 0 || slot+size > len(m.st.Locals) {
		return fmt.Errorf("%w: %d at %d", ErrLocal, slot, m.in.Offset)
	}
	if slot > 0 && m.st.Locals[slot-1].IsWide() {
		m.st.Locals[slot-1] = classfile.Top
	}
	m.st.Locals[slot] = v
	if size == 2 {
		m.st.Locals[slot+1] = classfile.Top
	}
	return nil
}

// initialize replaces every occurrence of an uninitialized value after
// its constructor call.
func (m *machine) initialize(u classfile.VType) error {
	var done classfile.VType
	switch u.Tag {
	case classfile.VUninitializedThis:
		done = classfile.Object(m.owner)
	case classfile.VUninitialized:
		name, ok := m.news[u.Offset]
		if !ok {
			return m.fail("no new instruction at %d", u.Offset)
		}
		done = classfile.Object(name)
	default:
		return nil
	}
	for i, v := range m.st.Locals {
		if v == u {
			m.st.Locals[i] = done
		}
	}
	for i, v := range m.st.Stack {
		if v == u {
			m.st.Stack[i] = done
		}
	}
	return nil
}

func (m *machine) className() (string, error) {
	name, err := m.pool.ClassName(m.in.CP)
	if err != nil {
		return "", m.fail("%v", err)
	}
	return name, nil
}

func arrayElement(arr classfile.VType) classfile.VType {
	if arr.Tag == classfile.VNull {
		return classfile.Null
	}
	if arr.Tag == classfile.VObject && len(arr.Class) > 1 && arr.Class[0] == '[' {
		return classfile.FieldVType(arr.Class[1:])
	}
	return classfile.Object(RootClass)
}

// step applies the instruction to m.st.
func (m *machine) step() error {
	in := m.in
	op := in.BaseOp()
	I, L, F, D := classfile.Integer, classfile.Long, classfile.Float, classfile.Double

	// unary: pop words then push a result.
	unary := func(pop int, res classfile.VType) error {
		if err := m.popWords(pop); err != nil {
			return err
		}
		m.push(res)
		return nil
	}

	switch {
	case op == bytecode.Nop:
		return nil
	case op == bytecode.AconstNull:
		m.push(classfile.Null)
	case op >= bytecode.IconstM1 && op <= bytecode.Iconst5, op == bytecode.Bipush, op == bytecode.Sipush:
		m.push(I)
	case op == bytecode.Lconst0 || op == bytecode.Lconst1:
		m.push(L)
	case op >= bytecode.Fconst0 && op <= bytecode.Fconst2:
		m.push(F)
	case op == bytecode.Dconst0 || op == bytecode.Dconst1:
		m.push(D)
	case op == bytecode.Ldc:
		return m.ldc()

	case op >= bytecode.Iload && op <= bytecode.Dload:
		m.push([]classfile.VType{I, L, F, D}[op-bytecode.Iload])
	case op == bytecode.Aload:
		v, err := m.load(in.Var)
		if err != nil {
			return err
		}
		m.push(v)
	case op == bytecode.Iaload, op == bytecode.Baload, op == bytecode.Caload, op == bytecode.Saload:
		return unary(2, I)
	case op == bytecode.Laload:
		return unary(2, L)
	case op == bytecode.Faload:
		return unary(2, F)
	case op == bytecode.Daload:
		return unary(2, D)
	case op == bytecode.Aaload:
		if err := m.popWords(1); err != nil {
			return err
		}
		arr, err := m.pop()
		if err != nil {
			return err
		}
		m.push(arrayElement(arr))

	case op >= bytecode.Istore && op <= bytecode.Astore:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.store(in.Var, v)
	case op == bytecode.Lastore || op == bytecode.Dastore:
		return m.popWords(4)
	case op >= bytecode.Iastore && op <= bytecode.Sastore:
		return m.popWords(3)

	case op == bytecode.Pop:
		return m.popWords(1)
	case op == bytecode.Pop2:
		return m.popWords(2)
	case op >= bytecode.Dup && op <= bytecode.Swap:
		return m.shuffle(op)

	case op >= bytecode.Iadd && op <= bytecode.Lxor:
		return m.arith(op)
	case op == bytecode.Iinc:
		v, err := m.load(in.Var)
		if err != nil {
			return err
		}
		if v != I {
			return m.fail("local %d is %s", in.Var, v)
		}
	case op >= bytecode.I2l && op <= bytecode.I2s:
		return m.convert(op)
	case op == bytecode.Lcmp:
		return unary(4, I)
	case op == bytecode.Fcmpl || op == bytecode.Fcmpg:
		return unary(2, I)
	case op == bytecode.Dcmpl || op == bytecode.Dcmpg:
		return unary(4, I)

	case op >= bytecode.Ifeq && op <= bytecode.Ifle, op == bytecode.IfNull, op == bytecode.IfNonNull:
		return m.popWords(1)
	case op >= bytecode.IfIcmpeq && op <= bytecode.IfAcmpne:
		return m.popWords(2)
	case op == bytecode.Goto:
		return nil
	case op == bytecode.Jsr || op == bytecode.Ret:
		return fmt.Errorf("%w: %s at %d", ErrUnsupported, in.Op.Name(), in.Offset)
	case op == bytecode.TableSwitch || op == bytecode.LookupSwitch:
		return m.popWords(1)
	case op == bytecode.Ireturn || op == bytecode.Freturn || op == bytecode.Areturn:
		return m.popWords(1)
	case op == bytecode.Lreturn || op == bytecode.Dreturn:
		return m.popWords(2)
	case op == bytecode.Return:
		return nil

	case op >= bytecode.GetStatic && op <= bytecode.PutField:
		return m.field(op)
	case op >= bytecode.InvokeVirtual && op <= bytecode.InvokeDynamic:
		return m.invoke(op)

	case op == bytecode.New:
		if _, err := m.className(); err != nil {
			return err
		}
		m.push(classfile.Uninitialized(in.Offset))
	case op == bytecode.NewArray:
		desc, ok := primitiveArrays[in.Operand]
		if !ok {
			return m.fail("bad array type %d", in.Operand)
		}
		return unary(1, classfile.Object(desc))
	case op == bytecode.ANewArray:
		name, err := m.className()
		if err != nil {
			return err
		}
		return unary(1, classfile.Object("["+descOf(name)))
	case op == bytecode.ArrayLength:
		return unary(1, I)
	case op == bytecode.AThrow:
		return m.popWords(1)
	case op == bytecode.CheckCast:
		name, err := m.className()
		if err != nil {
			return err
		}
		return unary(1, classfile.Object(name))
	case op == bytecode.InstanceOf:
		return unary(1, I)
	case op == bytecode.MonitorEnter || op == bytecode.MonitorExit:
		return m.popWords(1)
	case op == bytecode.MultiANewArray:
		name, err := m.className()
		if err != nil {
			return err
		}
		return unary(in.Operand, classfile.Object(name))
	default:
		return fmt.Errorf("%w: %s at %d", ErrUnsupported, in.Op.Name(), in.Offset)
	}
	return nil
}

func (m *machine) ldc() error {
	c, err := m.pool.At(m.in.CP)
	if err != nil {
		return m.fail("%v", err)
	}
	switch c.Tag {
	case classfile.TagInteger:
		m.push(classfile.Integer)
	case classfile.TagFloat:
		m.push(classfile.Float)
	case classfile.TagLong:
		m.push(classfile.Long)
	case classfile.TagDouble:
		m.push(classfile.Double)
	case classfile.TagString:
		m.push(javaString)
	case classfile.TagClass:
		m.push(javaClass)
	case classfile.TagMethodType:
		m.push(javaMethodType)
	case classfile.TagMethodHandle:
		m.push(javaMethodHandle)
	case classfile.TagDynamic:
		_, desc, err := m.pool.DynamicRef(m.in.CP)
		if err != nil {
			return m.fail("%v", err)
		}
		m.push(classfile.FieldVType(desc))
	default:
		return m.fail("constant %d has tag %d", m.in.CP, c.Tag)
	}
	return nil
}

// shuffle implements the dup/swap family on stack words.
func (m *machine) shuffle(op bytecode.Opcode) error {
	need := map[bytecode.Opcode]int{
		bytecode.Dup: 1, bytecode.DupX1: 2, bytecode.DupX2: 3,
		bytecode.Dup2: 2, bytecode.Dup2X1: 3, bytecode.Dup2X2: 4, bytecode.Swap: 2,
	}[op]
	s := m.st.Stack
	if len(s) < need {
		return fmt.Errorf("%w: %s at %d needs %d words", ErrStack, op.Name(), m.in.Offset, need)
	}
	top := func(k int) classfile.VType { return s[len(s)-k] }
	base := s[:len(s)-need]
	var tail []classfile.VType
	switch op {
	case bytecode.Dup:
		tail = []classfile.VType{top(1), top(1)}
	case bytecode.DupX1:
		tail = []classfile.VType{top(1), top(2), top(1)}
	case bytecode.DupX2:
		tail = []classfile.VType{top(1), top(3), top(2), top(1)}
	case bytecode.Dup2:
		tail = []classfile.VType{top(2), top(1), top(2), top(1)}
	case bytecode.Dup2X1:
		tail = []classfile.VType{top(2), top(1), top(3), top(2), top(1)}
	case bytecode.Dup2X2:
		tail = []classfile.VType{top(2), top(1), top(4), top(3), top(2), top(1)}
	case bytecode.Swap:
		tail = []classfile.VType{top(1), top(2)}
	}
	m.st.Stack = append(append(make([]classfile.VType, 0, len(base)+len(tail)), base...), tail...)
	return nil
}

func (m *machine) arith(op bytecode.Opcode) error {
	if op >= bytecode.Ineg && op <= bytecode.Dneg {
		res := []classfile.VType{classfile.Integer, classfile.Long, classfile.Float, classfile.Double}[op-bytecode.Ineg]
		if err := m.popWords(slots(res)); err != nil {
			return err
		}
		m.push(res)
		return nil
	}
	if op >= bytecode.Ishl && op <= bytecode.Lushr {
		res := classfile.Integer
		if (op-bytecode.Ishl)%2 == 1 {
			res = classfile.Long
		}
		if err := m.popWords(1 + slots(res)); err != nil {
			return err
		}
		m.push(res)
		return nil
	}
	// iadd..drem cycle through i, l, f, d; iand..lxor alternate i, l.
	var res classfile.VType
	if op <= bytecode.Drem {
		res = []classfile.VType{classfile.Integer, classfile.Long, classfile.Float, classfile.Double}[(op-bytecode.Iadd)%4]
	} else {
		res = classfile.Integer
		if (op-bytecode.Iand)%2 == 1 {
			res = classfile.Long
		}
	}
	if err := m.popWords(2 * slots(res)); err != nil {
		return err
	}
	m.push(res)
	return nil
}

func (m *machine) convert(op bytecode.Opcode) error {
	I, L, F, D := classfile.Integer, classfile.Long, classfile.Float, classfile.Double
	conv := map[bytecode.Opcode][2]classfile.VType{
		bytecode.I2l: {I, L}, bytecode.I2f: {I, F}, bytecode.I2d: {I, D},
		bytecode.L2i: {L, I}, bytecode.L2f: {L, F}, bytecode.L2d: {L, D},
		bytecode.F2i: {F, I}, bytecode.F2l: {F, L}, bytecode.F2d: {F, D},
		bytecode.D2i: {D, I}, bytecode.D2l: {D, L}, bytecode.D2f: {D, F},
		bytecode.I2b: {I, I}, bytecode.I2c: {I, I}, bytecode.I2s: {I, I},
	}[op]
	if err := m.popWords(slots(conv[0])); err != nil {
		return err
	}
	m.push(conv[1])
	return nil
}

func (m *machine) field(op bytecode.Opcode) error {
	_, _, desc, err := m.pool.MemberRef(m.in.CP)
	if err != nil {
		return m.fail("%v", err)
	}
	switch op {
	case bytecode.GetStatic:
		m.push(classfile.FieldVType(desc))
	case bytecode.PutStatic:
		return m.popDesc(desc)
	case bytecode.GetField:
		if err := m.popWords(1); err != nil {
			return err
		}
		m.push(classfile.FieldVType(desc))
	case bytecode.PutField:
		if err := m.popDesc(desc); err != nil {
			return err
		}
		return m.popWords(1)
	}
	return nil
}

func (m *machine) invoke(op bytecode.Opcode) error {
	var name, desc string
	var err error
	if op == bytecode.InvokeDynamic {
		name, desc, err = m.pool.DynamicRef(m.in.CP)
	} else {
		_, name, desc, err = m.pool.MemberRef(m.in.CP)
	}
	if err != nil {
		return m.fail("%v", err)
	}
	params, ret, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return m.fail("%v", err)
	}
	for i := len(params) - 1; i >= 0; i-- {
		if err := m.popDesc(params[i]); err != nil {
			return err
		}
	}
	if op != bytecode.InvokeStatic && op != bytecode.InvokeDynamic {
		recv, err := m.pop()
		if err != nil {
			return err
		}
		if op == bytecode.InvokeSpecial && name == "<init>" {
			if err := m.initialize(recv); err != nil {
				return err
			}
		}
	}
	if ret != "V" {
		m.push(classfile.FieldVType(ret))
	}
	return nil
}

func slots(v classfile.VType) int {
	if v.IsWide() {
		return 2
	}
	return 1
}
