// Package transform installs a jump gate at the entry of a method.
//
// The rewritten method starts with a prologue:
//
//	nop...                 pad to a multiple of 4 to keep switch alignment
//	iconst_0
//	istore flag            flag = original max_locals
//	gate:  iload flag
//	       ifeq finish
//	       <default stores for non-parameter locals of the target>
//	       goto_w target
//	finish:                original code, shifted by the prologue length
//
// A debugger that stops at gate can set the flag to 1 and resume; the method
// then runs straight to target with every restorable local reset.
package transform

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/frame"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
)

// SwitchVariableName names the flag in the local variable table.
const SwitchVariableName = "$SETIP$"

var (
	ErrMarkNotPlaced = errors.New("transform: target line not found in method")
	ErrFrameMismatch = errors.New("transform: jump state does not match target frame")
	ErrCodeTooLarge  = errors.New("transform: patched code too large")
)

var log = commonlog.GetLogger("jumpline.transform")

// Assigner decides reference assignability for the target frame check.
type Assigner interface {
	IsAssignable(from, to string) (bool, error)
}

// Request selects the method and target to rewrite.
type Request struct {
	Method     classfile.MethodID
	Target     *liveness.Target
	ParamSlots int // slots below this index are never reset
}

// Result is a patched class.
type Result struct {
	Class            []byte
	SwitchGateOffset int // offset of the iload that tests the flag
	JumpTargetOffset int // offset of the target instruction in patched code
	FlagSlot         int
	PrologueLength   int
}

// Transform rewrites the requested method of class. It fails before
// producing any bytes when the method is not found exactly once, the target
// has no line marker at its index, or the jump state does not fit the
// target frame.
func Transform(class []byte, req Request, a Assigner) (*Result, error) {
	c, err := classfile.Parse(class)
	if err != nil {
		return nil, err
	}
	m, err := c.LoadMethod(req.Method)
	if err != nil {
		return nil, err
	}
	mem := m.Member
	s, err := bytecode.Load(m)
	if err != nil {
		return nil, err
	}
	t := req.Target
	if !marked(s, t.Index) {
		return nil, fmt.Errorf("%w: index %d", ErrMarkNotPlaced, t.Index)
	}
	targetOff := s.OffsetOf(t.Index)
	flag := int(m.Code.MaxLocals)

	stores := defaultStores(t.Locals, req.ParamSlots)
	pro, err := prologue(flag, stores, targetOff)
	if err != nil {
		return nil, err
	}
	shift := len(pro.code)
	code := append(pro.code, m.Code.Bytecode...)
	if len(code) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d bytes", ErrCodeTooLarge, len(code))
	}

	patched := &classfile.Code{
		MaxStack:  max(m.Code.MaxStack, 2),
		MaxLocals: m.Code.MaxLocals + 1,
		Bytecode:  code,
	}
	for _, h := range m.Code.Handlers {
		h.StartPC += uint16(shift)
		h.EndPC += uint16(shift)
		h.HandlerPC += uint16(shift)
		patched.Handlers = append(patched.Handlers, h)
	}

	if err := rewriteTables(c, m, patched, shift, pro, flag); err != nil {
		return nil, err
	}

	if c.Major >= classfile.StackMapVersion {
		frames, err := rewriteFrames(m, s, t, shift, pro.finish)
		if err != nil {
			return nil, err
		}
		if err := checkJumpState(m, t, stores, a); err != nil {
			return nil, err
		}
		data, err := classfile.EncodeStackMap(frames, c.Pool, m.Entry)
		if err != nil {
			return nil, err
		}
		patched.Attributes = append(patched.Attributes, classfile.Attribute{Name: classfile.AttrStackMapTable, Data: data})
	}

	body, err := patched.Encode(c.Pool)
	if err != nil {
		return nil, err
	}
	for i := range mem.Attributes {
		if mem.Attributes[i].Name == classfile.AttrCode {
			mem.Attributes[i].Data = body
		}
	}
	out, err := c.Encode()
	if err != nil {
		return nil, err
	}
	log.Debugf("patched %s.%s: prologue %d bytes, gate %d, target %d", c.Name(), req.Method, shift, pro.gate, shift+targetOff)
	return &Result{
		Class:            out,
		SwitchGateOffset: pro.gate,
		JumpTargetOffset: shift + targetOff,
		FlagSlot:         flag,
		PrologueLength:   shift,
	}, nil
}

// marked reports whether a line marker precedes instruction index i.
func marked(s *bytecode.Stream, i int) bool {
	if i < 0 || i >= s.Len() {
		return false
	}
	for _, e := range s.Elements {
		if e.Kind == bytecode.ElemLine && e.Index == i {
			return true
		}
	}
	return false
}

type store struct {
	slot int
	typ  liveness.ValueType
}

func defaultStores(locals []liveness.Local, paramSlots int) []store {
	var out []store
	for _, l := range locals {
		if l.Slot < paramSlots {
			continue
		}
		out = append(out, store{slot: l.Slot, typ: l.Type})
	}
	return out
}

type prologueCode struct {
	code   []byte
	gate   int
	finish int
}

func prologue(flag int, stores []store, targetOff int) (*prologueCode, error) {
	emit := func(pad, target int) (*bytecode.Assembler, int, int) {
		var a bytecode.Assembler
		finish, dest := a.NewLabel(), a.NewLabel()
		a.Nops(pad)
		a.Op(bytecode.Iconst0)
		a.Var(bytecode.Istore, flag)
		gate := a.Len()
		a.Var(bytecode.Iload, flag)
		a.Jump(bytecode.Ifeq, finish)
		for _, st := range stores {
			op, store := defaultOps(st.typ)
			a.Op(op)
			a.Var(store, st.slot)
		}
		a.Jump(bytecode.GotoW, dest)
		a.Mark(finish)
		a.MarkAt(dest, a.Len()+target)
		return &a, gate, a.Len()
	}
	// Operand sizes do not depend on the destination, so one dry run gives
	// the unpadded length.
	_, _, n := emit(0, 0)
	pad := (4 - n%4) % 4
	a, gate, finish := emit(pad, targetOff)
	code, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	return &prologueCode{code: code, gate: gate, finish: finish}, nil
}

// defaultOps returns the constant push and store opcodes resetting a local.
func defaultOps(vt liveness.ValueType) (push, store bytecode.Opcode) {
	switch vt.Kind {
	case liveness.KindFloat:
		return bytecode.Fconst0, bytecode.Fstore
	case liveness.KindLong:
		return bytecode.Lconst0, bytecode.Lstore
	case liveness.KindDouble:
		return bytecode.Dconst0, bytecode.Dstore
	case liveness.KindReference:
		return bytecode.AconstNull, bytecode.Astore
	}
	return bytecode.Iconst0, bytecode.Istore
}

func rewriteTables(c *classfile.Class, m *classfile.Method, patched *classfile.Code, shift int, pro *prologueCode, flag int) error {
	hasLVT := false
	for _, attr := range m.Code.Attributes {
		switch attr.Name {
		case classfile.AttrLineNumberTable:
			ls, err := classfile.ParseLineNumbers(attr.Data)
			if err != nil {
				return err
			}
			for i := range ls {
				ls[i].StartPC += uint16(shift)
			}
			patched.Attributes = append(patched.Attributes, classfile.Attribute{Name: attr.Name, Data: classfile.EncodeLineNumbers(ls)})

		case classfile.AttrLocalVariableTable, classfile.AttrLocalVariableTypeTable:
			vs, err := classfile.ParseLocalVariables(attr.Data, c.Pool)
			if err != nil {
				return err
			}
			for i := range vs {
				if vs[i].StartPC == 0 {
					vs[i].Length += uint16(shift)
				} else {
					vs[i].StartPC += uint16(shift)
				}
			}
			if attr.Name == classfile.AttrLocalVariableTable && !hasLVT {
				hasLVT = true
				vs = append(vs, switchVariable(pro, flag))
			}
			data, err := classfile.EncodeLocalVariables(vs, c.Pool)
			if err != nil {
				return err
			}
			patched.Attributes = append(patched.Attributes, classfile.Attribute{Name: attr.Name, Data: data})

		case classfile.AttrStackMapTable:
			// Rebuilt separately.
		case classfile.AttrVisibleTypeAnnotations, classfile.AttrHiddenTypeAnnotations:
			// Code offsets inside would be stale.
		default:
			patched.Attributes = append(patched.Attributes, attr)
		}
	}
	if !hasLVT {
		data, err := classfile.EncodeLocalVariables([]classfile.LocalVariable{switchVariable(pro, flag)}, c.Pool)
		if err != nil {
			return err
		}
		patched.Attributes = append(patched.Attributes, classfile.Attribute{Name: classfile.AttrLocalVariableTable, Data: data})
	}
	return nil
}

func switchVariable(pro *prologueCode, flag int) classfile.LocalVariable {
	return classfile.LocalVariable{
		StartPC:    uint16(pro.gate),
		Length:     uint16(pro.finish - pro.gate),
		Name:       SwitchVariableName,
		Descriptor: "I",
		Slot:       uint16(flag),
	}
}

func shiftVTypes(vs []classfile.VType, shift int) []classfile.VType {
	out := slices.Clone(vs)
	for i := range out {
		if out[i].Tag == classfile.VUninitialized {
			out[i].Offset += shift
		}
	}
	return out
}

// rewriteFrames shifts the original frames and adds the frames the prologue
// needs: entry locals at finish, and the target frame at the jump target.
func rewriteFrames(m *classfile.Method, s *bytecode.Stream, t *liveness.Target, shift, finish int) ([]classfile.Frame, error) {
	byOffset := make(map[int]classfile.Frame, len(m.Frames)+2)
	for _, f := range m.Frames {
		off := f.Offset + shift
		byOffset[off] = classfile.Frame{Offset: off, Locals: shiftVTypes(f.Locals, shift), Stack: shiftVTypes(f.Stack, shift)}
	}
	if _, ok := byOffset[finish]; !ok {
		byOffset[finish] = classfile.Frame{Offset: finish, Locals: slices.Clone(m.Entry)}
	}
	target := s.OffsetOf(t.Index) + shift
	if _, ok := byOffset[target]; !ok {
		if t.HasFrame {
			return nil, fmt.Errorf("%w: declared frame at %d missing", ErrFrameMismatch, target-shift)
		}
		byOffset[target] = classfile.Frame{Offset: target, Locals: shiftVTypes(t.Frame, shift)}
	}
	frames := make([]classfile.Frame, 0, len(byOffset))
	for _, f := range byOffset {
		frames = append(frames, f)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Offset < frames[j].Offset })
	return frames, nil
}

// checkJumpState verifies that the locals at goto_w fit the target frame.
func checkJumpState(m *classfile.Method, t *liveness.Target, stores []store, a Assigner) error {
	state := frame.ExpandLocals(m.Entry)
	set := func(slot int, v classfile.VType) {
		for len(state) < slot+2 {
			state = append(state, classfile.Top)
		}
		state[slot] = v
		if v.IsWide() {
			state[slot+1] = classfile.Top
		}
	}
	for _, st := range stores {
		if st.typ.Kind == liveness.KindReference {
			set(st.slot, classfile.Null)
		} else {
			set(st.slot, st.typ.VType())
		}
	}
	want := frame.ExpandLocals(t.Frame)
	for slot, w := range want {
		if w == classfile.Top {
			continue
		}
		var have classfile.VType
		if slot < len(state) {
			have = state[slot]
		}
		ok, err := assignable(have, w, a)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: slot %d is %s, target expects %s", ErrFrameMismatch, slot, have, w)
		}
	}
	return nil
}

func assignable(from, to classfile.VType, a Assigner) (bool, error) {
	if from == to {
		return true, nil
	}
	if to.Tag != classfile.VObject {
		return false, nil
	}
	switch from.Tag {
	case classfile.VNull:
		return true, nil
	case classfile.VObject:
		if a == nil {
			return to.Class == frame.RootClass, nil
		}
		return a.IsAssignable(from.Class, to.Class)
	}
	return false, nil
}
