package transform

import (
	"errors"
	"testing"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/classfile/classtest"
	"github.com/igoriakovlev/JumpToLine/internal/frame"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
	"github.com/igoriakovlev/JumpToLine/internal/supertype"
)

var mixedID = classfile.MethodID{Name: "mixed", Descriptor: "(ILjava/lang/String;)V"}

// mixed is static mixed(int i, String p) with one local of each kind:
//
//	line 10: 0 aload_1   1 astore_2          s = p
//	line 11: 2 lconst_0  3 lstore_3          j = 0L
//	line 12: 4 fconst_0  5 fstore 5          f = 0f
//	line 13: 7 dconst_0  8 dstore 6          d = 0d
//	line 14: 10 aload_2  11 pop  12 lload_3  13 pop2  14 return
func mixed(major uint16, withLocals bool) []byte {
	m := classtest.Method{
		Access: classfile.AccStatic, Name: mixedID.Name, Desc: mixedID.Descriptor,
		MaxStack: 2, MaxLocals: 8,
		Code: []byte{
			0x2b, 0x4d,
			0x09, 0x42,
			0x0b, 0x38, 0x05,
			0x0e, 0x39, 0x06,
			0x2c, 0x57, 0x21, 0x58, 0xb1,
		},
		Lines: []classfile.LineNumber{{StartPC: 0, Line: 10}, {StartPC: 2, Line: 11}, {StartPC: 4, Line: 12}, {StartPC: 7, Line: 13}, {StartPC: 10, Line: 14}},
	}
	if withLocals {
		m.Locals = []classfile.LocalVariable{
			{StartPC: 0, Length: 15, Name: "i", Descriptor: "I", Slot: 0},
			{StartPC: 0, Length: 15, Name: "p", Descriptor: "Ljava/lang/String;", Slot: 1},
			{StartPC: 2, Length: 13, Name: "s", Descriptor: "Ljava/lang/String;", Slot: 2},
			{StartPC: 4, Length: 11, Name: "j", Descriptor: "J", Slot: 3},
			{StartPC: 7, Length: 8, Name: "f", Descriptor: "F", Slot: 5},
			{StartPC: 10, Length: 5, Name: "d", Descriptor: "D", Slot: 6},
		}
	}
	b := classtest.New("pkg/T").Version(major).Method(m)
	data, err := b.Build()
	if err != nil {
		panic(err)
	}
	return data
}

type analyzed struct {
	m   *classfile.Method
	s   *bytecode.Stream
	lv  *liveness.Result
	lns *lines.Result
}

func analyze(t *testing.T, data []byte, id classfile.MethodID, fromLine int) analyzed {
	t.Helper()
	c, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, err := c.LoadMethod(id)
	if err != nil {
		t.Fatalf("LoadMethod: %v", err)
	}
	s, err := bytecode.Load(m)
	if err != nil {
		t.Fatalf("bytecode.Load: %v", err)
	}
	fr, err := frame.Analyze(m, s, nil, frame.Options{})
	if err != nil {
		t.Fatalf("frame.Analyze: %v", err)
	}
	lr, err := lines.Analyze(s, fromLine, false, nil)
	if err != nil {
		t.Fatalf("lines.Analyze: %v", err)
	}
	lv, err := liveness.Analyze(m, s, fr, lr)
	if err != nil {
		t.Fatalf("liveness.Analyze: %v", err)
	}
	return analyzed{m: m, s: s, lv: lv, lns: lr}
}

func target(t *testing.T, a analyzed, line int) *liveness.Target {
	t.Helper()
	ts := a.lv.ForSourceLine(line)
	if len(ts) != 1 {
		t.Fatalf("targets for line %d = %d, want 1", line, len(ts))
	}
	return ts[0]
}

func TestTransform_Prologue(t *testing.T) {
	a := analyze(t, mixed(52, true), mixedID, 10)
	tg := target(t, a, 14)
	res, err := Transform(mixed(52, true), Request{Method: mixedID, Target: tg, ParamSlots: a.lv.ParamSlots}, supertype.New(supertype.JDK()))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	// 1 nop of padding, iconst_0 istore 8, iload 8 ifeq, four default
	// stores, goto_w.
	if res.PrologueLength != 24 {
		t.Errorf("PrologueLength = %d, want 24", res.PrologueLength)
	}
	if res.SwitchGateOffset != 4 {
		t.Errorf("SwitchGateOffset = %d, want 4", res.SwitchGateOffset)
	}
	if res.JumpTargetOffset != 34 {
		t.Errorf("JumpTargetOffset = %d, want 34", res.JumpTargetOffset)
	}
	if res.FlagSlot != 8 {
		t.Errorf("FlagSlot = %d, want 8", res.FlagSlot)
	}

	c, err := classfile.Parse(res.Class)
	if err != nil {
		t.Fatalf("Parse patched: %v", err)
	}
	m, err := c.LoadMethod(mixedID)
	if err != nil {
		t.Fatalf("LoadMethod patched: %v", err)
	}
	if m.Code.MaxLocals != 9 || m.Code.MaxStack != 2 {
		t.Errorf("max locals/stack = %d/%d, want 9/2", m.Code.MaxLocals, m.Code.MaxStack)
	}

	insts, err := bytecode.Decode(m.Code.Bytecode)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []bytecode.Opcode{
		bytecode.Nop, bytecode.Iconst0, bytecode.Istore, bytecode.Iload, bytecode.Ifeq,
		bytecode.AconstNull, bytecode.Astore2,
		bytecode.Lconst0, bytecode.Lstore3,
		bytecode.Fconst0, bytecode.Fstore,
		bytecode.Dconst0, bytecode.Dstore,
		bytecode.GotoW,
		bytecode.Aload1,
	}
	for i, op := range want {
		if insts[i].Op != op {
			t.Fatalf("inst %d = %s, want %s", i, insts[i].Op.Name(), op.Name())
		}
	}
	if insts[4].Target != 24 {
		t.Errorf("ifeq target = %d, want 24", insts[4].Target)
	}
	if insts[13].Target != res.JumpTargetOffset {
		t.Errorf("goto_w target = %d, want %d", insts[13].Target, res.JumpTargetOffset)
	}
}

func TestTransform_Tables(t *testing.T) {
	a := analyze(t, mixed(52, true), mixedID, 10)
	res, err := Transform(mixed(52, true), Request{Method: mixedID, Target: target(t, a, 12), ParamSlots: 2}, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	c, err := classfile.Parse(res.Class)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, err := c.LoadMethod(mixedID)
	if err != nil {
		t.Fatalf("LoadMethod: %v", err)
	}
	shift := res.PrologueLength

	if len(m.Lines) != 5 || int(m.Lines[0].StartPC) != shift || int(m.Lines[4].StartPC) != shift+10 {
		t.Errorf("lines = %+v", m.Lines)
	}

	var flag *classfile.LocalVariable
	for i := range m.Locals {
		lv := &m.Locals[i]
		switch lv.Name {
		case "i":
			if lv.StartPC != 0 || int(lv.Length) != 15+shift {
				t.Errorf("parameter range = %d+%d, want 0+%d", lv.StartPC, lv.Length, 15+shift)
			}
		case "j":
			if int(lv.StartPC) != 4+shift || lv.Length != 11 {
				t.Errorf("j range = %d+%d", lv.StartPC, lv.Length)
			}
		case SwitchVariableName:
			flag = lv
		}
	}
	if flag == nil {
		t.Fatalf("no %s in %+v", SwitchVariableName, m.Locals)
	}
	if int(flag.StartPC) != res.SwitchGateOffset || int(flag.StartPC+flag.Length) != shift || int(flag.Slot) != res.FlagSlot || flag.Descriptor != "I" {
		t.Errorf("flag = %+v", *flag)
	}

	// Finish and target frames, in offset order.
	if len(m.Frames) != 2 || m.Frames[0].Offset != shift || m.Frames[1].Offset != res.JumpTargetOffset {
		t.Fatalf("frames = %+v", m.Frames)
	}
	if got := len(m.Frames[0].Locals); got != 2 {
		t.Errorf("finish frame locals = %d, want 2", got)
	}
}

func TestTransform_TargetLineSurvives(t *testing.T) {
	a := analyze(t, mixed(52, true), mixedID, 10)
	for _, line := range []int{11, 12, 13, 14} {
		res, err := Transform(mixed(52, true), Request{Method: mixedID, Target: target(t, a, line), ParamSlots: 2}, nil)
		if err != nil {
			t.Fatalf("line %d: Transform: %v", line, err)
		}
		p := analyze(t, res.Class, mixedID, 10)
		idx := p.s.IndexOf(res.JumpTargetOffset)
		lt := p.lns.Target(idx)
		if lt == nil || len(lt.Lines) == 0 || lt.Lines[0].SourceLine != line {
			t.Errorf("line %d: target at %d = %+v", line, res.JumpTargetOffset, lt)
		}
		if p.s.OffsetOf(idx) != res.JumpTargetOffset {
			t.Errorf("line %d: %d is not an instruction boundary", line, res.JumpTargetOffset)
		}
	}
}

func TestTransform_CreatesLocalVariableTable(t *testing.T) {
	a := analyze(t, mixed(52, false), mixedID, 10)
	res, err := Transform(mixed(52, false), Request{Method: mixedID, Target: target(t, a, 13), ParamSlots: 2}, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	c, _ := classfile.Parse(res.Class)
	m, err := c.LoadMethod(mixedID)
	if err != nil {
		t.Fatalf("LoadMethod: %v", err)
	}
	if len(m.Locals) != 1 || m.Locals[0].Name != SwitchVariableName {
		t.Errorf("locals = %+v", m.Locals)
	}
}

func TestTransform_OldClassHasNoFrames(t *testing.T) {
	a := analyze(t, mixed(49, true), mixedID, 10)
	res, err := Transform(mixed(49, true), Request{Method: mixedID, Target: target(t, a, 14), ParamSlots: 2}, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	c, _ := classfile.Parse(res.Class)
	m, err := c.LoadMethod(mixedID)
	if err != nil {
		t.Fatalf("LoadMethod: %v", err)
	}
	if m.Code.Attribute(classfile.AttrStackMapTable) != nil {
		t.Errorf("version 49 class got a StackMapTable")
	}
}

type assignerFunc func(from, to string) (bool, error)

func (f assignerFunc) IsAssignable(from, to string) (bool, error) { return f(from, to) }

func TestTransform_FrameMismatch(t *testing.T) {
	a := analyze(t, mixed(52, true), mixedID, 10)
	tg := *target(t, a, 14)
	tg.Frame = append([]classfile.VType(nil), tg.Frame...)
	tg.Frame[1] = classfile.Object("java/lang/Integer")

	req := Request{Method: mixedID, Target: &tg, ParamSlots: 2}
	_, err := Transform(mixed(52, true), req, supertype.New(supertype.JDK()))
	if !errors.Is(err, ErrFrameMismatch) {
		t.Errorf("err = %v, want ErrFrameMismatch", err)
	}

	boom := errors.New("boom")
	_, err = Transform(mixed(52, true), req, assignerFunc(func(string, string) (bool, error) { return false, boom }))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want assigner error", err)
	}

	ok := assignerFunc(func(from, to string) (bool, error) {
		return from == "java/lang/String" && to == "java/lang/Integer", nil
	})
	if _, err := Transform(mixed(52, true), req, ok); err != nil {
		t.Errorf("accepting assigner: %v", err)
	}
}

func TestTransform_Errors(t *testing.T) {
	a := analyze(t, mixed(52, true), mixedID, 10)
	tg := *target(t, a, 14)

	unmarked := tg
	unmarked.Index++
	if _, err := Transform(mixed(52, true), Request{Method: mixedID, Target: &unmarked, ParamSlots: 2}, nil); !errors.Is(err, ErrMarkNotPlaced) {
		t.Errorf("unmarked index: err = %v, want ErrMarkNotPlaced", err)
	}

	missing := classfile.MethodID{Name: "nope", Descriptor: "()V"}
	if _, err := Transform(mixed(52, true), Request{Method: missing, Target: &tg}, nil); !errors.Is(err, classfile.ErrMethodNotFound) {
		t.Errorf("missing method: err = %v, want ErrMethodNotFound", err)
	}

	if _, err := Transform([]byte{1, 2, 3}, Request{Method: mixedID, Target: &tg}, nil); err == nil {
		t.Errorf("garbage class: want error")
	}
}

var narrowID = classfile.MethodID{Name: "narrow", Descriptor: "(I)V"}

// narrow is static narrow(int i) with int-sized locals of each declared kind:
//
//	line 10: 0 iconst_1  1 istore_1          z = true
//	line 11: 2 iconst_2  3 istore_2          b = 2
//	line 12: 4 bipush 65  6 istore_3         c = 'A'
//	line 13: 7 iconst_3  8 istore 4          s = 3
//	line 14: 10 iload_1 11 pop 12 iload_2 13 pop 14 iload_3 15 pop
//	         16 iload 4 18 pop 19 return
func narrow(t testing.TB) []byte {
	return classtest.New("pkg/N").Method(classtest.Method{
		Access: classfile.AccStatic, Name: narrowID.Name, Desc: narrowID.Descriptor,
		MaxStack: 1, MaxLocals: 5,
		Code: []byte{
			0x04, 0x3c,
			0x05, 0x3d,
			0x10, 0x41, 0x3e,
			0x06, 0x36, 0x04,
			0x1b, 0x57, 0x1c, 0x57, 0x1d, 0x57, 0x15, 0x04, 0x57, 0xb1,
		},
		Lines: []classfile.LineNumber{{StartPC: 0, Line: 10}, {StartPC: 2, Line: 11}, {StartPC: 4, Line: 12}, {StartPC: 7, Line: 13}, {StartPC: 10, Line: 14}},
		Locals: []classfile.LocalVariable{
			{StartPC: 0, Length: 20, Name: "i", Descriptor: "I", Slot: 0},
			{StartPC: 2, Length: 18, Name: "z", Descriptor: "Z", Slot: 1},
			{StartPC: 4, Length: 16, Name: "b", Descriptor: "B", Slot: 2},
			{StartPC: 7, Length: 13, Name: "c", Descriptor: "C", Slot: 3},
			{StartPC: 10, Length: 10, Name: "s", Descriptor: "S", Slot: 4},
		},
	}).MustBuild(t)
}

func TestTransform_NarrowIntDefaults(t *testing.T) {
	a := analyze(t, narrow(t), narrowID, 10)
	tg := target(t, a, 14)
	kinds := map[int]liveness.Kind{1: liveness.KindBoolean, 2: liveness.KindByte, 3: liveness.KindChar, 4: liveness.KindShort}
	for _, l := range tg.Locals {
		if want, ok := kinds[l.Slot]; ok && l.Type.Kind != want {
			t.Errorf("slot %d kind = %v, want %v", l.Slot, l.Type.Kind, want)
		}
	}

	res, err := Transform(narrow(t), Request{Method: narrowID, Target: tg, ParamSlots: a.lv.ParamSlots}, supertype.New(supertype.JDK()))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.FlagSlot != 5 {
		t.Errorf("FlagSlot = %d, want 5", res.FlagSlot)
	}
	c, err := classfile.Parse(res.Class)
	if err != nil {
		t.Fatalf("Parse patched: %v", err)
	}
	m, err := c.LoadMethod(narrowID)
	if err != nil {
		t.Fatalf("LoadMethod patched: %v", err)
	}
	insts, err := bytecode.Decode(m.Code.Bytecode)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// Skip padding, the flag store and the gate.
	i := 0
	for insts[i].Op == bytecode.Nop {
		i++
	}
	i += 4
	want := []bytecode.Opcode{
		bytecode.Iconst0, bytecode.Istore1,
		bytecode.Iconst0, bytecode.Istore2,
		bytecode.Iconst0, bytecode.Istore3,
		bytecode.Iconst0, bytecode.Istore,
		bytecode.GotoW,
	}
	for j, op := range want {
		if insts[i+j].Op != op {
			t.Fatalf("inst %d = %s, want %s", i+j, insts[i+j].Op.Name(), op.Name())
		}
	}
	if insts[i+7].Var != 4 {
		t.Errorf("istore slot = %d, want 4", insts[i+7].Var)
	}
	if insts[i+8].Target != res.JumpTargetOffset {
		t.Errorf("goto_w target = %d, want %d", insts[i+8].Target, res.JumpTargetOffset)
	}

	var tf *classfile.Frame
	for k := range m.Frames {
		if m.Frames[k].Offset == res.JumpTargetOffset {
			tf = &m.Frames[k]
		}
	}
	if tf == nil {
		t.Fatalf("no frame at %d in %+v", res.JumpTargetOffset, m.Frames)
	}
	if len(tf.Locals) != 5 {
		t.Fatalf("target frame locals = %v, want 5 entries", tf.Locals)
	}
	for slot, v := range tf.Locals {
		if v != classfile.Integer {
			t.Errorf("target frame slot %d = %v, want Integer", slot, v)
		}
	}
}
