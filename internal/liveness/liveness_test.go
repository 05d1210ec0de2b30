package liveness_test

import (
	"testing"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/classfile/classtest"
	"github.com/igoriakovlev/JumpToLine/internal/frame"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
)

func analyze(t *testing.T, cm classtest.Method, fromLine int) *liveness.Result {
	t.Helper()
	c, err := classfile.Parse(classtest.New("pkg/L").Method(cm).MustBuild(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, err := c.LoadMethod(classfile.MethodID{Name: cm.Name, Descriptor: cm.Desc})
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
	res, err := liveness.Analyze(m, s, fr, lr)
	if err != nil {
		t.Fatalf("liveness.Analyze: %v", err)
	}
	return res
}

func mustTarget(t *testing.T, res *liveness.Result, index int) *liveness.Target {
	t.Helper()
	tg := res.Target(index)
	if tg == nil {
		t.Fatalf("no target at index %d; have %+v", index, res.Targets)
	}
	return tg
}

func local(t *testing.T, tg *liveness.Target, slot int) liveness.Local {
	t.Helper()
	for _, l := range tg.Locals {
		if l.Slot == slot {
			return l
		}
	}
	t.Fatalf("target %d has no local in slot %d: %+v", tg.Index, slot, tg.Locals)
	return liveness.Local{}
}

// straight declares p in slot 0, a in slot 1 and b in slot 2:
//
//	line 4: 0 iconst_0  1 istore_1
//	line 5: 2 iload_1   3 istore_2
//	line 6: 4 iload_2   5 pop
//	line 7: 6 iload_1   7 pop  8 return
func straight(declareB bool) classtest.Method {
	lv := []classfile.LocalVariable{
		{StartPC: 0, Length: 9, Name: "p", Descriptor: "I", Slot: 0},
		{StartPC: 2, Length: 7, Name: "a", Descriptor: "I", Slot: 1},
	}
	if declareB {
		lv = append(lv, classfile.LocalVariable{StartPC: 4, Length: 5, Name: "b", Descriptor: "I", Slot: 2})
	}
	return classtest.Method{
		Access: classfile.AccStatic, Name: "g", Desc: "(I)V",
		MaxStack: 1, MaxLocals: 3,
		Code:   []byte{0x03, 0x3c, 0x1b, 0x3d, 0x1c, 0x57, 0x1b, 0x57, 0xb1},
		Lines:  []classfile.LineNumber{{StartPC: 0, Line: 4}, {StartPC: 2, Line: 5}, {StartPC: 4, Line: 6}, {StartPC: 6, Line: 7}},
		Locals: lv,
	}
}

func TestAnalyze_SaveAndRestore(t *testing.T) {
	res := analyze(t, straight(true), 7)
	if res.ParamSlots != 1 {
		t.Errorf("param slots = %d, want 1", res.ParamSlots)
	}
	if len(res.Targets) != 3 {
		t.Fatalf("targets = %d, want 3", len(res.Targets))
	}
	tg := mustTarget(t, res, 4)
	if tg.Safety != liveness.Safe {
		t.Errorf("line 6 safety = %s, want safe", tg.Safety)
	}
	if l := local(t, tg, 0); l.Status != liveness.IsParameter {
		t.Errorf("slot 0 = %s, want parameter", l.Status)
	}
	if l := local(t, tg, 2); l.Status != liveness.CanBeSavedAndRestored || l.Name != "b" {
		t.Errorf("slot 2 = %+v, want b save-restore", l)
	}
}

func TestAnalyze_RestoreOnlyWhenAccessed(t *testing.T) {
	// Jumping from line 5 to line 6: b is declared at the target but not
	// at the jump origin, and line 6 reads it.
	res := analyze(t, straight(true), 5)
	tg := mustTarget(t, res, 4)
	if l := local(t, tg, 2); l.Status != liveness.CanBeRestoredOnly {
		t.Errorf("slot 2 = %s, want restore-only", l.Status)
	}
	if tg.Safety != liveness.UninitializedExist {
		t.Errorf("line 6 safety = %s, want uninitialized", tg.Safety)
	}

	// At line 7 b is never read again.
	if tg := mustTarget(t, res, 6); tg.Safety != liveness.Safe {
		t.Errorf("line 7 safety = %s, want safe", tg.Safety)
	}
}

func TestAnalyze_UndeclaredAccessedLocalIsNotSafe(t *testing.T) {
	res := analyze(t, straight(false), 5)
	tg := mustTarget(t, res, 4)
	if l := local(t, tg, 2); l.Status != liveness.Unsafe {
		t.Errorf("slot 2 = %s, want unsafe", l.Status)
	}
	if tg.Safety != liveness.NotSafe {
		t.Errorf("line 6 safety = %s, want unsafe", tg.Safety)
	}
	// An undeclared local that is never read again does not matter.
	if tg := mustTarget(t, res, 6); tg.Safety != liveness.Safe {
		t.Errorf("line 7 safety = %s, want safe", tg.Safety)
	}
}

// loop reads slot 1 inside the loop and never reads slot 2.
//
//	line 3: iconst_0 istore_1 iconst_0 istore_2
//	line 4: head: iload_0 ifeq exit
//	line 5: iload_1 pop
//	line 7: iinc 0 -1 goto head
//	line 6: exit: return
func loop(t *testing.T, declare bool) classtest.Method {
	var a bytecode.Assembler
	head, exit := a.NewLabel(), a.NewLabel()
	a.Op(bytecode.Iconst0)
	a.Var(bytecode.Istore, 1)
	a.Op(bytecode.Iconst0)
	a.Var(bytecode.Istore, 2)
	l4 := a.Len()
	a.Mark(head)
	a.Var(bytecode.Iload, 0)
	a.Jump(bytecode.Ifeq, exit)
	l5 := a.Len()
	a.Var(bytecode.Iload, 1)
	a.Op(bytecode.Pop)
	l7 := a.Len()
	a.Iinc(0, -1)
	a.Jump(bytecode.Goto, head)
	l6 := a.Len()
	a.Mark(exit)
	a.Op(bytecode.Return)
	code, err := a.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	m := classtest.Method{
		Access: classfile.AccStatic, Name: "loop", Desc: "(I)V",
		MaxStack: 1, MaxLocals: 3, Code: code,
		Lines: []classfile.LineNumber{
			{StartPC: 0, Line: 3},
			{StartPC: uint16(l4), Line: 4},
			{StartPC: uint16(l5), Line: 5},
			{StartPC: uint16(l7), Line: 7},
			{StartPC: uint16(l6), Line: 6},
		},
	}
	if declare {
		m.Locals = []classfile.LocalVariable{{StartPC: 2, Length: uint16(len(code) - 2), Name: "x", Descriptor: "I", Slot: 1}}
	}
	return m
}

func TestAnalyze_LoopBackEdge(t *testing.T) {
	// iinc at index 8 is past the last read of slot 1, but the back edge
	// to the loop head reaches it again.
	res := analyze(t, loop(t, false), 6)
	tg := mustTarget(t, res, 8)
	if tg.Safety != liveness.NotSafe {
		t.Errorf("line 7 safety = %s, want unsafe", tg.Safety)
	}

	res = analyze(t, loop(t, true), 6)
	tg = mustTarget(t, res, 8)
	if l := local(t, tg, 2); l.Status != liveness.Unsafe {
		t.Errorf("slot 2 = %s, want unsafe", l.Status)
	}
	// With slot 1 declared, only the never-read slot 2 is undeclared.
	if tg.Safety != liveness.Safe {
		t.Errorf("line 7 safety = %s, want safe", tg.Safety)
	}
}

func TestAnalyze_ExplicitFrameAndNarrowKinds(t *testing.T) {
	res := analyze(t, classtest.Method{
		Access: classfile.AccStatic, Name: "h", Desc: "()V",
		MaxStack: 1, MaxLocals: 1,
		// iconst_1 istore_0 | iload_0 pop return
		Code:   []byte{0x04, 0x3b, 0x1a, 0x57, 0xb1},
		Lines:  []classfile.LineNumber{{StartPC: 0, Line: 2}, {StartPC: 2, Line: 3}},
		Locals: []classfile.LocalVariable{{StartPC: 2, Length: 3, Name: "flag", Descriptor: "Z", Slot: 0}},
		Frames: []classfile.Frame{{Offset: 2, Locals: []classfile.VType{classfile.Integer}}},
	}, 3)
	tg := mustTarget(t, res, 2)
	if !tg.HasFrame {
		t.Error("HasFrame = false")
	}
	l := local(t, tg, 0)
	if l.Type.Kind != liveness.KindBoolean || l.Type.Descriptor() != "Z" {
		t.Errorf("slot 0 type = %s, want Z", l.Type)
	}
	if tg.Safety != liveness.Safe {
		t.Errorf("safety = %s, want safe", tg.Safety)
	}
}

func TestAnalyze_SkipsNonEmptyStack(t *testing.T) {
	res := analyze(t, classtest.Method{
		Access: classfile.AccStatic, Name: "s", Desc: "()V",
		MaxStack: 1, MaxLocals: 0,
		Code:  []byte{0x04, 0x57, 0xb1},
		Lines: []classfile.LineNumber{{StartPC: 0, Line: 2}, {StartPC: 1, Line: 3}, {StartPC: 2, Line: 4}},
	}, 4)
	if res.Target(1) != nil {
		t.Error("target with a value on the stack was kept")
	}
	if res.Target(2) == nil {
		t.Error("target at return missing")
	}
}

func TestAnalyze_ParametersOnlyIsSafe(t *testing.T) {
	res := analyze(t, classtest.Method{
		Name: "w", Desc: "(J)V",
		MaxStack: 2, MaxLocals: 3,
		// lload_1 pop2 | return
		Code:  []byte{0x1f, 0x58, 0xb1},
		Lines: []classfile.LineNumber{{StartPC: 0, Line: 1}, {StartPC: 2, Line: 2}},
	}, 2)
	if res.ParamSlots != 3 {
		t.Errorf("param slots = %d, want 3", res.ParamSlots)
	}
	tg := mustTarget(t, res, 2)
	if len(tg.Locals) != 2 {
		t.Fatalf("locals = %+v, want this and the long", tg.Locals)
	}
	if tg.Locals[0].Type.Class != "pkg/L" || tg.Locals[1].Slot != 1 || tg.Locals[1].Type.Kind != liveness.KindLong {
		t.Errorf("locals = %+v", tg.Locals)
	}
	if tg.Safety != liveness.Safe {
		t.Errorf("safety = %s, want safe", tg.Safety)
	}
}
