package bytecode

import (
	"errors"
	"testing"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

func TestDecode_ShortAndWideForms(t *testing.T) {
	code := []byte{
		0x1b,                               // 0: iload_1
		0x15, 0x07,                         // 1: iload 7
		0xc4, 0x36, 0x01, 0x2c,             // 3: wide istore 300
		0xc4, 0x84, 0x01, 0x00, 0xff, 0x38, // 7: wide iinc 256 -200
		0x84, 0x02, 0xff,                   // 13: iinc 2 -1
		0xb1,                               // 16: return
	}
	insts, err := Decode(code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(insts) != 6 {
		t.Fatalf("insts = %d, want 6", len(insts))
	}
	checks := []struct {
		off, size, slot int
		base            Opcode
	}{
		{0, 1, 1, Iload},
		{1, 2, 7, Iload},
		{3, 4, 300, Istore},
		{7, 6, 256, Iinc},
		{13, 3, 2, Iinc},
	}
	for i, c := range checks {
		in := insts[i]
		if in.Offset != c.off || in.Size != c.size || in.Var != c.slot || in.BaseOp() != c.base {
			t.Errorf("inst %d = {off %d size %d var %d %s}, want {%d %d %d %s}",
				i, in.Offset, in.Size, in.Var, in.BaseOp().Name(), c.off, c.size, c.slot, c.base.Name())
		}
	}
	if insts[3].Incr != -200 || insts[4].Incr != -1 {
		t.Errorf("iinc increments = %d, %d; want -200, -1", insts[3].Incr, insts[4].Incr)
	}
	if !insts[2].IsStore() || insts[2].IsLoad() {
		t.Error("wide istore should be a store")
	}
}

func TestDecode_Switches(t *testing.T) {
	var a Assembler
	def, one, two := a.NewLabel(), a.NewLabel(), a.NewLabel()
	a.Op(Iconst1)
	a.TableSwitch(def, 1, []Label{one, two})
	a.Mark(one)
	a.Op(Iconst0)
	a.LookupSwitch(def, []int32{-5, 40}, []Label{two, one})
	a.Mark(two)
	a.Op(Nop)
	a.Mark(def)
	a.Op(Return)
	code, err := a.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	insts, err := Decode(code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ts := insts[1]
	if ts.Op != TableSwitch || ts.Size != 1+2+12+8 {
		t.Fatalf("tableswitch = %s size %d", ts.Op.Name(), ts.Size)
	}
	if len(ts.Keys) != 2 || ts.Keys[0] != 1 || ts.Keys[1] != 2 {
		t.Errorf("tableswitch keys = %v", ts.Keys)
	}
	if ts.Targets[0] != insts[2].Offset {
		t.Errorf("case 1 target = %d, want %d", ts.Targets[0], insts[2].Offset)
	}
	ls := insts[3]
	if ls.Op != LookupSwitch || len(ls.Keys) != 2 || ls.Keys[0] != -5 {
		t.Fatalf("lookupswitch = %s keys %v", ls.Op.Name(), ls.Keys)
	}
	if ls.Target != insts[5].Offset {
		t.Errorf("lookupswitch default = %d, want %d", ls.Target, insts[5].Offset)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte{0x11, 0x00}); !errors.Is(err, ErrTruncated) {
		t.Errorf("sipush truncated: err = %v", err)
	}
	if _, err := Decode([]byte{0xca}); !errors.Is(err, ErrOpcode) {
		t.Errorf("breakpoint opcode: err = %v", err)
	}
	// goto +1 lands inside itself.
	if _, err := Decode([]byte{0xa7, 0x00, 0x01, 0xb1}); !errors.Is(err, ErrTarget) {
		t.Errorf("goto mid-instruction: err = %v", err)
	}
}

func TestDecode_Deterministic(t *testing.T) {
	code := []byte{0x03, 0x3c, 0x1b, 0x99, 0x00, 0x06, 0x84, 0x01, 0x01, 0xb1}
	a, err := Decode(code)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Decode(code)
	for i := range a {
		if a[i].Offset != b[i].Offset || a[i].Op != b[i].Op {
			t.Fatalf("decode %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestStream_VisitOrder(t *testing.T) {
	// 0: iconst_0  1: istore_1  2: iload_1  3: ifeq 9  6: iinc 1 1  9: return
	code := []byte{0x03, 0x3c, 0x1b, 0x99, 0x00, 0x06, 0x84, 0x01, 0x01, 0xb1}
	insts, err := Decode(code)
	if err != nil {
		t.Fatal(err)
	}
	lines := []classfile.LineNumber{{StartPC: 0, Line: 1}, {StartPC: 2, Line: 2}, {StartPC: 2, Line: 7}, {StartPC: 9, Line: 3}}
	frames := []classfile.Frame{{Offset: 9, Locals: []classfile.VType{classfile.Integer}}}
	s := NewStream(insts, len(code), lines, frames)

	var kinds []ElementKind
	for _, e := range s.Elements {
		kinds = append(kinds, e.Kind)
	}
	want := []ElementKind{ElemLine, ElemInst, ElemInst, ElemLine, ElemLine, ElemInst, ElemInst, ElemInst, ElemLine, ElemFrame, ElemInst}
	if len(kinds) != len(want) {
		t.Fatalf("elements = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("element %d = %d, want %d (%v)", i, kinds[i], want[i], kinds)
		}
	}
	if e := s.Elements[8]; e.Index != 5 || e.Line != 3 {
		t.Errorf("line 3 marker index = %d, want 5", e.Index)
	}
	if s.FrameAt(5) == nil {
		t.Error("FrameAt(5) = nil")
	}
	if got := s.IndexOf(6); got != 4 {
		t.Errorf("IndexOf(6) = %d, want 4", got)
	}
	if got := s.IndexOf(len(code)); got != 6 {
		t.Errorf("IndexOf(end) = %d, want 6", got)
	}
}
