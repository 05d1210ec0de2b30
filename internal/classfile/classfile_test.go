package classfile_test

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/classfile/classtest"
)

func sampleClass(t *testing.T) []byte {
	t.Helper()
	b := classtest.New("pkg/Sample")
	b.Method(classtest.Method{
		Access:    classfile.AccStatic,
		Name:      "twice",
		Desc:      "(I)I",
		MaxStack:  2,
		MaxLocals: 2,
		// iload_0; iconst_2; imul; istore_1; iload_1; ireturn
		Code:  []byte{0x1a, 0x05, 0x68, 0x3c, 0x1b, 0xac},
		Lines: []classfile.LineNumber{{StartPC: 0, Line: 3}, {StartPC: 4, Line: 4}},
		Locals: []classfile.LocalVariable{
			{StartPC: 0, Length: 6, Name: "x", Descriptor: "I", Slot: 0},
			{StartPC: 4, Length: 2, Name: "y", Descriptor: "I", Slot: 1},
		},
	})
	b.Method(classtest.Method{Access: 0x0401, Name: "abstractOne", Desc: "()V"})
	return b.MustBuild(t)
}

func TestParseEncodeIdentity(t *testing.T) {
	data := sampleClass(t)
	c, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Name() != "pkg/Sample" {
		t.Errorf("name = %q, want pkg/Sample", c.Name())
	}
	if c.SuperName() != "java/lang/Object" {
		t.Errorf("super = %q", c.SuperName())
	}
	if len(c.Methods) != 2 {
		t.Fatalf("methods = %d, want 2", len(c.Methods))
	}
	out, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("re-encoded class differs: %d bytes vs %d", len(out), len(data))
	}
}

func TestLoadMethodTables(t *testing.T) {
	c, err := classfile.Parse(sampleClass(t))
	if err != nil {
		t.Fatal(err)
	}
	m, err := c.LoadMethod(classfile.MethodID{Name: "twice", Descriptor: "(I)I"})
	if err != nil {
		t.Fatalf("LoadMethod: %v", err)
	}
	if len(m.Code.Bytecode) != 6 {
		t.Errorf("code length = %d, want 6", len(m.Code.Bytecode))
	}
	if len(m.Lines) != 2 || m.Lines[1].Line != 4 || m.Lines[1].StartPC != 4 {
		t.Errorf("lines = %+v", m.Lines)
	}
	if len(m.Locals) != 2 || m.Locals[1].Name != "y" || m.Locals[1].Slot != 1 {
		t.Errorf("locals = %+v", m.Locals)
	}
	if !slices.Equal(m.Entry, []classfile.VType{classfile.Integer}) {
		t.Errorf("entry = %v", m.Entry)
	}

	_, err = c.LoadMethod(classfile.MethodID{Name: "abstractOne", Descriptor: "()V"})
	if !errors.Is(err, classfile.ErrNoCode) {
		t.Errorf("abstract method err = %v, want ErrNoCode", err)
	}
}

func TestFindMethod(t *testing.T) {
	b := classtest.New("pkg/Over")
	ret := []byte{0xb1} // return
	b.Method(classtest.Method{Name: "run", Desc: "()V", MaxLocals: 1, Code: ret})
	b.Method(classtest.Method{Name: "run", Desc: "(Ljava/lang/Object;)V", Signature: "(TT;)V", MaxLocals: 2, Code: ret})
	b.Method(classtest.Method{Name: "dup", Desc: "()V", MaxLocals: 1, Code: ret})
	b.Method(classtest.Method{Name: "dup", Desc: "()V", MaxLocals: 1, Code: ret})
	c, err := classfile.Parse(b.MustBuild(t))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id   classfile.MethodID
		want int
		err  error
	}{
		{classfile.MethodID{Name: "run", Descriptor: "()V"}, 0, nil},
		{classfile.MethodID{Name: "run", Descriptor: "(Ljava/lang/Object;)V"}, 1, nil},
		{classfile.MethodID{Name: "run", Descriptor: "(Ljava/lang/String;)V", Signature: "(TT;)V"}, 1, nil},
		{classfile.MethodID{Name: "run", Descriptor: "(I)V"}, -1, classfile.ErrMethodNotFound},
		{classfile.MethodID{Name: "dup", Descriptor: "()V"}, -1, classfile.ErrMethodAmbiguous},
	}
	for _, tt := range tests {
		got, err := c.FindMethod(tt.id)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("FindMethod(%s) err = %v, want %v", tt.id, err, tt.err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("FindMethod(%s) = %d, %v; want %d", tt.id, got, err, tt.want)
		}
	}
}

func TestStackMapCompactForms(t *testing.T) {
	pool := classfile.NewPool()
	initial := []classfile.VType{classfile.Object("pkg/A"), classfile.Integer}
	// same, same_locals_1_stack_item, append 2, chop 3, same_frame_extended, full
	frames := []classfile.Frame{
		{Offset: 4, Locals: initial},
		{Offset: 9, Locals: initial, Stack: []classfile.VType{classfile.Long}},
		{Offset: 20, Locals: append(slices.Clone(initial), classfile.Double, classfile.Float)},
		{Offset: 30, Locals: initial[:1]},
		{Offset: 200, Locals: initial[:1]},
		{Offset: 210, Locals: []classfile.VType{classfile.Integer}, Stack: []classfile.VType{classfile.Null, classfile.Uninitialized(12)}},
	}
	data, err := classfile.EncodeStackMap(frames, pool, initial)
	if err != nil {
		t.Fatalf("EncodeStackMap: %v", err)
	}
	// Frame type bytes follow the count.
	if data[2] != 4 {
		t.Errorf("first frame type = %d, want same(4)", data[2])
	}
	if data[3] != 64+4 {
		t.Errorf("second frame type = %d, want 68", data[3])
	}

	got, err := classfile.ParseStackMap(data, pool, initial)
	if err != nil {
		t.Fatalf("ParseStackMap: %v", err)
	}
	if len(got) != len(frames) {
		t.Fatalf("frames = %d, want %d", len(got), len(frames))
	}
	for i := range frames {
		if got[i].Offset != frames[i].Offset {
			t.Errorf("frame %d offset = %d, want %d", i, got[i].Offset, frames[i].Offset)
		}
		if !slices.Equal(got[i].Locals, frames[i].Locals) || !slices.Equal(got[i].Stack, frames[i].Stack) {
			t.Errorf("frame %d = %s, want %s", i, classfile.FormatFrame(got[i]), classfile.FormatFrame(frames[i]))
		}
	}
}

func TestStackMapRejectsUnorderedFrames(t *testing.T) {
	frames := []classfile.Frame{{Offset: 5}, {Offset: 5}}
	if _, err := classfile.EncodeStackMap(frames, classfile.NewPool(), nil); err == nil {
		t.Error("expected error for duplicate frame offsets")
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	params, ret, err := classfile.ParseMethodDescriptor("(IJ[Ljava/lang/String;[[DLpkg/A;)Z")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"I", "J", "[Ljava/lang/String;", "[[D", "Lpkg/A;"}
	if !slices.Equal(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
	if ret != "Z" {
		t.Errorf("ret = %q, want Z", ret)
	}
	n, err := classfile.ArgumentSlots("(IJ[Ljava/lang/String;[[DLpkg/A;)Z", false)
	if err != nil || n != 1+1+2+1+1+1 {
		t.Errorf("ArgumentSlots = %d, %v; want 7", n, err)
	}
	for _, bad := range []string{"I)V", "(I", "(Lpkg/A)V", "(Q)V"} {
		if _, _, err := classfile.ParseMethodDescriptor(bad); err == nil {
			t.Errorf("ParseMethodDescriptor(%q) accepted", bad)
		}
	}
}

func TestInitialLocals(t *testing.T) {
	got, err := classfile.InitialLocals("pkg/A", "(JLjava/lang/String;)V", false, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []classfile.VType{classfile.UninitializedThis, classfile.Long, classfile.Object("java/lang/String")}
	if !slices.Equal(got, want) {
		t.Errorf("InitialLocals = %v, want %v", got, want)
	}
}

func TestPoolDedupe(t *testing.T) {
	p := classfile.NewPool()
	a, _ := p.AddClass("pkg/A")
	b, _ := p.AddClass("pkg/A")
	if a != b {
		t.Errorf("AddClass not deduplicated: %d vs %d", a, b)
	}
	u, _ := p.AddUtf8("pkg/A")
	c, _ := p.At(a)
	if c.A != u {
		t.Errorf("class name index = %d, want %d", c.A, u)
	}
	if p.Count() != 3 {
		t.Errorf("count = %d, want 3", p.Count())
	}
}
