package lines

import (
	"errors"
	"testing"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

// 0: iconst_0  1: istore_1  2: iload_1  3: ifeq 9  6: iinc 1 1  9: return
var loopCode = []byte{0x03, 0x3c, 0x1b, 0x99, 0x00, 0x06, 0x84, 0x01, 0x01, 0xb1}

func makeStream(t *testing.T, lines []classfile.LineNumber, frames []classfile.Frame) *bytecode.Stream {
	t.Helper()
	insts, err := bytecode.Decode(loopCode)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return bytecode.NewStream(insts, len(loopCode), lines, frames)
}

var loopLines = []classfile.LineNumber{
	{StartPC: 0, Line: 1},
	{StartPC: 2, Line: 2},
	{StartPC: 2, Line: 7},
	{StartPC: 6, Line: 2},
	{StartPC: 9, Line: 3},
}

func TestAnalyze_Targets(t *testing.T) {
	s := makeStream(t, loopLines, []classfile.Frame{{Offset: 9, Locals: []classfile.VType{classfile.Integer}}})
	res, err := Analyze(s, 2, false, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	wantIdx := []int{2, 4, 5}
	if len(res.Targets) != len(wantIdx) {
		t.Fatalf("targets = %+v, want indexes %v", res.Targets, wantIdx)
	}
	for i, idx := range wantIdx {
		if res.Targets[i].Index != idx {
			t.Errorf("target %d index = %d, want %d", i, res.Targets[i].Index, idx)
		}
	}
	if n := len(res.Targets[0].Lines); n != 2 {
		t.Errorf("index 2 lines = %d, want 2 (merged markers)", n)
	}
	if !res.Targets[2].HasFrame || res.Targets[0].HasFrame {
		t.Error("HasFrame should be set only at index 5")
	}
	if res.Targets[2].Offset != 9 {
		t.Errorf("index 5 offset = %d, want 9", res.Targets[2].Offset)
	}
	if len(res.JumpFromIndexes) != 2 || res.JumpFromIndexes[0] != 2 || res.JumpFromIndexes[1] != 4 {
		t.Errorf("jump-from indexes = %v, want [2 4]", res.JumpFromIndexes)
	}
	if res.FrameOnFirstInstruction {
		t.Error("FrameOnFirstInstruction should be false")
	}
	if got := res.SourceLines(); len(got) != 3 || got[0] != 2 || got[1] != 3 || got[2] != 7 {
		t.Errorf("source lines = %v, want [2 3 7]", got)
	}
}

func TestAnalyze_IncludeFirstLine(t *testing.T) {
	s := makeStream(t, loopLines, nil)
	res, err := Analyze(s, 3, true, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Target(0) == nil {
		t.Fatal("first line target missing")
	}
	if len(res.Targets) != 4 {
		t.Errorf("targets = %d, want 4", len(res.Targets))
	}
}

func TestAnalyze_LineNotFound(t *testing.T) {
	s := makeStream(t, loopLines, nil)
	if _, err := Analyze(s, 42, false, nil); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("err = %v, want ErrLineNotFound", err)
	}
}

func TestAnalyze_Translator(t *testing.T) {
	s := makeStream(t, loopLines, nil)
	tr := TranslatorFunc(func(line int) (int, bool) {
		if line == 7 {
			return 0, false
		}
		return line + 100, true
	})
	res, err := Analyze(s, 7, false, tr)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// Untranslated lines still locate the jump-from point.
	if len(res.JumpFromIndexes) != 1 || res.JumpFromIndexes[0] != 2 {
		t.Errorf("jump-from indexes = %v, want [2]", res.JumpFromIndexes)
	}
	tg := res.Target(2)
	if tg == nil || len(tg.Lines) != 1 {
		t.Fatalf("index 2 = %+v, want one line", tg)
	}
	if tg.Lines[0] != (LineInfo{BytecodeLine: 2, SourceLine: 102}) {
		t.Errorf("line = %+v", tg.Lines[0])
	}
	if !tg.HasSourceLine(102) || tg.HasSourceLine(2) {
		t.Error("HasSourceLine should match translated lines only")
	}
}

func TestAnalyze_FrameOnFirstInstruction(t *testing.T) {
	s := makeStream(t, loopLines, []classfile.Frame{{Offset: 0}})
	res, err := Analyze(s, 3, false, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.FrameOnFirstInstruction {
		t.Error("FrameOnFirstInstruction = false")
	}
}

func TestAnalyze_UniqueIndexes(t *testing.T) {
	dup := append([]classfile.LineNumber{}, loopLines...)
	dup = append(dup, classfile.LineNumber{StartPC: 6, Line: 2}, classfile.LineNumber{StartPC: 6, Line: 9})
	s := makeStream(t, dup, nil)
	res, err := Analyze(s, 2, false, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	seen := make(map[int]bool)
	for _, tg := range res.Targets {
		if seen[tg.Index] {
			t.Fatalf("duplicate target index %d", tg.Index)
		}
		seen[tg.Index] = true
	}
	if tg := res.Target(4); tg == nil || len(tg.Lines) != 2 {
		t.Errorf("index 4 = %+v, want lines 2 and 9", tg)
	}
}
