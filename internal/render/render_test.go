package render

import (
	"strings"
	"testing"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/callgraph"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
)

// 0 iload_0  1 ifeq 6  4 iconst_1  5 ireturn  6 iconst_0  7 ireturn
var branchCode = []byte{0x1a, 0x99, 0x00, 0x05, 0x04, 0xac, 0x03, 0xac}

func TestCFGDOT(t *testing.T) {
	insts, err := bytecode.Decode(branchCode)
	if err != nil {
		t.Fatal(err)
	}
	cfg := bytecode.BuildCFG("pkg/X.test", insts, nil)
	if len(cfg.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(cfg.Blocks))
	}

	var tg liveness.Target
	tg.Index = 4
	tg.Lines = []lines.LineInfo{{BytecodeLine: 7, SourceLine: 7}}
	dot := CFGDOT(cfg, Jumps{Targets: []liveness.Target{tg}, From: []int{0}}, NASA)

	for _, want := range []string{
		"digraph cfg {",
		"bb0 -> bb2 [color=\"" + NASA.EdgeTaken + "\"",
		"bb0 -> bb1 [color=\"" + NASA.EdgeFall + "\"",
		"◀ L7 safe",
		"color=\"" + NASA.TargetSafe + "\", fillcolor=",
		"<b><font color=\"" + NASA.CurrentLine + "\">",
		"ifeq 6",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestCFGDOT_Empty(t *testing.T) {
	if dot := CFGDOT(bytecode.FuncCFG{Name: "empty"}, Jumps{}, NASA); dot != "" {
		t.Errorf("dot = %q, want empty", dot)
	}
}

func funcs() []callgraph.FuncInfo {
	return []callgraph.FuncInfo{
		{Name: "pkg/Main.main", CallEdges: []callgraph.CallEdge{
			{Index: 1, Kind: "invokestatic", Owner: "pkg/Main", Name: "run"},
			{Index: 3, Kind: "invokevirtual", Owner: "pkg/Log", Name: "info"},
			{Index: 5, Kind: "invokevirtual", Owner: "pkg/Log", Name: "info"},
			{Index: 7, Kind: "invokevirtual", Owner: "pkg/Log", Name: "info"},
		}},
		{Name: "pkg/Main.run", CallEdges: []callgraph.CallEdge{
			{Index: 2, Kind: "invokedynamic", Name: "makeConcatWithConstants"},
		}},
	}
}

func TestCallgraphDOT(t *testing.T) {
	dot := CallgraphDOT(funcs(), "pkg/Main", NASA, 0)
	for _, want := range []string{
		"subgraph cluster_" + dotID("pkg/Main"),
		dotID("pkg/Main.main") + " [label=\"main\"]",
		dotID("pkg/Log.info") + " [label=\"pkg/Log.info\", shape=plaintext",
		dotID("pkg/Main.main") + " -> " + dotID("pkg/Log.info"),
		"3x",
		"style=\"dashed\"",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestClassgraphDOT(t *testing.T) {
	dot := ClassgraphDOT(funcs(), "", NASA, 0)
	if !strings.Contains(dot, dotID("pkg/Main")+" -> "+dotID("pkg/Log")) {
		t.Errorf("missing class edge:\n%s", dot)
	}
	if strings.Contains(dot, dotID("pkg/Main")+" -> "+dotID("pkg/Main")) {
		t.Errorf("intra-class edge rendered:\n%s", dot)
	}
	if !strings.Contains(dot, "2 methods") {
		t.Errorf("missing method count:\n%s", dot)
	}
}

func TestDotID(t *testing.T) {
	if got := dotID("pkg/A.<init>"); got != "n_pkg_002fA_002e_003cinit_003e" {
		t.Errorf("dotID = %q", got)
	}
	if got := truncLabel("abcdefgh", 6); got != "abc..." {
		t.Errorf("truncLabel = %q", got)
	}
}
