package callgraph

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
)

// BuildCFG constructs a lattice.CFGGraph from methods. Each FuncInfo goes
// through bytecode.BuildCFG and is then mapped to lattice types.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		lcfg, _ := BuildFuncCFG(f, nil)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds a single-method lattice.FuncCFG. Jump targets, when
// given, appear as call sites labelled with their lines and safety.
// It also returns the number of basic blocks.
func BuildFuncCFG(f FuncInfo, targets []liveness.Target) (*lattice.FuncCFG, int) {
	dcfg := bytecode.BuildCFG(f.Name, f.Insts, f.Handlers)
	lcfg := convertFuncCFG(&dcfg, f.CallEdges)
	injectTargets(lcfg, &dcfg, targets)
	return lcfg, len(dcfg.Blocks)
}

// TargetLabel names a jump target in graph output.
func TargetLabel(t *liveness.Target) string {
	label := "target"
	for _, l := range t.Lines {
		label += fmt.Sprintf(" L%d", l.SourceLine)
	}
	return label + " (" + t.Safety.String() + ")"
}

// injectTargets adds jump target CallSite entries into the blocks holding them.
func injectTargets(lcfg *lattice.FuncCFG, dcfg *bytecode.FuncCFG, targets []liveness.Target) {
	for k := range targets {
		t := &targets[k]
		bi := dcfg.BlockOf(t.Index)
		if bi < 0 {
			continue
		}
		calls := append(lcfg.Blocks[bi].Calls, lattice.CallSite{Offset: t.Index, Callee: TargetLabel(t)})
		sort.SliceStable(calls, func(i, j int) bool { return calls[i].Offset < calls[j].Offset })
		lcfg.Blocks[bi].Calls = calls
	}
}

// convertFuncCFG maps a bytecode.FuncCFG to a lattice.FuncCFG. Call edges
// are mapped into blocks by instruction index.
func convertFuncCFG(dcfg *bytecode.FuncCFG, edges []CallEdge) *lattice.FuncCFG {
	edgeByIdx := make(map[int]CallEdge, len(edges))
	for _, e := range edges {
		edgeByIdx[e.Index] = e
	}

	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}
		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    ds.Cond,
			})
		}
		for idx := db.Start; idx < db.End; idx++ {
			if e, ok := edgeByIdx[idx]; ok {
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: idx,
					Callee: e.Callee(),
				})
			}
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
