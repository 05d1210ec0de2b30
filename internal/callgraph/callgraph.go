// Package callgraph converts method bodies into lattice call graphs and
// control flow graphs.
package callgraph

import (
	"github.com/zboralski/lattice"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

// CallEdge is one invoke instruction.
type CallEdge struct {
	Index int // instruction index
	Kind  string
	Owner string // empty for invokedynamic
	Name  string
	Desc  string
}

// Callee returns the display name of the invoked method.
func (e CallEdge) Callee() string {
	if e.Owner == "" {
		return e.Name
	}
	return e.Owner + "." + e.Name
}

// FuncInfo holds the data needed to build the call graph and CFG of one method.
type FuncInfo struct {
	Name      string
	Insts     []bytecode.Inst
	Handlers  []classfile.ExceptionHandler
	CallEdges []CallEdge
}

// Load decodes a method body and resolves its call sites.
func Load(m *classfile.Method) (FuncInfo, error) {
	insts, err := bytecode.Decode(m.Code.Bytecode)
	if err != nil {
		return FuncInfo{}, err
	}
	edges, err := Calls(m.Class.Pool, insts)
	if err != nil {
		return FuncInfo{}, err
	}
	return FuncInfo{
		Name:      m.Owner() + "." + m.ID().Name,
		Insts:     insts,
		Handlers:  m.Code.Handlers,
		CallEdges: edges,
	}, nil
}

// Calls returns the invoke instructions of insts with their resolved targets.
func Calls(pool *classfile.Pool, insts []bytecode.Inst) ([]CallEdge, error) {
	var edges []CallEdge
	for i, in := range insts {
		e := CallEdge{Index: i, Kind: in.Op.Name()}
		var err error
		switch in.Kind() {
		case bytecode.KindMethod:
			e.Owner, e.Name, e.Desc, err = pool.MemberRef(in.CP)
		case bytecode.KindInvokeDynamic:
			e.Name, e.Desc, err = pool.DynamicRef(in.CP)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// BuildCallGraph constructs a lattice.Graph from methods. Each method becomes
// a node and each call site an edge.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, e := range f.CallEdges {
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: e.Callee(),
			})
		}
	}
	g.Dedup()
	return g
}
