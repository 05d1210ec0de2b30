package bytecode

import (
	"sort"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

// BasicBlock represents a sequence of instructions with a single entry point.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Insts (inclusive)
	End     int    // index into FuncCFG.Insts (exclusive)
	Succs   []Succ // successor edges
	IsEntry bool
	IsTerm  bool // ends with a return, athrow or ret
	Handler bool // starts an exception handler
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = taken, "F" = fallthrough, "S" = switch case, "E" = exception
}

// FuncCFG is a per-method control flow graph.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// BlockOf returns the ID of the block containing instruction index i, or -1.
func (g *FuncCFG) BlockOf(i int) int {
	n := sort.Search(len(g.Blocks), func(b int) bool { return g.Blocks[b].End > i })
	if n < len(g.Blocks) && g.Blocks[n].Start <= i {
		return n
	}
	return -1
}

// BuildCFG constructs a control flow graph from a method's instructions.
// The algorithm:
//  1. Find block leaders: index 0, branch targets, instructions after
//     transfers, handler entries and protected range bounds.
//  2. Partition instructions into blocks by leaders.
//  3. Compute successor edges from each block's last instruction, plus an
//     exception edge from every block inside a protected range.
func BuildCFG(name string, insts []Inst, handlers []classfile.ExceptionHandler) FuncCFG {
	if len(insts) == 0 {
		return FuncCFG{Name: name, Insts: insts}
	}

	// Map offset → instruction index for branch target resolution.
	offToIdx := make(map[int]int, len(insts))
	for i, in := range insts {
		offToIdx[in.Offset] = i
	}

	// Pass 1: Identify block leaders.
	leaders := map[int]bool{0: true}
	for i := range insts {
		bi := DecodeBranch(&insts[i])
		if bi == nil {
			continue
		}
		if i+1 < len(insts) {
			leaders[i+1] = true
		}
		for _, t := range bi.Targets {
			if idx, ok := offToIdx[t]; ok {
				leaders[idx] = true
			}
		}
	}
	handlerEntry := make(map[int]bool)
	for _, h := range handlers {
		for _, pc := range []uint16{h.StartPC, h.EndPC, h.HandlerPC} {
			if idx, ok := offToIdx[int(pc)]; ok {
				leaders[idx] = true
			}
		}
		if idx, ok := offToIdx[int(h.HandlerPC)]; ok {
			handlerEntry[idx] = true
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Pass 2: Partition into blocks.
	blocks := make([]BasicBlock, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = BasicBlock{
			ID:      i,
			Start:   start,
			End:     end,
			IsEntry: start == 0,
			Handler: handlerEntry[start],
		}
		leaderToBlock[start] = i
	}
	blockAt := func(off int) (int, bool) {
		idx, ok := offToIdx[off]
		if !ok {
			return 0, false
		}
		b, ok := leaderToBlock[idx]
		return b, ok
	}

	// Pass 3: Compute successors.
	for i := range blocks {
		blk := &blocks[i]
		last := &insts[blk.End-1]
		bi := DecodeBranch(last)

		switch {
		case bi == nil:
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: next})
			}
		case bi.IsRet:
			blk.IsTerm = true
		case bi.IsSwitch:
			for _, t := range bi.Targets {
				if b, ok := blockAt(t); ok {
					blk.Succs = append(blk.Succs, Succ{BlockID: b, Cond: "S"})
				}
			}
		case bi.Cond:
			if b, ok := blockAt(bi.Targets[0]); ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: b, Cond: "T"})
			}
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
			}
		default:
			if b, ok := blockAt(bi.Targets[0]); ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: b})
			}
		}

		startOff := insts[blk.Start].Offset
		for _, h := range handlers {
			if startOff >= int(h.StartPC) && startOff < int(h.EndPC) {
				if b, ok := blockAt(int(h.HandlerPC)); ok {
					blk.Succs = append(blk.Succs, Succ{BlockID: b, Cond: "E"})
				}
			}
		}
	}

	return FuncCFG{
		Name:   name,
		Blocks: blocks,
		Insts:  insts,
	}
}
