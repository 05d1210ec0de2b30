package bytecode

// JVM control transfer detection. These functions identify basic-block
// terminators and extract branch targets.

// BranchInfo describes a decoded control transfer.
type BranchInfo struct {
	Targets  []int // absolute targets; for switches the default comes first
	Cond     bool  // true if execution may fall through to the next instruction
	IsRet    bool  // true for returns, athrow and ret
	IsSwitch bool
}

// DecodeBranch returns the control transfer of in, or nil if the
// instruction always falls through.
func DecodeBranch(in *Inst) *BranchInfo {
	switch op := in.Op; {
	case op >= Ireturn && op <= Return, op == AThrow, op == Ret:
		return &BranchInfo{IsRet: true}
	case op == Goto || op == GotoW:
		return &BranchInfo{Targets: []int{in.Target}}
	case op == Jsr || op == JsrW:
		// The subroutine returns to the next instruction.
		return &BranchInfo{Targets: []int{in.Target}, Cond: true}
	case op == TableSwitch || op == LookupSwitch:
		targets := []int{in.Target}
		seen := map[int]bool{in.Target: true}
		for _, t := range in.Targets {
			if !seen[t] {
				seen[t] = true
				targets = append(targets, t)
			}
		}
		return &BranchInfo{Targets: targets, IsSwitch: true}
	case in.Kind() == KindJump:
		return &BranchInfo{Targets: []int{in.Target}, Cond: true}
	}
	return nil
}
