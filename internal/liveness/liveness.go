// Package liveness decides which locals matter at each jump target and how
// safe jumping there is.
//
// A local read at index i registers the region [last store, i]. A branch at
// index i registers, for every initialized local, the region [last store, i]
// together with an edge to the branch target. A local is accessible at a
// target if some read region covers the target, or some jump region covers
// it and the local is accessible at that region's edge target. The model is
// conservative: any recorded path counts, feasible or not.
package liveness

import (
	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/frame"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
)

type region struct {
	start, end int
}

type jumpRegion struct {
	region
	target int
}

type declared struct {
	first, last int
	name, desc  string
}

type slotInfo struct {
	reads    []region
	jumps    []jumpRegion
	declared []declared
}

type analyzer struct {
	m     *classfile.Method
	s     *bytecode.Stream
	fr    *frame.Result
	lr    *lines.Result
	slots map[int]*slotInfo

	paramSlots int
}

func (a *analyzer) slot(i int) *slotInfo {
	si := a.slots[i]
	if si == nil {
		si = &slotInfo{}
		a.slots[i] = si
	}
	return si
}

// Analyze classifies every target of lr. Targets with a non-empty operand
// stack, an uninitialized local or no known state are dropped.
func Analyze(m *classfile.Method, s *bytecode.Stream, fr *frame.Result, lr *lines.Result) (*Result, error) {
	a := &analyzer{m: m, s: s, fr: fr, lr: lr, slots: make(map[int]*slotInfo)}
	a.paramSlots = len(frame.ExpandLocals(m.Entry))

	for _, lv := range m.Locals {
		si := a.slot(int(lv.Slot))
		si.declared = append(si.declared, declared{
			first: s.IndexOf(int(lv.StartPC)),
			last:  s.IndexOf(int(lv.StartPC) + int(lv.Length)),
			name:  lv.Name,
			desc:  lv.Descriptor,
		})
	}
	a.collectRegions()

	res := &Result{
		EntryFrame:              m.Entry,
		ParamSlots:              a.paramSlots,
		MaxLocals:               int(m.Code.MaxLocals),
		FrameOnFirstInstruction: lr.FrameOnFirstInstruction,
	}
	for _, lt := range lr.Targets {
		t, ok := a.target(lt)
		if !ok {
			continue
		}
		res.Targets = append(res.Targets, t)
	}
	return res, nil
}

func (a *analyzer) collectRegions() {
	store := make(map[int]int) // slot -> index of last store; absent = 0
	for i := range a.s.Insts {
		in := &a.s.Insts[i]
		switch {
		case in.IsLoad():
			a.slot(in.Var).reads = append(a.slot(in.Var).reads, region{store[in.Var], i})
		case in.IsStore():
			store[in.Var] = i
		case in.Op == bytecode.Iinc:
			a.slot(in.Var).reads = append(a.slot(in.Var).reads, region{store[in.Var], i})
			store[in.Var] = i
		}

		bi := bytecode.DecodeBranch(in)
		if bi == nil || bi.IsRet {
			continue
		}
		st := a.fr.At(i)
		if st == nil {
			continue
		}
		for slot, v := range st.Locals {
			if v == classfile.Top {
				continue
			}
			si := a.slot(slot)
			for _, t := range bi.Targets {
				si.jumps = append(si.jumps, jumpRegion{region{store[slot], i}, a.s.IndexOf(t)})
			}
		}
	}
}

func (r region) covers(i int) bool { return r.start <= i && i <= r.end }

// accessible reports whether slot may be read from index onward.
func (a *analyzer) accessible(slot, index int, visited map[int]bool) bool {
	si := a.slots[slot]
	if si == nil {
		return false
	}
	for _, r := range si.reads {
		if r.covers(index) {
			return true
		}
	}
	for _, j := range si.jumps {
		if !j.covers(index) || visited[j.target] {
			continue
		}
		visited[j.target] = true
		if a.accessible(slot, j.target, visited) {
			return true
		}
	}
	return false
}

func (a *analyzer) status(slot, index int) RestoreStatus {
	if slot < a.paramSlots {
		return IsParameter
	}
	si := a.slots[slot]
	if si == nil {
		return Unsafe
	}
	st := Unsafe
	for _, d := range si.declared {
		if index < d.first || index > d.last {
			continue
		}
		saved := true
		for _, from := range a.lr.JumpFromIndexes {
			if from < d.first || from > d.last {
				saved = false
				break
			}
		}
		if saved {
			return CanBeSavedAndRestored
		}
		st = CanBeRestoredOnly
	}
	return st
}

// declaredAt returns the table entry declaring slot at index, if any.
func (a *analyzer) declaredAt(slot, index int) (declared, bool) {
	if si := a.slots[slot]; si != nil {
		for _, d := range si.declared {
			if index >= d.first && index <= d.last {
				return d, true
			}
		}
	}
	return declared{}, false
}

func (a *analyzer) target(lt lines.Target) (Target, bool) {
	var entries []classfile.VType
	if lt.HasFrame {
		f := a.s.FrameAt(lt.Index)
		if len(f.Stack) != 0 {
			return Target{}, false
		}
		entries = f.Locals
	} else {
		st := a.fr.At(lt.Index)
		if st == nil || len(st.Stack) != 0 {
			return Target{}, false
		}
		entries = st.FrameLocals()
	}

	t := Target{Target: lt, Frame: entries}
	slot := 0
	for _, v := range entries {
		size := 1
		if v.IsWide() {
			size = 2
		}
		if v.Tag == classfile.VTop {
			slot++
			continue
		}
		vt, ok := a.valueType(v)
		if !ok {
			return Target{}, false
		}
		l := Local{Slot: slot, Type: vt, Status: a.status(slot, lt.Index)}
		if d, ok := a.declaredAt(slot, lt.Index); ok {
			l.Name = d.name
			l.Type = refine(vt, d.desc)
		}
		t.Locals = append(t.Locals, l)
		slot += size
	}
	t.Safety = a.safety(&t)
	return t, true
}

func (a *analyzer) safety(t *Target) Safety {
	worst := Safe
	for _, l := range t.Locals {
		if l.Status == IsParameter || l.Status == CanBeSavedAndRestored {
			continue
		}
		if !a.accessible(l.Slot, t.Index, make(map[int]bool)) {
			continue
		}
		if l.Status == Unsafe {
			return NotSafe
		}
		worst = UninitializedExist
	}
	return worst
}

func (a *analyzer) valueType(v classfile.VType) (ValueType, bool) {
	switch v.Tag {
	case classfile.VInteger:
		return ValueType{Kind: KindInt}, true
	case classfile.VFloat:
		return ValueType{Kind: KindFloat}, true
	case classfile.VLong:
		return ValueType{Kind: KindLong}, true
	case classfile.VDouble:
		return ValueType{Kind: KindDouble}, true
	case classfile.VNull:
		return ValueType{Kind: KindReference, Class: frame.RootClass}, true
	case classfile.VUninitializedThis:
		return ValueType{Kind: KindReference, Class: a.m.Owner()}, true
	case classfile.VObject:
		return ValueType{Kind: KindReference, Class: v.Class}, true
	}
	return ValueType{}, false
}

// refine narrows an int local to the kind its declaration names.
func refine(vt ValueType, desc string) ValueType {
	if vt.Kind != KindInt || len(desc) != 1 {
		return vt
	}
	switch desc[0] {
	case 'Z':
		vt.Kind = KindBoolean
	case 'B':
		vt.Kind = KindByte
	case 'C':
		vt.Kind = KindChar
	case 'S':
		vt.Kind = KindShort
	}
	return vt
}
