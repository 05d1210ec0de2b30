package frame

import (
	"errors"
	"fmt"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
)

var (
	ErrFallOff = errors.New("frame: execution falls off the end of the code")
	ErrSteps   = errors.New("frame: step limit exceeded")
)

// DefaultMaxSteps bounds the number of instruction visits of one analysis.
const DefaultMaxSteps = 1_000_000

// Options controls the analysis.
type Options struct {
	MaxSteps int // 0 = DefaultMaxSteps
}

func (o Options) effectiveMaxSteps() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return DefaultMaxSteps
}

// Result holds the state before every instruction. States[i] is nil when
// instruction i is unreachable and carries no explicit frame.
type Result struct {
	States []*State
}

// At returns the state before instruction i, or nil.
func (r *Result) At(i int) *State {
	if i < 0 || i >= len(r.States) {
		return nil
	}
	return r.States[i]
}

type handler struct {
	start, end int // instruction index range
	target     int
	catch      classfile.VType
}

// Analyze infers the state before each instruction of m. Explicit stack
// map frames replace inferred states at their instruction. mg may be nil,
// in which case distinct classes merge to java/lang/Object.
func Analyze(m *classfile.Method, s *bytecode.Stream, mg Merger, opts Options) (*Result, error) {
	n := s.Len()
	res := &Result{States: make([]*State, n)}
	if n == 0 {
		return res, nil
	}
	maxLocals := int(m.Code.MaxLocals)
	pool := m.Class.Pool

	handlers := make([]handler, 0, len(m.Code.Handlers))
	for _, h := range m.Code.Handlers {
		catch := classfile.Object("java/lang/Throwable")
		if h.CatchType != 0 {
			name, err := pool.ClassName(h.CatchType)
			if err != nil {
				return nil, fmt.Errorf("frame: handler catch type: %w", err)
			}
			catch = classfile.Object(name)
		}
		handlers = append(handlers, handler{
			start:  s.IndexOf(int(h.StartPC)),
			end:    s.IndexOf(int(h.EndPC)),
			target: s.IndexOf(int(h.HandlerPC)),
			catch:  catch,
		})
	}

	news := make(map[int]string)
	for i := range s.Insts {
		in := &s.Insts[i]
		if in.Op == bytecode.New {
			name, err := pool.ClassName(in.CP)
			if err != nil {
				return nil, fmt.Errorf("frame: new at %d: %w", in.Offset, err)
			}
			news[in.Offset] = name
		}
	}

	explicit := make([]bool, n)
	queued := make([]bool, n)
	var work []int
	enqueue := func(i int) {
		if !queued[i] {
			queued[i] = true
			work = append(work, i)
		}
	}

	for i := 0; i < n; i++ {
		f := s.FrameAt(i)
		if f == nil {
			continue
		}
		st, err := fromFrame(f, maxLocals)
		if err != nil {
			return nil, err
		}
		res.States[i] = st
		explicit[i] = true
		enqueue(i)
	}
	if !explicit[0] {
		entry, err := fromFrame(&classfile.Frame{Locals: m.Entry}, maxLocals)
		if err != nil {
			return nil, err
		}
		res.States[0] = entry
		enqueue(0)
	}

	merge := merger{m: mg}
	flow := func(to int, in *State) error {
		if to < 0 || to >= n {
			return ErrFallOff
		}
		if explicit[to] {
			return nil
		}
		cur := res.States[to]
		if cur == nil {
			res.States[to] = in.clone()
			enqueue(to)
			return nil
		}
		next, changed, err := merge.state(cur, in)
		if err != nil {
			return fmt.Errorf("frame: merge at %d: %w", s.OffsetOf(to), err)
		}
		if changed {
			res.States[to] = next
			enqueue(to)
		}
		return nil
	}

	maxSteps := opts.effectiveMaxSteps()
	for steps := 0; len(work) > 0; steps++ {
		if steps >= maxSteps {
			return nil, fmt.Errorf("%w (%d)", ErrSteps, maxSteps)
		}
		i := work[len(work)-1]
		work = work[:len(work)-1]
		queued[i] = false

		before := res.States[i]
		in := &s.Insts[i]
		mc := &machine{owner: m.Owner(), pool: pool, news: news, st: before.clone(), in: in}
		if err := mc.step(); err != nil {
			return nil, err
		}
		after := mc.st

		for _, h := range handlers {
			if i < h.start || i >= h.end {
				continue
			}
			for _, locals := range [][]classfile.VType{before.Locals, after.Locals} {
				if err := flow(h.target, &State{Locals: locals, Stack: []classfile.VType{h.catch}}); err != nil {
					return nil, err
				}
			}
		}

		bi := bytecode.DecodeBranch(in)
		if bi == nil || bi.Cond {
			if err := flow(i+1, after); err != nil {
				return nil, fmt.Errorf("frame: %s at %d: %w", in.Op.Name(), in.Offset, err)
			}
		}
		if bi == nil || bi.IsRet {
			continue
		}
		for _, t := range bi.Targets {
			if err := flow(s.IndexOf(t), after); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}
