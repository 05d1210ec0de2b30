package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/igoriakovlev/JumpToLine/internal/liveness"
	"github.com/igoriakovlev/JumpToLine/internal/transform"
)

// Request asks for a jump to a source line.
type Request struct {
	Line    int
	Confirm bool // accept a NotSafe target
}

// Outcome reports a finished jump. Failure is nil on success.
type Outcome struct {
	Attempt string
	Line    int
	Goto    bool // reached by re-entering the method, no rewrite
	Safety  liveness.Safety
	Warning string
	Failure *Failure
}

// Choose returns the best target for a source line: the lowest safety
// status, then the lowest instruction index.
func Choose(res *liveness.Result, line int) *liveness.Target {
	var best *liveness.Target
	for _, t := range res.ForSourceLine(line) {
		if best == nil || t.Safety < best.Safety || (t.Safety == best.Safety && t.Index < best.Index) {
			best = t
		}
	}
	return best
}

// Jump moves execution of the session's top frame to req.Line. It returns
// immediately; done is called exactly once, from another goroutine, when
// the jump succeeds, fails or the session is reset.
func (e *Engine) Jump(ctx context.Context, id string, req Request, done func(Outcome)) {
	s := e.session(id)
	c := &completion{done: done}
	attempt := uuid.NewString()

	info, gen, err := e.jumpInfo(ctx, id)
	if err != nil {
		go c.finish(Outcome{Attempt: attempt, Line: req.Line, Failure: jumpInfoFailure(err)})
		return
	}
	if req.Line == info.CurrentLine.SourceLine {
		go c.finish(Outcome{Attempt: attempt, Line: req.Line, Failure: fail(NoTarget, ReasonAvailable, nil)})
		return
	}

	jctx, ok := e.begin(s, c, e.cfg.ApplyTimeout.Std(), gen)
	if !ok {
		go c.finish(Outcome{Attempt: attempt, Line: req.Line, Failure: fail(Canceled, ReasonCanceled, nil)})
		return
	}
	go func() {
		o := e.jump(jctx, info, req, attempt)
		o.Attempt, o.Line = attempt, req.Line
		if f := o.Failure; f != nil {
			log.Errorf("jump %s to line %d failed: %v", attempt, req.Line, f)
		} else {
			log.Infof("jump %s to line %d done", attempt, req.Line)
		}
		if !e.end(s, c, gen) {
			o = Outcome{Attempt: attempt, Line: req.Line, Failure: fail(Canceled, ReasonCanceled, nil)}
		}
		c.finish(o)
	}()
}

func jumpInfoFailure(err error) *Failure {
	if errors.Is(err, ErrInProgress) {
		return fail(InProgress, ReasonInProgress, err)
	}
	return classify(err)
}

func (e *Engine) jump(ctx context.Context, info *JumpInfo, req Request, attempt string) Outcome {
	if info.FirstLine != nil && req.Line == info.FirstLine.SourceLine {
		if err := e.gotoLine(ctx, info.FirstLine.BytecodeLine); err != nil {
			return Outcome{Goto: true, Failure: timeoutOr(ctx, err)}
		}
		return Outcome{Goto: true}
	}
	if info.Analysis == nil {
		if info.Downgrade != nil {
			return Outcome{Failure: info.Downgrade}
		}
		return Outcome{Failure: fail(NoTarget, ReasonNoTarget, nil)}
	}
	t := Choose(info.Analysis.Liveness, req.Line)
	if t == nil {
		return Outcome{Failure: fail(NoTarget, ReasonNoTarget, nil)}
	}
	o := Outcome{Safety: t.Safety}
	switch t.Safety {
	case liveness.NotSafe:
		if !req.Confirm {
			o.Failure = fail(NeedsConfirmation, ReasonUnsafe, nil)
			return o
		}
	case liveness.UninitializedExist:
		o.Warning = ReasonDefaults
	}

	res, err := transform.Transform(info.ClassBytes, transform.Request{
		Method:     info.Method,
		Target:     t,
		ParamSlots: info.ParamSlots,
	}, e.resolver)
	if err != nil {
		o.Failure = classify(err)
		return o
	}
	e.dump(attempt, info.Class, info.ClassBytes, res.Class)

	if f := e.apply(ctx, info, t, res); f != nil {
		o.Failure = f
	}
	return o
}

// gotoLine re-enters the method and runs to its first line.
func (e *Engine) gotoLine(ctx context.Context, line int) error {
	if err := e.proc.PopFrame(ctx); err != nil {
		return fmt.Errorf("pop frame: %w", err)
	}
	return e.proc.RunToLine(ctx, line)
}

// savedLocals returns the names of the locals carried over the jump.
func savedLocals(t *liveness.Target) []string {
	var names []string
	for _, l := range t.Locals {
		if l.Status == liveness.CanBeSavedAndRestored && l.Name != "" {
			names = append(names, l.Name)
		}
	}
	return names
}

// apply redefines the class and relocates execution. Nothing is redefined
// if a step before Redefine fails.
func (e *Engine) apply(ctx context.Context, info *JumpInfo, t *liveness.Target, res *transform.Result) (f *Failure) {
	step := func(name string, err error) *Failure {
		if err == nil {
			return nil
		}
		f := timeoutOr(ctx, err)
		f.Step = name
		return f
	}

	saved, err := e.proc.Locals(ctx, savedLocals(t))
	if f := step("read locals", err); f != nil {
		return f
	}
	if f := step("suspend breakpoints", e.proc.SuspendBreakpoints(ctx)); f != nil {
		return f
	}
	defer func() {
		if err := e.proc.ResumeBreakpoints(context.WithoutCancel(ctx)); err != nil && f == nil {
			f = step("resume breakpoints", err)
		}
	}()
	if f := step("pop frame", e.proc.PopFrame(ctx)); f != nil {
		return f
	}
	if f := step("redefine", e.proc.Redefine(ctx, info.Class, res.Class)); f != nil {
		return f
	}

	reached := make(chan error, 1)
	atTarget := func(ctx context.Context, fr Frame) error {
		var errs []error
		for name, v := range saved {
			if err := fr.SetLocal(name, v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
		err := errors.Join(errs...)
		reached <- err
		return err
	}
	atGate := func(ctx context.Context, fr Frame) error {
		if err := fr.SetLocal(transform.SwitchVariableName, int32(1)); err != nil {
			reached <- fmt.Errorf("set %s: %w", transform.SwitchVariableName, err)
			return err
		}
		return e.proc.Arm(ctx, info.Class, info.Method, res.JumpTargetOffset, atTarget)
	}
	if f := step("arm gate", e.proc.Arm(ctx, info.Class, info.Method, res.SwitchGateOffset, atGate)); f != nil {
		return f
	}
	if f := step("resume", e.proc.Resume(ctx)); f != nil {
		return f
	}

	select {
	case err := <-reached:
		return step("relocate", err)
	case <-ctx.Done():
		return step("relocate", ctx.Err())
	}
}

func timeoutOr(ctx context.Context, err error) *Failure {
	if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return classify(err)
}

// dump writes both class versions when a dump directory is configured.
func (e *Engine) dump(attempt, class string, original, patched []byte) {
	if e.cfg.DumpDir == "" {
		return
	}
	if err := os.MkdirAll(e.cfg.DumpDir, 0o755); err != nil {
		log.Warningf("dump %s: %v", class, err)
		return
	}
	for suffix, data := range map[string][]byte{"Original": original, "Patched": patched} {
		path := filepath.Join(e.cfg.DumpDir, attempt+"-"+suffix+".class")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Warningf("dump %s: %v", class, err)
			return
		}
	}
	log.Debugf("dumped %s as %s", class, attempt)
}
