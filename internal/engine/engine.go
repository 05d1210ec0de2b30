// Package engine sequences analysis and transformation for a suspended
// frame and drives the process-control collaborator through a jump.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/igoriakovlev/JumpToLine/internal/analysis"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/config"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
	"github.com/igoriakovlev/JumpToLine/internal/supertype"
)

var log = commonlog.GetLogger("jumpline.engine")

// ErrInProgress is returned while a session's analysis is running.
var ErrInProgress = errors.New("engine: analysis in progress")

// State is the analysis state of a session.
type State int

const (
	Idle State = iota
	Analyzing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Analyzing:
		return "analyzing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// JumpInfo is what a session may jump to. Analysis is nil in goto-only mode,
// when only FirstLine can be reached.
type JumpInfo struct {
	Class       string
	Method      classfile.MethodID
	CurrentLine lines.LineInfo
	ParamSlots  int // from the descriptor once analyzed

	Analysis   *analysis.Result
	ClassBytes []byte
	Downgrade  *Failure // why Analysis is nil

	LinesToGoto []lines.LineInfo
	FirstLine   *lines.LineInfo
}

type session struct {
	mu      sync.Mutex
	state   State
	gen     uint64
	info    *JumpInfo
	err     *Failure
	classes map[string][]byte
	pending map[*completion]struct{}
	cancels map[*completion]context.CancelFunc
}

// Engine serves jump requests for any number of debugger sessions.
type Engine struct {
	proc     Process
	resolver *supertype.Resolver
	cfg      config.Engine

	mu       sync.Mutex
	sessions map[string]*session
	fetches  singleflight.Group
}

// New returns an engine over proc. Zero timeouts in cfg select
// config.DefaultTimeout; a nil resolver knows only common JDK classes.
func New(proc Process, resolver *supertype.Resolver, cfg config.Engine) *Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = config.Duration(config.DefaultTimeout)
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = config.Duration(config.DefaultTimeout)
	}
	if resolver == nil {
		resolver = supertype.New(supertype.JDK())
	}
	return &Engine{proc: proc, resolver: resolver, cfg: cfg, sessions: make(map[string]*session)}
}

func (e *Engine) session(id string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions[id]
	if s == nil {
		s = &session{
			classes: make(map[string][]byte),
			pending: make(map[*completion]struct{}),
			cancels: make(map[*completion]context.CancelFunc),
		}
		e.sessions[id] = s
	}
	return s
}

// State returns the analysis state of a session.
func (e *Engine) State(id string) State {
	s := e.session(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns a session to Idle: cached results are dropped, in-flight
// operations are canceled and their completions fire as Canceled.
func (e *Engine) Reset(id string) {
	s := e.session(id)
	s.mu.Lock()
	s.state = Idle
	s.gen++
	s.info, s.err = nil, nil
	s.classes = make(map[string][]byte)
	pending := s.pending
	cancels := s.cancels
	s.pending = make(map[*completion]struct{})
	s.cancels = make(map[*completion]context.CancelFunc)
	s.mu.Unlock()

	for c := range pending {
		if cancel := cancels[c]; cancel != nil {
			cancel()
		}
		c.finish(Outcome{Failure: fail(Canceled, ReasonCanceled, nil)})
	}
	log.Debugf("session %s reset", id)
}

// Dispose resets a session and forgets it.
func (e *Engine) Dispose(id string) {
	e.Reset(id)
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}

// Availability checks the jump preconditions and returns the reason to
// show the user.
func (e *Engine) Availability(ctx context.Context) (bool, string) {
	snap, err := e.proc.Snapshot(ctx)
	if err != nil {
		return false, ReasonUnexpected
	}
	if f := Check(snap); f != nil {
		log.Info("jump unavailable", "reason", f.Reason)
		return false, f.Reason
	}
	return true, ReasonAvailable
}

// JumpInfo returns the cached jump information of a session, analyzing the
// current frame on first use. While another call is analyzing, it returns
// ErrInProgress without starting duplicate work.
func (e *Engine) JumpInfo(ctx context.Context, id string) (*JumpInfo, error) {
	info, _, err := e.jumpInfo(ctx, id)
	return info, err
}

// jumpInfo also returns the session generation the info belongs to.
func (e *Engine) jumpInfo(ctx context.Context, id string) (*JumpInfo, uint64, error) {
	s := e.session(id)
	s.mu.Lock()
	gen := s.gen
	switch s.state {
	case Analyzing:
		s.mu.Unlock()
		return nil, gen, ErrInProgress
	case Ready:
		info := s.info
		s.mu.Unlock()
		return info, gen, nil
	case Failed:
		err := s.err
		s.mu.Unlock()
		return nil, gen, err
	}
	s.state = Analyzing
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout.Std())
	info, f := e.analyze(ctx, id, s, gen)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, gen, fail(Canceled, ReasonCanceled, nil)
	}
	if f != nil {
		s.state, s.err = Failed, f
		return nil, gen, f
	}
	s.state, s.info = Ready, info
	return info, gen, nil
}

func (e *Engine) analyze(ctx context.Context, id string, s *session, gen uint64) (*JumpInfo, *Failure) {
	snap, err := e.proc.Snapshot(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if f := Check(snap); f != nil {
		log.Info("jump unavailable", "reason", f.Reason)
		return nil, f
	}
	tr := snap.Translator
	if tr == nil {
		tr = lines.Identity
	}

	info := &JumpInfo{Class: snap.Class, Method: snap.Method, ParamSlots: snap.ParamSlots}
	info.CurrentLine = lines.LineInfo{BytecodeLine: snap.Line, SourceLine: snap.Line}
	if src, ok := tr.Translate(snap.Line); ok {
		info.CurrentLine.SourceLine = src
	}
	first := -1
	for _, l := range snap.Lines {
		if first < 0 || l < first {
			first = l
		}
	}
	for _, l := range dedupe(snap.Lines) {
		src, ok := tr.Translate(l)
		if !ok {
			continue
		}
		li := lines.LineInfo{BytecodeLine: l, SourceLine: src}
		info.LinesToGoto = append(info.LinesToGoto, li)
		if l == first {
			info.FirstLine = &li
		}
	}

	switch {
	case snap.Constructor:
		info.Downgrade = fail(Unsupported, "Jump to line is not available for constructors", nil)
	case snap.Recursive:
		info.Downgrade = fail(Unsupported, "Jump to line is not available for recursive methods", nil)
	case !snap.CanEvaluate:
		info.Downgrade = fail(Unsupported, "Jump to line needs evaluation in the frame", nil)
	}
	if info.Downgrade != nil {
		log.Infof("goto-only for %s.%s: %s", snap.Class, snap.Method, info.Downgrade.Reason)
		return info, nil
	}

	data, err := e.classBytes(ctx, id, s, gen, snap.Class)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil) {
		return nil, classify(err)
	}
	if err != nil {
		log.Warningf("cannot get class file for %s: %v", snap.Class, err)
		info.Downgrade = fail(ClassBytesUnavailable, ReasonNoClass+" for "+snap.Class, err)
		return info, nil
	}
	info.ClassBytes = data

	res, err := analysis.Analyze(data, snap.Method, analysis.Options{
		JumpFromLine:     snap.Line,
		IncludeFirstLine: info.FirstLine == nil,
		Translator:       snap.Translator,
		Merger:           e.resolver,
	})
	if err != nil {
		f := classify(err)
		log.Errorf("analysis of %s.%s failed: %v", snap.Class, snap.Method, err)
		if f.Kind == Timeout || f.Kind == Canceled {
			return nil, f
		}
		info.Downgrade = f
		return info, nil
	}
	info.Analysis = res
	if n := res.Liveness.ParamSlots; n != info.ParamSlots {
		log.Warningf("%s.%s: host reports %d parameter slots, descriptor has %d", snap.Class, snap.Method, info.ParamSlots, n)
		info.ParamSlots = n
	}
	log.Debugf("%s.%s: %d targets", snap.Class, snap.Method, len(res.Targets()))
	return info, nil
}

// classBytes consults the session cache, then fetches through the
// collaborator. Concurrent fetches of the same class share one call.
func (e *Engine) classBytes(ctx context.Context, id string, s *session, gen uint64, class string) ([]byte, error) {
	s.mu.Lock()
	data, ok := s.classes[class]
	s.mu.Unlock()
	if ok {
		return data, nil
	}

	ch := e.fetches.DoChan(id+"\x00"+class, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.FetchTimeout.Std())
		defer cancel()
		return e.proc.ClassBytes(fctx, class)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		data = r.Val.([]byte)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if len(data) == 0 {
		return nil, errors.New("empty class file")
	}

	s.mu.Lock()
	if s.gen == gen {
		s.classes[class] = data
	}
	s.mu.Unlock()
	return data, nil
}

func dedupe(ls []int) []int {
	seen := make(map[int]bool, len(ls))
	out := make([]int, 0, len(ls))
	for _, l := range ls {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// completion delivers an outcome exactly once.
type completion struct {
	once sync.Once
	done func(Outcome)
}

func (c *completion) finish(o Outcome) {
	c.once.Do(func() {
		if c.done != nil {
			c.done(o)
		}
	})
}

// begin registers an in-flight jump so Reset can cancel it. It reports
// false, registering nothing, if the session was reset since gen.
func (e *Engine) begin(s *session, c *completion, timeout time.Duration, gen uint64) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	s.pending[c] = struct{}{}
	s.cancels[c] = cancel
	return ctx, true
}

// end unregisters c and reports whether its session was not reset meanwhile.
func (e *Engine) end(s *session, c *completion, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel := s.cancels[c]; cancel != nil {
		cancel()
	}
	delete(s.pending, c)
	delete(s.cancels, c)
	return s.gen == gen
}
