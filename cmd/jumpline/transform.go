package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/igoriakovlev/JumpToLine/internal/analysis"
	"github.com/igoriakovlev/JumpToLine/internal/engine"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
	"github.com/igoriakovlev/JumpToLine/internal/output"
	"github.com/igoriakovlev/JumpToLine/internal/transform"
)

func cmdTransform(args []string) error {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	common := addCommon(fs)
	mf := addMethod(fs)
	line := fs.Int("line", 0, "current line (jump-from)")
	to := fs.Int("to", 0, "source line to jump to")
	index := fs.Int("target", -1, "instruction index of the target (overrides --to)")
	params := fs.Int("params", -1, "parameter slots (default: from the descriptor)")
	force := fs.Bool("force", false, "accept an unsafe target")
	outPath := fs.String("out", "", "output class file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := mf.check(); err != nil {
		return err
	}
	if *line <= 0 {
		return fmt.Errorf("--line is required")
	}
	if *to <= 0 && *index < 0 {
		return fmt.Errorf("--to or --target is required")
	}
	if *outPath == "" {
		return fmt.Errorf("--out is required")
	}

	e, err := common.open()
	if err != nil {
		return err
	}
	defer e.Close()

	data, err := e.classBytes(*mf.class)
	if err != nil {
		return err
	}
	id, err := mf.id(data)
	if err != nil {
		return err
	}
	resolver := e.resolver()
	res, err := analysis.Analyze(data, id, analysis.Options{
		JumpFromLine:     *line,
		IncludeFirstLine: true,
		Merger:           resolver,
	})
	if err != nil {
		return err
	}

	var t *liveness.Target
	if *index >= 0 {
		t = res.Liveness.Target(*index)
	} else {
		t = engine.Choose(res.Liveness, *to)
	}
	if t == nil {
		return fmt.Errorf("no jump target for line %d", *to)
	}
	if t.Safety == liveness.NotSafe && !*force {
		return fmt.Errorf("target at index %d is unsafe (use --force)", t.Index)
	}

	slots := *params
	if slots < 0 {
		slots = res.Liveness.ParamSlots
	}
	tr, err := transform.Transform(data, transform.Request{Method: id, Target: t, ParamSlots: slots}, resolver)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, tr.Class, 0644); err != nil {
		return err
	}

	rec := output.NewTransform(res.Owner, id.Name, id.Descriptor, tr)
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes): gate at %d, target at %d, flag slot %d, %s target\n",
		*outPath, rec.Size, rec.SwitchGateOffset, rec.JumpTargetOffset, rec.FlagSlot, t.Safety)
	return output.Encode(os.Stdout, output.JSON, rec)
}
