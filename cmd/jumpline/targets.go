package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/igoriakovlev/JumpToLine/internal/analysis"
	"github.com/igoriakovlev/JumpToLine/internal/output"
)

func cmdTargets(args []string) error {
	fs := flag.NewFlagSet("targets", flag.ExitOnError)
	common := addCommon(fs)
	mf := addMethod(fs)
	line := fs.Int("line", 0, "current line (jump-from)")
	firstLine := fs.Bool("first-line", false, "offer targets on the first line")
	maxSteps := fs.Int("max-steps", 0, "frame inference cap")
	format := fs.String("format", "", "json or msgpack instead of text")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := mf.check(); err != nil {
		return err
	}
	if *line <= 0 {
		return fmt.Errorf("--line is required")
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
	res, err := analysis.Analyze(data, id, analysis.Options{
		JumpFromLine:     *line,
		IncludeFirstLine: *firstLine,
		Merger:           e.resolver(),
		MaxSteps:         *maxSteps,
	})
	if err != nil {
		return err
	}

	rec := output.NewMethod(res, *line)
	if *format != "" {
		f, err := output.ParseFormat(*format)
		if err != nil {
			return err
		}
		return output.Encode(os.Stdout, f, rec)
	}

	fmt.Printf("%s.%s%s from line %d: %d targets\n", rec.Class, rec.Method, rec.Descriptor, *line, len(rec.Targets))
	for _, t := range rec.Targets {
		var ls []string
		for _, l := range t.Lines {
			ls = append(ls, fmt.Sprint(l.SourceLine))
		}
		fmt.Printf("  line %-8s index=%-4d offset=%-5d %s\n", strings.Join(ls, ","), t.Index, t.Offset, t.Safety)
		for _, l := range t.Locals {
			name := l.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("      slot %-3d %-16s %-24s %s\n", l.Slot, name, l.Type, l.Status)
		}
	}
	return nil
}
