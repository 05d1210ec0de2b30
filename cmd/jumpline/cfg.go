package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zboralski/lattice"
	latrender "github.com/zboralski/lattice/render"

	"github.com/igoriakovlev/JumpToLine/internal/analysis"
	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/callgraph"
	"github.com/igoriakovlev/JumpToLine/internal/render"
)

func cmdCFG(args []string) error {
	fs := flag.NewFlagSet("cfg", flag.ExitOnError)
	common := addCommon(fs)
	mf := addMethod(fs)
	line := fs.Int("line", 0, "current line; annotates jump targets when set")
	plain := fs.Bool("lattice", false, "render with the lattice CFG style")
	outPath := fs.String("out", "", "output DOT file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := mf.check(); err != nil {
		return err
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
	m, err := analysis.Load(data, id)
	if err != nil {
		return err
	}

	var jumps render.Jumps
	if *line > 0 {
		res, err := m.Analyze(analysis.Options{JumpFromLine: *line, IncludeFirstLine: true, Merger: e.resolver()})
		if err != nil {
			return err
		}
		jumps = render.Jumps{Targets: res.Targets(), From: res.Lines.JumpFromIndexes}
	}

	fi, err := callgraph.Load(m.Method)
	if err != nil {
		return err
	}
	var dot string
	if *plain {
		lcfg, _ := callgraph.BuildFuncCFG(fi, jumps.Targets)
		dot = latrender.DOTCFG(&lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}, fi.Name)
	} else {
		dot = render.CFGDOT(bytecode.BuildCFG(fi.Name, fi.Insts, fi.Handlers), jumps, render.NASA)
	}
	if err := os.WriteFile(*outPath, []byte(dot), 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d instructions, %d targets)\n", *outPath, len(fi.Insts), len(jumps.Targets))
	return nil
}
