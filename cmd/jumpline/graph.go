package main

import (
	"flag"
	"fmt"
	"os"

	latrender "github.com/zboralski/lattice/render"

	"github.com/igoriakovlev/JumpToLine/internal/callgraph"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/render"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	common := addCommon(fs)
	class := fs.String("class", "", "class file or internal class name")
	classes := fs.Bool("classes", false, "aggregate calls per class")
	plain := fs.Bool("lattice", false, "render with the lattice call graph style")
	maxNodes := fs.Int("max-nodes", 0, "limit rendered nodes (0 = all)")
	outPath := fs.String("out", "", "output DOT file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *class == "" {
		return fmt.Errorf("--class is required")
	}
	if *outPath == "" {
		return fmt.Errorf("--out is required")
	}

	e, err := common.open()
	if err != nil {
		return err
	}
	defer e.Close()

	data, err := e.classBytes(*class)
	if err != nil {
		return err
	}
	c, err := classfile.Parse(data)
	if err != nil {
		return err
	}
	methods, err := c.CodeMethods()
	if err != nil {
		return err
	}
	var funcs []callgraph.FuncInfo
	edges := 0
	for _, m := range methods {
		fi, err := callgraph.Load(m)
		if err != nil {
			return fmt.Errorf("%s: %w", m.ID(), err)
		}
		edges += len(fi.CallEdges)
		funcs = append(funcs, fi)
	}

	var dot string
	switch {
	case *plain:
		dot = latrender.DOT(callgraph.BuildCallGraph(funcs), c.Name())
	case *classes:
		dot = render.ClassgraphDOT(funcs, c.Name(), render.NASA, *maxNodes)
	default:
		dot = render.CallgraphDOT(funcs, c.Name(), render.NASA, *maxNodes)
	}
	if err := os.WriteFile(*outPath, []byte(dot), 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d methods, %d call sites)\n", *outPath, len(funcs), edges)
	return nil
}
