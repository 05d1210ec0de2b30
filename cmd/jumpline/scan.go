package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/igoriakovlev/JumpToLine/internal/analysis"
	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/output"
	"github.com/igoriakovlev/JumpToLine/internal/supertype"
)

var log = commonlog.GetLogger("jumpline.scan")

func cmdScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	common := addCommon(fs)
	class := fs.String("class", "", "class to scan (default: every class on the class path)")
	workers := fs.Int("workers", runtime.GOMAXPROCS(0), "concurrent classes")
	outDir := fs.String("out", "", "output directory, one file per class (default: stdout)")
	format := fs.String("format", "json", "json or msgpack")

	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := output.ParseFormat(*format)
	if err != nil {
		return err
	}

	e, err := common.open()
	if err != nil {
		return err
	}
	defer e.Close()

	names := []string{*class}
	if *class == "" {
		if names, err = e.path.Classes(); err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("--class or a class path is required")
		}
	}

	resolver := e.resolver()
	results := make([][]output.MethodRecord, len(names))
	var methods, failed atomic.Int64

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(*workers, 1))
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := e.classBytes(name)
			if err != nil {
				return err
			}
			recs, err := scanClass(data, resolver)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			for _, r := range recs {
				methods.Add(1)
				if r.Error != "" {
					failed.Add(1)
				}
			}
			results[i] = recs
			if *outDir == "" {
				return nil
			}
			path := filepath.Join(*outDir, strings.ReplaceAll(strings.TrimSuffix(name, ".class"), "/", "_")+f.Ext())
			return output.WriteFile(path, f, recs)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "scanned %d classes, %d methods (%d without targets)\n", len(names), methods.Load(), failed.Load())

	if *outDir != "" {
		return nil
	}
	var all []output.MethodRecord
	for _, recs := range results {
		all = append(all, recs...)
	}
	if f == output.JSON {
		return output.WriteJSONL(os.Stdout, all)
	}
	return output.Encode(os.Stdout, f, all)
}

// scanClass analyzes each method of a class from its first line. Methods
// that cannot be analyzed get a record with Error set.
func scanClass(data []byte, resolver *supertype.Resolver) ([]output.MethodRecord, error) {
	c, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	methods, err := c.CodeMethods()
	if err != nil {
		return nil, err
	}
	var recs []output.MethodRecord
	for _, m := range methods {
		id := m.ID()
		first, ok := analysis.FirstLine(m)
		if !ok {
			recs = append(recs, output.MethodRecord{Class: c.Name(), Method: id.Name, Descriptor: id.Descriptor, Error: analysis.ErrNoLines.Error()})
			continue
		}
		res, err := analyzeMethod(c, m, first, resolver)
		if err != nil {
			log.Warningf("%s.%s: %v", c.Name(), id, err)
			recs = append(recs, output.MethodRecord{Class: c.Name(), Method: id.Name, Descriptor: id.Descriptor, Error: err.Error()})
			continue
		}
		recs = append(recs, output.NewMethod(res, first))
	}
	return recs, nil
}

func analyzeMethod(c *classfile.Class, m *classfile.Method, line int, resolver *supertype.Resolver) (*analysis.Result, error) {
	s, err := bytecode.Load(m)
	if err != nil {
		return nil, err
	}
	am := &analysis.Method{Class: c, Method: m, Stream: s}
	return am.Analyze(analysis.Options{JumpFromLine: line, IncludeFirstLine: true, Merger: resolver})
}
