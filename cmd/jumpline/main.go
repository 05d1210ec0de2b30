package main

import (
	"fmt"
	"os"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "targets":
		err = cmdTargets(os.Args[2:])
	case "transform":
		err = cmdTransform(os.Args[2:])
	case "cfg":
		err = cmdCFG(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "scan":
		err = cmdScan(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `jumpline: JVM jump-to-line analyzer and bytecode rewriter

Usage:
  jumpline targets   --class <c> --method <m> --line <n>           List jump targets and their safety
  jumpline transform --class <c> --method <m> --line <n> --to <n> --out <file>
                                                                   Rewrite a method to enter at a target
  jumpline cfg       --class <c> --method <m> [--line <n>] --out <file.dot>
                                                                   Render a method CFG with jump targets
  jumpline graph     --class <c> --out <file.dot> [--classes]      Render a class call graph
  jumpline scan      [--class <c>] [--workers <n>] [--out <dir>]   Analyze every method of a class or class path

Flags:
  --class <c>        Class file path, or internal class name on the class path
  --method <m>       Method name
  --desc <d>         Method descriptor, required for overloads
  --classpath <p>    Class path entries separated by the OS list separator
  --config <file>    Configuration file (default jumpline.toml)
  --format <f>       json or msgpack
`)
}
