package render

import (
	"fmt"
	"strings"

	"github.com/igoriakovlev/JumpToLine/internal/bytecode"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
)

// Jumps annotates a CFG with analysis results.
type Jumps struct {
	Targets []liveness.Target
	From    []int // jump-from instruction indexes
}

// CFGDOT renders a per-method basic-block CFG as DOT.
// Each basic block is a node; edges represent control flow. Blocks holding
// jump targets are outlined in the color of their safest target, and each
// target instruction is tagged with its lines.
func CFGDOT(cfg bytecode.FuncCFG, j Jumps, t Theme) string {
	if len(cfg.Blocks) == 0 {
		return ""
	}
	targets := make(map[int]*liveness.Target, len(j.Targets))
	for k := range j.Targets {
		targets[j.Targets[k].Index] = &j.Targets[k]
	}
	from := make(map[int]bool, len(j.From))
	for _, i := range j.From {
		from[i] = true
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, dotEscape(cfg.Name))
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		id := fmt.Sprintf("bb%d", blk.ID)

		var lines []string
		var best *liveness.Target
		end := min(blk.End, len(cfg.Insts))
		for i := blk.Start; i < end; i++ {
			inst := &cfg.Insts[i]
			line := dotEscape(fmt.Sprintf("%4d: %s", inst.Offset, inst.String()))
			if tg := targets[i]; tg != nil {
				line = fmt.Sprintf("<font color=\"%s\">%s  ◀ %s</font>", safetyColor(tg.Safety, t), line, dotEscape(lineList(tg)))
				if best == nil || tg.Safety < best.Safety {
					best = tg
				}
			}
			if from[i] {
				line = fmt.Sprintf("<b><font color=\"%s\">%s</font></b>", t.CurrentLine, line)
			}
			lines = append(lines, line)
		}
		// Truncate long blocks unless they hold a target.
		if len(lines) > 12 && best == nil {
			kept := append(lines[:5], fmt.Sprintf("... (%d more)", len(lines)-10))
			lines = append(kept, lines[len(lines)-5:]...)
		}

		label := strings.Join(lines, "<br align=\"left\"/>")
		label += "<br align=\"left\"/>"

		attrs := ""
		switch {
		case best != nil:
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", safetyColor(best.Safety, t))
		case blk.IsEntry:
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.CurrentLine)
		}
		if blk.IsTerm {
			attrs += fmt.Sprintf(", fillcolor=%q", t.StubFill)
		}
		fmt.Fprintf(&b, "  %s [label=<%s>%s];\n", id, label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		from := fmt.Sprintf("bb%d", blk.ID)
		for _, s := range blk.Succs {
			to := fmt.Sprintf("bb%d", s.BlockID)
			switch s.Cond {
			case "T":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">T</font>>];\n",
					from, to, t.EdgeTaken, t.EdgeTaken)
			case "F":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">F</font>>];\n",
					from, to, t.EdgeFall, t.EdgeFall)
			case "E":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, style=dashed];\n", from, to, t.EdgeException)
			default:
				fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", from, to, t.EdgeDirect)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func lineList(tg *liveness.Target) string {
	var parts []string
	for _, l := range tg.Lines {
		parts = append(parts, fmt.Sprintf("L%d", l.SourceLine))
	}
	return strings.Join(parts, ",") + " " + tg.Safety.String()
}
