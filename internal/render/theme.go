package render

import "github.com/igoriakovlev/JumpToLine/internal/liveness"

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by invoke kind or branch condition.
	EdgeStatic    string // invokestatic
	EdgeVirtual   string // invokevirtual, invokeinterface
	EdgeSpecial   string // invokespecial
	EdgeDynamic   string // invokedynamic
	EdgeDirect    string // unconditional flow
	EdgeTaken     string // branch taken
	EdgeFall      string // branch not taken
	EdgeException string // into a handler

	// Jump target accents by safety.
	TargetSafe          string
	TargetUninitialized string
	TargetUnsafe        string
	CurrentLine         string

	// Node accents.
	StubFill     string // terminal blocks, classes outside the input
	ExternalText string // methods outside the input

	// Cluster styling.
	ClusterBorder string
	ClusterLabel  string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeStatic:    "#0B3D91", // NASA blue
	EdgeVirtual:   "#00695C", // teal
	EdgeSpecial:   "#9E9E9E", // gray
	EdgeDynamic:   "#E65100", // deep orange
	EdgeDirect:    "#424242", // dark gray
	EdgeTaken:     "#0B3D91",
	EdgeFall:      "#FC3D21", // NASA red
	EdgeException: "#9E9E9E",

	TargetSafe:          "#2E7D32", // green
	TargetUninitialized: "#F9A825", // amber
	TargetUnsafe:        "#FC3D21",
	CurrentLine:         "#0B3D91",

	StubFill:     "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}

// safetyColor returns the accent for a target of safety s.
func safetyColor(s liveness.Safety, t Theme) string {
	switch s {
	case liveness.Safe:
		return t.TargetSafe
	case liveness.UninitializedExist:
		return t.TargetUninitialized
	default:
		return t.TargetUnsafe
	}
}
