// Package output writes analysis results to files and streams.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/igoriakovlev/JumpToLine/internal/analysis"
	"github.com/igoriakovlev/JumpToLine/internal/lines"
	"github.com/igoriakovlev/JumpToLine/internal/liveness"
	"github.com/igoriakovlev/JumpToLine/internal/transform"
)

// Format selects an encoding.
type Format string

const (
	JSON    Format = "json"
	Msgpack Format = "msgpack"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case JSON, Msgpack:
		return f, nil
	}
	return "", fmt.Errorf("output: unknown format %q", s)
}

// Ext returns the file extension of f.
func (f Format) Ext() string {
	if f == Msgpack {
		return ".msgpack"
	}
	return ".json"
}

// LocalRecord is one live local at a target.
type LocalRecord struct {
	Slot   int    `json:"slot" msgpack:"slot"`
	Name   string `json:"name,omitempty" msgpack:"name,omitempty"`
	Type   string `json:"type" msgpack:"type"`
	Status string `json:"status" msgpack:"status"`
}

// TargetRecord is one jump target.
type TargetRecord struct {
	Index  int              `json:"index" msgpack:"index"`
	Offset int              `json:"offset" msgpack:"offset"`
	Lines  []lines.LineInfo `json:"lines" msgpack:"lines"`
	Safety string           `json:"safety" msgpack:"safety"`
	Locals []LocalRecord    `json:"locals,omitempty" msgpack:"locals,omitempty"`
}

// MethodRecord is the analysis of one method. Error is set instead of
// Targets when the method could not be analyzed.
type MethodRecord struct {
	Class      string         `json:"class" msgpack:"class"`
	Method     string         `json:"method" msgpack:"method"`
	Descriptor string         `json:"descriptor" msgpack:"descriptor"`
	JumpFrom   int            `json:"jump_from,omitempty" msgpack:"jump_from,omitempty"`
	Targets    []TargetRecord `json:"targets,omitempty" msgpack:"targets,omitempty"`
	Error      string         `json:"error,omitempty" msgpack:"error,omitempty"`
}

// TransformRecord describes a rewritten method.
type TransformRecord struct {
	Class            string `json:"class" msgpack:"class"`
	Method           string `json:"method" msgpack:"method"`
	Descriptor       string `json:"descriptor" msgpack:"descriptor"`
	SwitchGateOffset int    `json:"switch_gate_offset" msgpack:"switch_gate_offset"`
	JumpTargetOffset int    `json:"jump_target_offset" msgpack:"jump_target_offset"`
	FlagSlot         int    `json:"flag_slot" msgpack:"flag_slot"`
	PrologueLength   int    `json:"prologue_length" msgpack:"prologue_length"`
	Size             int    `json:"size" msgpack:"size"`
}

// NewTarget converts an analyzed target.
func NewTarget(t *liveness.Target) TargetRecord {
	r := TargetRecord{Index: t.Index, Offset: t.Offset, Lines: t.Lines, Safety: t.Safety.String()}
	for _, l := range t.Locals {
		r.Locals = append(r.Locals, LocalRecord{
			Slot:   l.Slot,
			Name:   l.Name,
			Type:   l.Type.String(),
			Status: l.Status.String(),
		})
	}
	return r
}

// NewMethod converts an analysis result.
func NewMethod(res *analysis.Result, jumpFrom int) MethodRecord {
	r := MethodRecord{
		Class:      res.Owner,
		Method:     res.Method.Name,
		Descriptor: res.Method.Descriptor,
		JumpFrom:   jumpFrom,
	}
	for k := range res.Liveness.Targets {
		r.Targets = append(r.Targets, NewTarget(&res.Liveness.Targets[k]))
	}
	return r
}

// NewTransform describes a transform result.
func NewTransform(class, method, desc string, res *transform.Result) TransformRecord {
	return TransformRecord{
		Class:            class,
		Method:           method,
		Descriptor:       desc,
		SwitchGateOffset: res.SwitchGateOffset,
		JumpTargetOffset: res.JumpTargetOffset,
		FlagSlot:         res.FlagSlot,
		PrologueLength:   res.PrologueLength,
		Size:             len(res.Class),
	}
}

// Encode writes v to w in format f.
func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case Msgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		return enc.Encode(v)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// Decode reads a value written by Encode.
func Decode(r io.Reader, f Format, v any) error {
	if f == Msgpack {
		return msgpack.NewDecoder(r).Decode(v)
	}
	return json.NewDecoder(r).Decode(v)
}

// WriteFile writes v to path in format f, creating parent directories.
func WriteFile(path string, f Format, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer file.Close()

	if err := Encode(file, f, v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL[T any](w io.Writer, records []T) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("output: encode jsonl: %w", err)
		}
	}
	return nil
}
