package classfile

import (
	"fmt"
	"strings"
)

// ParseMethodDescriptor splits a method descriptor into its parameter and
// return field descriptors.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("classfile: bad method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		end, err := fieldEnd(desc, i)
		if err != nil {
			return nil, "", err
		}
		params = append(params, desc[i:end])
		i = end
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("classfile: unterminated method descriptor %q", desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		end, err := fieldEnd(desc, i+1)
		if err != nil || end != len(desc) {
			return nil, "", fmt.Errorf("classfile: bad return type in %q", desc)
		}
	}
	return params, ret, nil
}

func fieldEnd(desc string, i int) (int, error) {
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return 0, fmt.Errorf("classfile: truncated descriptor %q", desc)
	}
	switch desc[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(desc[i:], ';')
		if semi < 0 {
			return 0, fmt.Errorf("classfile: unterminated class in descriptor %q", desc)
		}
		return i + semi + 1, nil
	}
	return 0, fmt.Errorf("classfile: bad descriptor %q at %d", desc, i)
}

// SlotSize returns the number of local slots a value of the field
// descriptor occupies.
func SlotSize(fieldDesc string) int {
	switch fieldDesc {
	case "J", "D":
		return 2
	case "V", "":
		return 0
	}
	return 1
}

// ArgumentSlots returns the number of local slots taken by the receiver
// (for instance methods) and the parameters.
func ArgumentSlots(desc string, static bool) (int, error) {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	if !static {
		n = 1
	}
	for _, p := range params {
		n += SlotSize(p)
	}
	return n, nil
}

// ClassOf returns the internal name used by the verifier for a reference
// field descriptor: "Lpkg/C;" -> "pkg/C", arrays keep their descriptor.
func ClassOf(fieldDesc string) string {
	if strings.HasPrefix(fieldDesc, "L") && strings.HasSuffix(fieldDesc, ";") {
		return fieldDesc[1 : len(fieldDesc)-1]
	}
	return fieldDesc
}
