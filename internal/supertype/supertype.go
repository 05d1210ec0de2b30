// Package supertype resolves the nearest common superclass of two classes,
// as needed when recomputing stack map frames of a rewritten method.
package supertype

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Root is the universal reference supertype.
const Root = "java/lang/Object"

var (
	ErrNotFound = errors.New("supertype: class not found")
	ErrCycle    = errors.New("supertype: inheritance cycle")
)

// ClassInfo is the inheritance header of one class.
type ClassInfo struct {
	Name       string
	Super      string // "" only for java/lang/Object
	Interfaces []string
	Interface  bool
}

// Hierarchy looks up class headers by internal name.
type Hierarchy interface {
	Lookup(name string) (*ClassInfo, error)
}

// ResolveError reports that no common supertype of A and B could be found.
type ResolveError struct {
	A, B string
	Err  error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("supertype: cannot resolve common type for %s and %s: %v", e.A, e.B, e.Err)
	}
	return fmt.Sprintf("supertype: cannot resolve common type for %s and %s", e.A, e.B)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Resolver answers common-supertype and assignability queries over a
// Hierarchy. It is safe for concurrent use.
type Resolver struct {
	h Hierarchy

	mu    sync.Mutex
	infos map[string]*ClassInfo
}

// New returns a resolver over h.
func New(h Hierarchy) *Resolver {
	return &Resolver{h: h, infos: make(map[string]*ClassInfo)}
}

func (r *Resolver) lookup(name string) (*ClassInfo, error) {
	r.mu.Lock()
	ci, ok := r.infos[name]
	r.mu.Unlock()
	if ok {
		return ci, nil
	}
	ci, err := r.h.Lookup(name)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.infos[name] = ci
	r.mu.Unlock()
	return ci, nil
}

// CommonSuperType returns the nearest common superclass of a and b.
func (r *Resolver) CommonSuperType(a, b string) (string, error) {
	switch {
	case a == b:
		return a, nil
	case a == Root:
		return b, nil
	case b == Root:
		return a, nil
	}
	for _, n := range []string{a, b} {
		if _, err := r.lookup(n); err != nil {
			return "", &ResolveError{A: a, B: b, Err: err}
		}
	}
	first, err := r.common(a, b)
	if err != nil {
		return "", &ResolveError{A: a, B: b, Err: err}
	}
	if first != Root {
		return first, nil
	}
	// b's chain reached the root; a may be an interface that b implements.
	second, err := r.common(b, a)
	if err != nil {
		return "", &ResolveError{A: a, B: b, Err: err}
	}
	if second == "" {
		return "", &ResolveError{A: a, B: b}
	}
	return second, nil
}

// common walks second's superclass chain for the first class that first
// inherits from.
func (r *Resolver) common(first, second string) (string, error) {
	seen := make(map[string]bool)
	for cur := second; cur != ""; {
		if seen[cur] {
			return "", fmt.Errorf("%w at %s", ErrCycle, cur)
		}
		seen[cur] = true
		ok, err := r.IsSubclass(first, cur)
		if err != nil {
			return "", err
		}
		if ok {
			return cur, nil
		}
		ci, err := r.lookup(cur)
		if err != nil {
			return "", err
		}
		cur = ci.Super
		if cur == "" && ci.Name != Root {
			cur = Root
		}
	}
	return "", nil
}

// IsSubclass reports whether name is ancestor or inherits from it through
// superclasses or superinterfaces.
func (r *Resolver) IsSubclass(name, ancestor string) (bool, error) {
	if name == ancestor || ancestor == Root {
		return true, nil
	}
	seen := make(map[string]bool)
	work := []string{name}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if cur == ancestor {
			return true, nil
		}
		if cur == Root {
			continue
		}
		ci, err := r.lookup(cur)
		if err != nil {
			return false, err
		}
		if ci.Super != "" {
			work = append(work, ci.Super)
		}
		work = append(work, ci.Interfaces...)
	}
	return false, nil
}

// IsAssignable reports whether a value of reference type from may be used
// where to is expected. Both are internal names or array descriptors.
func (r *Resolver) IsAssignable(from, to string) (bool, error) {
	if from == to || to == Root {
		return true, nil
	}
	fromArr, toArr := strings.HasPrefix(from, "["), strings.HasPrefix(to, "[")
	switch {
	case fromArr && toArr:
		fc, tc := from[1:], to[1:]
		if !isRef(fc) || !isRef(tc) {
			return fc == tc, nil
		}
		return r.IsAssignable(className(fc), className(tc))
	case fromArr:
		return to == "java/lang/Cloneable" || to == "java/io/Serializable", nil
	case toArr:
		return false, nil
	}
	ci, err := r.lookup(to)
	if err != nil {
		return false, err
	}
	if ci.Interface {
		// The verifier treats interface types like java/lang/Object.
		return true, nil
	}
	return r.IsSubclass(from, to)
}

func isRef(desc string) bool { return desc != "" && (desc[0] == 'L' || desc[0] == '[') }

func className(desc string) string {
	if desc[0] == 'L' {
		return desc[1 : len(desc)-1]
	}
	return desc
}

// Static is a fixed Hierarchy.
type Static map[string]*ClassInfo

// Lookup implements Hierarchy.
func (s Static) Lookup(name string) (*ClassInfo, error) {
	if ci, ok := s[name]; ok {
		return ci, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Add registers a class and returns s.
func (s Static) Add(name, super string, interfaces ...string) Static {
	s[name] = &ClassInfo{Name: name, Super: super, Interfaces: interfaces}
	return s
}

// AddInterface registers an interface and returns s.
func (s Static) AddInterface(name string, interfaces ...string) Static {
	s[name] = &ClassInfo{Name: name, Super: Root, Interfaces: interfaces, Interface: true}
	return s
}

// Chain consults each hierarchy in order and returns the first hit.
type Chain []Hierarchy

// Lookup implements Hierarchy.
func (c Chain) Lookup(name string) (*ClassInfo, error) {
	for _, h := range c {
		ci, err := h.Lookup(name)
		if err == nil {
			return ci, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}
