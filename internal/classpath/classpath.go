// Package classpath reads class files from directories and jar archives.
package classpath

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/supertype"
)

// DefaultCacheSize is the number of class headers kept in memory.
const DefaultCacheSize = 4096

var ErrNotFound = errors.New("classpath: class not found")

var log = commonlog.GetLogger("jumpline.classpath")

type entry interface {
	open(name string) ([]byte, error) // name is a .class path inside the entry
	list() ([]string, error)
	close() error
	String() string
}

// Path is an ordered list of class path entries. It is safe for concurrent use.
type Path struct {
	entries []entry
	headers *lru.Cache // internal name -> *supertype.ClassInfo
	loads   singleflight.Group

	mu     sync.Mutex
	closed bool
}

// Open opens each entry: a directory or a .jar/.zip file. cacheSize <= 0
// selects DefaultCacheSize.
func Open(paths []string, cacheSize int) (*Path, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("classpath: %w", err)
	}
	p := &Path{headers: cache}
	for _, path := range paths {
		e, err := openEntry(path)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.entries = append(p.entries, e)
	}
	log.Debugf("opened %d class path entries", len(p.entries))
	return p, nil
}

func openEntry(path string) (entry, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: %w", err)
	}
	if fi.IsDir() {
		return dirEntry(path), nil
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: %s: %w", path, err)
	}
	j := &jarEntry{path: path, zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		j.files[f.Name] = f
	}
	return j, nil
}

// Close releases open archives.
func (p *Path) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for _, e := range p.entries {
		if err := e.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func resourceName(name string) string { return name + ".class" }

// Bytes returns the class file of an internal class name.
func (p *Path) Bytes(name string) ([]byte, error) {
	res := resourceName(name)
	for _, e := range p.entries {
		data, err := e.open(res)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ClassBytes is Bytes with cancellation. Concurrent requests for the same
// class share one read.
func (p *Path) ClassBytes(ctx context.Context, name string) ([]byte, error) {
	ch := p.loads.DoChan("bytes:"+name, func() (any, error) {
		return p.Bytes(name)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Lookup implements supertype.Hierarchy from class file headers.
func (p *Path) Lookup(name string) (*supertype.ClassInfo, error) {
	if v, ok := p.headers.Get(name); ok {
		return v.(*supertype.ClassInfo), nil
	}
	v, err, _ := p.loads.Do("header:"+name, func() (any, error) {
		data, err := p.Bytes(name)
		if err != nil {
			return nil, err
		}
		c, err := classfile.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("classpath: %s: %w", name, err)
		}
		ci := &supertype.ClassInfo{
			Name:       c.Name(),
			Super:      c.SuperName(),
			Interfaces: c.InterfaceNames(),
			Interface:  c.IsInterface(),
		}
		p.headers.Add(name, ci)
		return ci, nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", supertype.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return v.(*supertype.ClassInfo), nil
}

// Classes returns the internal names of every class on the path, sorted,
// first entry winning for duplicates.
func (p *Path) Classes() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, e := range p.entries {
		names, err := e.list()
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

type dirEntry string

func (d dirEntry) String() string { return string(d) }
func (d dirEntry) close() error   { return nil }

func (d dirEntry) open(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (d dirEntry) list() ([]string, error) {
	var out []string
	err := filepath.WalkDir(string(d), func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		rel, err := filepath.Rel(string(d), path)
		if err != nil {
			return err
		}
		out = append(out, strings.TrimSuffix(filepath.ToSlash(rel), ".class"))
		return nil
	})
	return out, err
}

type jarEntry struct {
	path  string
	zr    *zip.ReadCloser
	files map[string]*zip.File
}

func (j *jarEntry) String() string { return j.path }
func (j *jarEntry) close() error   { return j.zr.Close() }

func (j *jarEntry) open(name string) ([]byte, error) {
	f, ok := j.files[name]
	if !ok {
		return nil, ErrNotFound
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("classpath: %s!%s: %w", j.path, name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (j *jarEntry) list() ([]string, error) {
	var out []string
	for name := range j.files {
		if strings.HasSuffix(name, ".class") && !strings.HasPrefix(name, "META-INF/") {
			out = append(out, strings.TrimSuffix(name, ".class"))
		}
	}
	return out, nil
}
