package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/igoriakovlev/JumpToLine/internal/classfile"
	"github.com/igoriakovlev/JumpToLine/internal/classpath"
	"github.com/igoriakovlev/JumpToLine/internal/config"
	"github.com/igoriakovlev/JumpToLine/internal/supertype"
)

// env is the state shared by every command.
type env struct {
	cfg  *config.Config
	path *classpath.Path
}

type commonFlags struct {
	config    *string
	classpath *string
	verbose   *int
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:    fs.String("config", config.FileName, "configuration file"),
		classpath: fs.String("classpath", "", "class path entries"),
		verbose:   fs.Int("v", -1, "log verbosity (overrides the configuration)"),
	}
}

// open loads the configuration, configures logging and opens the class path.
func (f commonFlags) open() (*env, error) {
	cfg, err := config.Load(*f.config)
	if err != nil {
		return nil, err
	}
	if *f.verbose >= 0 {
		cfg.Log.Verbosity = *f.verbose
	}
	commonlog.Configure(cfg.Log.Verbosity, cfg.Log.Path())

	entries := cfg.Classpath.Entries
	if *f.classpath != "" {
		entries = append(filepath.SplitList(*f.classpath), entries...)
	}
	path, err := classpath.Open(entries, cfg.Classpath.CacheSize)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, path: path}, nil
}

func (e *env) Close() error { return e.path.Close() }

// resolver answers supertype queries from the class path, then from the
// built-in JDK classes.
func (e *env) resolver() *supertype.Resolver {
	return supertype.New(supertype.Chain{e.path, supertype.JDK()})
}

// classBytes reads a class file path, or looks an internal name up on the
// class path.
func (e *env) classBytes(class string) ([]byte, error) {
	if strings.HasSuffix(class, ".class") {
		return os.ReadFile(class)
	}
	data, err := e.path.Bytes(strings.ReplaceAll(class, ".", "/"))
	if errors.Is(err, classpath.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", class, err)
	}
	return data, err
}

type methodFlags struct {
	class  *string
	method *string
	desc   *string
}

func addMethod(fs *flag.FlagSet) methodFlags {
	return methodFlags{
		class:  fs.String("class", "", "class file or internal class name"),
		method: fs.String("method", "", "method name"),
		desc:   fs.String("desc", "", "method descriptor"),
	}
}

func (f methodFlags) check() error {
	if *f.class == "" {
		return fmt.Errorf("--class is required")
	}
	if *f.method == "" {
		return fmt.Errorf("--method is required")
	}
	return nil
}

// id returns the requested method. Without --desc the only method of that
// name is chosen.
func (f methodFlags) id(data []byte) (classfile.MethodID, error) {
	id := classfile.MethodID{Name: *f.method, Descriptor: *f.desc}
	if id.Descriptor != "" {
		return id, nil
	}
	c, err := classfile.Parse(data)
	if err != nil {
		return id, err
	}
	var found []string
	for i := range c.Methods {
		if c.Methods[i].Name == id.Name {
			found = append(found, c.Methods[i].Descriptor)
		}
	}
	switch len(found) {
	case 0:
		return id, fmt.Errorf("%s.%s: %w", c.Name(), id.Name, classfile.ErrMethodNotFound)
	case 1:
		id.Descriptor = found[0]
		return id, nil
	}
	return id, fmt.Errorf("%s.%s: %w (use --desc: %s)", c.Name(), id.Name, classfile.ErrMethodAmbiguous, strings.Join(found, ", "))
}
