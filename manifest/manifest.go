// Package manifest handles garnet.toml files: runtime tuning, a declared
// class graph, and send scenarios replayed against it.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/vm"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "garnet.toml"

var log = commonlog.GetLogger("garnet.manifest")

// Manifest represents a garnet.toml file.
type Manifest struct {
	Project      Project               `toml:"project"`
	Runtime      Runtime               `toml:"runtime"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Modules      []ModuleDecl          `toml:"module"`
	Classes      []ModuleDecl          `toml:"class"`
	Sends        []SendDecl            `toml:"send"`

	// Dir is the directory containing the garnet.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name      string `toml:"name"`
	Namespace string `toml:"namespace"`
	Version   string `toml:"version"`
}

// Runtime mirrors vm.Config. Zero values keep the vm defaults.
type Runtime struct {
	Name         string `toml:"name"`
	PICSize      int64  `toml:"pic-size"`
	Overflow     string `toml:"overflow"`
	MaxDepth     int64  `toml:"max-depth"`
	GlobalCache  *bool  `toml:"global-cache"`
	LogVerbosity int64  `toml:"log-verbosity"`
}

// Dependency is another manifest whose declarations are built first,
// under its own namespace.
type Dependency struct {
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
}

// ModuleDecl declares a class or module. Superclass is only meaningful
// for classes; empty means Object, or "keep" when reopening.
type ModuleDecl struct {
	Name             string            `toml:"name"`
	Superclass       string            `toml:"superclass"`
	Include          []string          `toml:"include"`
	Prepend          []string          `toml:"prepend"`
	Extend           []string          `toml:"extend"`
	Methods          []MethodDecl      `toml:"methods"`
	SingletonMethods []MethodDecl      `toml:"singleton-methods"`
	Aliases          map[string]string `toml:"aliases"` // new name -> old name
	Undef            []string          `toml:"undef"`
	Private          []string          `toml:"private"`
	Freeze           bool              `toml:"freeze"`
}

// MethodDecl declares one method and the canned body that implements it.
type MethodDecl struct {
	Name       string `toml:"name"`
	Visibility string `toml:"visibility"`
	Required   int64  `toml:"required"`
	Optional   int64  `toml:"optional"`
	Rest       bool   `toml:"rest"`
	Body       string `toml:"body"`
	Value      any    `toml:"value"`
	Target     string `toml:"target"`
	Args       []any  `toml:"args"`
}

// SendDecl is one scenario line. Exactly one of Class, Instance and
// Value picks the receiver.
type SendDecl struct {
	Class    string `toml:"class"`
	Instance string `toml:"instance"`
	Value    any    `toml:"value"`
	Method   string `toml:"method"`
	Args     []any  `toml:"args"`
	Expect   any    `toml:"expect"`
	Error    string `toml:"error"`
	Repeat   int64  `toml:"repeat"`
}

// Load parses the garnet.toml file in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	log.Debugf("loaded %s: %d modules, %d classes, %d sends", path, len(m.Modules), len(m.Classes), len(m.Sends))
	return m, nil
}

// Parse decodes and validates manifest text. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a garnet.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks declarations that can be rejected without a runtime.
func (m *Manifest) Validate() error {
	var errs []error
	for _, d := range m.Modules {
		if d.Superclass != "" {
			errs = append(errs, fmt.Errorf("module %s: modules have no superclass", d.Name))
		}
		if IsCoreClass(d.Name) {
			errs = append(errs, fmt.Errorf("module %s: name is a core class", d.Name))
		}
		errs = append(errs, d.validate("module")...)
	}
	for _, d := range m.Classes {
		if IsCoreModule(d.Name) {
			errs = append(errs, fmt.Errorf("class %s: name is a core module", d.Name))
		}
		if IsCoreClass(d.Name) && d.Superclass != "" {
			errs = append(errs, fmt.Errorf("class %s: core class superclass cannot change", d.Name))
		}
		errs = append(errs, d.validate("class")...)
	}
	for i, s := range m.Sends {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("send #%d: %w", i+1, err))
		}
	}
	if _, err := vm.ParseOverflowPolicy(m.Runtime.Overflow); err != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", err))
	}
	return errors.Join(errs...)
}

func (d *ModuleDecl) validate(kind string) []error {
	var errs []error
	if !vm.ValidConstantName(d.Name) {
		errs = append(errs, fmt.Errorf("%s %q: wrong constant name", kind, d.Name))
	}
	for _, md := range append(append([]MethodDecl{}, d.Methods...), d.SingletonMethods...) {
		if err := md.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: method %s: %w", kind, d.Name, md.Name, err))
		}
	}
	return errs
}

func (md *MethodDecl) validate() error {
	if md.Name == "" {
		return errors.New("missing name")
	}
	if _, ok := vm.ParseVisibility(md.Visibility); !ok {
		return fmt.Errorf("unknown visibility %q", md.Visibility)
	}
	if md.Required < 0 || md.Optional < 0 {
		return errors.New("negative arity")
	}
	if _, ok := bodyKinds[md.body()]; !ok {
		return fmt.Errorf("unknown body %q", md.Body)
	}
	if md.body() == "send" && md.Target == "" {
		return errors.New("send body needs a target")
	}
	return nil
}

func (s *SendDecl) validate() error {
	set := 0
	for _, ok := range []bool{s.Class != "", s.Instance != "", s.Value != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of class, instance and value is required")
	}
	if s.Method == "" {
		return errors.New("missing method")
	}
	if s.Repeat < 0 {
		return errors.New("negative repeat")
	}
	return nil
}

// Arity converts the declared counts, rejecting values that do not fit.
func (md *MethodDecl) Arity() (vm.Arity, error) {
	req, err := safecast.Conv[int](md.Required)
	if err != nil {
		return vm.Arity{}, fmt.Errorf("required: %w", err)
	}
	opt, err := safecast.Conv[int](md.Optional)
	if err != nil {
		return vm.Arity{}, fmt.Errorf("optional: %w", err)
	}
	return vm.Arity{Required: req, Optional: opt, Rest: md.Rest}, nil
}

// Config applies the [runtime] section over vm.DefaultConfig.
func (r Runtime) Config() (vm.Config, error) {
	cfg := vm.DefaultConfig()
	if r.Name != "" {
		cfg.Name = r.Name
	}
	if r.PICSize != 0 {
		n, err := safecast.Conv[int](r.PICSize)
		if err != nil {
			return cfg, fmt.Errorf("pic-size: %w", err)
		}
		cfg.PICSize = n
	}
	if r.MaxDepth != 0 {
		n, err := safecast.Conv[int](r.MaxDepth)
		if err != nil {
			return cfg, fmt.Errorf("max-depth: %w", err)
		}
		cfg.MaxDepth = n
	}
	policy, err := vm.ParseOverflowPolicy(r.Overflow)
	if err != nil {
		return cfg, err
	}
	cfg.Overflow = policy
	if r.GlobalCache != nil {
		cfg.GlobalCache = *r.GlobalCache
	}
	return cfg, cfg.Validate()
}

// Verbosity returns the log verbosity as an int for commonlog.Configure.
func (r Runtime) Verbosity() int {
	v, err := safecast.Conv[int](r.LogVerbosity)
	if err != nil {
		return 0
	}
	return v
}

// NewRuntime builds a runtime from the [runtime] section and applies
// the declared class graph, dependencies first.
func (m *Manifest) NewRuntime(opts ...vm.Option) (*vm.Runtime, error) {
	cfg, err := m.Runtime.Config()
	if err != nil {
		return nil, fmt.Errorf("runtime config: %w", err)
	}
	rt, err := vm.NewRuntime(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := Build(rt, m); err != nil {
		return nil, err
	}
	return rt, nil
}
