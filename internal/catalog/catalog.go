package catalog

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/tungetti/cts/internal/device"
	"github.com/tungetti/cts/internal/errors"
)

// gtest markers. A gtest binary prints the pass banner only when every
// test in the run passed and the fail banner for any failure.
var (
	GTestPassPattern = regexp.MustCompile(`\[  PASSED  \]`)
	GTestFailPattern = regexp.MustCompile(`\[  FAILED  \]`)
)

// Catalog is an ordered, immutable set of tests.
type Catalog struct {
	specs []TestSpec
	index map[string]int
}

// New builds a catalog from specs in the given order. IDs must be unique and
// every spec needs an executable, a predicate and a positive timeout.
func New(specs ...TestSpec) (*Catalog, error) {
	c := &Catalog{
		specs: make([]TestSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	var result *multierror.Error
	for i, s := range specs {
		switch {
		case s.ID == "":
			result = multierror.Append(result, fmt.Errorf("test #%d: missing id", i+1))
			continue
		case c.Has(s.ID):
			result = multierror.Append(result, fmt.Errorf("test %q: duplicate id", s.ID))
			continue
		}
		if s.Executable == "" {
			result = multierror.Append(result, fmt.Errorf("test %q: missing executable", s.ID))
		}
		if s.Applicable == nil {
			result = multierror.Append(result, fmt.Errorf("test %q: missing applicability predicate", s.ID))
		}
		if s.Timeout <= 0 {
			result = multierror.Append(result, fmt.Errorf("test %q: timeout must be positive", s.ID))
		}
		if s.Rule == ExitCodeAndOutputPattern && s.PassPattern == nil {
			result = multierror.Append(result, fmt.Errorf("test %q: pattern rule without pass pattern", s.ID))
		}
		s.Args = append([]string(nil), s.Args...)
		c.index[s.ID] = len(c.specs)
		c.specs = append(c.specs, s)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(errors.Validation, "invalid test catalog", err).WithOp("catalog.New")
	}
	return c, nil
}

// MustNew is like New but panics on error. It is meant for static catalogs.
func MustNew(specs ...TestSpec) *Catalog {
	c, err := New(specs...)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the tests in catalog order. The slice is a copy.
func (c *Catalog) All() []TestSpec {
	out := make([]TestSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Len returns the number of tests.
func (c *Catalog) Len() int {
	return len(c.specs)
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Get returns the test with the given id.
func (c *Catalog) Get(id string) (TestSpec, bool) {
	i, ok := c.index[id]
	if !ok {
		return TestSpec{}, false
	}
	return c.specs[i], true
}

// IDs returns the test ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.specs))
	for i, s := range c.specs {
		ids[i] = s.ID
	}
	return ids
}

// Unknown returns the ids in ids that are not in the catalog.
func (c *Catalog) Unknown(ids []string) []string {
	var out []string
	for _, id := range ids {
		if !c.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// fileSpec is one test in a catalog file.
type fileSpec struct {
	ID          string        `yaml:"id"`
	Executable  string        `yaml:"executable"`
	Args        []string      `yaml:"args"`
	MinDevices  *int          `yaml:"min_devices"`
	Interface   string        `yaml:"interface"`
	Timeout     time.Duration `yaml:"timeout"`
	Rule        string        `yaml:"rule"`
	PassPattern string        `yaml:"pass_pattern"`
	FailPattern string        `yaml:"fail_pattern"`
	NeedsData   *bool         `yaml:"needs_data"`
	Description string        `yaml:"description"`
}

type file struct {
	Tests []fileSpec `yaml:"tests"`
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "failed to read catalog file", err).WithOp("catalog.Load")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML. Omitted fields take the defaults of the
// built-in gtest entries: the executable is the id, one device is required,
// the reference data is needed, and the gtest pass and fail markers apply
// unless the rule is exit_code.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.Validation, "failed to parse catalog", err).WithOp("catalog.Parse")
	}
	if len(f.Tests) == 0 {
		return nil, errors.New(errors.Validation, "catalog has no tests").WithOp("catalog.Parse")
	}

	var result *multierror.Error
	specs := make([]TestSpec, 0, len(f.Tests))
	for _, fs := range f.Tests {
		s, err := fs.toSpec()
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		specs = append(specs, s)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(errors.Validation, "invalid test catalog", err).WithOp("catalog.Parse")
	}
	return New(specs...)
}

func (fs fileSpec) toSpec() (TestSpec, error) {
	s := TestSpec{
		ID:          fs.ID,
		Executable:  fs.Executable,
		Args:        fs.Args,
		Timeout:     fs.Timeout,
		NeedsData:   true,
		Description: fs.Description,
	}
	if s.Executable == "" {
		s.Executable = fs.ID
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if fs.NeedsData != nil {
		s.NeedsData = *fs.NeedsData
	}

	rule := fs.Rule
	if rule == "" {
		rule = ExitCodeAndOutputPattern.String()
	}
	var err error
	if s.Rule, err = ParseResultRule(rule); err != nil {
		return s, fmt.Errorf("test %q: %w", fs.ID, err)
	}

	if s.PassPattern, err = compileOr(fs.PassPattern, s.Rule, GTestPassPattern); err != nil {
		return s, fmt.Errorf("test %q: pass_pattern: %w", fs.ID, err)
	}
	if s.FailPattern, err = compileOr(fs.FailPattern, s.Rule, GTestFailPattern); err != nil {
		return s, fmt.Errorf("test %q: fail_pattern: %w", fs.ID, err)
	}

	minDevices := 1
	if fs.MinDevices != nil {
		minDevices = *fs.MinDevices
	}
	if minDevices < 0 {
		return s, fmt.Errorf("test %q: min_devices must not be negative", fs.ID)
	}
	s.Applicable, s.Requirement = MinDevices(minDevices), requirement(minDevices)

	switch fs.Interface {
	case "", "any":
	case "usb":
		s.Applicable = OnInterface(device.InterfaceUSB, s.Applicable)
		s.Requirement += " over USB"
	case "pcie":
		s.Applicable = OnInterface(device.InterfacePCIe, s.Applicable)
		s.Requirement += " over PCIe"
	default:
		return s, fmt.Errorf("test %q: unknown interface %q", fs.ID, fs.Interface)
	}

	return s, nil
}

// compileOr compiles expr, falling back to def for the pattern rule.
func compileOr(expr string, rule ResultRule, def *regexp.Regexp) (*regexp.Regexp, error) {
	if expr != "" {
		return regexp.Compile(expr)
	}
	if rule == ExitCodeAndOutputPattern {
		return def, nil
	}
	return nil, nil
}

func requirement(minDevices int) string {
	if minDevices == 1 {
		return "requires at least 1 device"
	}
	return fmt.Sprintf("requires at least %d devices", minDevices)
}
