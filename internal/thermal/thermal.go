// Package thermal reads the die temperature of PCIe Edge TPUs from sysfs.
// The apex driver exposes one "temp" file per device, in millidegrees Celsius.
package thermal

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/errors"
)

// Reading is the temperature of one device.
type Reading struct {
	Device  string  // Device name, e.g. "apex_0"
	Celsius float64 // Temperature in degrees Celsius
}

// Sampler reads current device temperatures.
type Sampler interface {
	Sample() ([]Reading, error)
}

// Reader samples the files matched by a glob pattern.
type Reader struct {
	pattern  string
	readFile func(string) ([]byte, error)
}

// Option configures the reader.
type Option func(*Reader)

// WithPattern sets the glob pattern of the temperature files.
func WithPattern(pattern string) Option {
	return func(r *Reader) {
		r.pattern = pattern
	}
}

// NewReader creates a reader over the apex sysfs class.
func NewReader(opts ...Option) *Reader {
	r := &Reader{
		pattern:  constants.ApexSysfsGlob,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sample reads every matching file, sorted by device name. Files that
// disappear or hold garbage are skipped. No match yields no readings.
func (r *Reader) Sample() ([]Reading, error) {
	paths, err := filepath.Glob(r.pattern)
	if err != nil {
		return nil, errors.Wrap(errors.Validation, "invalid temperature pattern", err).WithOp("thermal.Sample")
	}
	sort.Strings(paths)

	readings := make([]Reading, 0, len(paths))
	for _, p := range paths {
		data, err := r.readFile(p)
		if err != nil {
			continue
		}
		c, ok := ParseMillidegrees(string(data))
		if !ok {
			continue
		}
		readings = append(readings, Reading{Device: filepath.Base(filepath.Dir(p)), Celsius: c})
	}
	return readings, nil
}

// ParseMillidegrees converts a sysfs millidegree value to degrees Celsius.
func ParseMillidegrees(s string) (float64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(v) / 1000, true
}

// Max returns the highest reading, if any.
func Max(readings []Reading) (Reading, bool) {
	if len(readings) == 0 {
		return Reading{}, false
	}
	best := readings[0]
	for _, r := range readings[1:] {
		if r.Celsius > best.Celsius {
			best = r
		}
	}
	return best, true
}

// Static is a Sampler returning fixed readings.
type Static struct {
	Readings []Reading
	Err      error
}

// Sample implements Sampler.
func (s Static) Sample() ([]Reading, error) {
	return s.Readings, s.Err
}

var (
	_ Sampler = (*Reader)(nil)
	_ Sampler = Static{}
)
