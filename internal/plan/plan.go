// Package plan selects which catalog tests run on a given topology. Every
// catalog entry appears in the plan exactly once, tagged run or skip.
package plan

import (
	"github.com/tungetti/cts/internal/catalog"
	"github.com/tungetti/cts/internal/device"
)

// SkipNotSelected is the skip reason for tests left out by Options.Only.
const SkipNotSelected = "not selected"

// Entry is one catalog test with its run decision.
type Entry struct {
	Spec       catalog.TestSpec
	Run        bool
	SkipReason string // Set when Run is false
}

// Plan is the ordered list of entries, in catalog order.
type Plan struct {
	Topology device.Topology
	Entries  []Entry
}

// Options narrows a plan.
type Options struct {
	// Only restricts the run to these test IDs. Empty means all.
	Only []string
}

// Build tags every catalog entry run or skip for topology t. It is pure: the
// same inputs always produce the same plan.
func Build(cat *catalog.Catalog, t device.Topology, opts Options) Plan {
	var only map[string]bool
	if len(opts.Only) > 0 {
		only = make(map[string]bool, len(opts.Only))
		for _, id := range opts.Only {
			only[id] = true
		}
	}

	specs := cat.All()
	p := Plan{Topology: t, Entries: make([]Entry, 0, len(specs))}
	for _, s := range specs {
		e := Entry{Spec: s}
		switch {
		case only != nil && !only[s.ID]:
			e.SkipReason = SkipNotSelected
		case !s.AppliesTo(t):
			e.SkipReason = s.Requirement
			if e.SkipReason == "" {
				e.SkipReason = "not applicable to " + t.String()
			}
		default:
			e.Run = true
		}
		p.Entries = append(p.Entries, e)
	}
	return p
}

// Len returns the number of entries.
func (p Plan) Len() int {
	return len(p.Entries)
}

// Runnable returns the entries that will run, in order.
func (p Plan) Runnable() []Entry {
	return p.filter(true)
}

// Skipped returns the entries that will not run, in order.
func (p Plan) Skipped() []Entry {
	return p.filter(false)
}

// NeedsData reports whether any runnable entry reads the reference data.
func (p Plan) NeedsData() bool {
	for _, e := range p.Entries {
		if e.Run && e.Spec.NeedsData {
			return true
		}
	}
	return false
}

// IDs returns the test IDs of all entries, in order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.Spec.ID
	}
	return ids
}

func (p Plan) filter(run bool) []Entry {
	var out []Entry
	for _, e := range p.Entries {
		if e.Run == run {
			out = append(out, e)
		}
	}
	return out
}
