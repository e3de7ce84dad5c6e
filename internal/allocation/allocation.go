// Package allocation pairs class-object instances with the anonymous data
// slots of the subsystem pool.
//
// MATLAB writes the time and data vectors of every timeseries into one flat
// pool without recording which vector belongs to which variable. The
// allocator recovers the pairing from the order instances were created in
// and from the shapes of the pool entries.
package allocation

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy selects how eligible pool entries are grouped into pairs.
type Strategy int

// Strategies.
const (
	// StrategyAuto chooses between alternating and shape matching from the
	// layout of the pool.
	StrategyAuto Strategy = iota
	// StrategyAlternating pairs consecutive eligible entries.
	StrategyAlternating
	// StrategyShapeMatch pairs a single-row entry with a nearby column
	// entry.
	StrategyShapeMatch
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyAlternating:
		return "alternating"
	case StrategyShapeMatch:
		return "shape-match"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses a strategy name as printed by String.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "alternating", "alternate":
		return StrategyAlternating, nil
	case "shape-match", "shapematch", "shape":
		return StrategyShapeMatch, nil
	}
	return StrategyAuto, fmt.Errorf("unknown allocation strategy %q", s)
}

// DefaultMinElements is the size an entry must exceed to be eligible.
const DefaultMinElements = 100

// shapeWindow is the number of entries shape matching considers at once.
const shapeWindow = 3

// Policy tunes Build.
type Policy struct {
	Strategy    Strategy
	MinElements int
}

// DefaultPolicy returns the automatic strategy with the default size
// threshold.
func DefaultPolicy() Policy {
	return Policy{Strategy: StrategyAuto, MinElements: DefaultMinElements}
}

// Instance is one shaped variable found in the file.
type Instance struct {
	Path     string
	RefIndex int64
}

// Candidate describes one pool entry. Slot is its position in the pool and
// Dims its storage-order dimensions.
type Candidate struct {
	Slot   int
	Dims   []uint64
	Double bool
	Empty  bool
}

// Len returns the number of elements.
func (c Candidate) Len() int {
	n := 1
	for _, d := range c.Dims {
		n *= int(d)
	}
	return n
}

// timeShaped reports a single-row matrix.
func (c Candidate) timeShaped() bool {
	return len(c.Dims) == 2 && c.Dims[0] == 1
}

// columnShaped reports a column vector or a 3-D array with trailing
// singleton axes.
func (c Candidate) columnShaped() bool {
	switch len(c.Dims) {
	case 2:
		return c.Dims[1] == 1
	case 3:
		return c.Dims[1] == 1 && c.Dims[2] == 1
	}
	return false
}

// Pair holds the pool slots of one instance.
type Pair struct {
	Time int
	Data int
}

// Map is the result of Build keyed by instance path.
type Map map[string]Pair

// Report summarizes one Build run.
type Report struct {
	Strategy  Strategy // resolved, never StrategyAuto
	Eligible  int
	Pairs     int
	Unmatched []string
}

// Build assigns pool pairs to instances. Instances are ordered by ascending
// reference index, ties broken by path; the k-th instance receives the k-th
// pair. Instances left without a pair are listed in Report.Unmatched.
func Build(instances []Instance, pool []Candidate, policy Policy) (Map, Report) {
	ordered := append([]Instance(nil), instances...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].RefIndex != ordered[j].RefIndex {
			return ordered[i].RefIndex < ordered[j].RefIndex
		}
		return ordered[i].Path < ordered[j].Path
	})

	eligible := Eligible(pool, policy.MinElements)
	strategy := policy.Strategy
	if strategy == StrategyAuto {
		strategy = choose(eligible)
	}

	var pairs []Pair
	if strategy == StrategyShapeMatch {
		pairs = shapeMatch(eligible)
	} else {
		pairs = alternate(eligible)
	}

	m := make(Map, len(ordered))
	report := Report{Strategy: strategy, Eligible: len(eligible), Pairs: len(pairs)}
	for k, inst := range ordered {
		if k < len(pairs) {
			m[inst.Path] = pairs[k]
			continue
		}
		report.Unmatched = append(report.Unmatched, inst.Path)
	}
	return m, report
}

// Eligible returns the non-empty float64 entries with more than minElements
// elements, in pool order.
func Eligible(pool []Candidate, minElements int) []Candidate {
	var out []Candidate
	for _, c := range pool {
		if c.Double && !c.Empty && c.Len() > minElements {
			out = append(out, c)
		}
	}
	return out
}

// choose alternates when shapes cannot tell time from data (no entry or
// every entry looks like a time vector) or when time vectors sit exactly at
// every even position; any other layout needs shape matching.
func choose(eligible []Candidate) Strategy {
	anyTime, allTime := false, true
	strict := len(eligible)%2 == 0
	for i, c := range eligible {
		t := c.timeShaped()
		anyTime = anyTime || t
		allTime = allTime && t
		if t != (i%2 == 0) {
			strict = false
		}
	}
	if !anyTime || allTime || strict {
		return StrategyAlternating
	}
	return StrategyShapeMatch
}

func alternate(eligible []Candidate) []Pair {
	pairs := make([]Pair, 0, len(eligible)/2)
	for i := 0; i+1 < len(eligible); i += 2 {
		pairs = append(pairs, Pair{Time: eligible[i].Slot, Data: eligible[i+1].Slot})
	}
	return pairs
}

// shapeMatch looks at a window of three entries starting at i and takes the
// first time-shaped and the first column-shaped entry in it. After a match
// scanning resumes past the later of the two, otherwise at i+1.
func shapeMatch(eligible []Candidate) []Pair {
	var pairs []Pair
	for i := 0; i < len(eligible); {
		t, d := -1, -1
		for j := i; j < len(eligible) && j < i+shapeWindow; j++ {
			c := eligible[j]
			switch {
			case c.timeShaped() && t < 0:
				t = j
			case c.columnShaped() && d < 0:
				d = j
			}
		}
		if t < 0 || d < 0 {
			i++
			continue
		}
		pairs = append(pairs, Pair{Time: eligible[t].Slot, Data: eligible[d].Slot})
		i = max(t, d) + 1
	}
	return pairs
}
