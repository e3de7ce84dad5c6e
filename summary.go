package mat73

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Summarize describes a value in a few words: "3x4 double", "scalar int32",
// "1200 samples", "5 fields", "3 elements" or "12 chars". A record holding
// timeseries lists their sample counts instead, e.g. "speed: 1200, rpm: 1200".
func Summarize(v Value) string {
	switch v := v.(type) {
	case *Array:
		return formatShape(v.Shape) + " " + v.Class.String()
	case Text:
		return fmt.Sprintf("%d chars", len([]rune(string(v))))
	case *Sequence:
		return fmt.Sprintf("%d elements", v.Len())
	case *Timeseries:
		return fmt.Sprintf("%d samples", v.Samples())
	case *Record:
		var ts []string
		for _, k := range v.keys {
			if t, ok := v.fields[k].(*Timeseries); ok {
				ts = append(ts, fmt.Sprintf("%s: %d", k, t.Samples()))
			}
		}
		if len(ts) > 0 {
			return strings.Join(ts, ", ")
		}
		return fmt.Sprintf("%d fields", v.Len())
	}
	return ""
}

// formatShape renders a size vector as "3x4", or "scalar" for none.
func formatShape(shape []int) string {
	if len(shape) == 0 {
		return "scalar"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, "x")
}

// FormatShape renders a size vector the way Summarize does.
func FormatShape(shape []int) string {
	return formatShape(shape)
}

// Stats are the minimum, maximum and mean of an array's elements. NaN
// elements are ignored.
type Stats struct {
	Min, Max, Mean float64
	Count          int
}

// Describe computes Stats. ok is false for an array without finite
// elements.
func (a *Array) Describe() (s Stats, ok bool) {
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, x := range a.Float64s() {
		if math.IsNaN(x) {
			continue
		}
		s.Min = math.Min(s.Min, x)
		s.Max = math.Max(s.Max, x)
		sum += x
		s.Count++
	}
	if s.Count == 0 {
		return Stats{}, false
	}
	s.Mean = sum / float64(s.Count)
	return s, true
}
