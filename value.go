package mat73

import (
	"fmt"
	"strings"
)

// Kind identifies the variant of a Value.
type Kind int

// Value kinds.
const (
	KindArray Kind = iota + 1
	KindText
	KindSequence
	KindRecord
	KindTimeseries
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindText:
		return "text"
	case KindSequence:
		return "sequence"
	case KindRecord:
		return "record"
	case KindTimeseries:
		return "timeseries"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a materialized MATLAB variable. The set of implementations is
// closed: *Array, Text, *Sequence, *Record and *Timeseries.
type Value interface {
	Kind() Kind
	value()
}

// Class is the element class of a numeric or logical array.
type Class int

// Element classes.
const (
	Double Class = iota
	Single
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Logical
)

var classNames = [...]string{
	Double:  "double",
	Single:  "single",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Logical: "logical",
}

// String returns the MATLAB class name.
func (c Class) String() string {
	if c >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// ParseClass maps a MATLAB_class tag to an element class.
func ParseClass(tag string) (Class, bool) {
	for i, name := range classNames {
		if name == tag {
			return Class(i), true
		}
	}
	return 0, false
}

// Array is a numeric or logical n-dimensional array.
//
// Shape is the MATLAB size vector after squeezing: nil for a scalar, one
// entry for a vector. Data holds a typed slice matching Class ([]float64 for
// Double, []bool for Logical, ...) in column-major order.
type Array struct {
	Class Class
	Shape []int
	Data  any
}

// Kind implements Value.
func (*Array) Kind() Kind { return KindArray }
func (*Array) value()     {}

// Len returns the number of elements.
func (a *Array) Len() int {
	switch d := a.Data.(type) {
	case []float64:
		return len(d)
	case []float32:
		return len(d)
	case []int8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []uint8:
		return len(d)
	case []uint16:
		return len(d)
	case []uint32:
		return len(d)
	case []uint64:
		return len(d)
	case []bool:
		return len(d)
	}
	return 0
}

// IsScalar reports a single-element array with an empty shape.
func (a *Array) IsScalar() bool {
	return len(a.Shape) == 0 && a.Len() == 1
}

// Float64s converts the elements to float64. Logical true is 1.
func (a *Array) Float64s() []float64 {
	switch d := a.Data.(type) {
	case []float64:
		return append([]float64(nil), d...)
	case []float32:
		return convert(d)
	case []int8:
		return convert(d)
	case []int16:
		return convert(d)
	case []int32:
		return convert(d)
	case []int64:
		return convert(d)
	case []uint8:
		return convert(d)
	case []uint16:
		return convert(d)
	case []uint32:
		return convert(d)
	case []uint64:
		return convert(d)
	case []bool:
		out := make([]float64, len(d))
		for i, b := range d {
			if b {
				out[i] = 1
			}
		}
		return out
	}
	return nil
}

type number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func convert[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// Text is a decoded char array.
type Text string

// Kind implements Value.
func (Text) Kind() Kind { return KindText }
func (Text) value()     {}

// Sequence is a cell array: elements in storage order plus the MATLAB shape.
type Sequence struct {
	Elems []Value
	Shape []int
}

// Kind implements Value.
func (*Sequence) Kind() Kind { return KindSequence }
func (*Sequence) value()     {}

// Len returns the number of elements.
func (s *Sequence) Len() int { return len(s.Elems) }

// Record is a struct: named fields in container order.
type Record struct {
	keys   []string
	fields map[string]Value
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: make(map[string]Value)}
}

// Kind implements Value.
func (*Record) Kind() Kind { return KindRecord }
func (*Record) value()     {}

// Set adds or replaces a field.
func (r *Record) Set(name string, v Value) {
	if r.fields == nil {
		r.fields = make(map[string]Value)
	}
	if _, ok := r.fields[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.fields[name] = v
}

// Get returns a field.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.keys) }

// String renders the field names, e.g. "{a, b}".
func (r *Record) String() string {
	return "{" + strings.Join(r.keys, ", ") + "}"
}

// Timeseries holds the time vector and the sample array of a timeseries
// object.
type Timeseries struct {
	Time *Array
	Data *Array
}

// Kind implements Value.
func (*Timeseries) Kind() Kind { return KindTimeseries }
func (*Timeseries) value()     {}

// Samples returns the number of time points.
func (t *Timeseries) Samples() int {
	if t.Time == nil {
		return 0
	}
	return t.Time.Len()
}

// placeholder stands in for an element that could not be resolved: the
// 0x0 double MATLAB writes as [].
func placeholder() *Array {
	return &Array{Class: Double, Shape: []int{0, 0}, Data: []float64{}}
}

func emptyTimeseries() *Timeseries {
	return &Timeseries{
		Time: &Array{Class: Double, Shape: []int{0}, Data: []float64{}},
		Data: &Array{Class: Double, Shape: []int{0}, Data: []float64{}},
	}
}
