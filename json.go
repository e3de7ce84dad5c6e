package mat73

import (
	"bytes"
	"encoding/json"
	"math"
)

// MarshalJSON encodes the array as {"class", "shape", "data"}. Non-finite
// doubles are encoded as null.
func (a *Array) MarshalJSON() ([]byte, error) {
	var data any = a.Data
	if a.Class == Double || a.Class == Single {
		vals := a.Float64s()
		out := make([]*float64, len(vals))
		for i := range vals {
			if !math.IsNaN(vals[i]) && !math.IsInf(vals[i], 0) {
				out[i] = &vals[i]
			}
		}
		data = out
	}
	if b, ok := a.Data.([]uint8); ok {
		// []uint8 would otherwise encode as base64
		ints := make([]int, len(b))
		for i, v := range b {
			ints[i] = int(v)
		}
		data = ints
	}
	shape := a.Shape
	if shape == nil {
		shape = []int{}
	}
	return json.Marshal(struct {
		Class string `json:"class"`
		Shape []int  `json:"shape"`
		Data  any    `json:"data"`
	}{a.Class.String(), shape, data})
}

// MarshalJSON encodes the cell elements as an array.
func (s *Sequence) MarshalJSON() ([]byte, error) {
	elems := s.Elems
	if elems == nil {
		elems = []Value{}
	}
	return json.Marshal(elems)
}

// MarshalJSON encodes the fields as an object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes {"Time": [...], "Data": {...}}.
func (t *Timeseries) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time *Array `json:"Time"`
		Data *Array `json:"Data"`
	}{t.Time, t.Data})
}
