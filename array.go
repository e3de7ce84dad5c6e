package mat73

import (
	"fmt"

	"github.com/scigolib/mat73/internal/container"
	"github.com/scigolib/mat73/internal/utils"
)

// matlabShape converts storage-order dims to the MATLAB size vector.
//
// The container stores dims reversed, so the flat payload is already in
// MATLAB's column-major order and only the shape changes. Vectors collapse
// to one axis and all-singleton arrays to a scalar.
func matlabShape(dims []uint64) []int {
	if dims == nil {
		return nil
	}
	if len(dims) == 1 {
		return []int{int(dims[0])}
	}

	var nonSingleton []int
	for _, d := range dims {
		if d != 1 {
			nonSingleton = append(nonSingleton, int(d))
		}
	}
	switch len(nonSingleton) {
	case 0:
		return nil
	case 1:
		return nonSingleton
	}

	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[len(dims)-1-i] = int(d)
	}
	return shape
}

// matlabDims reverses storage-order dims without squeezing.
func matlabDims(dims []uint64) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[len(dims)-1-i] = int(d)
	}
	return out
}

// materialize decodes a numeric or logical dataset as an array of class.
// Each call returns freshly allocated element storage.
func materialize(ds *container.Dataset, class Class) (*Array, error) {
	n := ds.Len()
	if ds.Type.Size == 0 || len(ds.Raw) < n*ds.Type.Size {
		return nil, utils.Truncated(fmt.Sprintf("%s payload", class), n*ds.Type.Size, len(ds.Raw))
	}
	if ds.Type.Class != container.ClassInteger && ds.Type.Class != container.ClassFloat {
		return nil, fmt.Errorf("cannot decode %s elements as %s: %w", ds.Type, class, utils.ErrUnsupported)
	}

	data, err := decodeClass(ds, class, n)
	if err != nil {
		return nil, err
	}
	return &Array{Class: class, Shape: matlabShape(ds.Dims), Data: data}, nil
}

// emptyArray returns a zero-element array of class with the given shape.
func emptyArray(class Class, shape []int) *Array {
	data, err := decodeClass(&container.Dataset{}, class, 0)
	if err != nil {
		data = []float64{}
	}
	return &Array{Class: class, Shape: shape, Data: data}
}

func decodeClass(ds *container.Dataset, class Class, n int) (any, error) {
	switch class {
	case Double:
		return decodeAs[float64](ds, n), nil
	case Single:
		return decodeAs[float32](ds, n), nil
	case Int8:
		return decodeAs[int8](ds, n), nil
	case Int16:
		return decodeAs[int16](ds, n), nil
	case Int32:
		return decodeAs[int32](ds, n), nil
	case Int64:
		return decodeAs[int64](ds, n), nil
	case Uint8:
		return decodeAs[uint8](ds, n), nil
	case Uint16:
		return decodeAs[uint16](ds, n), nil
	case Uint32:
		return decodeAs[uint32](ds, n), nil
	case Uint64:
		return decodeAs[uint64](ds, n), nil
	case Logical:
		bits := decodeAs[uint64](ds, n)
		b := make([]bool, n)
		for i, v := range bits {
			b[i] = v != 0
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown class %v: %w", class, utils.ErrUnsupported)
}

func decodeAs[T number](ds *container.Dataset, n int) []T {
	out := make([]T, n)
	switch {
	case ds.Type.Class == container.ClassFloat:
		for i := range out {
			f, _ := ds.Float(i)
			out[i] = T(f)
		}
	case ds.Type.Signed:
		for i := range out {
			v, _ := ds.Int(i)
			out[i] = T(v)
		}
	default:
		for i := range out {
			v, _ := ds.Uint(i)
			out[i] = T(v)
		}
	}
	return out
}

// nativeClass picks the array class matching a stored element type, for
// payloads whose tag is not a numeric class.
func nativeClass(t container.ElementType) (Class, bool) {
	switch t.Class {
	case container.ClassFloat:
		if t.Size == 4 {
			return Single, true
		}
		return Double, true
	case container.ClassInteger:
		classes := map[int][2]Class{1: {Uint8, Int8}, 2: {Uint16, Int16}, 4: {Uint32, Int32}, 8: {Uint64, Int64}}
		c, ok := classes[t.Size]
		if !ok {
			return 0, false
		}
		if t.Signed {
			return c[1], true
		}
		return c[0], true
	}
	return 0, false
}
