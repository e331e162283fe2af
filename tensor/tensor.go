package tensor

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DType identifies the element type of a Tensor.
type DType int

const (
	Invalid DType = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint64
	Float32
	Float64
	Bool
	String
)

// Size returns the per-element width in bytes, or -1 for variable-width
// types.
func (d DType) Size() int {
	switch d {
	case Int8, Uint8, Bool:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	case String:
		return -1
	}
	return 0
}

func (d DType) String() string {
	switch d {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint64:
		return "uint64"
	case Float32:
		return "float"
	case Float64:
		return "double"
	case Bool:
		return "bool"
	case String:
		return "string"
	}
	return "invalid"
}

// Shape holds tensor dimensions. A dim of -1 is unknown and compatible with
// any concrete size.
type Shape []int64

// Compatible reports whether two shapes have equal rank and every dim pair
// is equal or one side is unknown.
func (s Shape) Compatible(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] && s[i] != -1 && o[i] != -1 {
			return false
		}
	}
	return true
}

// Equal reports exact dim equality.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// NumElements returns the element count, or -1 when any dim is unknown.
func (s Shape) NumElements() int64 {
	n := int64(1)
	for _, d := range s {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

func (s Shape) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, d := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		if d < 0 {
			b.WriteByte('?')
		} else {
			fmt.Fprintf(&b, "%d", d)
		}
	}
	b.WriteByte(']')
	return b.String()
}

// Spec describes the expected dtype and shape of a column.
type Spec struct {
	DType DType
	Shape Shape
}

// Validate checks a tensor against the spec. Error messages carry the
// column index supplied by the caller.
func (sp Spec) Validate(t *Tensor, column int) error {
	if t.DType() != sp.DType {
		return status.Errorf(codes.InvalidArgument,
			"Tensor of wrong dtype provided for column %d. Got %s but expected %s.",
			column, t.DType(), sp.DType)
	}
	if !t.Shape().Compatible(sp.Shape) {
		return status.Errorf(codes.InvalidArgument,
			"Tensor of incompatible shape provided for column %d. Got %s which is incompatible with %s.",
			column, t.Shape(), sp.Shape)
	}
	return nil
}

// Tensor is an immutable dense array: a dtype, a shape, and a flat
// row-major byte buffer.
type Tensor struct {
	dtype DType
	shape Shape
	data  []byte
}

// New constructs a tensor over a copy of data. The buffer length must match
// the shape and dtype.
func New(dtype DType, shape Shape, data []byte) (*Tensor, error) {
	n := shape.NumElements()
	if n < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "tensor shape %s has unknown dims", shape)
	}
	if w := dtype.Size(); w > 0 && int64(len(data)) != n*int64(w) {
		return nil, status.Errorf(codes.InvalidArgument,
			"tensor data length %d does not match shape %s of dtype %s", len(data), shape, dtype)
	}
	return &Tensor{dtype: dtype, shape: append(Shape(nil), shape...), data: append([]byte(nil), data...)}, nil
}

func (t *Tensor) DType() DType { return t.dtype }

func (t *Tensor) Shape() Shape { return append(Shape(nil), t.shape...) }

// Data returns a copy of the underlying buffer.
func (t *Tensor) Data() []byte { return append([]byte(nil), t.data...) }

// NumBytes returns the buffer length without copying.
func (t *Tensor) NumBytes() int { return len(t.data) }

// Equal reports dtype, shape and byte equality.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.dtype != o.dtype || !t.shape.Equal(o.shape) || len(t.data) != len(o.data) {
		return false
	}
	for i := range t.data {
		if t.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// Stack concatenates tensors of identical dtype and shape along a new
// leading batch dim.
func Stack(ts []*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, status.Error(codes.InvalidArgument, "cannot stack zero tensors")
	}
	first := ts[0]
	for i, t := range ts[1:] {
		if t.dtype != first.dtype {
			return nil, status.Errorf(codes.InvalidArgument,
				"cannot stack tensors of different dtypes: %s (index 0) != %s (index %d)", first.dtype, t.dtype, i+1)
		}
		if !t.shape.Equal(first.shape) {
			return nil, status.Errorf(codes.InvalidArgument,
				"cannot stack tensors of different shapes: %s (index 0) != %s (index %d)", first.shape, t.shape, i+1)
		}
	}
	shape := append(Shape{int64(len(ts))}, first.shape...)
	data := make([]byte, 0, len(first.data)*len(ts))
	for _, t := range ts {
		data = append(data, t.data...)
	}
	return &Tensor{dtype: first.dtype, shape: shape, data: data}, nil
}

// Row slices row i off the leading dim, squeezing it away.
func (t *Tensor) Row(i int) (*Tensor, error) {
	if len(t.shape) == 0 {
		return nil, status.Error(codes.InvalidArgument, "cannot slice a scalar tensor")
	}
	if i < 0 || int64(i) >= t.shape[0] {
		return nil, status.Errorf(codes.InvalidArgument, "row %d out of range for shape %s", i, t.shape)
	}
	rowShape := append(Shape(nil), t.shape[1:]...)
	stride := len(t.data) / int(t.shape[0])
	data := append([]byte(nil), t.data[i*stride:(i+1)*stride]...)
	return &Tensor{dtype: t.dtype, shape: rowShape, data: data}, nil
}
