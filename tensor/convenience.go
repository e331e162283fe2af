package tensor

import (
	"encoding/binary"
	"math"
)

// Constructors for common scalar and vector tensors. Mostly used by tests
// and example code; production callers usually carry raw buffers.

// NewInt32Scalar returns a rank-0 int32 tensor.
func NewInt32Scalar(v int32) *Tensor {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return &Tensor{dtype: Int32, shape: Shape{}, data: buf[:]}
}

// NewInt32Vector returns a rank-1 int32 tensor.
func NewInt32Vector(vs ...int32) *Tensor {
	data := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	}
	return &Tensor{dtype: Int32, shape: Shape{int64(len(vs))}, data: data}
}

// NewFloat32Scalar returns a rank-0 float32 tensor.
func NewFloat32Scalar(v float32) *Tensor {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return &Tensor{dtype: Float32, shape: Shape{}, data: buf[:]}
}

// NewFloat32Vector returns a rank-1 float32 tensor.
func NewFloat32Vector(vs ...float32) *Tensor {
	data := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return &Tensor{dtype: Float32, shape: Shape{int64(len(vs))}, data: data}
}

// Int32Values decodes a tensor's buffer as int32s.
func (t *Tensor) Int32Values() []int32 {
	out := make([]int32, len(t.data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(t.data[i*4:]))
	}
	return out
}

// Float32Values decodes a tensor's buffer as float32s.
func (t *Tensor) Float32Values() []float32 {
	out := make([]float32, len(t.data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.data[i*4:]))
	}
	return out
}
