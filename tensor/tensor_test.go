package tensor

import (
	"testing"

	"google.golang.org/grpc/status"
)

func statusMessage(err error) string { return status.Convert(err).Message() }

func TestShapeCompatible(t *testing.T) {
	cases := []struct {
		a, b Shape
		want bool
	}{
		{Shape{2, 3}, Shape{2, 3}, true},
		{Shape{2, 3}, Shape{-1, 3}, true},
		{Shape{2, 3}, Shape{2}, false},
		{Shape{2, 3}, Shape{2, 4}, false},
		{Shape{}, Shape{}, true},
	}
	for _, tc := range cases {
		if got := tc.a.Compatible(tc.b); got != tc.want {
			t.Fatalf("%v.Compatible(%v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestShapeString(t *testing.T) {
	if got := (Shape{2, 3}).String(); got != "[2,3]" {
		t.Fatalf("String = %q", got)
	}
	if got := (Shape{-1, 3}).String(); got != "[?,3]" {
		t.Fatalf("String = %q", got)
	}
	if got := (Shape{}).String(); got != "[]" {
		t.Fatalf("String = %q", got)
	}
}

func TestDTypeNames(t *testing.T) {
	if Float32.String() != "float" || Float64.String() != "double" || Int32.String() != "int32" {
		t.Fatalf("dtype names: %s %s %s", Float32, Float64, Int32)
	}
}

func TestNewValidatesBufferLength(t *testing.T) {
	if _, err := New(Int32, Shape{2}, make([]byte, 7)); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := New(Int32, Shape{2}, make([]byte, 8)); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestStackAndRow(t *testing.T) {
	a := NewInt32Scalar(1)
	b := NewInt32Scalar(2)
	c := NewInt32Scalar(3)

	stacked, err := Stack([]*Tensor{a, b, c})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if !stacked.Shape().Equal(Shape{3}) {
		t.Fatalf("stacked shape = %v", stacked.Shape())
	}

	row, err := stacked.Row(1)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if !row.Equal(b) {
		t.Fatalf("row 1 = %v, want %v", row.Int32Values(), b.Int32Values())
	}
	if _, err := stacked.Row(3); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestStackRejectsMixedDTypes(t *testing.T) {
	if _, err := Stack([]*Tensor{NewInt32Scalar(1), NewFloat32Scalar(1)}); err == nil {
		t.Fatalf("expected dtype mismatch error")
	}
}

func TestStackAddsLeadingDimForVectors(t *testing.T) {
	v1 := NewInt32Vector(1, 2)
	v2 := NewInt32Vector(3, 4)
	stacked, err := Stack([]*Tensor{v1, v2})
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if !stacked.Shape().Equal(Shape{2, 2}) {
		t.Fatalf("shape = %v", stacked.Shape())
	}
	row, err := stacked.Row(1)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if vs := row.Int32Values(); vs[0] != 3 || vs[1] != 4 {
		t.Fatalf("row = %v", vs)
	}
}

func TestSpecValidateMessages(t *testing.T) {
	sp := Spec{DType: Int32, Shape: Shape{1}}

	err := sp.Validate(NewFloat32Vector(1), 0)
	want := "Tensor of wrong dtype provided for column 0. Got float but expected int32."
	if err == nil || err.Error() == "" {
		t.Fatalf("expected dtype error")
	}
	if got := statusMessage(err); got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}

	err = sp.Validate(NewInt32Vector(1, 2), 0)
	want = "Tensor of incompatible shape provided for column 0. Got [2] which is incompatible with [1]."
	if got := statusMessage(err); got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}
