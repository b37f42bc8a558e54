package rawstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType is the element type of a column. All types have a fixed width.
type DType uint8

const (
	Invalid DType = iota
	Uint8
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	Bool
	dtypesCount
)

var dtypeNames = [dtypesCount]string{
	Invalid: "invalid",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
	Bool:    "bool",
}

var dtypeWidths = [dtypesCount]int{
	Uint8:   1,
	Uint16:  2,
	Uint32:  4,
	Uint64:  8,
	Int8:    1,
	Int16:   2,
	Int32:   4,
	Int64:   8,
	Float32: 4,
	Float64: 8,
	Bool:    1,
}

func (t DType) String() string {
	if t >= dtypesCount {
		return fmt.Sprintf("dtype(%d)", uint8(t))
	}
	return dtypeNames[t]
}

// Width returns size of the type in bytes, 0 for invalid types
func (t DType) Width() int {
	if t >= dtypesCount {
		return 0
	}
	return dtypeWidths[t]
}

// Valid returns true for types that can be stored
func (t DType) Valid() bool {
	return t > Invalid && t < dtypesCount
}

// IsUnsigned returns true for uint8, uint16, uint32 and uint64
func (t DType) IsUnsigned() bool {
	return t >= Uint8 && t <= Uint64
}

// ParseDType is the inverse of DType.String()
func ParseDType(s string) (DType, error) {
	for i := Uint8; i < dtypesCount; i++ {
		if dtypeNames[i] == s {
			return i, nil
		}
	}
	return Invalid, fmt.Errorf("unknown dtype '%s'", s)
}

func (t DType) maxUint() uint64 {
	switch t {
	case Uint8:
		return math.MaxUint8
	case Uint16:
		return math.MaxUint16
	case Uint32:
		return math.MaxUint32
	}
	return math.MaxUint64
}

func (t DType) intRange() (int64, int64) {
	switch t {
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Int32:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

type numKind uint8

const (
	kindInt numKind = iota
	kindUint
	kindFloat
	kindBool
)

// number is any Go scalar normalized to one of 4 kinds
type number struct {
	kind numKind
	i    int64
	u    uint64
	f    float64
	b    bool
}

func asNumber(v any) (number, bool) {
	switch x := v.(type) {
	case int:
		return number{kind: kindInt, i: int64(x)}, true
	case int8:
		return number{kind: kindInt, i: int64(x)}, true
	case int16:
		return number{kind: kindInt, i: int64(x)}, true
	case int32:
		return number{kind: kindInt, i: int64(x)}, true
	case int64:
		return number{kind: kindInt, i: x}, true
	case uint:
		return number{kind: kindUint, u: uint64(x)}, true
	case uint8:
		return number{kind: kindUint, u: uint64(x)}, true
	case uint16:
		return number{kind: kindUint, u: uint64(x)}, true
	case uint32:
		return number{kind: kindUint, u: uint64(x)}, true
	case uint64:
		return number{kind: kindUint, u: x}, true
	case float32:
		return number{kind: kindFloat, f: float64(x)}, true
	case float64:
		return number{kind: kindFloat, f: x}, true
	case bool:
		return number{kind: kindBool, b: x}, true
	}
	return number{}, false
}

func (n number) toUint(hi uint64) (uint64, error) {
	switch n.kind {
	case kindUint:
		if n.u > hi {
			return 0, fmt.Errorf("%w: %d > %d", ErrValueOverflow, n.u, hi)
		}
		return n.u, nil
	case kindInt:
		if n.i < 0 || uint64(n.i) > hi {
			return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrValueOverflow, n.i, hi)
		}
		return uint64(n.i), nil
	}
	return 0, ErrTypeMismatch
}

func (n number) toInt(lo, hi int64) (int64, error) {
	switch n.kind {
	case kindInt:
		if n.i < lo || n.i > hi {
			return 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrValueOverflow, n.i, lo, hi)
		}
		return n.i, nil
	case kindUint:
		if n.u > uint64(hi) {
			return 0, fmt.Errorf("%w: %d > %d", ErrValueOverflow, n.u, hi)
		}
		return int64(n.u), nil
	}
	return 0, ErrTypeMismatch
}

func (n number) toFloat() (float64, error) {
	switch n.kind {
	case kindFloat:
		return n.f, nil
	case kindInt:
		return float64(n.i), nil
	case kindUint:
		return float64(n.u), nil
	}
	return 0, ErrTypeMismatch
}

// encode writes v into buf[:t.Width()] in little-endian order
func (t DType) encode(buf []byte, v any) error {
	n, ok := asNumber(v)
	if !ok {
		return fmt.Errorf("%w: can't store %T as %s", ErrTypeMismatch, v, t)
	}
	switch t {
	case Uint8, Uint16, Uint32, Uint64:
		u, err := n.toUint(t.maxUint())
		if err != nil {
			return fmt.Errorf("%s column: %w", t, err)
		}
		t.putUint(buf, u)
	case Int8, Int16, Int32, Int64:
		i, err := n.toInt(t.intRange())
		if err != nil {
			return fmt.Errorf("%s column: %w", t, err)
		}
		t.putUint(buf, uint64(i))
	case Float32:
		f, err := n.toFloat()
		if err != nil {
			return fmt.Errorf("%s column: %w", t, err)
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return fmt.Errorf("%w: %g doesn't fit float32", ErrValueOverflow, f)
		}
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(f)))
	case Float64:
		f, err := n.toFloat()
		if err != nil {
			return fmt.Errorf("%s column: %w", t, err)
		}
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
	case Bool:
		if n.kind != kindBool {
			return fmt.Errorf("%w: can't store %T as bool", ErrTypeMismatch, v)
		}
		buf[0] = 0
		if n.b {
			buf[0] = 1
		}
	default:
		return fmt.Errorf("%w: invalid column type %s", ErrTypeMismatch, t)
	}
	return nil
}

// putUint stores the low t.Width() bytes of u
func (t DType) putUint(buf []byte, u uint64) {
	switch t.Width() {
	case 1:
		buf[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(u))
	case 8:
		binary.LittleEndian.PutUint64(buf, u)
	}
}

func (t DType) getUint(buf []byte) uint64 {
	switch t.Width() {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		return binary.LittleEndian.Uint64(buf)
	}
	return 0
}

// decode returns the value in buf as the Go type matching t
func (t DType) decode(buf []byte) any {
	switch t {
	case Uint8:
		return buf[0]
	case Uint16:
		return binary.LittleEndian.Uint16(buf)
	case Uint32:
		return binary.LittleEndian.Uint32(buf)
	case Uint64:
		return binary.LittleEndian.Uint64(buf)
	case Int8:
		return int8(buf[0])
	case Int16:
		return int16(binary.LittleEndian.Uint16(buf))
	case Int32:
		return int32(binary.LittleEndian.Uint32(buf))
	case Int64:
		return int64(binary.LittleEndian.Uint64(buf))
	case Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	case Bool:
		return buf[0] != 0
	}
	return nil
}
