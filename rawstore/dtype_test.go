package rawstore

import (
	"testing"

	"github.com/kjk/molstore/assert"
)

func TestDType(t *testing.T) {
	for dt := Uint8; dt < dtypesCount; dt++ {
		assert.True(t, dt.Valid())
		assert.True(t, dt.Width() > 0)
		got, err := ParseDType(dt.String())
		assert.NoError(t, err)
		assert.Equal(t, dt, got)
	}
	assert.Equal(t, 1, Bool.Width())
	assert.Equal(t, 8, Float64.Width())
	assert.False(t, Invalid.Valid())
	assert.False(t, DType(200).Valid())
	assert.Equal(t, 0, DType(200).Width())
	_, err := ParseDType("uint128")
	assert.Error(t, err)
	_, err = ParseDType("invalid")
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	buf := make([]byte, 8)
	check := func(dt DType, v any, exp any) {
		t.Helper()
		assert.NoError(t, dt.encode(buf, v))
		assert.Equal(t, exp, dt.decode(buf[:dt.Width()]))
	}
	check(Uint8, 200, uint8(200))
	check(Uint16, int64(65535), uint16(65535))
	check(Uint64, uint64(1)<<63, uint64(1)<<63)
	check(Int8, -128, int8(-128))
	check(Int32, uint16(7), int32(7))
	check(Int64, int64(-1), int64(-1))
	check(Float32, 3, float32(3))
	check(Float64, float32(0.5), float64(0.5))
	check(Bool, true, true)
	check(Bool, false, false)

	assert.ErrorIs(t, Uint32.encode(buf, uint64(1)<<32), ErrValueOverflow)
	assert.ErrorIs(t, Int16.encode(buf, 40000), ErrValueOverflow)
	assert.ErrorIs(t, Int64.encode(buf, uint64(1)<<63), ErrValueOverflow)
	assert.ErrorIs(t, Float32.encode(buf, 1e300), ErrValueOverflow)
	assert.ErrorIs(t, Bool.encode(buf, 1), ErrTypeMismatch)
	assert.ErrorIs(t, Uint8.encode(buf, true), ErrTypeMismatch)
	assert.ErrorIs(t, Uint8.encode(buf, nil), ErrTypeMismatch)
}
