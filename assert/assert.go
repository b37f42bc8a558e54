// Package assert is a subset of github.com/stretchr/testify/assert
// with only the functions used by molstore tests.
// Failure messages show a unified diff of spew dumps of the values.
package assert

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

// TestingT is an interface wrapper around *testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
}

type tHelper interface {
	Helper()
}

var spewConfig = spew.ConfigState{
	Indent:                  " ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// ObjectsAreEqual determines if two objects are considered equal.
// []byte values are compared with bytes.Equal
func ObjectsAreEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == actual
	}
	exp, ok := expected.([]byte)
	if !ok {
		return reflect.DeepEqual(expected, actual)
	}
	act, ok := actual.([]byte)
	if !ok {
		return false
	}
	if exp == nil || act == nil {
		return exp == nil && act == nil
	}
	return bytes.Equal(exp, act)
}

func callerInfo() string {
	// skip callerInfo, Fail and the assert function
	for i := 2; i < 8; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.HasSuffix(file, "/assert/assert.go") || strings.HasSuffix(file, "/require/require.go") {
			continue
		}
		idx := strings.LastIndex(file, "/")
		if idx >= 0 {
			file = file[idx+1:]
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}

func messageFromMsgAndArgs(msgAndArgs ...interface{}) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if len(msgAndArgs) == 1 {
		if s, ok := msgAndArgs[0].(string); ok {
			return s
		}
		return fmt.Sprintf("%+v", msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprintf("%+v", msgAndArgs)
}

// Fail reports a failure through t.Errorf
func Fail(t TestingT, failure string, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	s := "Error Trace: " + callerInfo() + "\nError: " + failure
	if msg := messageFromMsgAndArgs(msgAndArgs...); msg != "" {
		s += "\nMessages: " + msg
	}
	t.Errorf("\n%s", s)
	return false
}

// diff returns a unified diff of spew dumps of expected and actual.
// Returns "" if the values are of different types or not worth diffing.
func diff(expected interface{}, actual interface{}) string {
	if expected == nil || actual == nil {
		return ""
	}
	et := reflect.TypeOf(expected)
	if et != reflect.TypeOf(actual) {
		return ""
	}
	switch et.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.String, reflect.Pointer:
	default:
		return ""
	}
	var e, a string
	if et.Kind() == reflect.String {
		e = reflect.ValueOf(expected).String()
		a = reflect.ValueOf(actual).String()
	} else {
		e = spewConfig.Sdump(expected)
		a = spewConfig.Sdump(actual)
	}
	d, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(e),
		B:        difflib.SplitLines(a),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	if d == "" {
		return ""
	}
	return "\n\nDiff:\n" + d
}

// Equal asserts that two objects are equal.
//
//	assert.Equal(t, 123, 123)
func Equal(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if ObjectsAreEqual(expected, actual) {
		return true
	}
	failure := fmt.Sprintf("Not equal: \n"+
		"expected: %s\n"+
		"actual  : %s%s", formatValue(expected), formatValue(actual), diff(expected, actual))
	return Fail(t, failure, msgAndArgs...)
}

func formatValue(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	switch v.(type) {
	case string, []byte:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("%T(%#v)", v, v)
}

// NotEqual asserts that the specified values are NOT equal.
func NotEqual(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !ObjectsAreEqual(expected, actual) {
		return true
	}
	return Fail(t, fmt.Sprintf("Should not be: %s", formatValue(actual)), msgAndArgs...)
}

func isNil(object interface{}) bool {
	if object == nil {
		return true
	}
	v := reflect.ValueOf(object)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}

// Nil asserts that the specified object is nil.
func Nil(t TestingT, object interface{}, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if isNil(object) {
		return true
	}
	return Fail(t, fmt.Sprintf("Expected nil, but got: %s", formatValue(object)), msgAndArgs...)
}

// NotNil asserts that the specified object is not nil.
func NotNil(t TestingT, object interface{}, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !isNil(object) {
		return true
	}
	return Fail(t, "Expected value not to be nil.", msgAndArgs...)
}

// NoError asserts that a function returned no error (i.e. `nil`).
func NoError(t TestingT, err error, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if err == nil {
		return true
	}
	return Fail(t, fmt.Sprintf("Received unexpected error:\n%+v", err), msgAndArgs...)
}

// Error asserts that a function returned an error (i.e. not `nil`).
func Error(t TestingT, err error, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if err != nil {
		return true
	}
	return Fail(t, "An error is expected but got nil.", msgAndArgs...)
}

// ErrorIs asserts that errors.Is(err, target) is true.
func ErrorIs(t TestingT, err, target error, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if errors.Is(err, target) {
		return true
	}
	failure := fmt.Sprintf("Target error should be in err chain:\n"+
		"expected: %q\n"+
		"in chain: %v", target, err)
	return Fail(t, failure, msgAndArgs...)
}

// True asserts that the specified value is true.
func True(t TestingT, value bool, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if value {
		return true
	}
	return Fail(t, "Should be true", msgAndArgs...)
}

// False asserts that the specified value is false.
func False(t TestingT, value bool, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !value {
		return true
	}
	return Fail(t, "Should be false", msgAndArgs...)
}

func getLen(x interface{}) (n int, ok bool) {
	v := reflect.ValueOf(x)
	defer func() {
		if e := recover(); e != nil {
			ok = false
		}
	}()
	return v.Len(), true
}

// Len asserts that the specified object has specific length.
// Len also fails if the object has a type that len() not accept.
func Len(t TestingT, object interface{}, length int, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	n, ok := getLen(object)
	if !ok {
		return Fail(t, fmt.Sprintf("\"%v\" could not be applied builtin len()", object), msgAndArgs...)
	}
	if n != length {
		return Fail(t, fmt.Sprintf("\"%v\" should have %d item(s), but has %d", object, length, n), msgAndArgs...)
	}
	return true
}

func isEmpty(object interface{}) bool {
	if object == nil {
		return true
	}
	v := reflect.ValueOf(object)
	switch v.Kind() {
	case reflect.Chan, reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return v.Len() == 0
	case reflect.Pointer:
		if v.IsNil() {
			return true
		}
		return isEmpty(v.Elem().Interface())
	}
	return reflect.DeepEqual(object, reflect.Zero(v.Type()).Interface())
}

// Empty asserts that the specified object is empty: nil, "", false, 0
// or a slice, map or channel with len == 0.
func Empty(t TestingT, object interface{}, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if isEmpty(object) {
		return true
	}
	return Fail(t, fmt.Sprintf("Should be empty, but was %v", object), msgAndArgs...)
}

// NotEmpty asserts that the specified object is NOT empty.
func NotEmpty(t TestingT, object interface{}, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !isEmpty(object) {
		return true
	}
	return Fail(t, fmt.Sprintf("Should NOT be empty, but was %v", object), msgAndArgs...)
}

// Contains asserts that s contains substr.
func Contains(t TestingT, s string, substr string, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if strings.Contains(s, substr) {
		return true
	}
	return Fail(t, fmt.Sprintf("%q does not contain %q", s, substr), msgAndArgs...)
}

// NotContains asserts that s doesn't contain substr.
func NotContains(t TestingT, s string, substr string, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !strings.Contains(s, substr) {
		return true
	}
	return Fail(t, fmt.Sprintf("%q should not contain %q", s, substr), msgAndArgs...)
}
