// Package assert provides small test helpers used across the module.
package assert

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/iov-one/idgov/errors"
)

// Tester is the minimal subset of testing.TB needed to run most assert commands
type Tester interface {
	Helper()
	Fatal(...interface{})
	Fatalf(string, ...interface{})
}

// Nil fails the test if given value is not nil.
func Nil(t Tester, value interface{}) {
	t.Helper()
	if !isNil(value) {
		// Use %+v so that if we are printing an error that supports
		// stack traces then a full stack trace is shown.
		t.Fatalf("want a nil value, got %+v", value)
	}
}

func isNil(value interface{}) (isnil bool) {
	if value == nil {
		return true
	}

	defer func() {
		if recover() != nil {
			isnil = false
		}
	}()

	// The argument must be a chan, func, interface, map, pointer, or slice
	// value; if it is not, IsNil panics.
	isnil = reflect.ValueOf(value).IsNil()

	return isnil
}

// Equal fails the test if two values are not equal. The failure message
// holds the difference of both values, unexported fields included.
func Equal(t Tester, want, got interface{}) {
	t.Helper()
	if reflect.DeepEqual(want, got) {
		return
	}
	if reflect.TypeOf(want) != reflect.TypeOf(got) {
		t.Fatalf("values not equal \nwant %T %v\n got %T %v", want, want, got, got)
		return
	}
	t.Fatalf("values not equal (-want +got):\n%s", cmp.Diff(want, got, exportAll))
}

var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// Panics will run given function and recover any panic. It will fail the test
// if given function call did not panic.
func Panics(t Tester, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("panic expected")
		}
	}()
	fn()
}

// FieldError ensures that the errors of a field match want. A nil want
// asserts that the field has no error at all.
func FieldError(t testing.TB, err error, fieldName string, want *errors.Error) {
	t.Helper()

	errs := errors.FieldErrors(err, fieldName)
	if want == nil {
		if len(errs) != 0 {
			t.Fatalf("want no %s error, got %q", fieldName, errs)
		}
		return
	}
	switch len(errs) {
	case 0:
		t.Fatalf("no %s error found in %q", fieldName, err)
	case 1:
		if !want.Is(errs[0]) {
			t.Fatalf("unexpected %s error: %q", fieldName, errs[0])
		}
	default:
		t.Fatalf("want one %s error, got %d: %q", fieldName, len(errs), errs)
	}
}

// IsErr is a convenient helper that checks if the errors are a match
// and prints out the difference if not as well as failing the assertion.
func IsErr(t testing.TB, want, got error) {
	t.Helper()

	if want == got {
		return
	}

	type comparator interface {
		Is(error) bool
	}

	if want, ok := want.(comparator); ok && want.Is(got) {
		return
	}

	t.Fatalf("want %q, got %+v", want, got)
}

// ObjectError ensures that given error wraps want and carries the id of an
// object in given role.
func ObjectError(t testing.TB, err error, want *errors.Error, role string, id fmt.Stringer) {
	t.Helper()
	IsErr(t, want, err)
	got, ok := errors.Objects(err)[role]
	if !ok {
		t.Fatalf("no %s attached to %q", role, err)
	}
	if got != id.String() {
		t.Fatalf("want %s %s, got %s", role, id, got)
	}
}
