package assert

import (
	"testing"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
)

func TestIsErr(t *testing.T) {
	cases := map[string]struct {
		ErrWant  error
		ErrGot   error
		Result   bool
		WantFail bool
	}{
		"same error": {
			ErrWant:  errors.ErrInput,
			ErrGot:   errors.ErrInput,
			WantFail: false,
		},
		"compared to nil": {
			ErrWant:  nil,
			ErrGot:   errors.ErrInput,
			WantFail: true,
		},
		"both nil": {
			ErrWant:  nil,
			ErrGot:   nil,
			WantFail: false,
		},
		"wrapped": {
			ErrWant:  errors.ErrInput,
			ErrGot:   errors.Wrap(errors.ErrInput, "test"),
			WantFail: false,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			mock := &tmock{TB: t}
			IsErr(mock, tc.ErrWant, tc.ErrGot)
			failed := mock.failcalls > 0
			if tc.WantFail != failed {
				t.Fatalf("unexpected failed call state: %d failures", mock.failcalls)
			}
		})
	}
}

func TestFieldErrors(t *testing.T) {
	cases := map[string]struct {
		Err      error
		Name     string
		WantErr  *errors.Error
		WantFail bool
	}{
		"ensure a single error exists and is found": {
			Err:      errors.Field("Threshold", errors.ErrInput, "exceeds total weight"),
			Name:     "Threshold",
			WantErr:  errors.ErrInput,
			WantFail: false,
		},
		"use nil to ensure no error was found": {
			Err:      errors.Field("Threshold", errors.ErrInput, "exceeds total weight"),
			Name:     "Weight",
			WantErr:  nil,
			WantFail: false,
		},
		"use nil to fail when an error was found but was not expected": {
			Err:      errors.Field("Threshold", errors.ErrInput, "zero"),
			Name:     "Threshold",
			WantErr:  nil,
			WantFail: true,
		},
		"more than one error for a single field is not allowed, even if it is the same error type": {
			Err: errors.Append(
				errors.Field("Threshold", errors.ErrInput, "first"),
				errors.Field("Threshold", errors.ErrInput, "second"),
			),
			Name:     "Threshold",
			WantErr:  errors.ErrInput,
			WantFail: true, // Only one error per name is allowed when testing.
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			mock := &tmock{TB: t}
			FieldError(mock, tc.Err, tc.Name, tc.WantErr)
			failed := mock.failcalls > 0
			if tc.WantFail != failed {
				t.Fatalf("unexpected failed call state: %d failures", mock.failcalls)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	cases := map[string]struct {
		Want     interface{}
		Got      interface{}
		WantFail bool
	}{
		"equal ids": {
			Want: idgov.ObjectID{1},
			Got:  idgov.ObjectID{1},
		},
		"different ids": {
			Want:     idgov.ObjectID{1},
			Got:      idgov.ObjectID{2},
			WantFail: true,
		},
		"different types": {
			Want:     uint64(1),
			Got:      1,
			WantFail: true,
		},
		"different refs": {
			Want:     idgov.ObjectRef{ID: idgov.ObjectID{1}, Version: 1},
			Got:      idgov.ObjectRef{ID: idgov.ObjectID{1}, Version: 2},
			WantFail: true,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			mock := &tmock{TB: t}
			Equal(mock, tc.Want, tc.Got)
			failed := mock.failcalls > 0
			if tc.WantFail != failed {
				t.Fatalf("unexpected failed call state: %d failures", mock.failcalls)
			}
		})
	}
}

func TestObjectError(t *testing.T) {
	id := idgov.MustParseObjectID("0x1")
	other := idgov.MustParseObjectID("0x2")
	cases := map[string]struct {
		Err      error
		Role     string
		ID       idgov.ObjectID
		WantFail bool
	}{
		"matching object": {
			Err:  errors.WithObject(errors.ErrUnauthorized, "identity", id),
			Role: "identity",
			ID:   id,
		},
		"different id": {
			Err:      errors.WithObject(errors.ErrUnauthorized, "identity", id),
			Role:     "identity",
			ID:       other,
			WantFail: true,
		},
		"no object": {
			Err:      errors.ErrUnauthorized,
			Role:     "identity",
			ID:       id,
			WantFail: true,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			mock := &tmock{TB: t}
			ObjectError(mock, tc.Err, errors.ErrUnauthorized, tc.Role, tc.ID)
			failed := mock.failcalls > 0
			if tc.WantFail != failed {
				t.Fatalf("unexpected failed call state: %d failures", mock.failcalls)
			}
		})
	}
}

// tmock mocks testing.TB and only counts failure calls. It ignores all other
// input.
type tmock struct {
	testing.TB
	failcalls int
}

func (t *tmock) Error(args ...interface{}) {
	t.TB.Log(args...)
	t.failcalls++
}

func (t *tmock) Errorf(s string, args ...interface{}) {
	t.TB.Logf(s, args...)
	t.failcalls++
}

func (t *tmock) Fatal(args ...interface{}) {
	t.TB.Log(args...)
	t.failcalls++
}

func (t *tmock) Fatalf(s string, args ...interface{}) {
	t.TB.Logf(s, args...)
	t.failcalls++
}
