package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// WithObject attaches the id of an object involved in a failure to err. Role
// names the part the object plays, for example "identity", "proposal" or
// "token". It returns nil if provided error is nil.
func WithObject(err error, role string, id fmt.Stringer) error {
	if isNilErr(err) {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	return &objectError{parent: err, role: role, id: id.String()}
}

type objectError struct {
	parent error
	role   string
	id     string
}

func (e *objectError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.role, e.id, e.parent)
}

// Cause implements the causer interface.
func (e *objectError) Cause() error {
	return e.parent
}

// Objects returns all object ids attached to err with WithObject, keyed by
// role. When the same role was attached more than once, the outermost value
// wins.
func Objects(err error) map[string]string {
	res := make(map[string]string)
	collectObjects(err, res)
	return res
}

func collectObjects(err error, dest map[string]string) {
	for !isNilErr(err) {
		if o, ok := err.(*objectError); ok {
			if _, ok := dest[o.role]; !ok {
				dest[o.role] = o.id
			}
		}
		if u, ok := err.(unpacker); ok {
			for _, e := range u.Unpack() {
				collectObjects(e, dest)
			}
			return
		}
		c, ok := err.(causer)
		if !ok {
			return
		}
		err = c.Cause()
	}
}
