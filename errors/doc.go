/*
Package errors implements the error taxonomy of the identity governance
client.

Reuse the root errors declared in this package and wrap them with Wrap or
Wrapf to describe the failure. Use Register(code, description) only for a
genuinely new category. Code distinguishes error categories on the caller
side.

Errors created with ErrXyz.New("...") or Wrap(err, "...") carry a stack trace
of the first wrap. Use fmt.Printf("%+v", err) to print it.

Attach the ids of ledger objects involved in a failure with WithObject and read
them back with Objects.
*/
package errors
