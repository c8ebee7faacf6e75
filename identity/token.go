package identity

import (
	"context"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/movecall"
	"github.com/iov-one/idgov/ptb"
)

// ControllerToken is a credential granting authority over an identity. It is
// either a *ControllerCap or a *DelegationToken.
type ControllerToken interface {
	// ID returns the token object id.
	ID() idgov.ObjectID
	// ControllerOf returns the id of the identity the token controls.
	ControllerOf() idgov.ObjectID
	// ControllerID returns the id of the capability whose weight counts
	// when the token votes.
	ControllerID() idgov.ObjectID
	// Ref returns the reference of the token object version this value was
	// read from.
	Ref() idgov.ObjectRef
	// Package returns the contract package that defines the token type.
	Package() idgov.ObjectID
	// Permits returns true if the token allows given operation.
	Permits(perm uint32) bool
}

var (
	_ ControllerToken = (*ControllerCap)(nil)
	_ ControllerToken = (*DelegationToken)(nil)
)

// ControllerCap is the root credential of a controller.
type ControllerCap struct {
	ref          idgov.ObjectRef
	pkg          idgov.ObjectID
	controllerOf idgov.ObjectID
	canDelegate  bool
}

func (c *ControllerCap) ID() idgov.ObjectID           { return c.ref.ID }
func (c *ControllerCap) ControllerOf() idgov.ObjectID { return c.controllerOf }
func (c *ControllerCap) ControllerID() idgov.ObjectID { return c.ref.ID }
func (c *ControllerCap) Ref() idgov.ObjectRef         { return c.ref }
func (c *ControllerCap) Package() idgov.ObjectID      { return c.pkg }
func (c *ControllerCap) Permits(uint32) bool          { return true }

// CanDelegate returns true if the capability may mint delegation tokens.
func (c *ControllerCap) CanDelegate() bool { return c.canDelegate }

// Delegate returns a transaction minting a delegation token with given
// permissions for recipient.
func (c *ControllerCap) Delegate(recipient idgov.Address, permissions uint32) *DelegateTx {
	return &DelegateTx{capID: c.ref.ID, canDelegate: c.canDelegate, recipient: recipient, permissions: permissions}
}

// DelegationToken is a restricted credential minted from a controller
// capability. Whether it is revoked is recorded on the identity.
type DelegationToken struct {
	ref          idgov.ObjectRef
	pkg          idgov.ObjectID
	controller   idgov.ObjectID
	controllerOf idgov.ObjectID
	permissions  uint32
}

func (t *DelegationToken) ID() idgov.ObjectID           { return t.ref.ID }
func (t *DelegationToken) ControllerOf() idgov.ObjectID { return t.controllerOf }
func (t *DelegationToken) ControllerID() idgov.ObjectID { return t.controller }
func (t *DelegationToken) Ref() idgov.ObjectRef         { return t.ref }
func (t *DelegationToken) Package() idgov.ObjectID      { return t.pkg }

// Permits returns true if all bits of perm are granted.
func (t *DelegationToken) Permits(perm uint32) bool {
	return t.permissions&perm == perm
}

// Controller returns the id of the capability that minted the token.
func (t *DelegationToken) Controller() idgov.ObjectID { return t.controller }

// Permissions returns the permission bitmask.
func (t *DelegationToken) Permissions() uint32 { return t.permissions }

// AsControllerCap returns the capability view of a token.
func AsControllerCap(t ControllerToken) (*ControllerCap, bool) {
	c, ok := t.(*ControllerCap)
	return c, ok
}

// AsDelegationToken returns the delegation view of a token.
func AsDelegationToken(t ControllerToken) (*DelegationToken, bool) {
	d, ok := t.(*DelegationToken)
	return d, ok
}

// GetControllerTokenByID fetches an object and classifies it as a controller
// token. Objects of other types fail with ErrInput.
func GetControllerTokenByID(ctx context.Context, id idgov.ObjectID, reader idgov.ReadClient) (ControllerToken, error) {
	obj, err := reader.GetObject(ctx, id)
	if err != nil {
		return nil, errors.WithObject(err, "token", id)
	}
	return tokenFromObject(obj)
}

func tokenFromObject(obj *idgov.ObjectData) (ControllerToken, error) {
	pkg, err := contract.PackageOf(obj.Type)
	if err != nil {
		return nil, errors.WithObject(err, "token", obj.Ref.ID)
	}
	switch obj.Type {
	case contract.ControllerCapType(pkg):
		var c contract.ControllerCap
		if err := contract.Decode(obj.Content, &c); err != nil {
			return nil, errors.WithObject(err, "token", obj.Ref.ID)
		}
		return &ControllerCap{ref: obj.Ref, pkg: pkg, controllerOf: c.ControllerOf, canDelegate: c.CanDelegate}, nil
	case contract.DelegationTokenType(pkg):
		var d contract.DelegationToken
		if err := contract.Decode(obj.Content, &d); err != nil {
			return nil, errors.WithObject(err, "token", obj.Ref.ID)
		}
		return &DelegationToken{
			ref:          obj.Ref,
			pkg:          pkg,
			controller:   d.Controller,
			controllerOf: d.ControllerOf,
			permissions:  d.Permissions,
		}, nil
	}
	return nil, errors.WithObject(errors.ErrInput.Newf("%s is not a controller token", obj.Type), "token", obj.Ref.ID)
}

func tokenTypes(pkg idgov.ObjectID) []string {
	return []string{contract.ControllerCapType(pkg), contract.DelegationTokenType(pkg)}
}

// DelegateTx mints a delegation token.
type DelegateTx struct {
	capID       idgov.ObjectID
	canDelegate bool
	recipient   idgov.Address
	permissions uint32
}

var _ Transaction[*DelegationToken] = (*DelegateTx)(nil)

func (tx *DelegateTx) BuildFragment(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	if !tx.canDelegate {
		return nil, errors.WithObject(errors.ErrUnauthorized.New("capability cannot delegate"), "token", tx.capID)
	}
	token, err := GetControllerTokenByID(ctx, tx.capID, reader)
	if err != nil {
		return nil, err
	}
	c, ok := AsControllerCap(token)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.New("not a controller capability"), "token", tx.capID)
	}
	if !c.CanDelegate() {
		return nil, errors.WithObject(errors.ErrUnauthorized.New("capability cannot delegate"), "token", tx.capID)
	}

	b := ptb.NewBuilder()
	calls := movecall.New(b, c.Package())
	capArg, err := calls.Owned(c.Ref())
	if err != nil {
		return nil, err
	}
	if err := calls.DelegateControllerCap(capArg, tx.recipient, tx.permissions); err != nil {
		return nil, err
	}
	return b.Finish(), nil
}

// Apply returns the minted token.
func (tx *DelegateTx) Apply(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (*DelegationToken, error) {
	if err := checkStatus(effects); err != nil {
		return nil, err
	}
	for _, c := range effects.Created {
		if !c.Owner.IsOwnedBy(tx.recipient) {
			continue
		}
		token, err := GetControllerTokenByID(ctx, c.Ref.ID, reader)
		if err != nil {
			continue
		}
		if d, ok := AsDelegationToken(token); ok && d.Controller() == tx.capID {
			return d, nil
		}
	}
	return nil, errors.WithObject(errors.ErrEffectsApplication.New("no delegation token created"), "token", tx.capID)
}
