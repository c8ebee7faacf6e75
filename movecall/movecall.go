// Package movecall encodes calls to the identity contract functions into
// transaction commands.
package movecall

import (
	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/ptb"
)

// SharedRef references a shared object by id and initial shared version.
type SharedRef struct {
	ID                   idgov.ObjectID
	InitialSharedVersion uint64
}

// SharedRefOf returns the shared reference of an object. Objects that are not
// shared have a zero initial shared version.
func SharedRefOf(obj *idgov.ObjectData) SharedRef {
	return SharedRef{ID: obj.Ref.ID, InitialSharedVersion: obj.Owner.InitialSharedVersion}
}

// Calls appends identity contract calls to a builder.
type Calls struct {
	b   *ptb.Builder
	pkg idgov.ObjectID
}

// New returns an encoder appending calls of package pkg to b.
func New(b *ptb.Builder, pkg idgov.ObjectID) *Calls {
	return &Calls{b: b, pkg: pkg}
}

// Builder returns the builder calls are appended to.
func (c *Calls) Builder() *ptb.Builder {
	return c.b
}

// Package returns the package calls are made to.
func (c *Calls) Package() idgov.ObjectID {
	return c.pkg
}

func (c *Calls) call(module, function string, typeArgs []string, args ...ptb.Argument) ptb.Argument {
	return c.b.MoveCall(c.pkg, module, function, typeArgs, args...)
}

// pures adds every value as a pure input.
func (c *Calls) pures(values ...interface{}) ([]ptb.Argument, error) {
	args := make([]ptb.Argument, len(values))
	for i, v := range values {
		a, err := c.b.Pure(v)
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	return args, nil
}

// Identity adds an identity as a shared input.
func (c *Calls) Identity(ref SharedRef, mutable bool) (ptb.Argument, error) {
	return c.b.Object(ptb.Shared(ref.ID, ref.InitialSharedVersion, mutable))
}

// Owned adds an owned object input, for example a controller token.
func (c *Calls) Owned(ref idgov.ObjectRef) (ptb.Argument, error) {
	return c.b.Object(ptb.ImmOrOwned(ref))
}

// NewIdentity creates a shared identity and sends a controller capability to
// every controller address.
func (c *Calls) NewIdentity(controllers []contract.ControllerSpec, threshold uint64) (ptb.Argument, error) {
	addrs, weights, canDelegate := splitSpecs(controllers)
	args, err := c.pures(addrs, weights, canDelegate, threshold)
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "new_with_controllers", nil, args...), nil
}

func splitSpecs(specs []contract.ControllerSpec) ([]idgov.Address, []uint64, []bool) {
	addrs := make([]idgov.Address, len(specs))
	weights := make([]uint64, len(specs))
	canDelegate := make([]bool, len(specs))
	for i, s := range specs {
		addrs[i] = s.Address
		weights[i] = s.Weight
		canDelegate[i] = s.CanDelegate
	}
	return addrs, weights, canDelegate
}

// ApproveProposal adds the vote of the token controller to a proposal.
func (c *Calls) ApproveProposal(identity, token, proposalID ptb.Argument, actionType string) {
	c.call(contract.IdentityModule, "approve_proposal", []string{actionType}, identity, token, proposalID)
}

// ExecuteProposal consumes an approved proposal and returns the action it
// carried. The action must be consumed by the action specific calls within
// the same transaction.
func (c *Calls) ExecuteProposal(identity, token, proposalID ptb.Argument, actionType string) ptb.Argument {
	return c.call(contract.IdentityModule, "execute_proposal", []string{actionType}, identity, token, proposalID)
}

// ProposalID adds a proposal id as a pure input.
func (c *Calls) ProposalID(id idgov.ObjectID) (ptb.Argument, error) {
	return c.b.Pure(id)
}

func (c *Calls) expiration(exp *uint64) (ptb.Argument, error) {
	return c.b.Pure(ptb.OptionFromPtr(exp))
}
