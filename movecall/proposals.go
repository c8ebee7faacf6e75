package movecall

import (
	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/ptb"
)

// ProposeBorrow creates a proposal lending objects owned by the identity. It
// returns the proposal id.
func (c *Calls) ProposeBorrow(identity, token ptb.Argument, objects []idgov.ObjectID, exp *uint64) (ptb.Argument, error) {
	args, err := c.pures(objects, ptb.OptionFromPtr(exp))
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "propose_borrow", nil, identity, token, args[0], args[1]), nil
}

// ExecuteBorrow receives every object from the identity. It returns the
// borrowed objects in the same order.
func (c *Calls) ExecuteBorrow(identity, action ptb.Argument, objects []*idgov.ObjectData) ([]ptb.Argument, error) {
	res := make([]ptb.Argument, len(objects))
	for i, obj := range objects {
		recv, err := c.b.Object(ptb.Receiving(obj.Ref))
		if err != nil {
			return nil, err
		}
		res[i] = c.call(contract.IdentityModule, "execute_borrow", []string{obj.Type}, identity, action, recv)
	}
	return res, nil
}

// PutBackBorrowed returns a borrowed object to the identity.
func (c *Calls) PutBackBorrowed(action, object ptb.Argument, objectType string) {
	c.call(contract.BorrowModule, "put_back", []string{objectType}, action, object)
}

// ConcludeBorrow consumes a borrow action after all objects were put back.
func (c *Calls) ConcludeBorrow(action ptb.Argument) {
	c.call(contract.BorrowModule, "conclude_borrow", nil, action)
}

// ProposeControllerExecution creates a proposal lending a controller
// capability owned by the identity.
func (c *Calls) ProposeControllerExecution(identity, token ptb.Argument, capID idgov.ObjectID, exp *uint64) (ptb.Argument, error) {
	args, err := c.pures(capID, ptb.OptionFromPtr(exp))
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "propose_controller_execution", nil, identity, token, args[0], args[1]), nil
}

// BorrowControllerCap receives the capability named by the action from the
// identity.
func (c *Calls) BorrowControllerCap(identity, action ptb.Argument, capRef idgov.ObjectRef) (ptb.Argument, error) {
	recv, err := c.b.Object(ptb.Receiving(capRef))
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "borrow_controller_cap", nil, identity, action, recv), nil
}

// PutBackControllerCap returns the capability and consumes the action.
func (c *Calls) PutBackControllerCap(action, capArg ptb.Argument) {
	c.call(contract.ControllerProposalModule, "put_back", nil, action, capArg)
}

// ProposeAccessToSubIdentity creates a proposal lending the token the
// identity holds over a sub identity.
func (c *Calls) ProposeAccessToSubIdentity(identity, subIdentity, token ptb.Argument, exp *uint64) (ptb.Argument, error) {
	e, err := c.expiration(exp)
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "propose_access_to_sub_identity", nil, identity, subIdentity, token, e), nil
}

// BorrowSubIdentityToken receives the identity token over the sub identity.
func (c *Calls) BorrowSubIdentityToken(identity, action ptb.Argument, tokenRef idgov.ObjectRef, isCap bool) (ptb.Argument, error) {
	recv, err := c.b.Object(ptb.Receiving(tokenRef))
	if err != nil {
		return ptb.Argument{}, err
	}
	fn := "borrow_delegation_token_to_sub_identity"
	if isCap {
		fn = "borrow_controller_cap_to_sub_identity"
	}
	return c.call(contract.IdentityModule, fn, nil, identity, action, recv), nil
}

// PutBackSubIdentityToken returns the sub identity token and consumes the
// action.
func (c *Calls) PutBackSubIdentityToken(action, token ptb.Argument, isCap bool) {
	fn := "put_back_delegation_token"
	if isCap {
		fn = "put_back_controller_cap"
	}
	c.call(contract.AccessSubIdentityModule, fn, nil, action, token)
}

// ProposeConfigChange creates a proposal modifying the controller set.
func (c *Calls) ProposeConfigChange(identity, token ptb.Argument, change contract.ConfigChangeAction, exp *uint64) (ptb.Argument, error) {
	addrs, weights, canDelegate := splitSpecs(change.Add)
	updateIDs := make([]idgov.ObjectID, len(change.Update))
	updateWeights := make([]uint64, len(change.Update))
	for i, u := range change.Update {
		updateIDs[i] = u.CapID
		updateWeights[i] = u.Weight
	}
	args, err := c.pures(ptb.OptionFromPtr(exp), change.Threshold, addrs, weights, canDelegate, change.Remove, updateIDs, updateWeights)
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "propose_config_change", nil, append([]ptb.Argument{identity, token}, args...)...), nil
}

// ExecuteConfigChange applies an approved configuration change.
func (c *Calls) ExecuteConfigChange(identity, token, proposalID ptb.Argument) {
	c.call(contract.IdentityModule, "execute_config_change", nil, identity, token, proposalID)
}

// ProposeDeactivation creates a proposal deactivating the identity.
func (c *Calls) ProposeDeactivation(identity, token ptb.Argument, exp *uint64) (ptb.Argument, error) {
	e, err := c.expiration(exp)
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "propose_deactivation", nil, identity, token, e), nil
}

// ExecuteDeactivation applies an approved deactivation.
func (c *Calls) ExecuteDeactivation(identity, token, proposalID ptb.Argument) {
	c.call(contract.IdentityModule, "execute_deactivation", nil, identity, token, proposalID)
}

// ProposeSend creates a proposal transferring objects owned by the identity.
func (c *Calls) ProposeSend(identity, token ptb.Argument, transfers []contract.Transfer, exp *uint64) (ptb.Argument, error) {
	objects := make([]idgov.ObjectID, len(transfers))
	recipients := make([]idgov.Address, len(transfers))
	for i, t := range transfers {
		objects[i] = t.Object
		recipients[i] = t.Recipient
	}
	args, err := c.pures(ptb.OptionFromPtr(exp), objects, recipients)
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "propose_send", nil, identity, token, args[0], args[1], args[2]), nil
}

// ExecuteSend receives every object from the identity and sends it to the
// recipient named by the action, then consumes the action.
func (c *Calls) ExecuteSend(identity, action ptb.Argument, objects []*idgov.ObjectData) error {
	for _, obj := range objects {
		recv, err := c.b.Object(ptb.Receiving(obj.Ref))
		if err != nil {
			return err
		}
		c.call(contract.IdentityModule, "execute_send", []string{obj.Type}, identity, action, recv)
	}
	c.call(contract.TransferModule, "complete_send", nil, action)
	return nil
}

// ProposeUpgrade creates a proposal migrating the identity to the current
// contract version.
func (c *Calls) ProposeUpgrade(identity, token ptb.Argument, exp *uint64) (ptb.Argument, error) {
	e, err := c.expiration(exp)
	if err != nil {
		return ptb.Argument{}, err
	}
	return c.call(contract.IdentityModule, "propose_upgrade", nil, identity, token, e), nil
}

// ExecuteUpgrade applies an approved upgrade.
func (c *Calls) ExecuteUpgrade(identity, token, proposalID ptb.Argument) {
	c.call(contract.IdentityModule, "execute_upgrade", nil, identity, token, proposalID)
}

// DeleteProposal removes a proposal that can no longer be executed or that
// only the token controller voted for.
func (c *Calls) DeleteProposal(identity, token, proposalID ptb.Argument, actionType string) {
	c.call(contract.IdentityModule, "delete_proposal", []string{actionType}, identity, token, proposalID)
}
