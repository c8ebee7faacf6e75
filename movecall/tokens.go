package movecall

import (
	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/ptb"
)

// DelegateControllerCap mints a delegation token with given permissions and
// sends it to recipient.
func (c *Calls) DelegateControllerCap(capArg ptb.Argument, recipient idgov.Address, permissions uint32) error {
	perms, err := c.b.Pure(permissions)
	if err != nil {
		return err
	}
	token := c.call(contract.ControllerModule, "delegate_with_permissions", nil, capArg, perms)
	return c.b.TransferArg(recipient, token)
}

// RevokeToken marks a delegation token revoked. cap must be the capability
// that minted the token.
func (c *Calls) RevokeToken(identity, capArg ptb.Argument, tokenID idgov.ObjectID) error {
	id, err := c.b.Pure(tokenID)
	if err != nil {
		return err
	}
	c.call(contract.IdentityModule, "revoke_token", nil, identity, capArg, id)
	return nil
}

// UnrevokeToken lifts the revocation of a delegation token.
func (c *Calls) UnrevokeToken(identity, capArg ptb.Argument, tokenID idgov.ObjectID) error {
	id, err := c.b.Pure(tokenID)
	if err != nil {
		return err
	}
	c.call(contract.IdentityModule, "unrevoke_token", nil, identity, capArg, id)
	return nil
}

// DestroyDelegationToken deletes a delegation token held by the sender.
func (c *Calls) DestroyDelegationToken(identity, token ptb.Argument) {
	c.call(contract.IdentityModule, "destroy_delegation_token", nil, identity, token)
}
