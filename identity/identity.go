package identity

import (
	"context"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/movecall"
	"github.com/iov-one/idgov/ptb"
)

// OnChainIdentity is a snapshot of a shared identity object. It is not safe
// for concurrent use, wrap it in a cache.Handle to share it.
type OnChainIdentity struct {
	obj         *idgov.ObjectData
	pkg         idgov.ObjectID
	controllers []contract.Controller
	threshold   uint64
	deactivated bool
	revoked     []idgov.ObjectID
	// contractVersion is the identity contract version the identity was
	// migrated to.
	contractVersion uint64
}

// GetIdentity fetches an identity from the ledger.
func GetIdentity(ctx context.Context, id idgov.ObjectID, reader idgov.ReadClient) (*OnChainIdentity, error) {
	obj, err := reader.GetObject(ctx, id)
	if err != nil {
		return nil, errors.WithObject(err, "identity", id)
	}
	return identityFromObject(obj)
}

func identityFromObject(obj *idgov.ObjectData) (*OnChainIdentity, error) {
	pkg, err := contract.PackageOf(obj.Type)
	if err != nil {
		return nil, errors.WithObject(err, "identity", obj.Ref.ID)
	}
	if obj.Owner.Kind != idgov.Shared {
		return nil, errors.WithObject(errors.ErrInput.New("identity is not shared"), "identity", obj.Ref.ID)
	}
	var content contract.Identity
	if err := contract.DecodeObject(obj, []string{contract.IdentityType(pkg)}, &content); err != nil {
		return nil, errors.WithObject(err, "identity", obj.Ref.ID)
	}
	return &OnChainIdentity{
		obj:         obj,
		pkg:         pkg,
		controllers: content.Controllers,
		threshold:   content.Threshold,
		deactivated: content.Deactivated,
		revoked:     content.Revoked,

		contractVersion: content.Version,
	}, nil
}

// Refresh reloads the identity state from the ledger.
func (i *OnChainIdentity) Refresh(ctx context.Context, reader idgov.ReadClient) error {
	fresh, err := GetIdentity(ctx, i.ID(), reader)
	if err != nil {
		return err
	}
	*i = *fresh
	return nil
}

// ID returns the identity object id.
func (i *OnChainIdentity) ID() idgov.ObjectID { return i.obj.Ref.ID }

// Address returns the address objects owned by the identity belong to.
func (i *OnChainIdentity) Address() idgov.Address { return i.obj.Ref.ID.Address() }

// Package returns the contract package the identity was created with.
func (i *OnChainIdentity) Package() idgov.ObjectID { return i.pkg }

// Version returns the identity object version of this snapshot.
func (i *OnChainIdentity) Version() uint64 { return i.obj.Ref.Version }

func (i *OnChainIdentity) Threshold() uint64 { return i.threshold }

func (i *OnChainIdentity) IsDeactivated() bool { return i.deactivated }

// ContractVersion returns the identity contract version the identity was
// last upgraded to.
func (i *OnChainIdentity) ContractVersion() uint64 { return i.contractVersion }

// Controllers returns a copy of the controller set.
func (i *OnChainIdentity) Controllers() []contract.Controller {
	return append([]contract.Controller(nil), i.controllers...)
}

// ControllerWeight returns the weight of a controller capability.
func (i *OnChainIdentity) ControllerWeight(capID idgov.ObjectID) (uint64, bool) {
	for _, c := range i.controllers {
		if c.CapID == capID {
			return c.Weight, true
		}
	}
	return 0, false
}

// TotalWeight returns the sum of controller weights.
func (i *OnChainIdentity) TotalWeight() uint64 {
	var total uint64
	for _, c := range i.controllers {
		total += c.Weight
	}
	return total
}

// IsRevoked returns true if a delegation token was revoked.
func (i *OnChainIdentity) IsRevoked(tokenID idgov.ObjectID) bool {
	for _, id := range i.revoked {
		if id == tokenID {
			return true
		}
	}
	return false
}

func (i *OnChainIdentity) sharedRef() movecall.SharedRef {
	return movecall.SharedRefOf(i.obj)
}

// authorize checks that token acts as a controller of the identity with given
// permission and returns the controller weight.
func (i *OnChainIdentity) authorize(token ControllerToken, perm uint32) (uint64, error) {
	if token.ControllerOf() != i.ID() {
		return 0, errors.WithObject(
			errors.WithObject(errors.ErrUnauthorized.Newf("token controls %s", token.ControllerOf()), "token", token.ID()),
			"identity", i.ID())
	}
	weight, ok := i.ControllerWeight(token.ControllerID())
	if !ok {
		return 0, errors.WithObject(errors.ErrUnauthorized.New("not a controller"), "token", token.ID())
	}
	if _, ok := AsDelegationToken(token); ok {
		if i.IsRevoked(token.ID()) {
			return 0, errors.WithObject(errors.ErrUnauthorized.New("token was revoked"), "token", token.ID())
		}
		if !token.Permits(perm) {
			return 0, errors.WithObject(errors.ErrUnauthorized.Newf("missing permission %d", perm), "token", token.ID())
		}
	}
	return weight, nil
}

// GetControllerToken finds a token held by address over the identity.
// Capabilities are preferred over delegation tokens.
func (i *OnChainIdentity) GetControllerToken(ctx context.Context, address idgov.Address, reader idgov.ReadClient) (ControllerToken, error) {
	for _, typ := range tokenTypes(i.pkg) {
		obj, err := reader.FindOwnedObject(ctx, address, []string{typ}, func(obj *idgov.ObjectData) bool {
			t, err := tokenFromObject(obj)
			return err == nil && t.ControllerOf() == i.ID()
		})
		switch {
		case err == nil:
			return tokenFromObject(obj)
		case !errors.ErrNotFound.Is(err):
			return nil, err
		}
	}
	return nil, errors.WithObject(errors.ErrNotFound.Newf("%s holds no token", address), "identity", i.ID())
}

// Borrow proposes to lend objects owned by the identity. The intent, when
// not nil, runs against the borrowed objects once the proposal executes.
func (i *OnChainIdentity) Borrow(token ControllerToken, objects []idgov.ObjectID, intent Intent) *ProposalTx[contract.BorrowAction, struct{}] {
	action := contract.BorrowAction{Objects: append([]idgov.ObjectID(nil), objects...)}
	return newProposalTx[contract.BorrowAction, struct{}](i, token, action, &borrowDriver{action: action, intent: intent})
}

// ControllerExecution proposes to lend a capability owned by the identity.
func (i *OnChainIdentity) ControllerExecution(token ControllerToken, capID idgov.ObjectID, intent Intent) *ProposalTx[contract.ControllerExecutionAction, struct{}] {
	action := contract.ControllerExecutionAction{ControllerCap: capID}
	return newProposalTx[contract.ControllerExecutionAction, struct{}](i, token, action, &controllerDriver{action: action, intent: intent})
}

// ConfigChange proposes to modify the controller set or the threshold.
func (i *OnChainIdentity) ConfigChange(token ControllerToken, change contract.ConfigChangeAction) *ProposalTx[contract.ConfigChangeAction, struct{}] {
	return newProposalTx[contract.ConfigChangeAction, struct{}](i, token, change, &configDriver{action: change})
}

// Deactivate proposes to deactivate the identity.
func (i *OnChainIdentity) Deactivate(token ControllerToken) *ProposalTx[contract.DeactivationAction, struct{}] {
	return newProposalTx[contract.DeactivationAction, struct{}](i, token, contract.DeactivationAction{}, deactivationDriver{})
}

// Send proposes to transfer objects owned by the identity.
func (i *OnChainIdentity) Send(token ControllerToken, transfers []contract.Transfer) *ProposalTx[contract.SendAction, struct{}] {
	action := contract.SendAction{Transfers: append([]contract.Transfer(nil), transfers...)}
	return newProposalTx[contract.SendAction, struct{}](i, token, action, &sendDriver{action: action})
}

// Upgrade proposes to migrate the identity to contract version. Client.Upgrade
// reads the version from the registry of known deployments.
func (i *OnChainIdentity) Upgrade(token ControllerToken, version uint64) *ProposalTx[contract.UpgradeAction, struct{}] {
	return newProposalTx[contract.UpgradeAction, struct{}](i, token, contract.UpgradeAction{}, &upgradeDriver{version: version})
}

// Continuation builds the transaction run against a sub identity with the
// token the parent identity holds over it.
type Continuation[T any] func(sub *OnChainIdentity, subToken ControllerToken) (Transaction[T], error)

// AccessSubIdentity proposes to act on a sub identity through the token
// identity holds over it. The continuation is used when the proposal can be
// executed right away and may be nil.
func AccessSubIdentity[T any](identity *OnChainIdentity, token ControllerToken, subID idgov.ObjectID, continuation Continuation[T]) *ProposalTx[contract.AccessSubIdentityAction, T] {
	action := contract.AccessSubIdentityAction{Identity: identity.ID(), SubIdentity: subID}
	return newProposalTx[contract.AccessSubIdentityAction, T](identity, token, action, &accessDriver[T]{action: action, continuation: continuation})
}

// RevokeDelegationToken returns a transaction revoking a token minted by
// capability.
func (i *OnChainIdentity) RevokeDelegationToken(capability *ControllerCap, tokenID idgov.ObjectID, policy idgov.TokenPolicy) *TokenRevocationTx {
	return &TokenRevocationTx{identity: i, capID: capability.ID(), tokenID: tokenID, revoke: true, policy: policy}
}

// UnrevokeDelegationToken returns a transaction lifting a revocation.
func (i *OnChainIdentity) UnrevokeDelegationToken(capability *ControllerCap, tokenID idgov.ObjectID, policy idgov.TokenPolicy) *TokenRevocationTx {
	return &TokenRevocationTx{identity: i, capID: capability.ID(), tokenID: tokenID, revoke: false, policy: policy}
}

// DeleteDelegationToken returns a transaction destroying a token held by the
// sender.
func (i *OnChainIdentity) DeleteDelegationToken(token *DelegationToken, policy idgov.TokenPolicy) *TokenDeletionTx {
	return &TokenDeletionTx{identity: i, tokenID: token.ID(), policy: policy}
}

// IdentityBuilder composes the creation of an identity.
type IdentityBuilder struct {
	pkg         idgov.ObjectID
	controllers []contract.ControllerSpec
	threshold   uint64
}

// NewIdentity starts composing an identity of contract package pkg.
func NewIdentity(pkg idgov.ObjectID) *IdentityBuilder {
	return &IdentityBuilder{pkg: pkg}
}

// Controller adds a controller.
func (b *IdentityBuilder) Controller(address idgov.Address, weight uint64, canDelegate bool) *IdentityBuilder {
	b.controllers = append(b.controllers, contract.ControllerSpec{Address: address, Weight: weight, CanDelegate: canDelegate})
	return b
}

// Threshold sets the threshold. It defaults to the total controller weight.
func (b *IdentityBuilder) Threshold(threshold uint64) *IdentityBuilder {
	b.threshold = threshold
	return b
}

// Finish returns the transaction creating the identity.
func (b *IdentityBuilder) Finish() *CreateIdentityTx {
	threshold := b.threshold
	if threshold == 0 {
		for _, c := range b.controllers {
			threshold += c.Weight
		}
	}
	return &CreateIdentityTx{
		pkg:         b.pkg,
		controllers: append([]contract.ControllerSpec(nil), b.controllers...),
		threshold:   threshold,
	}
}

// CreateIdentityTx creates an identity.
type CreateIdentityTx struct {
	pkg         idgov.ObjectID
	controllers []contract.ControllerSpec
	threshold   uint64
}

var _ Transaction[*OnChainIdentity] = (*CreateIdentityTx)(nil)

func (tx *CreateIdentityTx) BuildFragment(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	var errs error
	if len(tx.controllers) == 0 {
		errs = errors.AppendField(errs, "Controllers", errors.ErrInput.New("required"))
	}
	var total uint64
	for n, c := range tx.controllers {
		if c.Weight == 0 {
			errs = errors.AppendField(errs, "Controllers", errors.ErrInput.Newf("controller %d has zero weight", n))
		}
		total += c.Weight
	}
	if tx.threshold > total {
		errs = errors.AppendField(errs, "Threshold", errors.ErrInput.Newf("exceeds total weight %d", total))
	}
	if errs != nil {
		return nil, errs
	}

	b := ptb.NewBuilder()
	if _, err := movecall.New(b, tx.pkg).NewIdentity(tx.controllers, tx.threshold); err != nil {
		return nil, err
	}
	return b.Finish(), nil
}

// Apply returns the created identity.
func (tx *CreateIdentityTx) Apply(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (*OnChainIdentity, error) {
	if err := checkStatus(effects); err != nil {
		return nil, err
	}
	obj, err := createdObject(ctx, effects, reader, contract.IdentityType(tx.pkg), true)
	if err != nil {
		return nil, err
	}
	return identityFromObject(obj)
}
