package ledgertest

import (
	"context"
	"strings"
	"testing"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ledgertest/assert"
	"github.com/iov-one/idgov/movecall"
	"github.com/iov-one/idgov/ptb"
)

var (
	alice = idgov.Address{0xa1}
	bob   = idgov.Address{0xb0}
	carol = idgov.Address{0xc0}
)

func execute(t testing.TB, l *Ledger, sender idgov.Address, b *ptb.Builder) *idgov.TxResponse {
	t.Helper()
	raw, err := ptb.Marshal(b.Finish())
	assert.Nil(t, err)
	resp, err := l.Execute(context.Background(), sender, raw, 1000000)
	assert.Nil(t, err)
	return resp
}

func mustSucceed(t testing.TB, resp *idgov.TxResponse) {
	t.Helper()
	if !resp.Effects.Status.Success {
		t.Fatalf("execution failed: %s", resp.Effects.Status.Error)
	}
}

func mustFail(t testing.TB, resp *idgov.TxResponse, msg string) {
	t.Helper()
	if resp.Effects.Status.Success {
		t.Fatal("execution succeeded")
	}
	if !strings.Contains(resp.Effects.Status.Error, msg) {
		t.Fatalf("want %q in failure, got %q", msg, resp.Effects.Status.Error)
	}
}

func object(t testing.TB, l *Ledger, id idgov.ObjectID) *idgov.ObjectData {
	t.Helper()
	obj, err := l.GetObject(context.Background(), id)
	assert.Nil(t, err)
	return obj
}

func controllerCap(t testing.TB, l *Ledger, owner idgov.Address) *idgov.ObjectData {
	t.Helper()
	obj, err := l.FindOwnedObject(context.Background(), owner, []string{contract.ControllerCapType(l.PackageID())}, nil)
	assert.Nil(t, err)
	return obj
}

// newIdentity creates an identity controlled by alice and bob, each with
// weight one, and given threshold.
func newIdentity(t testing.TB, l *Ledger, threshold uint64) *idgov.ObjectData {
	t.Helper()
	b := ptb.NewBuilder()
	calls := movecall.New(b, l.PackageID())
	_, err := calls.NewIdentity([]contract.ControllerSpec{
		{Address: alice, Weight: 1, CanDelegate: true},
		{Address: bob, Weight: 1},
	}, threshold)
	assert.Nil(t, err)
	resp := execute(t, l, alice, b)
	mustSucceed(t, resp)
	shared := resp.Effects.CreatedShared()
	assert.Equal(t, 1, len(shared))
	return object(t, l, shared[0])
}

func TestNewIdentity(t *testing.T) {
	l := New()
	identity := newIdentity(t, l, 2)

	var content contract.Identity
	assert.Nil(t, contract.DecodeObject(identity, []string{contract.IdentityType(l.PackageID())}, &content))
	assert.Equal(t, uint64(2), content.Threshold)
	assert.Equal(t, 2, len(content.Controllers))
	assert.Equal(t, identity.Ref.Version, identity.Owner.InitialSharedVersion)

	var aliceCap contract.ControllerCap
	assert.Nil(t, contract.Decode(controllerCap(t, l, alice).Content, &aliceCap))
	assert.Equal(t, identity.Ref.ID, aliceCap.ControllerOf)
	assert.Equal(t, true, aliceCap.CanDelegate)

	_, err := l.FindOwnedObject(context.Background(), carol, []string{contract.ControllerCapType(l.PackageID())}, nil)
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestInvalidThreshold(t *testing.T) {
	l := New()
	b := ptb.NewBuilder()
	_, err := movecall.New(b, l.PackageID()).NewIdentity([]contract.ControllerSpec{{Address: alice, Weight: 1}}, 2)
	assert.Nil(t, err)
	mustFail(t, execute(t, l, alice, b), "threshold 2 not in range 1..1")
}

func TestBorrowAsset(t *testing.T) {
	ctx := context.Background()
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 2)
	assetRef, err := l.NewAsset(identity.Ref.ID.Address(), 7)
	assert.Nil(t, err)
	actionType := contract.BorrowAction{}.ActionType(pkg)

	// alice proposes
	b := ptb.NewBuilder()
	calls := movecall.New(b, pkg)
	idArg, err := calls.Identity(movecall.SharedRefOf(identity), true)
	assert.Nil(t, err)
	tok, err := calls.Owned(controllerCap(t, l, alice).Ref)
	assert.Nil(t, err)
	_, err = calls.ProposeBorrow(idArg, tok, []idgov.ObjectID{assetRef.ID}, nil)
	assert.Nil(t, err)
	resp := execute(t, l, alice, b)
	mustSucceed(t, resp)
	assert.Equal(t, 1, len(resp.Events))
	proposalID := resp.Effects.CreatedShared()[0]

	// executing before bob approves fails and changes nothing
	before := object(t, l, identity.Ref.ID).Ref
	b = ptb.NewBuilder()
	calls = movecall.New(b, pkg)
	idArg, _ = calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ = calls.Owned(controllerCap(t, l, alice).Ref)
	pid, _ := calls.ProposalID(proposalID)
	action := calls.ExecuteProposal(idArg, tok, pid, actionType)
	calls.ConcludeBorrow(action)
	mustFail(t, execute(t, l, alice, b), "threshold not reached")
	assert.Equal(t, before, object(t, l, identity.Ref.ID).Ref)

	// bob approves
	b = ptb.NewBuilder()
	calls = movecall.New(b, pkg)
	idArg, _ = calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ = calls.Owned(controllerCap(t, l, bob).Ref)
	pid, _ = calls.ProposalID(proposalID)
	calls.ApproveProposal(idArg, tok, pid, actionType)
	mustSucceed(t, execute(t, l, bob, b))

	// a second approval by bob is rejected
	b = ptb.NewBuilder()
	calls = movecall.New(b, pkg)
	idArg, _ = calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ = calls.Owned(controllerCap(t, l, bob).Ref)
	pid, _ = calls.ProposalID(proposalID)
	calls.ApproveProposal(idArg, tok, pid, actionType)
	mustFail(t, execute(t, l, bob, b), "duplicate voter")

	// alice executes and updates the asset while it is borrowed
	b = ptb.NewBuilder()
	calls = movecall.New(b, pkg)
	idArg, _ = calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ = calls.Owned(controllerCap(t, l, alice).Ref)
	pid, _ = calls.ProposalID(proposalID)
	action = calls.ExecuteProposal(idArg, tok, pid, actionType)
	asset := object(t, l, assetRef.ID)
	borrowed, err := calls.ExecuteBorrow(idArg, action, []*idgov.ObjectData{asset})
	assert.Nil(t, err)
	v, _ := b.Pure(uint64(42))
	b.MoveCall(pkg, AssetModule, "set_value", nil, borrowed[0], v)
	calls.PutBackBorrowed(action, borrowed[0], asset.Type)
	calls.ConcludeBorrow(action)
	resp = execute(t, l, alice, b)
	mustSucceed(t, resp)
	assert.Equal(t, true, resp.Effects.IsDeleted(proposalID))

	value, err := l.AssetValue(assetRef.ID)
	assert.Nil(t, err)
	assert.Equal(t, uint64(42), value)
	assert.Equal(t, true, object(t, l, assetRef.ID).Owner.IsOwnedBy(identity.Ref.ID.Address()))

	_, err = l.GetObject(ctx, proposalID)
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestBorrowedObjectMustBeReturned(t *testing.T) {
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 1)
	assetRef, err := l.NewAsset(identity.Ref.ID.Address(), 1)
	assert.Nil(t, err)

	b := ptb.NewBuilder()
	calls := movecall.New(b, pkg)
	idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ := calls.Owned(controllerCap(t, l, alice).Ref)
	pid, err := calls.ProposeBorrow(idArg, tok, []idgov.ObjectID{assetRef.ID}, nil)
	assert.Nil(t, err)
	action := calls.ExecuteProposal(idArg, tok, pid, contract.BorrowAction{}.ActionType(pkg))
	_, err = calls.ExecuteBorrow(idArg, action, []*idgov.ObjectData{object(t, l, assetRef.ID)})
	assert.Nil(t, err)
	calls.ConcludeBorrow(action)
	mustFail(t, execute(t, l, alice, b), "were not returned")
}

func TestUnusedActionFails(t *testing.T) {
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 1)

	b := ptb.NewBuilder()
	calls := movecall.New(b, pkg)
	idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ := calls.Owned(controllerCap(t, l, alice).Ref)
	pid, err := calls.ProposeControllerExecution(idArg, tok, idgov.ObjectID{1}, nil)
	assert.Nil(t, err)
	calls.ExecuteProposal(idArg, tok, pid, contract.ControllerExecutionAction{}.ActionType(pkg))
	mustFail(t, execute(t, l, alice, b), "unused action")
}

func TestStaleReference(t *testing.T) {
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 2)
	stale := controllerCap(t, l, alice).Ref

	propose := func(ref idgov.ObjectRef) *idgov.TxResponse {
		b := ptb.NewBuilder()
		calls := movecall.New(b, pkg)
		idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
		tok, _ := calls.Owned(ref)
		_, err := calls.ProposeDeactivation(idArg, tok, nil)
		assert.Nil(t, err)
		return execute(t, l, alice, b)
	}
	mustSucceed(t, propose(stale))
	mustFail(t, propose(stale), "stale reference")
	mustSucceed(t, propose(controllerCap(t, l, alice).Ref))
}

func TestExpiredProposal(t *testing.T) {
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 2)
	exp := uint64(1)

	b := ptb.NewBuilder()
	calls := movecall.New(b, pkg)
	idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ := calls.Owned(controllerCap(t, l, alice).Ref)
	_, err := calls.ProposeDeactivation(idArg, tok, &exp)
	assert.Nil(t, err)
	resp := execute(t, l, alice, b)
	mustSucceed(t, resp)
	proposalID := resp.Effects.CreatedShared()[0]

	l.AdvanceEpoch(2)
	b = ptb.NewBuilder()
	calls = movecall.New(b, pkg)
	idArg, _ = calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ = calls.Owned(controllerCap(t, l, bob).Ref)
	pid, _ := calls.ProposalID(proposalID)
	calls.ApproveProposal(idArg, tok, pid, contract.DeactivationAction{}.ActionType(pkg))
	mustFail(t, execute(t, l, bob, b), "expired")
}

func TestDelegationTokens(t *testing.T) {
	ctx := context.Background()
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 1)

	// alice delegates approval rights to carol
	b := ptb.NewBuilder()
	calls := movecall.New(b, pkg)
	capArg, _ := calls.Owned(controllerCap(t, l, alice).Ref)
	assert.Nil(t, calls.DelegateControllerCap(capArg, carol, contract.PermApproveProposal))
	mustSucceed(t, execute(t, l, alice, b))

	token, err := l.FindOwnedObject(ctx, carol, []string{contract.DelegationTokenType(pkg)}, nil)
	assert.Nil(t, err)

	proposeAsCarol := func() *idgov.TxResponse {
		b := ptb.NewBuilder()
		calls := movecall.New(b, pkg)
		idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
		tok, _ := calls.Owned(object(t, l, token.Ref.ID).Ref)
		_, err := calls.ProposeDeactivation(idArg, tok, nil)
		assert.Nil(t, err)
		return execute(t, l, carol, b)
	}
	mustFail(t, proposeAsCarol(), "missing permission")

	// bob cannot delegate
	b = ptb.NewBuilder()
	calls = movecall.New(b, pkg)
	capArg, _ = calls.Owned(controllerCap(t, l, bob).Ref)
	assert.Nil(t, calls.DelegateControllerCap(capArg, carol, contract.PermAll))
	mustFail(t, execute(t, l, bob, b), "cannot delegate")

	// a token created but not transferred is rejected
	b = ptb.NewBuilder()
	capArg, _ = b.Object(ptb.ImmOrOwned(controllerCap(t, l, alice).Ref))
	perms, _ := b.Pure(contract.PermAll)
	b.MoveCall(pkg, contract.ControllerModule, "delegate_with_permissions", nil, capArg, perms)
	mustFail(t, execute(t, l, alice, b), "neither transferred")

	// revocation is recorded on the identity and can be repeated
	for i := 0; i < 2; i++ {
		b = ptb.NewBuilder()
		calls = movecall.New(b, pkg)
		idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
		capArg, _ = calls.Owned(controllerCap(t, l, alice).Ref)
		assert.Nil(t, calls.RevokeToken(idArg, capArg, token.Ref.ID))
		mustSucceed(t, execute(t, l, alice, b))
	}
	var content contract.Identity
	assert.Nil(t, contract.Decode(object(t, l, identity.Ref.ID).Content, &content))
	assert.Equal(t, []idgov.ObjectID{token.Ref.ID}, content.Revoked)

	// carol destroys the token
	b = ptb.NewBuilder()
	calls = movecall.New(b, pkg)
	idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
	tok, _ := calls.Owned(object(t, l, token.Ref.ID).Ref)
	calls.DestroyDelegationToken(idArg, tok)
	resp := execute(t, l, carol, b)
	mustSucceed(t, resp)
	assert.Equal(t, true, resp.Effects.IsDeleted(token.Ref.ID))
	_, err = l.GetObject(ctx, token.Ref.ID)
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestSendAsset(t *testing.T) {
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 1)
	first, err := l.NewAsset(identity.Ref.ID.Address(), 1)
	assert.Nil(t, err)
	second, err := l.NewAsset(identity.Ref.ID.Address(), 2)
	assert.Nil(t, err)
	transfers := []contract.Transfer{
		{Object: first.ID, Recipient: carol},
		{Object: second.ID, Recipient: bob},
	}

	send := func(objects ...*idgov.ObjectData) *idgov.TxResponse {
		b := ptb.NewBuilder()
		calls := movecall.New(b, pkg)
		idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
		tok, _ := calls.Owned(controllerCap(t, l, alice).Ref)
		proposal, err := calls.ProposeSend(idArg, tok, transfers, nil)
		assert.Nil(t, err)
		action := calls.ExecuteProposal(idArg, tok, proposal, contract.SendAction{}.ActionType(pkg))
		assert.Nil(t, calls.ExecuteSend(idArg, action, objects))
		return execute(t, l, alice, b)
	}

	// every listed object must be sent
	mustFail(t, send(object(t, l, first.ID)), "1 of 2 objects were sent")
	assert.Equal(t, true, object(t, l, first.ID).Owner.IsOwnedBy(identity.Ref.ID.Address()))

	mustSucceed(t, send(object(t, l, first.ID), object(t, l, second.ID)))
	assert.Equal(t, true, object(t, l, first.ID).Owner.IsOwnedBy(carol))
	assert.Equal(t, true, object(t, l, second.ID).Owner.IsOwnedBy(bob))

	// the identity no longer owns the objects
	mustFail(t, send(object(t, l, first.ID), object(t, l, second.ID)), "not owned by")
}

func TestUpgradeIdentity(t *testing.T) {
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 1)

	upgrade := func(callPkg idgov.ObjectID) *idgov.TxResponse {
		b := ptb.NewBuilder()
		calls := movecall.New(b, callPkg)
		idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
		tok, _ := calls.Owned(controllerCap(t, l, alice).Ref)
		proposal, err := calls.ProposeUpgrade(idArg, tok, nil)
		assert.Nil(t, err)
		calls.ExecuteUpgrade(idArg, tok, proposal)
		return execute(t, l, alice, b)
	}
	mustFail(t, upgrade(pkg), "identity is at version 1")

	next := l.PublishUpgrade()
	assert.Equal(t, uint64(2), l.ContractVersion())
	assert.Equal(t, []idgov.ObjectID{pkg, next}, l.Registry().History(DefaultChainID))
	mustSucceed(t, upgrade(next))

	var content contract.Identity
	assert.Nil(t, contract.Decode(object(t, l, identity.Ref.ID).Content, &content))
	assert.Equal(t, uint64(2), content.Version)
	mustFail(t, upgrade(pkg), "identity is at version 2")
}

func TestDeleteProposal(t *testing.T) {
	l := New()
	pkg := l.PackageID()
	identity := newIdentity(t, l, 2)
	actionType := contract.DeactivationAction{}.ActionType(pkg)
	exp := uint64(1)

	propose := func(exp *uint64) idgov.ObjectID {
		b := ptb.NewBuilder()
		calls := movecall.New(b, pkg)
		idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
		tok, _ := calls.Owned(controllerCap(t, l, alice).Ref)
		_, err := calls.ProposeDeactivation(idArg, tok, exp)
		assert.Nil(t, err)
		resp := execute(t, l, alice, b)
		mustSucceed(t, resp)
		return resp.Effects.CreatedShared()[0]
	}
	remove := func(sender idgov.Address, proposalID idgov.ObjectID) *idgov.TxResponse {
		b := ptb.NewBuilder()
		calls := movecall.New(b, pkg)
		idArg, _ := calls.Identity(movecall.SharedRefOf(identity), true)
		tok, _ := calls.Owned(controllerCap(t, l, sender).Ref)
		pid, _ := calls.ProposalID(proposalID)
		calls.DeleteProposal(idArg, tok, pid, actionType)
		return execute(t, l, sender, b)
	}

	withdrawn := propose(nil)
	expiring := propose(&exp)

	// bob did not vote for it and it did not expire
	mustFail(t, remove(bob, withdrawn), "approved by other controllers")
	resp := remove(alice, withdrawn)
	mustSucceed(t, resp)
	assert.Equal(t, true, resp.Effects.IsDeleted(withdrawn))
	assert.Equal(t, 1, len(resp.Events))

	l.AdvanceEpoch(2)
	mustSucceed(t, remove(bob, expiring))
	_, err := l.GetObject(context.Background(), expiring)
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestInsufficientGas(t *testing.T) {
	l := New()
	b := ptb.NewBuilder()
	_, err := movecall.New(b, l.PackageID()).NewIdentity([]contract.ControllerSpec{{Address: alice, Weight: 1}}, 1)
	assert.Nil(t, err)
	raw, err := ptb.Marshal(b.Finish())
	assert.Nil(t, err)

	resp, err := l.Execute(context.Background(), alice, raw, GasPerCommand-1)
	assert.Nil(t, err)
	mustFail(t, resp, "insufficient gas")
	assert.Equal(t, uint64(GasPerCommand-1), resp.Effects.GasUsed)
}

func TestExecuteInvalidBytes(t *testing.T) {
	_, err := New().Execute(context.Background(), alice, []byte{0x0a, 0x05, 0x01}, 1000)
	assert.IsErr(t, errors.ErrInput, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Execute(ctx, alice, nil, 1000)
	assert.IsErr(t, errors.ErrRpc, err)
}

func TestUnknownFunction(t *testing.T) {
	l := New()
	b := ptb.NewBuilder()
	b.MoveCall(l.PackageID(), "identity", "self_destruct", nil)
	mustFail(t, execute(t, l, alice, b), "identity::self_destruct")

	b = ptb.NewBuilder()
	b.MoveCall(idgov.ObjectID{0xff}, "identity", "new", nil)
	mustFail(t, execute(t, l, alice, b), "package")
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	noop := func(*execution, ptb.MoveCall, []*value) ([]*value, error) { return nil, nil }
	r.Handle("mod::fn", noop)
	assert.Panics(t, func() { r.Handle("mod::fn", noop) })
	assert.Panics(t, func() { r.Handle("Mod-fn", noop) })
	if r.Handler("mod::fn") == nil {
		t.Fatal("handler not registered")
	}
	if r.Handler("mod::other") != nil {
		t.Fatal("unexpected handler")
	}
}
