package ledgertest

import (
	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
)

func registerIdentityRoutes(r *Router) {
	r.Handle("identity::new_with_controllers", newWithControllers)
	r.Handle("identity::propose_borrow", proposeBorrow)
	r.Handle("identity::propose_controller_execution", proposeControllerExecution)
	r.Handle("identity::propose_access_to_sub_identity", proposeAccessToSubIdentity)
	r.Handle("identity::propose_config_change", proposeConfigChange)
	r.Handle("identity::propose_deactivation", proposeDeactivation)
	r.Handle("identity::propose_send", proposeSend)
	r.Handle("identity::propose_upgrade", proposeUpgrade)
	r.Handle("identity::delete_proposal", deleteProposal)
	r.Handle("identity::approve_proposal", approveProposal)
	r.Handle("identity::execute_proposal", executeProposal)
	r.Handle("identity::execute_borrow", executeBorrow)
	r.Handle("identity::borrow_controller_cap", borrowControllerCap)
	r.Handle("identity::borrow_controller_cap_to_sub_identity", borrowSubIdentityToken)
	r.Handle("identity::borrow_delegation_token_to_sub_identity", borrowSubIdentityToken)
	r.Handle("identity::execute_config_change", executeConfigChange)
	r.Handle("identity::execute_deactivation", executeDeactivation)
	r.Handle("identity::execute_send", executeSend)
	r.Handle("identity::execute_upgrade", executeUpgrade)
	r.Handle("identity::revoke_token", revokeToken)
	r.Handle("identity::unrevoke_token", unrevokeToken)
	r.Handle("identity::destroy_delegation_token", destroyDelegationToken)
	r.Handle("controller::delegate_with_permissions", delegateWithPermissions)
	r.Handle("borrow_proposal::put_back", putBackBorrowed)
	r.Handle("borrow_proposal::conclude_borrow", concludeBorrow)
	r.Handle("controller_proposal::put_back", putBackControllerCap)
	r.Handle("transfer_proposal::complete_send", completeSend)
	r.Handle("access_sub_entity_proposal::put_back_controller_cap", putBackSubIdentityToken)
	r.Handle("access_sub_entity_proposal::put_back_delegation_token", putBackSubIdentityToken)
}

// identity returns an identity argument. Mutable access marks the identity
// as mutated.
func (ex *execution) identity(v *value, mutable bool) (*liveObject, *contract.Identity, error) {
	var (
		obj *liveObject
		err error
	)
	if mutable {
		obj, err = ex.mutable(v)
	} else {
		obj, err = ex.object(v)
	}
	if err != nil {
		return nil, nil, err
	}
	identity, ok := obj.content.(*contract.Identity)
	if !ok {
		return nil, nil, errors.WithObject(errors.ErrInput.Newf("%s is not an identity", obj.data.Type), "object", obj.data.Ref.ID)
	}
	return obj, identity, nil
}

// activeIdentity is identity that rejects deactivated identities.
func (ex *execution) activeIdentity(v *value) (*contract.Identity, error) {
	_, identity, err := ex.identity(v, true)
	if err != nil {
		return nil, err
	}
	if identity.Deactivated {
		return nil, errors.WithObject(errors.ErrState.New("identity is deactivated"), "identity", identity.ID)
	}
	return identity, nil
}

// voter is a controller acting on an identity through a token.
type voter struct {
	token  idgov.ObjectID
	cap    idgov.ObjectID
	weight uint64
}

// controllerToken resolves the controller acting through a token. Delegation
// tokens must not be revoked and must carry perm.
func (ex *execution) controllerToken(identity *contract.Identity, v *value, perm uint32) (voter, error) {
	obj, err := ex.object(v)
	if err != nil {
		return voter{}, err
	}
	var res voter
	switch t := obj.content.(type) {
	case *contract.ControllerCap:
		if t.ControllerOf != identity.ID {
			return voter{}, errors.WithObject(errors.ErrUnauthorized.Newf("capability controls %s", t.ControllerOf), "token", t.ID)
		}
		res = voter{token: t.ID, cap: t.ID}
	case *contract.DelegationToken:
		if t.ControllerOf != identity.ID {
			return voter{}, errors.WithObject(errors.ErrUnauthorized.Newf("token controls %s", t.ControllerOf), "token", t.ID)
		}
		if identity.IsRevoked(t.ID) {
			return voter{}, errors.WithObject(errors.ErrUnauthorized.New("token was revoked"), "token", t.ID)
		}
		if t.Permissions&perm == 0 {
			return voter{}, errors.WithObject(errors.ErrUnauthorized.Newf("missing permission %d", perm), "token", t.ID)
		}
		res = voter{token: t.ID, cap: t.Controller}
	default:
		return voter{}, errors.WithObject(errors.ErrInput.Newf("%s is not a controller token", obj.data.Type), "token", obj.data.Ref.ID)
	}
	c, ok := identity.Controller(res.cap)
	if !ok {
		return voter{}, errors.WithObject(errors.ErrUnauthorized.New("not a controller"), "token", res.token)
	}
	res.weight = c.Weight
	return res, nil
}

func newWithControllers(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 4); err != nil {
		return nil, err
	}
	var (
		addrs       []idgov.Address
		weights     []uint64
		canDelegate []bool
		threshold   uint64
	)
	if err := ex.pure(args[0], &addrs); err != nil {
		return nil, err
	}
	if err := ex.pure(args[1], &weights); err != nil {
		return nil, err
	}
	if err := ex.pure(args[2], &canDelegate); err != nil {
		return nil, err
	}
	if err := ex.pure(args[3], &threshold); err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errors.ErrInput.New("no controllers")
	}
	if len(weights) != len(addrs) || len(canDelegate) != len(addrs) {
		return nil, errors.ErrInput.New("controller vectors length mismatch")
	}

	identity := &contract.Identity{ID: ex.newID(), Threshold: threshold, Version: ex.contractVersion()}
	for i, a := range addrs {
		if weights[i] == 0 {
			return nil, errors.ErrInput.Newf("controller %d has zero weight", i)
		}
		c := &contract.ControllerCap{ID: ex.newID(), ControllerOf: identity.ID, CanDelegate: canDelegate[i]}
		ex.create(c.ID, contract.ControllerCapType(ex.pkg), idgov.OwnedBy(a), c)
		identity.Controllers = append(identity.Controllers, contract.Controller{CapID: c.ID, Weight: weights[i], CanDelegate: canDelegate[i]})
	}
	if err := checkThreshold(identity); err != nil {
		return nil, err
	}
	ex.create(identity.ID, contract.IdentityType(ex.pkg), idgov.SharedOwner(0), identity)
	return ex.pureResult(identity.ID)
}

func checkThreshold(identity *contract.Identity) error {
	if len(identity.Controllers) == 0 {
		return errors.WithObject(errors.ErrState.New("no controllers"), "identity", identity.ID)
	}
	if identity.Threshold == 0 || identity.Threshold > identity.TotalWeight() {
		return errors.WithObject(errors.ErrState.Newf("threshold %d not in range 1..%d", identity.Threshold, identity.TotalWeight()), "identity", identity.ID)
	}
	return nil
}

// propose creates a shared proposal holding the proposer vote.
func (ex *execution) propose(identityArg, tokenArg, expArg *value, action contract.Action) ([]*value, error) {
	identity, err := ex.activeIdentity(identityArg)
	if err != nil {
		return nil, err
	}
	v, err := ex.controllerToken(identity, tokenArg, contract.PermCreateProposal)
	if err != nil {
		return nil, err
	}
	var exp ptb.OptionU64
	if err := ex.pure(expArg, &exp); err != nil {
		return nil, err
	}
	if exp.Set && exp.Value < ex.epoch {
		return nil, errors.ErrExpired.Newf("expiration %d is before current epoch %d", exp.Value, ex.epoch)
	}

	p := &contract.Proposal{
		ID:         ex.newID(),
		Identity:   identity.ID,
		Action:     action,
		Votes:      v.weight,
		Voters:     []idgov.ObjectID{v.cap},
		Expiration: exp,
	}
	ex.create(p.ID, contract.ProposalType(ex.pkg, action.ActionType(ex.pkg)), idgov.SharedOwner(0), p)
	ex.emit(contract.ProposalEvent{Identity: identity.ID, Controller: v.token, Proposal: p.ID})
	return ex.pureResult(p.ID)
}

func proposeBorrow(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 4); err != nil {
		return nil, err
	}
	var objects []idgov.ObjectID
	if err := ex.pure(args[2], &objects); err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, errors.ErrInput.New("nothing to borrow")
	}
	return ex.propose(args[0], args[1], args[3], contract.BorrowAction{Objects: objects})
}

func proposeControllerExecution(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 4); err != nil {
		return nil, err
	}
	var capID idgov.ObjectID
	if err := ex.pure(args[2], &capID); err != nil {
		return nil, err
	}
	if capID.IsZero() {
		return nil, errors.ErrInput.New("missing controller capability")
	}
	return ex.propose(args[0], args[1], args[3], contract.ControllerExecutionAction{ControllerCap: capID})
}

func proposeAccessToSubIdentity(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 4); err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], false)
	if err != nil {
		return nil, err
	}
	_, sub, err := ex.identity(args[1], false)
	if err != nil {
		return nil, err
	}
	if err := ex.checkRelated(identity, sub); err != nil {
		return nil, err
	}
	action := contract.AccessSubIdentityAction{Identity: identity.ID, SubIdentity: sub.ID}
	return ex.propose(args[0], args[2], args[3], action)
}

// checkRelated ensures that identity holds a token over sub.
func (ex *execution) checkRelated(identity, sub *contract.Identity) error {
	owned, err := ownedObjects(ex.db, identity.ID.Address())
	if err != nil {
		return err
	}
	for _, obj := range owned {
		content, err := decodeContent(ex.pkg, obj)
		if err != nil {
			return err
		}
		switch t := content.(type) {
		case *contract.ControllerCap:
			if t.ControllerOf == sub.ID {
				return nil
			}
		case *contract.DelegationToken:
			if t.ControllerOf == sub.ID {
				return nil
			}
		}
	}
	return errors.WithObject(errors.ErrUnrelatedIdentities.Newf("%s holds no token over %s", identity.ID, sub.ID), "identity", identity.ID)
}

func proposeConfigChange(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 10); err != nil {
		return nil, err
	}
	var (
		change        contract.ConfigChangeAction
		addrs         []idgov.Address
		weights       []uint64
		canDelegate   []bool
		updateIDs     []idgov.ObjectID
		updateWeights []uint64
	)
	dests := []interface{}{&change.Threshold, &addrs, &weights, &canDelegate, &change.Remove, &updateIDs, &updateWeights}
	for i, d := range dests {
		if err := ex.pure(args[3+i], d); err != nil {
			return nil, err
		}
	}
	if len(weights) != len(addrs) || len(canDelegate) != len(addrs) || len(updateWeights) != len(updateIDs) {
		return nil, errors.ErrInput.New("controller vectors length mismatch")
	}
	for i, a := range addrs {
		change.Add = append(change.Add, contract.ControllerSpec{Address: a, Weight: weights[i], CanDelegate: canDelegate[i]})
	}
	for i, id := range updateIDs {
		change.Update = append(change.Update, contract.WeightUpdate{CapID: id, Weight: updateWeights[i]})
	}
	return ex.propose(args[0], args[1], args[2], change)
}

func proposeDeactivation(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	return ex.propose(args[0], args[1], args[2], contract.DeactivationAction{})
}

func proposeSend(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 5); err != nil {
		return nil, err
	}
	var (
		objects    []idgov.ObjectID
		recipients []idgov.Address
	)
	if err := ex.pure(args[3], &objects); err != nil {
		return nil, err
	}
	if err := ex.pure(args[4], &recipients); err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, errors.ErrInput.New("nothing to send")
	}
	if len(recipients) != len(objects) {
		return nil, errors.ErrInput.New("transfer vectors length mismatch")
	}
	action := contract.SendAction{Transfers: make([]contract.Transfer, len(objects))}
	for i, id := range objects {
		if containsID(objects[:i], id) {
			return nil, errors.WithObject(errors.ErrInput.New("object sent twice"), "object", id)
		}
		action.Transfers[i] = contract.Transfer{Object: id, Recipient: recipients[i]}
	}
	return ex.propose(args[0], args[1], args[2], action)
}

func proposeUpgrade(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], false)
	if err != nil {
		return nil, err
	}
	if identity.Version >= ex.contractVersion() {
		return nil, errors.WithObject(errors.ErrState.Newf("identity is at version %d", identity.Version), "identity", identity.ID)
	}
	return ex.propose(args[0], args[1], args[2], contract.UpgradeAction{})
}

// deleteProposal removes a proposal that expired or that only the deleting
// controller voted for.
func deleteProposal(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	actionType, err := typeArgument(call)
	if err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], true)
	if err != nil {
		return nil, err
	}
	v, err := ex.controllerToken(identity, args[1], contract.PermDeleteProposal)
	if err != nil {
		return nil, err
	}
	var id idgov.ObjectID
	if err := ex.pure(args[2], &id); err != nil {
		return nil, err
	}
	obj, err := ex.load(id)
	if err != nil {
		return nil, errors.WithObject(err, "proposal", id)
	}
	p, ok := obj.content.(*contract.Proposal)
	if !ok || p.Identity != identity.ID {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("not a proposal of %s", identity.ID), "proposal", id)
	}
	if got, _ := contract.ProposalActionType(ex.pkg, obj.data.Type); got != actionType {
		return nil, errors.WithObject(errors.ErrInput.Newf("proposal carries %s, not %s", got, actionType), "proposal", id)
	}
	withdrawn := len(p.Voters) == 1 && p.Voters[0] == v.cap
	if !withdrawn && !p.IsExpired(ex.epoch) {
		return nil, errors.WithObject(errors.ErrState.New("proposal is approved by other controllers"), "proposal", id)
	}
	obj.deleted = true
	ex.emit(contract.ProposalEvent{Identity: identity.ID, Controller: v.token, Proposal: p.ID, Deleted: true})
	return nil, nil
}

// proposal loads a proposal of identity carrying given action type.
func (ex *execution) proposal(identity *contract.Identity, idArg *value, actionType string) (*liveObject, *contract.Proposal, error) {
	var id idgov.ObjectID
	if err := ex.pure(idArg, &id); err != nil {
		return nil, nil, err
	}
	obj, err := ex.load(id)
	if err != nil {
		return nil, nil, errors.WithObject(err, "proposal", id)
	}
	p, ok := obj.content.(*contract.Proposal)
	if !ok {
		return nil, nil, errors.WithObject(errors.ErrInput.Newf("%s is not a proposal", obj.data.Type), "proposal", id)
	}
	if p.Identity != identity.ID {
		return nil, nil, errors.WithObject(errors.ErrUnauthorized.Newf("proposal of %s", p.Identity), "proposal", id)
	}
	if got, _ := contract.ProposalActionType(ex.pkg, obj.data.Type); got != actionType {
		return nil, nil, errors.WithObject(errors.ErrInput.Newf("proposal carries %s, not %s", got, actionType), "proposal", id)
	}
	if p.IsExpired(ex.epoch) {
		return nil, nil, errors.WithObject(errors.ErrExpired.Newf("expired in epoch %d", p.Expiration.Value), "proposal", id)
	}
	return obj, p, nil
}

func approveProposal(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	actionType, err := typeArgument(call)
	if err != nil {
		return nil, err
	}
	identity, err := ex.activeIdentity(args[0])
	if err != nil {
		return nil, err
	}
	obj, p, err := ex.proposal(identity, args[2], actionType)
	if err != nil {
		return nil, err
	}
	v, err := ex.controllerToken(identity, args[1], contract.PermApproveProposal)
	if err != nil {
		return nil, err
	}
	if p.HasVoted(v.cap) {
		return nil, errors.WithObject(errors.ErrDuplicateVoter.Newf("controller %s already voted", v.cap), "proposal", p.ID)
	}
	p.Votes += v.weight
	p.Voters = append(p.Voters, v.cap)
	obj.mutated = true
	ex.emit(contract.ProposalEvent{Identity: identity.ID, Controller: v.token, Proposal: p.ID})
	return nil, nil
}

// execute consumes a proposal that reached the identity threshold and
// returns its action.
func (ex *execution) execute(args []*value, actionType string) (*contract.Identity, contract.Action, error) {
	if err := arity(args, 3); err != nil {
		return nil, nil, err
	}
	identity, err := ex.activeIdentity(args[0])
	if err != nil {
		return nil, nil, err
	}
	obj, p, err := ex.proposal(identity, args[2], actionType)
	if err != nil {
		return nil, nil, err
	}
	v, err := ex.controllerToken(identity, args[1], contract.PermExecuteProposal)
	if err != nil {
		return nil, nil, err
	}
	if p.Votes < identity.Threshold {
		return nil, nil, errors.WithObject(errors.ErrNotApprovable.Newf("%d votes, threshold %d", p.Votes, identity.Threshold), "proposal", p.ID)
	}
	obj.deleted = true
	ex.emit(contract.ProposalEvent{Identity: identity.ID, Controller: v.token, Proposal: p.ID, Executed: true})
	return identity, p.Action, nil
}

func executeProposal(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	actionType, err := typeArgument(call)
	if err != nil {
		return nil, err
	}
	identity, action, err := ex.execute(args, actionType)
	if err != nil {
		return nil, err
	}
	switch action.(type) {
	case contract.BorrowAction, contract.ControllerExecutionAction, contract.AccessSubIdentityAction, contract.SendAction:
	default:
		return nil, errors.ErrInput.Newf("action %s has a dedicated execute function", actionType)
	}
	a := &hotAction{identity: identity.ID, payload: action, out: make(map[idgov.ObjectID]bool)}
	ex.actions = append(ex.actions, a)
	return []*value{{kind: actionValue, action: a}}, nil
}

// identityAction returns the action argument after checking that it was
// issued by identity.
func (ex *execution) identityAction(identity *contract.Identity, v *value) (*hotAction, error) {
	a, err := ex.hotAction(v)
	if err != nil {
		return nil, err
	}
	if a.identity != identity.ID {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("action issued by %s", a.identity), "identity", identity.ID)
	}
	return a, nil
}

func executeBorrow(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	typ, err := typeArgument(call)
	if err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], true)
	if err != nil {
		return nil, err
	}
	a, err := ex.identityAction(identity, args[1])
	if err != nil {
		return nil, err
	}
	borrow, ok := a.payload.(contract.BorrowAction)
	if !ok {
		return nil, errors.ErrInput.Newf("borrow action expected, got %T", a.payload)
	}
	id := args[2].ref.ID
	if !containsID(borrow.Objects, id) {
		return nil, errors.WithObject(errors.ErrUnauthorized.New("object is not lent by the proposal"), "object", id)
	}
	obj, err := ex.receive(identity.ID.Address(), args[2])
	if err != nil {
		return nil, err
	}
	if obj.data.Type != typ {
		return nil, errors.WithObject(errors.ErrInput.Newf("object has type %s, not %s", obj.data.Type, typ), "object", id)
	}
	a.out[id] = true
	return []*value{{kind: objectValue, obj: obj, mutable: true}}, nil
}

// executeSend receives an object listed by a send action from the identity
// and transfers it to its recipient.
func executeSend(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	typ, err := typeArgument(call)
	if err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], true)
	if err != nil {
		return nil, err
	}
	a, err := ex.identityAction(identity, args[1])
	if err != nil {
		return nil, err
	}
	send, ok := a.payload.(contract.SendAction)
	if !ok {
		return nil, errors.ErrInput.Newf("send action expected, got %T", a.payload)
	}
	id := args[2].ref.ID
	var recipient *idgov.Address
	for i := range send.Transfers {
		if send.Transfers[i].Object == id {
			recipient = &send.Transfers[i].Recipient
		}
	}
	if recipient == nil || a.out[id] {
		return nil, errors.WithObject(errors.ErrUnauthorized.New("object is not sent by the proposal"), "object", id)
	}
	obj, err := ex.receive(identity.ID.Address(), args[2])
	if err != nil {
		return nil, err
	}
	if obj.data.Type != typ {
		return nil, errors.WithObject(errors.ErrInput.Newf("object has type %s, not %s", obj.data.Type, typ), "object", id)
	}
	obj.data.Owner = idgov.OwnedBy(*recipient)
	obj.taken = false
	a.out[id] = true
	return nil, nil
}

// completeSend consumes a send action once every object was sent.
func completeSend(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	a, err := ex.hotAction(args[0])
	if err != nil {
		return nil, err
	}
	send, ok := a.payload.(contract.SendAction)
	if !ok {
		return nil, errors.ErrInput.Newf("send action expected, got %T", a.payload)
	}
	if len(a.out) != len(send.Transfers) {
		return nil, errors.ErrState.Newf("%d of %d objects were sent", len(a.out), len(send.Transfers))
	}
	a.consumed = true
	return nil, nil
}

func containsID(ids []idgov.ObjectID, id idgov.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// putBack returns a borrowed object to the identity.
func (ex *execution) putBack(a *hotAction, v *value) error {
	obj, err := ex.object(v)
	if err != nil {
		return err
	}
	id := obj.data.Ref.ID
	if !a.out[id] || !obj.taken {
		return errors.WithObject(errors.ErrInput.New("object was not borrowed by the action"), "object", id)
	}
	delete(a.out, id)
	ex.place(obj)
	return nil
}

func putBackBorrowed(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	a, err := ex.hotAction(args[0])
	if err != nil {
		return nil, err
	}
	if _, ok := a.payload.(contract.BorrowAction); !ok {
		return nil, errors.ErrInput.Newf("borrow action expected, got %T", a.payload)
	}
	return nil, ex.putBack(a, args[1])
}

func concludeBorrow(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	a, err := ex.hotAction(args[0])
	if err != nil {
		return nil, err
	}
	if _, ok := a.payload.(contract.BorrowAction); !ok {
		return nil, errors.ErrInput.Newf("borrow action expected, got %T", a.payload)
	}
	if len(a.out) != 0 {
		return nil, errors.ErrState.Newf("%d borrowed objects were not returned", len(a.out))
	}
	a.consumed = true
	return nil, nil
}

func borrowControllerCap(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], true)
	if err != nil {
		return nil, err
	}
	a, err := ex.identityAction(identity, args[1])
	if err != nil {
		return nil, err
	}
	exec, ok := a.payload.(contract.ControllerExecutionAction)
	if !ok {
		return nil, errors.ErrInput.Newf("controller execution action expected, got %T", a.payload)
	}
	if args[2].ref.ID != exec.ControllerCap {
		return nil, errors.WithObject(errors.ErrUnauthorized.New("capability is not lent by the proposal"), "object", args[2].ref.ID)
	}
	obj, err := ex.receive(identity.ID.Address(), args[2])
	if err != nil {
		return nil, err
	}
	if _, ok := obj.content.(*contract.ControllerCap); !ok {
		return nil, errors.WithObject(errors.ErrInput.Newf("%s is not a controller capability", obj.data.Type), "object", obj.data.Ref.ID)
	}
	a.out[obj.data.Ref.ID] = true
	return []*value{{kind: objectValue, obj: obj, mutable: true}}, nil
}

func putBackControllerCap(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	a, err := ex.hotAction(args[0])
	if err != nil {
		return nil, err
	}
	if _, ok := a.payload.(contract.ControllerExecutionAction); !ok {
		return nil, errors.ErrInput.Newf("controller execution action expected, got %T", a.payload)
	}
	if err := ex.putBack(a, args[1]); err != nil {
		return nil, err
	}
	a.consumed = true
	return nil, nil
}

func borrowSubIdentityToken(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], true)
	if err != nil {
		return nil, err
	}
	a, err := ex.identityAction(identity, args[1])
	if err != nil {
		return nil, err
	}
	access, ok := a.payload.(contract.AccessSubIdentityAction)
	if !ok {
		return nil, errors.ErrInput.Newf("access sub identity action expected, got %T", a.payload)
	}
	obj, err := ex.receive(identity.ID.Address(), args[2])
	if err != nil {
		return nil, err
	}
	var controllerOf idgov.ObjectID
	switch t := obj.content.(type) {
	case *contract.ControllerCap:
		if call.Function != "borrow_controller_cap_to_sub_identity" {
			return nil, errors.WithObject(errors.ErrInput.New("delegation token expected"), "object", t.ID)
		}
		controllerOf = t.ControllerOf
	case *contract.DelegationToken:
		if call.Function != "borrow_delegation_token_to_sub_identity" {
			return nil, errors.WithObject(errors.ErrInput.New("controller capability expected"), "object", t.ID)
		}
		controllerOf = t.ControllerOf
	default:
		return nil, errors.WithObject(errors.ErrInput.Newf("%s is not a controller token", obj.data.Type), "object", obj.data.Ref.ID)
	}
	if controllerOf != access.SubIdentity {
		return nil, errors.WithObject(errors.ErrUnrelatedIdentities.Newf("token controls %s", controllerOf), "object", obj.data.Ref.ID)
	}
	a.out[obj.data.Ref.ID] = true
	return []*value{{kind: objectValue, obj: obj, mutable: true}}, nil
}

func putBackSubIdentityToken(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	a, err := ex.hotAction(args[0])
	if err != nil {
		return nil, err
	}
	if _, ok := a.payload.(contract.AccessSubIdentityAction); !ok {
		return nil, errors.ErrInput.Newf("access sub identity action expected, got %T", a.payload)
	}
	if err := ex.putBack(a, args[1]); err != nil {
		return nil, err
	}
	a.consumed = true
	return nil, nil
}

func executeConfigChange(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	identity, action, err := ex.execute(args, contract.ConfigChangeAction{}.ActionType(ex.pkg))
	if err != nil {
		return nil, err
	}
	change, ok := action.(contract.ConfigChangeAction)
	if !ok {
		return nil, errors.ErrHuman.Newf("config change proposal carries %T", action)
	}

	for _, id := range change.Remove {
		idx := controllerIndex(identity, id)
		if idx < 0 {
			return nil, errors.WithObject(errors.ErrInput.New("not a controller"), "controller", id)
		}
		identity.Controllers = append(identity.Controllers[:idx], identity.Controllers[idx+1:]...)
	}
	for _, u := range change.Update {
		idx := controllerIndex(identity, u.CapID)
		if idx < 0 {
			return nil, errors.WithObject(errors.ErrInput.New("not a controller"), "controller", u.CapID)
		}
		if u.Weight == 0 {
			return nil, errors.WithObject(errors.ErrInput.New("zero weight"), "controller", u.CapID)
		}
		identity.Controllers[idx].Weight = u.Weight
	}
	for i, spec := range change.Add {
		if spec.Weight == 0 {
			return nil, errors.ErrInput.Newf("added controller %d has zero weight", i)
		}
		c := &contract.ControllerCap{ID: ex.newID(), ControllerOf: identity.ID, CanDelegate: spec.CanDelegate}
		ex.create(c.ID, contract.ControllerCapType(ex.pkg), idgov.OwnedBy(spec.Address), c)
		identity.Controllers = append(identity.Controllers, contract.Controller{CapID: c.ID, Weight: spec.Weight, CanDelegate: spec.CanDelegate})
	}
	if change.Threshold.Set {
		identity.Threshold = change.Threshold.Value
	}
	return nil, checkThreshold(identity)
}

func controllerIndex(identity *contract.Identity, capID idgov.ObjectID) int {
	for i, c := range identity.Controllers {
		if c.CapID == capID {
			return i
		}
	}
	return -1
}

func executeDeactivation(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	identity, _, err := ex.execute(args, contract.DeactivationAction{}.ActionType(ex.pkg))
	if err != nil {
		return nil, err
	}
	identity.Deactivated = true
	return nil, nil
}

func executeUpgrade(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	identity, _, err := ex.execute(args, contract.UpgradeAction{}.ActionType(ex.pkg))
	if err != nil {
		return nil, err
	}
	if identity.Version >= ex.contractVersion() {
		return nil, errors.WithObject(errors.ErrState.Newf("identity is at version %d", identity.Version), "identity", identity.ID)
	}
	identity.Version = ex.contractVersion()
	return nil, nil
}

// controllerCap returns a capability argument controlling identity.
func (ex *execution) controllerCap(identity *contract.Identity, v *value) (*contract.ControllerCap, error) {
	obj, err := ex.object(v)
	if err != nil {
		return nil, err
	}
	c, ok := obj.content.(*contract.ControllerCap)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.Newf("%s is not a controller capability", obj.data.Type), "object", obj.data.Ref.ID)
	}
	if _, ok := identity.Controller(c.ID); !ok || c.ControllerOf != identity.ID {
		return nil, errors.WithObject(errors.ErrUnauthorized.New("not a controller"), "controller", c.ID)
	}
	return c, nil
}

// delegationToken loads a delegation token minted by capability c.
func (ex *execution) delegationToken(c *contract.ControllerCap, idArg *value) (idgov.ObjectID, error) {
	var id idgov.ObjectID
	if err := ex.pure(idArg, &id); err != nil {
		return id, err
	}
	obj, err := ex.load(id)
	if err != nil {
		return id, errors.WithObject(err, "token", id)
	}
	t, ok := obj.content.(*contract.DelegationToken)
	if !ok {
		return id, errors.WithObject(errors.ErrInput.Newf("%s is not a delegation token", obj.data.Type), "token", id)
	}
	if t.Controller != c.ID {
		return id, errors.WithObject(errors.ErrUnauthorized.Newf("minted by %s", t.Controller), "token", id)
	}
	return id, nil
}

func revokeToken(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], true)
	if err != nil {
		return nil, err
	}
	c, err := ex.controllerCap(identity, args[1])
	if err != nil {
		return nil, err
	}
	id, err := ex.delegationToken(c, args[2])
	if err != nil {
		return nil, err
	}
	if !identity.IsRevoked(id) {
		identity.Revoked = append(identity.Revoked, id)
	}
	return nil, nil
}

func unrevokeToken(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 3); err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], true)
	if err != nil {
		return nil, err
	}
	c, err := ex.controllerCap(identity, args[1])
	if err != nil {
		return nil, err
	}
	id, err := ex.delegationToken(c, args[2])
	if err != nil {
		return nil, err
	}
	identity.Revoked = removeID(identity.Revoked, id)
	return nil, nil
}

func removeID(ids []idgov.ObjectID, id idgov.ObjectID) []idgov.ObjectID {
	res := ids[:0]
	for _, x := range ids {
		if x != id {
			res = append(res, x)
		}
	}
	return res
}

func destroyDelegationToken(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	_, identity, err := ex.identity(args[0], true)
	if err != nil {
		return nil, err
	}
	obj, err := ex.mutable(args[1])
	if err != nil {
		return nil, err
	}
	t, ok := obj.content.(*contract.DelegationToken)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.Newf("%s is not a delegation token", obj.data.Type), "token", obj.data.Ref.ID)
	}
	if t.ControllerOf != identity.ID {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("token controls %s", t.ControllerOf), "token", t.ID)
	}
	obj.deleted = true
	obj.taken = false
	identity.Revoked = removeID(identity.Revoked, t.ID)
	return nil, nil
}

func delegateWithPermissions(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	obj, err := ex.object(args[0])
	if err != nil {
		return nil, err
	}
	c, ok := obj.content.(*contract.ControllerCap)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.Newf("%s is not a controller capability", obj.data.Type), "object", obj.data.Ref.ID)
	}
	if !c.CanDelegate {
		return nil, errors.WithObject(errors.ErrUnauthorized.New("capability cannot delegate"), "controller", c.ID)
	}
	var perms uint32
	if err := ex.pure(args[1], &perms); err != nil {
		return nil, err
	}
	t := &contract.DelegationToken{
		ID:           ex.newID(),
		Controller:   c.ID,
		ControllerOf: c.ControllerOf,
		Permissions:  perms,
	}
	token := ex.create(t.ID, contract.DelegationTokenType(ex.pkg), idgov.OwnedBy(ex.sender), t)
	token.taken = true
	return []*value{{kind: objectValue, obj: token, mutable: true}}, nil
}
