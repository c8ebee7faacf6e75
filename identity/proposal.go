package identity

import (
	"context"
	"fmt"
	"sort"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
)

// Status is the lifecycle stage of a proposal.
type Status uint8

const (
	// StatusPending proposals wait for votes.
	StatusPending Status = iota + 1
	// StatusApprovable proposals reached the threshold and can be executed.
	StatusApprovable
	// StatusExecuted proposals were consumed. They no longer exist on the
	// ledger.
	StatusExecuted
	// StatusExpired proposals passed their expiration epoch.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApprovable:
		return "approvable"
	case StatusExecuted:
		return "executed"
	case StatusExpired:
		return "expired"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Proposal is a local view of a proposal carrying an action of type A.
type Proposal[A contract.Action] struct {
	id         idgov.ObjectID
	identity   idgov.ObjectID
	action     A
	votes      uint64
	voters     []idgov.ObjectID
	expiration *uint64
	executed   bool
	deleted    bool
}

// GetProposal fetches a proposal. ErrInput is returned when the proposal
// carries an action of another type.
func GetProposal[A contract.Action](ctx context.Context, id idgov.ObjectID, reader idgov.ReadClient) (*Proposal[A], error) {
	obj, err := reader.GetObject(ctx, id)
	if err != nil {
		return nil, errors.WithObject(err, "proposal", id)
	}
	pkg, err := contract.PackageOf(obj.Type)
	if err != nil {
		return nil, errors.WithObject(err, "proposal", id)
	}
	if _, ok := contract.ProposalActionType(pkg, obj.Type); !ok {
		return nil, errors.WithObject(errors.ErrInput.Newf("%s is not a proposal", obj.Type), "proposal", id)
	}
	var content contract.Proposal
	if err := contract.Decode(obj.Content, &content); err != nil {
		return nil, errors.WithObject(err, "proposal", id)
	}
	action, ok := content.Action.(A)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.Newf("proposal carries %T", content.Action), "proposal", id)
	}
	voters := append([]idgov.ObjectID(nil), content.Voters...)
	sort.Slice(voters, func(i, j int) bool { return voters[i].Less(voters[j]) })
	return &Proposal[A]{
		id:         content.ID,
		identity:   content.Identity,
		action:     action,
		votes:      content.Votes,
		voters:     voters,
		expiration: content.Expiration.Ptr(),
	}, nil
}

func (p *Proposal[A]) ID() idgov.ObjectID       { return p.id }
func (p *Proposal[A]) Identity() idgov.ObjectID { return p.identity }
func (p *Proposal[A]) Votes() uint64            { return p.votes }
func (p *Proposal[A]) Executed() bool           { return p.executed }
func (p *Proposal[A]) Deleted() bool            { return p.deleted }

// Action returns the proposed action.
func (p *Proposal[A]) Action() A { return p.action }

// Voters returns the sorted ids of the capabilities that voted.
func (p *Proposal[A]) Voters() []idgov.ObjectID {
	return append([]idgov.ObjectID(nil), p.voters...)
}

// HasVoted returns true if the capability already voted.
func (p *Proposal[A]) HasVoted(capID idgov.ObjectID) bool {
	i := sort.Search(len(p.voters), func(i int) bool { return !p.voters[i].Less(capID) })
	return i < len(p.voters) && p.voters[i] == capID
}

// ExpirationEpoch returns the last epoch the proposal can be acted upon.
func (p *Proposal[A]) ExpirationEpoch() (uint64, bool) {
	if p.expiration == nil {
		return 0, false
	}
	return *p.expiration, true
}

func (p *Proposal[A]) isExpired(epoch uint64) bool {
	return p.expiration != nil && epoch > *p.expiration
}

// Status returns the proposal status for given identity threshold and
// current epoch.
func (p *Proposal[A]) Status(threshold, epoch uint64) Status {
	switch {
	case p.executed:
		return StatusExecuted
	case p.isExpired(epoch):
		return StatusExpired
	case p.votes >= threshold:
		return StatusApprovable
	}
	return StatusPending
}

func (p *Proposal[A]) addVote(capID idgov.ObjectID, weight uint64) {
	p.votes += weight
	p.voters = append(p.voters, capID)
	sort.Slice(p.voters, func(i, j int) bool { return p.voters[i].Less(p.voters[j]) })
}

// Approve returns a transaction adding the vote of token to the proposal.
// When the vote makes the proposal reach the identity threshold and the
// action needs no further input, the same transaction executes it.
func (p *Proposal[A]) Approve(identity *OnChainIdentity, token ControllerToken) *ProposalTx[A, struct{}] {
	tx := newProposalTx[A, struct{}](identity, token, p.action, unitDriver(p.action))
	tx.proposal = p
	return tx
}

// Execute returns a transaction executing an approvable proposal.
func (p *Proposal[A]) Execute(identity *OnChainIdentity, token ControllerToken) *ExecuteTx[A, struct{}] {
	return &ExecuteTx[A, struct{}]{identity: identity, token: token, proposal: p, driver: unitDriver(p.action)}
}

// Delete returns a transaction removing the proposal from the ledger. Only
// expired proposals and proposals approved by the token controller alone can
// be deleted.
func (p *Proposal[A]) Delete(identity *OnChainIdentity, token ControllerToken) *DeleteProposalTx[A] {
	return &DeleteProposalTx[A]{identity: identity, token: token, proposal: p}
}

// ExecuteAccess returns a transaction executing an approvable sub identity
// access proposal. The continuation builds the transaction run against the
// sub identity.
func ExecuteAccess[T any](p *Proposal[contract.AccessSubIdentityAction], identity *OnChainIdentity, token ControllerToken, continuation Continuation[T]) *ExecuteTx[contract.AccessSubIdentityAction, T] {
	d := &accessDriver[T]{action: p.action, continuation: continuation}
	return &ExecuteTx[contract.AccessSubIdentityAction, T]{identity: identity, token: token, proposal: p, driver: d}
}

// ProposalTx creates or approves a proposal. It executes the proposal in the
// same transaction when the threshold is met.
type ProposalTx[A contract.Action, T any] struct {
	identity   *OnChainIdentity
	token      ControllerToken
	action     A
	proposal   *Proposal[A]
	driver     driver[T]
	expiration *uint64

	// Set by BuildFragment.
	pkg      idgov.ObjectID
	weight   uint64
	executes bool
}

func newProposalTx[A contract.Action, T any](identity *OnChainIdentity, token ControllerToken, action A, d driver[T]) *ProposalTx[A, T] {
	return &ProposalTx[A, T]{identity: identity, token: token, action: action, driver: d}
}

// WithExpiration sets the last epoch the created proposal can be approved
// or executed in.
func (tx *ProposalTx[A, T]) WithExpiration(epoch uint64) *ProposalTx[A, T] {
	tx.expiration = &epoch
	return tx
}

// WithIntent sets the intent run when the proposal executes. It has no
// effect for actions that do not lend objects.
func (tx *ProposalTx[A, T]) WithIntent(intent Intent) *ProposalTx[A, T] {
	if d, ok := tx.driver.(intentDriver); ok {
		d.setIntent(intent)
	}
	return tx
}

// Send executes the transaction with c.
func (tx *ProposalTx[A, T]) Send(ctx context.Context, c *Client) (ProposalResult[A, T], error) {
	return Execute[ProposalResult[A, T]](ctx, c, tx)
}

// Executes returns true if the last built fragment also executes the
// proposal.
func (tx *ProposalTx[A, T]) Executes() bool {
	return tx.executes
}

func (tx *ProposalTx[A, T]) BuildFragment(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	tx.executes = false
	if err := checkToken(tx.identity, tx.token); err != nil {
		return nil, err
	}
	if tx.proposal == nil {
		return tx.buildCreate(ctx, reader)
	}
	return tx.buildApprove(ctx, reader)
}

func checkToken(identity *OnChainIdentity, token ControllerToken) error {
	if token.ControllerOf() != identity.ID() {
		return errors.WithObject(
			errors.WithObject(errors.ErrUnauthorized.Newf("token controls %s", token.ControllerOf()), "token", token.ID()),
			"identity", identity.ID())
	}
	return nil
}

func (tx *ProposalTx[A, T]) buildCreate(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	if tx.identity.IsDeactivated() {
		return nil, errors.WithObject(errors.ErrState.New("identity is deactivated"), "identity", tx.identity.ID())
	}
	env, err := loadEnv(ctx, reader, tx.identity.ID(), tx.token.ID())
	if err != nil {
		return nil, err
	}
	if env.identity.IsDeactivated() {
		return nil, errors.WithObject(errors.ErrState.New("identity is deactivated"), "identity", env.identity.ID())
	}
	weight, err := env.identity.authorize(env.token, contract.PermCreateProposal)
	if err != nil {
		return nil, err
	}
	if tx.expiration != nil && *tx.expiration < env.epoch {
		return nil, errors.WithObject(errors.ErrExpired.Newf("expiration %d is before epoch %d", *tx.expiration, env.epoch), "identity", env.identity.ID())
	}
	if err := tx.driver.validate(ctx, env); err != nil {
		return nil, err
	}
	if err := env.addArguments(); err != nil {
		return nil, err
	}
	proposalID, err := tx.driver.propose(env, tx.expiration)
	if err != nil {
		return nil, err
	}
	tx.pkg = env.identity.Package()
	tx.weight = weight
	if weight >= env.identity.Threshold() && tx.driver.executable() && env.token.Permits(contract.PermExecuteProposal) {
		if err := tx.driver.execute(ctx, env, proposalID); err != nil {
			return nil, err
		}
		tx.executes = true
	}
	return env.b.Finish(), nil
}

func (tx *ProposalTx[A, T]) buildApprove(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	p := tx.proposal
	if p.deleted {
		return nil, errors.WithObject(errors.ErrState.New("proposal was deleted"), "proposal", p.id)
	}
	if p.executed {
		return nil, errors.WithObject(errors.ErrAlreadyExecuted.New("cannot approve"), "proposal", p.id)
	}
	if p.identity != tx.identity.ID() {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("proposal of %s", p.identity), "proposal", p.id)
	}
	if p.HasVoted(tx.token.ControllerID()) {
		return nil, errors.WithObject(errors.ErrDuplicateVoter.Newf("controller %s already voted", tx.token.ControllerID()), "proposal", p.id)
	}

	env, err := loadEnv(ctx, reader, tx.identity.ID(), tx.token.ID())
	if err != nil {
		return nil, err
	}
	fresh, err := freshProposal[A](ctx, p.id, reader)
	if err != nil {
		return nil, err
	}
	if fresh.HasVoted(env.token.ControllerID()) {
		return nil, errors.WithObject(errors.ErrDuplicateVoter.Newf("controller %s already voted", env.token.ControllerID()), "proposal", p.id)
	}
	if fresh.isExpired(env.epoch) {
		return nil, errors.WithObject(errors.ErrExpired.Newf("expired in epoch %d", *fresh.expiration), "proposal", p.id)
	}
	weight, err := env.identity.authorize(env.token, contract.PermApproveProposal)
	if err != nil {
		return nil, err
	}
	if err := env.addArguments(); err != nil {
		return nil, err
	}
	proposalID, err := env.calls.ProposalID(p.id)
	if err != nil {
		return nil, err
	}
	env.calls.ApproveProposal(env.identityArg, env.tokenArg, proposalID, p.action.ActionType(env.identity.Package()))

	tx.pkg = env.identity.Package()
	tx.weight = weight
	if fresh.votes+weight >= env.identity.Threshold() && tx.driver.executable() && env.token.Permits(contract.PermExecuteProposal) {
		if err := tx.driver.validate(ctx, env); err != nil {
			return nil, err
		}
		if err := tx.driver.execute(ctx, env, proposalID); err != nil {
			return nil, err
		}
		tx.executes = true
	}
	return env.b.Finish(), nil
}

// freshProposal reads a proposal back from the ledger. A proposal that no
// longer exists was executed.
func freshProposal[A contract.Action](ctx context.Context, id idgov.ObjectID, reader idgov.ReadClient) (*Proposal[A], error) {
	p, err := GetProposal[A](ctx, id, reader)
	if errors.ErrNotFound.Is(err) {
		return nil, errors.WithObject(errors.ErrAlreadyExecuted.New("proposal no longer exists"), "proposal", id)
	}
	return p, err
}

// Apply returns the created or approved proposal, or the execution output
// when the transaction executed it.
func (tx *ProposalTx[A, T]) Apply(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (ProposalResult[A, T], error) {
	var zero ProposalResult[A, T]
	if err := checkStatus(effects); err != nil {
		return zero, err
	}
	filter := eventFilter{pkg: tx.pkg, identity: tx.identity.ID(), token: tx.token.ID()}
	if tx.proposal != nil {
		filter.proposal = tx.proposal.id
	}
	ev, err := takeProposalEvent(events, filter)
	if err != nil {
		return zero, err
	}

	if tx.executes {
		filter.proposal = ev.Proposal
		filter.executed = true
		if _, err := takeProposalEvent(events, filter); err != nil {
			return zero, err
		}
		if tx.proposal != nil {
			tx.proposal.addVote(tx.token.ControllerID(), tx.weight)
			tx.proposal.executed = true
		}
		out, err := tx.driver.output(ctx, effects, events, reader)
		if err != nil {
			return zero, err
		}
		if err := tx.identity.Refresh(ctx, reader); err != nil {
			return zero, errors.Wrap(errors.ErrEffectsApplication, err.Error())
		}
		return ExecutedResult[A, T](out), nil
	}

	fresh, err := GetProposal[A](ctx, ev.Proposal, reader)
	if err != nil {
		return zero, errors.Wrap(errors.ErrEffectsApplication, err.Error())
	}
	if tx.proposal == nil {
		return PendingResult[A, T](fresh), nil
	}
	*tx.proposal = *fresh
	return PendingResult[A, T](tx.proposal), nil
}

// ExecuteTx executes an approvable proposal.
type ExecuteTx[A contract.Action, T any] struct {
	identity *OnChainIdentity
	token    ControllerToken
	proposal *Proposal[A]
	driver   driver[T]
	pkg      idgov.ObjectID
}

// WithIntent sets the intent run against the lent objects.
func (tx *ExecuteTx[A, T]) WithIntent(intent Intent) *ExecuteTx[A, T] {
	if d, ok := tx.driver.(intentDriver); ok {
		d.setIntent(intent)
	}
	return tx
}

// Send executes the transaction with c.
func (tx *ExecuteTx[A, T]) Send(ctx context.Context, c *Client) (T, error) {
	return Execute[T](ctx, c, tx)
}

func (tx *ExecuteTx[A, T]) BuildFragment(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	p := tx.proposal
	if p.deleted {
		return nil, errors.WithObject(errors.ErrState.New("proposal was deleted"), "proposal", p.id)
	}
	if p.executed {
		return nil, errors.WithObject(errors.ErrAlreadyExecuted.New("cannot execute"), "proposal", p.id)
	}
	if err := checkToken(tx.identity, tx.token); err != nil {
		return nil, err
	}
	if !tx.driver.executable() {
		return nil, errors.WithObject(errors.ErrInput.Newf("%s proposal needs a continuation", p.action.Kind()), "proposal", p.id)
	}

	env, err := loadEnv(ctx, reader, tx.identity.ID(), tx.token.ID())
	if err != nil {
		return nil, err
	}
	fresh, err := freshProposal[A](ctx, p.id, reader)
	if err != nil {
		return nil, err
	}
	if fresh.isExpired(env.epoch) {
		return nil, errors.WithObject(errors.ErrExpired.Newf("expired in epoch %d", *fresh.expiration), "proposal", p.id)
	}
	if fresh.votes < env.identity.Threshold() {
		return nil, errors.WithObject(errors.ErrNotApprovable.Newf("%d votes, threshold %d", fresh.votes, env.identity.Threshold()), "proposal", p.id)
	}
	if _, err := env.identity.authorize(env.token, contract.PermExecuteProposal); err != nil {
		return nil, err
	}
	if err := tx.driver.validate(ctx, env); err != nil {
		return nil, err
	}
	if err := env.addArguments(); err != nil {
		return nil, err
	}
	proposalID, err := env.calls.ProposalID(p.id)
	if err != nil {
		return nil, err
	}
	if err := tx.driver.execute(ctx, env, proposalID); err != nil {
		return nil, err
	}
	tx.pkg = env.identity.Package()
	return env.b.Finish(), nil
}

// Apply marks the proposal executed and returns the execution output.
func (tx *ExecuteTx[A, T]) Apply(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (T, error) {
	var zero T
	if err := checkStatus(effects); err != nil {
		return zero, err
	}
	filter := eventFilter{pkg: tx.pkg, identity: tx.identity.ID(), token: tx.token.ID(), proposal: tx.proposal.id, executed: true}
	if _, err := takeProposalEvent(events, filter); err != nil {
		return zero, err
	}
	tx.proposal.executed = true
	out, err := tx.driver.output(ctx, effects, events, reader)
	if err != nil {
		return zero, err
	}
	if err := tx.identity.Refresh(ctx, reader); err != nil {
		return zero, errors.Wrap(errors.ErrEffectsApplication, err.Error())
	}
	return out, nil
}

// DeleteProposalTx deletes a proposal.
type DeleteProposalTx[A contract.Action] struct {
	identity *OnChainIdentity
	token    ControllerToken
	proposal *Proposal[A]
	pkg      idgov.ObjectID
}

// Send executes the transaction with c.
func (tx *DeleteProposalTx[A]) Send(ctx context.Context, c *Client) error {
	_, err := Execute[struct{}](ctx, c, tx)
	return err
}

func (tx *DeleteProposalTx[A]) BuildFragment(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	p := tx.proposal
	if p.executed || p.deleted {
		return nil, errors.WithObject(errors.ErrAlreadyExecuted.New("proposal no longer exists"), "proposal", p.id)
	}
	if err := checkToken(tx.identity, tx.token); err != nil {
		return nil, err
	}
	if p.identity != tx.identity.ID() {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("proposal of %s", p.identity), "proposal", p.id)
	}

	env, err := loadEnv(ctx, reader, tx.identity.ID(), tx.token.ID())
	if err != nil {
		return nil, err
	}
	fresh, err := freshProposal[A](ctx, p.id, reader)
	if err != nil {
		return nil, err
	}
	if _, err := env.identity.authorize(env.token, contract.PermDeleteProposal); err != nil {
		return nil, err
	}
	withdrawn := len(fresh.voters) == 1 && fresh.voters[0] == env.token.ControllerID()
	if !withdrawn && !fresh.isExpired(env.epoch) {
		return nil, errors.WithObject(errors.ErrState.New("proposal is approved by other controllers"), "proposal", p.id)
	}
	if err := env.addArguments(); err != nil {
		return nil, err
	}
	proposalID, err := env.calls.ProposalID(p.id)
	if err != nil {
		return nil, err
	}
	tx.pkg = env.identity.Package()
	env.calls.DeleteProposal(env.identityArg, env.tokenArg, proposalID, p.action.ActionType(tx.pkg))
	return env.b.Finish(), nil
}

// Apply marks the proposal deleted.
func (tx *DeleteProposalTx[A]) Apply(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (struct{}, error) {
	if err := checkStatus(effects); err != nil {
		return struct{}{}, err
	}
	filter := eventFilter{pkg: tx.pkg, identity: tx.identity.ID(), token: tx.token.ID(), proposal: tx.proposal.id, deleted: true}
	if _, err := takeProposalEvent(events, filter); err != nil {
		return struct{}{}, err
	}
	if !effects.IsDeleted(tx.proposal.id) {
		return struct{}{}, errors.WithObject(errors.ErrEffectsApplication.New("proposal was not deleted"), "proposal", tx.proposal.id)
	}
	tx.proposal.deleted = true
	return struct{}{}, nil
}
