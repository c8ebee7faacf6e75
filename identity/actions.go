package identity

import (
	"context"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
	"golang.org/x/sync/errgroup"
)

// driver builds the action specific part of a proposal transaction.
type driver[T any] interface {
	// validate checks the action against the loaded ledger state. It runs
	// before propose and before execute.
	validate(ctx context.Context, env *txEnv) error
	// propose adds the call creating the proposal and returns the argument
	// holding the new proposal id.
	propose(env *txEnv, expiration *uint64) (ptb.Argument, error)
	// executable returns false when executing needs input the driver was not
	// given.
	executable() bool
	execute(ctx context.Context, env *txEnv, proposalID ptb.Argument) error
	// output interprets the effects of an execution.
	output(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (T, error)
}

type intentDriver interface {
	setIntent(Intent)
}

// unitDriver returns the driver of an action whose execution has no output.
func unitDriver(action contract.Action) driver[struct{}] {
	switch a := action.(type) {
	case contract.BorrowAction:
		return &borrowDriver{action: a}
	case contract.ControllerExecutionAction:
		return &controllerDriver{action: a}
	case contract.ConfigChangeAction:
		return &configDriver{action: a}
	case contract.DeactivationAction:
		return deactivationDriver{}
	case contract.AccessSubIdentityAction:
		return &accessDriver[struct{}]{action: a}
	case contract.SendAction:
		return &sendDriver{action: a}
	case contract.UpgradeAction:
		return &upgradeDriver{}
	}
	panic(errors.ErrInput.Newf("unknown action %T", action))
}

type unitOutput struct{}

func (unitOutput) output(context.Context, *idgov.Effects, *idgov.Events, idgov.ReadClient) (struct{}, error) {
	return struct{}{}, nil
}

type borrowDriver struct {
	unitOutput
	action  contract.BorrowAction
	intent  Intent
	objects []*idgov.ObjectData
}

func (d *borrowDriver) setIntent(intent Intent) { d.intent = intent }

func (d *borrowDriver) validate(ctx context.Context, env *txEnv) error {
	if len(d.action.Objects) == 0 {
		return errors.Field("Objects", errors.ErrInput, "required")
	}
	objects, err := identityObjects(ctx, env, d.action.Objects)
	if err != nil {
		return err
	}
	d.objects = objects
	return nil
}

// identityObjects reads objects concurrently and checks that the identity
// owns all of them.
func identityObjects(ctx context.Context, env *txEnv, ids []idgov.ObjectID) ([]*idgov.ObjectData, error) {
	objects := make([]*idgov.ObjectData, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			obj, err := env.reader.GetObject(gctx, id)
			if err != nil {
				return errors.WithObject(err, "object", id)
			}
			if !obj.Owner.IsOwnedBy(env.identity.Address()) {
				return errors.WithObject(errors.ErrUnauthorized.Newf("owned by %s", obj.Owner), "object", id)
			}
			objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return objects, nil
}

func (d *borrowDriver) propose(env *txEnv, expiration *uint64) (ptb.Argument, error) {
	return env.calls.ProposeBorrow(env.identityArg, env.tokenArg, d.action.Objects, expiration)
}

func (d *borrowDriver) executable() bool { return true }

func (d *borrowDriver) execute(ctx context.Context, env *txEnv, proposalID ptb.Argument) error {
	action := env.calls.ExecuteProposal(env.identityArg, env.tokenArg, proposalID, d.action.ActionType(env.calls.Package()))
	borrowed, err := env.calls.ExecuteBorrow(env.identityArg, action, d.objects)
	if err != nil {
		return err
	}
	if err := runIntent(env.b, d.intent, d.objects, borrowed); err != nil {
		return err
	}
	for i, obj := range d.objects {
		env.calls.PutBackBorrowed(action, borrowed[i], obj.Type)
	}
	env.calls.ConcludeBorrow(action)
	return nil
}

type controllerDriver struct {
	unitOutput
	action contract.ControllerExecutionAction
	intent Intent
	cap    *idgov.ObjectData
}

func (d *controllerDriver) setIntent(intent Intent) { d.intent = intent }

func (d *controllerDriver) validate(ctx context.Context, env *txEnv) error {
	obj, err := env.reader.GetObject(ctx, d.action.ControllerCap)
	if err != nil {
		return errors.WithObject(err, "token", d.action.ControllerCap)
	}
	token, err := tokenFromObject(obj)
	if err != nil {
		return err
	}
	if _, ok := AsControllerCap(token); !ok {
		return errors.WithObject(errors.ErrInput.New("not a controller capability"), "token", obj.Ref.ID)
	}
	if !obj.Owner.IsOwnedBy(env.identity.Address()) {
		return errors.WithObject(errors.ErrUnauthorized.Newf("owned by %s", obj.Owner), "token", obj.Ref.ID)
	}
	d.cap = obj
	return nil
}

func (d *controllerDriver) propose(env *txEnv, expiration *uint64) (ptb.Argument, error) {
	return env.calls.ProposeControllerExecution(env.identityArg, env.tokenArg, d.action.ControllerCap, expiration)
}

func (d *controllerDriver) executable() bool { return true }

func (d *controllerDriver) execute(ctx context.Context, env *txEnv, proposalID ptb.Argument) error {
	action := env.calls.ExecuteProposal(env.identityArg, env.tokenArg, proposalID, d.action.ActionType(env.calls.Package()))
	capArg, err := env.calls.BorrowControllerCap(env.identityArg, action, d.cap.Ref)
	if err != nil {
		return err
	}
	if err := runIntent(env.b, d.intent, []*idgov.ObjectData{d.cap}, []ptb.Argument{capArg}); err != nil {
		return err
	}
	env.calls.PutBackControllerCap(action, capArg)
	return nil
}

type configDriver struct {
	unitOutput
	action contract.ConfigChangeAction
}

// validate applies the change to the loaded controller set and checks the
// outcome.
func (d *configDriver) validate(ctx context.Context, env *txEnv) error {
	weights := make(map[idgov.ObjectID]uint64)
	for _, c := range env.identity.Controllers() {
		weights[c.CapID] = c.Weight
	}
	var errs error
	for _, id := range d.action.Remove {
		if _, ok := weights[id]; !ok {
			errs = errors.AppendField(errs, "Remove", errors.ErrInput.Newf("%s is not a controller", id))
			continue
		}
		delete(weights, id)
	}
	for _, u := range d.action.Update {
		if _, ok := weights[u.CapID]; !ok {
			errs = errors.AppendField(errs, "Update", errors.ErrInput.Newf("%s is not a controller", u.CapID))
			continue
		}
		if u.Weight == 0 {
			errs = errors.AppendField(errs, "Update", errors.ErrInput.Newf("zero weight for %s", u.CapID))
		}
		weights[u.CapID] = u.Weight
	}
	var total uint64
	for _, w := range weights {
		total += w
	}
	for n, a := range d.action.Add {
		if a.Weight == 0 {
			errs = errors.AppendField(errs, "Add", errors.ErrInput.Newf("controller %d has zero weight", n))
		}
		total += a.Weight
	}
	threshold := env.identity.Threshold()
	if d.action.Threshold.Set {
		threshold = d.action.Threshold.Value
	}
	if threshold == 0 || threshold > total {
		errs = errors.AppendField(errs, "Threshold", errors.ErrInput.Newf("threshold %d not in range 1..%d", threshold, total))
	}
	return errs
}

func (d *configDriver) propose(env *txEnv, expiration *uint64) (ptb.Argument, error) {
	return env.calls.ProposeConfigChange(env.identityArg, env.tokenArg, d.action, expiration)
}

func (d *configDriver) executable() bool { return true }

func (d *configDriver) execute(ctx context.Context, env *txEnv, proposalID ptb.Argument) error {
	env.calls.ExecuteConfigChange(env.identityArg, env.tokenArg, proposalID)
	return nil
}

type deactivationDriver struct {
	unitOutput
}

func (deactivationDriver) validate(context.Context, *txEnv) error { return nil }

func (deactivationDriver) propose(env *txEnv, expiration *uint64) (ptb.Argument, error) {
	return env.calls.ProposeDeactivation(env.identityArg, env.tokenArg, expiration)
}

func (deactivationDriver) executable() bool { return true }

func (deactivationDriver) execute(ctx context.Context, env *txEnv, proposalID ptb.Argument) error {
	env.calls.ExecuteDeactivation(env.identityArg, env.tokenArg, proposalID)
	return nil
}

type sendDriver struct {
	unitOutput
	action  contract.SendAction
	objects []*idgov.ObjectData
}

func (d *sendDriver) validate(ctx context.Context, env *txEnv) error {
	if len(d.action.Transfers) == 0 {
		return errors.Field("Transfers", errors.ErrInput, "required")
	}
	ids := d.action.Touches()
	var errs error
	for i, t := range d.action.Transfers {
		if containsObject(ids[:i], t.Object) {
			errs = errors.AppendField(errs, "Transfers", errors.WithObject(errors.ErrInput.New("object sent twice"), "object", t.Object))
		}
		if t.Recipient == (idgov.Address{}) {
			errs = errors.AppendField(errs, "Transfers", errors.WithObject(errors.ErrInput.New("missing recipient"), "object", t.Object))
		}
	}
	if errs != nil {
		return errs
	}
	objects, err := identityObjects(ctx, env, ids)
	if err != nil {
		return err
	}
	d.objects = objects
	return nil
}

func containsObject(ids []idgov.ObjectID, id idgov.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (d *sendDriver) propose(env *txEnv, expiration *uint64) (ptb.Argument, error) {
	return env.calls.ProposeSend(env.identityArg, env.tokenArg, d.action.Transfers, expiration)
}

func (d *sendDriver) executable() bool { return true }

func (d *sendDriver) execute(ctx context.Context, env *txEnv, proposalID ptb.Argument) error {
	action := env.calls.ExecuteProposal(env.identityArg, env.tokenArg, proposalID, d.action.ActionType(env.calls.Package()))
	return env.calls.ExecuteSend(env.identityArg, action, d.objects)
}

// upgradeDriver migrates the identity to version. A zero version leaves the
// check to the ledger.
type upgradeDriver struct {
	unitOutput
	version uint64
}

func (d *upgradeDriver) validate(ctx context.Context, env *txEnv) error {
	if d.version != 0 && env.identity.ContractVersion() >= d.version {
		return errors.WithObject(errors.ErrState.Newf("identity is at version %d", env.identity.ContractVersion()), "identity", env.identity.ID())
	}
	return nil
}

func (d *upgradeDriver) propose(env *txEnv, expiration *uint64) (ptb.Argument, error) {
	return env.calls.ProposeUpgrade(env.identityArg, env.tokenArg, expiration)
}

func (d *upgradeDriver) executable() bool { return true }

func (d *upgradeDriver) execute(ctx context.Context, env *txEnv, proposalID ptb.Argument) error {
	env.calls.ExecuteUpgrade(env.identityArg, env.tokenArg, proposalID)
	return nil
}

// accessDriver lends the token an identity holds over a sub identity to the
// transaction built by the continuation.
type accessDriver[T any] struct {
	action       contract.AccessSubIdentityAction
	continuation Continuation[T]

	sub      *OnChainIdentity
	subToken ControllerToken
	inner    Transaction[T]
}

func (d *accessDriver[T]) validate(ctx context.Context, env *txEnv) error {
	if d.action.Identity != env.identity.ID() {
		return errors.WithObject(errors.ErrUnauthorized.Newf("action of %s", d.action.Identity), "identity", env.identity.ID())
	}
	sub, err := GetIdentity(ctx, d.action.SubIdentity, env.reader)
	if err != nil {
		return err
	}
	obj, err := env.reader.FindOwnedObject(ctx, env.identity.Address(), tokenTypes(sub.Package()), func(obj *idgov.ObjectData) bool {
		t, err := tokenFromObject(obj)
		return err == nil && t.ControllerOf() == sub.ID()
	})
	switch {
	case errors.ErrNotFound.Is(err):
		err = errors.ErrUnrelatedIdentities.Newf("%s holds no token over %s", env.identity.ID(), sub.ID())
		return errors.WithObject(errors.WithObject(err, "sub_identity", sub.ID()), "identity", env.identity.ID())
	case err != nil:
		return err
	}
	token, err := tokenFromObject(obj)
	if err != nil {
		return err
	}
	d.sub = sub
	d.subToken = token
	return nil
}

func (d *accessDriver[T]) propose(env *txEnv, expiration *uint64) (ptb.Argument, error) {
	subArg, err := env.calls.Identity(d.sub.sharedRef(), false)
	if err != nil {
		return ptb.Argument{}, err
	}
	return env.calls.ProposeAccessToSubIdentity(env.identityArg, subArg, env.tokenArg, expiration)
}

func (d *accessDriver[T]) executable() bool { return d.continuation != nil }

// execute borrows the sub identity token and merges the continuation
// transaction, replacing its token input by the borrowed value.
func (d *accessDriver[T]) execute(ctx context.Context, env *txEnv, proposalID ptb.Argument) error {
	action := env.calls.ExecuteProposal(env.identityArg, env.tokenArg, proposalID, d.action.ActionType(env.calls.Package()))
	_, isCap := AsControllerCap(d.subToken)
	tokenArg, err := env.calls.BorrowSubIdentityToken(env.identityArg, action, d.subToken.Ref(), isCap)
	if err != nil {
		return err
	}
	inner, err := d.callContinuation()
	if err != nil {
		return err
	}
	fragment, err := inner.BuildFragment(ctx, env.reader)
	if err != nil {
		return err
	}
	replacement := ptb.Replacement{Input: ptb.ObjectValue(ptb.ImmOrOwned(d.subToken.Ref())), Argument: tokenArg}
	if err := env.b.Merge(fragment, []ptb.Replacement{replacement}); err != nil {
		return err
	}
	env.calls.PutBackSubIdentityToken(action, tokenArg, isCap)
	d.inner = inner
	return nil
}

// callContinuation builds the sub identity transaction. A panic of the
// continuation is returned as ErrPanic.
func (d *accessDriver[T]) callContinuation() (tx Transaction[T], err error) {
	defer errors.Recover(&err)
	return d.continuation(d.sub, d.subToken)
}

func (d *accessDriver[T]) output(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (T, error) {
	if d.inner == nil {
		var zero T
		return zero, errors.ErrEffectsApplication.New("sub identity transaction was not built")
	}
	return d.inner.Apply(ctx, effects, events, reader)
}
