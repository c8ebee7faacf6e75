package identity

import (
	"context"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
)

// Transaction is an operation on the ledger. BuildFragment reads current
// ledger state and composes the commands to execute. Apply interprets the
// effects and events of the executed commands.
type Transaction[T any] interface {
	BuildFragment(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error)
	Apply(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (T, error)
}

// BuildFragmentBytes builds a transaction and serializes it, for flows where
// the transaction is signed and submitted externally.
func BuildFragmentBytes[T any](ctx context.Context, tx Transaction[T], reader idgov.ReadClient) ([]byte, error) {
	f, err := tx.BuildFragment(ctx, reader)
	if err != nil {
		return nil, err
	}
	return ptb.Marshal(f)
}

// ProposalResult is the outcome of a transaction acting on a proposal. The
// proposal is either still waiting for votes or it was executed, producing
// an output.
type ProposalResult[A contract.Action, T any] struct {
	proposal *Proposal[A]
	output   T
	executed bool
}

// PendingResult returns a result of a proposal waiting for votes.
func PendingResult[A contract.Action, T any](p *Proposal[A]) ProposalResult[A, T] {
	return ProposalResult[A, T]{proposal: p}
}

// ExecutedResult returns a result of an executed proposal.
func ExecutedResult[A contract.Action, T any](output T) ProposalResult[A, T] {
	return ProposalResult[A, T]{output: output, executed: true}
}

// Pending returns the proposal if it was not executed.
func (r ProposalResult[A, T]) Pending() (*Proposal[A], bool) {
	return r.proposal, !r.executed
}

// Executed returns the execution output if the proposal was executed.
func (r ProposalResult[A, T]) Executed() (T, bool) {
	return r.output, r.executed
}

// IsExecuted returns true if the proposal was executed.
func (r ProposalResult[A, T]) IsExecuted() bool {
	return r.executed
}

// Borrowed is an object available to an intent.
type Borrowed struct {
	// Arg is the placeholder argument to use in the intent builder.
	Arg    ptb.Argument
	Object *idgov.ObjectData
}

// Intent adds commands using borrowed objects. It receives a fresh builder
// and the borrowed objects keyed by id. The composed commands are merged
// into the transaction with every placeholder replaced by the borrowed
// value. An intent never leaves the local process.
type Intent func(b *ptb.Builder, borrowed map[idgov.ObjectID]Borrowed) error

// runIntent composes the intent commands and merges them into b.
// borrowedArgs holds the argument of every borrowed object, in the order of
// objects.
func runIntent(b *ptb.Builder, intent Intent, objects []*idgov.ObjectData, borrowedArgs []ptb.Argument) error {
	if intent == nil {
		return nil
	}
	ib := ptb.NewBuilder()
	borrowed := make(map[idgov.ObjectID]Borrowed, len(objects))
	replacements := make([]ptb.Replacement, 0, len(objects))
	for i, obj := range objects {
		in := ptb.ObjectValue(ptb.ImmOrOwned(obj.Ref))
		placeholder, err := ib.Input(in)
		if err != nil {
			return err
		}
		borrowed[obj.Ref.ID] = Borrowed{Arg: placeholder, Object: obj}
		replacements = append(replacements, ptb.Replacement{Input: in, Argument: borrowedArgs[i]})
	}
	if err := callIntent(intent, ib, borrowed); err != nil {
		return err
	}
	return b.Merge(ib.Finish(), replacements)
}

// callIntent runs an intent. A panic of the intent is returned as ErrPanic.
func callIntent(intent Intent, b *ptb.Builder, borrowed map[idgov.ObjectID]Borrowed) (err error) {
	defer errors.Recover(&err)
	return intent(b, borrowed)
}
