package identity

import (
	"context"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
)

// checkStatus turns a failed execution status into an error carrying the
// ledger message.
func checkStatus(effects *idgov.Effects) error {
	if effects == nil {
		return errors.ErrEffectsApplication.New("missing effects")
	}
	if !effects.Status.Success {
		return errors.Wrapf(errors.ErrTransactionExecution, "transaction %s: %s", effects.TxDigest, effects.Status.Error)
	}
	return nil
}

// eventFilter selects a proposal event. A zero proposal id matches any
// proposal.
type eventFilter struct {
	pkg      idgov.ObjectID
	identity idgov.ObjectID
	token    idgov.ObjectID
	proposal idgov.ObjectID
	executed bool
	deleted  bool
}

// takeProposalEvent removes the first matching proposal event from the pool.
// Taking events guarantees that nested transactions acting on the same
// identity never match the same event twice.
func takeProposalEvent(events *idgov.Events, f eventFilter) (contract.ProposalEvent, error) {
	var found contract.ProposalEvent
	eventType := contract.ProposalEventType(f.pkg)
	_, ok := events.Take(func(ev idgov.Event) bool {
		if ev.Type != eventType {
			return false
		}
		var pe contract.ProposalEvent
		if err := contract.Decode(ev.Contents, &pe); err != nil {
			return false
		}
		if pe.Identity != f.identity || pe.Controller != f.token || pe.Executed != f.executed || pe.Deleted != f.deleted {
			return false
		}
		if !f.proposal.IsZero() && pe.Proposal != f.proposal {
			return false
		}
		found = pe
		return true
	})
	if !ok {
		err := errors.ErrEffectsApplication.Newf("no proposal event (executed=%t) for token %s", f.executed, f.token)
		return found, errors.WithObject(err, "identity", f.identity)
	}
	return found, nil
}

// createdObject fetches the first object created by a transaction that has
// given type.
func createdObject(ctx context.Context, effects *idgov.Effects, reader idgov.ReadClient, typ string, shared bool) (*idgov.ObjectData, error) {
	for _, c := range effects.Created {
		if (c.Owner.Kind == idgov.Shared) != shared {
			continue
		}
		obj, err := reader.GetObject(ctx, c.Ref.ID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrEffectsApplication, err.Error())
		}
		if obj.Type == typ {
			return obj, nil
		}
	}
	return nil, errors.ErrEffectsApplication.Newf("no created object of type %s", typ)
}
