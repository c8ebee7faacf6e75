package identity

import (
	"context"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/cache"
	"github.com/iov-one/idgov/contract"
)

// NewIdentityCache returns a registry of at most size shared identity handles
// loaded from reader. Transactions built from a handle's identity should be
// sent inside Handle.Update so that a failure marks the copy stale.
func NewIdentityCache(reader idgov.ReadClient, size int) (*cache.Registry[*OnChainIdentity], error) {
	return cache.NewRegistry(size, func(ctx context.Context, id idgov.ObjectID) (*OnChainIdentity, error) {
		return GetIdentity(ctx, id, reader)
	})
}

// NewProposalCache returns a registry of at most size handles of proposals
// carrying an action of type A. Approvals and executions change the cached
// proposal in place and should be sent inside Handle.Update.
func NewProposalCache[A contract.Action](reader idgov.ReadClient, size int) (*cache.Registry[*Proposal[A]], error) {
	return cache.NewRegistry(size, func(ctx context.Context, id idgov.ObjectID) (*Proposal[A], error) {
		return GetProposal[A](ctx, id, reader)
	})
}
